// Package commands wires the collaborators into the end-to-end pipeline:
// download release .deb assets, group them into per-distribution and
// per-architecture APT repositories, sign the repository metadata, and
// publish each repository back to GitHub releases.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"

	"github.com/rpatterson/github-apt-repos/pkg/debian"
	"github.com/rpatterson/github-apt-repos/pkg/github"
	"github.com/rpatterson/github-apt-repos/pkg/gpg"
)

// Run executes the whole pipeline. Every step is idempotent, so a failed run
// is repaired by running again rather than by retrying inside a step.
func Run(ctx context.Context, config *Config, logger zerolog.Logger, localizer *i18n.Localizer) error {
	if err := validateConfig(config, localizer); err != nil {
		return err
	}

	client, err := login(config, logger)
	if err != nil {
		return err
	}

	owner, sourceRepo, err := resolveSourceRepo(config)
	if err != nil {
		return err
	}
	aptRepo := config.GithubAptRepo
	if aptRepo == "" {
		aptRepo = sourceRepo
	}
	logger.Info().
		Str("source", owner+"/"+sourceRepo).
		Str("apt", owner+"/"+aptRepo).
		Msg(localizeMessage(localizer, "pipeline.start", "building APT repositories", nil))

	signer, err := setUpSigner(config, owner, aptRepo, logger)
	if err != nil {
		return err
	}

	debDir, cleanupDebDir, err := ensureWorkDir(config.DebDir, "github-apt-repos-debs-")
	if err != nil {
		return err
	}
	defer cleanupDebDir()

	aptDir, cleanupAptDir, err := ensureWorkDir(config.AptDir, "github-apt-repos-apt-")
	if err != nil {
		return err
	}
	defer cleanupAptDir()

	if client != nil {
		release, err := client.ResolveRelease(ctx, owner, sourceRepo, config.DownloadTag, config.Prerelease)
		if err != nil {
			return err
		}
		if _, err := client.DownloadReleaseDebs(ctx, owner, sourceRepo, release, debDir); err != nil {
			return err
		}
	}

	distArchDirs, err := debian.GroupPackages(debDir, aptDir)
	if err != nil {
		return err
	}

	pubKey, err := signer.ExportPublicKey()
	if err != nil {
		return err
	}
	_, keyEmail := signer.UserID()

	builder := debian.NewRepoBuilder(logger)
	for _, distArchDir := range distArchDirs {
		dist, arch, err := distArchFromDir(aptDir, distArchDir)
		if err != nil {
			return err
		}
		data := newRepoFileData(owner, sourceRepo, aptRepo, config.ReleasePrefix, dist, arch, keyEmail)

		if err := builder.Build(distArchDir); err != nil {
			return err
		}
		if err := signer.SignRelease(distArchDir); err != nil {
			return err
		}
		if err := writeRepoFiles(distArchDir, data, pubKey); err != nil {
			return err
		}

		if client == nil {
			logger.Info().
				Str("dir", distArchDir).
				Msg(localizeMessage(localizer, "pipeline.local_only",
					"no GitHub credentials, leaving repository unpublished", nil))
			continue
		}
		if err := publishRepo(ctx, client, logger, data, distArchDir); err != nil {
			return err
		}
	}

	return nil
}

// login builds the GitHub client from the configured credentials. Without
// credentials the pipeline still runs locally, it just cannot download or
// publish.
func login(config *Config, logger zerolog.Logger) (*github.Client, error) {
	switch {
	case config.GithubToken != "":
		return github.NewTokenClient(config.GithubToken, logger), nil
	case config.GithubUser != "":
		password, err := promptPassword(config.GithubUser)
		if err != nil {
			return nil, err
		}
		return github.NewBasicClient(config.GithubUser, password, logger), nil
	default:
		return nil, nil
	}
}

// resolveSourceRepo determines which repository the .deb assets come from,
// from the --github-repo option or the git checkout's origin remote.
func resolveSourceRepo(config *Config) (owner, repo string, err error) {
	if config.GithubRepo != "" {
		return github.ParseRepoPath(config.GithubRepo)
	}

	return resolveOriginRepo(config.RepoDir)
}

// setUpSigner selects or generates the signing key.
func setUpSigner(config *Config, owner, aptRepo string, logger zerolog.Logger) (*gpg.Signer, error) {
	keyringDir := config.GpgKeyringDir
	if keyringDir == "" {
		var err error
		keyringDir, err = gpg.DefaultKeyringDir()
		if err != nil {
			return nil, err
		}
	}

	signer, err := gpg.NewSigner(keyringDir, logger)
	if err != nil {
		return nil, err
	}

	if config.GpgPubKey != "" {
		if err := signer.SelectByPublicKey(config.GpgPubKey); err != nil {
			return nil, err
		}
		return signer, nil
	}

	name, email := gpg.DefaultUserID(owner, aptRepo)
	if config.GpgUserID != "" {
		name, email = parseUserID(config.GpgUserID)
		if email == "" {
			return nil, fmt.Errorf("--gpg-user-id %q has no email address", config.GpgUserID)
		}
	}

	if err := signer.EnsureKey(name, email); err != nil {
		return nil, err
	}
	return signer, nil
}

// ensureWorkDir returns the configured directory, or allocates a temporary
// one with a cleanup: directories the user supplied are never removed.
func ensureWorkDir(configured, tempPattern string) (dir string, cleanup func(), err error) {
	if configured != "" {
		if err := os.MkdirAll(configured, debian.DirPermission); err != nil {
			return "", nil, fmt.Errorf("unable to create directory %s: %w", configured, err)
		}
		return configured, func() {}, nil
	}

	dir, err = os.MkdirTemp("", tempPattern)
	if err != nil {
		return "", nil, fmt.Errorf("unable to allocate working directory: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}
