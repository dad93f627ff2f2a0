package commands

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/rpatterson/github-apt-repos/pkg/debian"
	"github.com/rpatterson/github-apt-repos/pkg/github"
	"github.com/rpatterson/github-apt-repos/pkg/utils"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var repoTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const scriptPermission = os.FileMode(0775)

// repoFileData feeds the sources.list, apt-add-repo, and release body
// templates.
type repoFileData struct {
	Owner       string
	SourceRepo  string
	AptRepo     string
	Tag         string
	Dist        string
	Arch        string
	ListName    string
	PubKeyName  string
	DownloadURL string
}

// releaseTag derives the release tag an APT repository is published under.
// Slashes never survive into a git tag.
func releaseTag(prefix, dist, arch string) string {
	parts := []string{"apt"}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if dist != "" {
		parts = append(parts, dist)
	}
	parts = append(parts, arch)

	return strings.ReplaceAll(strings.Join(parts, "-"), "/", "-")
}

// writeRepoFiles renders the APT client files into a group directory: the
// sources.list entry, the apt-add-repo convenience script, and the armored
// public key packages are verified against.
func writeRepoFiles(distArchDir string, data *repoFileData, pubKey []byte) error {
	pubKeyPath := filepath.Join(distArchDir, data.PubKeyName)
	if err := os.WriteFile(pubKeyPath, pubKey, debian.FilePermission); err != nil {
		return fmt.Errorf("unable to write %s: %w", pubKeyPath, err)
	}

	var list bytes.Buffer
	if err := repoTemplates.ExecuteTemplate(&list, "sources.list.tmpl", data); err != nil {
		return fmt.Errorf("error rendering sources.list: %w", err)
	}
	listPath := filepath.Join(distArchDir, data.ListName)
	if err := os.WriteFile(listPath, list.Bytes(), debian.FilePermission); err != nil {
		return fmt.Errorf("unable to write %s: %w", listPath, err)
	}

	var script bytes.Buffer
	if err := repoTemplates.ExecuteTemplate(&script, "apt-add-repo.tmpl", data); err != nil {
		return fmt.Errorf("error rendering apt-add-repo: %w", err)
	}
	scriptPath := filepath.Join(distArchDir, "apt-add-repo")
	if err := os.WriteFile(scriptPath, script.Bytes(), scriptPermission); err != nil {
		return fmt.Errorf("unable to write %s: %w", scriptPath, err)
	}

	return nil
}

// publishRepo uploads every file of a group directory to the release for its
// tag, creating the release when needed.
func publishRepo(ctx context.Context, client *github.Client, logger zerolog.Logger, data *repoFileData, distArchDir string) error {
	repoLabel := data.Arch
	if data.Dist != "" {
		repoLabel = data.Dist + " " + data.Arch
	}
	title := fmt.Sprintf("APT repository (%s)", repoLabel)

	var body bytes.Buffer
	if err := repoTemplates.ExecuteTemplate(&body, "release-body.md.tmpl", data); err != nil {
		return fmt.Errorf("error rendering release body: %w", err)
	}

	release, err := client.EnsureRelease(ctx, data.Owner, data.AptRepo, data.Tag, title, body.String())
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(distArchDir)
	if err != nil {
		return fmt.Errorf("unable to list %s: %w", distArchDir, err)
	}

	logger.Info().
		Str("tag", data.Tag).
		Int("files", len(entries)).
		Msg("publishing repository files")
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := client.UploadAsset(ctx, data.Owner, data.AptRepo, release.GetID(), filepath.Join(distArchDir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// newRepoFileData assembles the template data for one group directory.
func newRepoFileData(owner, sourceRepo, aptRepo, prefix, dist, arch, keyEmail string) *repoFileData {
	tag := releaseTag(prefix, dist, arch)
	return &repoFileData{
		Owner:       owner,
		SourceRepo:  sourceRepo,
		AptRepo:     aptRepo,
		Tag:         tag,
		Dist:        dist,
		Arch:        arch,
		ListName:    fmt.Sprintf("%s-%s.list", owner, aptRepo),
		PubKeyName:  utils.QuoteDotted(keyEmail) + ".pub.key",
		DownloadURL: fmt.Sprintf("https://github.com/%s/%s/releases/download/%s", owner, aptRepo, tag),
	}
}
