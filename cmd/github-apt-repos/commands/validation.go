package commands

import (
	"github.com/nicksnyder/go-i18n/v2/i18n"

	apterrors "github.com/rpatterson/github-apt-repos/internal/errors"
)

// Config carries every command line option. Flag registration lives in the
// main package, everything downstream receives this struct explicitly.
type Config struct {
	DebDir  string
	AptDir  string
	RepoDir string

	GithubToken   string
	GithubUser    string
	GithubRepo    string
	GithubAptRepo string
	DownloadTag   string
	Prerelease    bool
	ReleasePrefix string

	GpgPubKey     string
	GpgUserID     string
	GpgKeyringDir string

	Verbose bool
	Lang    string
}

// validateConfig rejects contradictory option combinations before any
// network or filesystem mutation.
func validateConfig(config *Config, localizer *i18n.Localizer) error {
	if config.GithubToken != "" && config.GithubUser != "" {
		return &apterrors.AmbiguousConfigurationError{
			Message: localizeMessage(localizer, "error.ambiguous.credentials",
				"--github-token and --github-user are mutually exclusive", nil),
		}
	}

	if config.GpgPubKey != "" && config.GpgUserID != "" {
		return &apterrors.AmbiguousConfigurationError{
			Message: localizeMessage(localizer, "error.ambiguous.gpg",
				"--gpg-pub-key and --gpg-user-id are mutually exclusive", nil),
		}
	}

	if config.DownloadTag != "" && config.Prerelease {
		return &apterrors.AmbiguousConfigurationError{
			Message: localizeMessage(localizer, "error.ambiguous.release",
				"--github-download-tag and --github-prerelease are mutually exclusive", nil),
		}
	}

	if config.GithubToken == "" && config.GithubUser == "" {
		if config.DebDir == "" {
			return &apterrors.AmbiguousConfigurationError{
				Message: localizeMessage(localizer, "error.ambiguous.no_credentials",
					"downloading release assets requires --github-token or --github-user", nil),
			}
		}
		// With local packages the run can stay offline, but options that
		// explicitly request remote operations must not be dropped silently.
		if config.DownloadTag != "" || config.Prerelease || config.GithubAptRepo != "" {
			return &apterrors.AmbiguousConfigurationError{
				Message: localizeMessage(localizer, "error.ambiguous.remote_options",
					"--github-download-tag, --github-prerelease, and --github-apt-repo require --github-token or --github-user", nil),
			}
		}
	}

	return nil
}

func localizeMessage(localizer *i18n.Localizer, messageID, fallback string, data map[string]any) string {
	if localizer == nil {
		return fallback
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err == nil && msg != "" {
		return msg
	}

	return fallback
}
