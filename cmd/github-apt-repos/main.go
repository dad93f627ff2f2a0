// github-apt-repos turns the .deb assets of a GitHub release into signed APT
// repositories and publishes them back as release assets.
package main

import (
	"embed"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/rpatterson/github-apt-repos/cmd/github-apt-repos/commands"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	config  commands.Config
	rootCmd *cobra.Command

	localizer *i18n.Localizer
)

func main() {
	initLocalizer(os.Getenv("LANG"))
	initCommands()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLocalizer loads the embedded message bundles and selects the display
// language from the given locale, falling back to English. Environment
// locales like `fr_FR.UTF-8` are normalized to BCP 47 first.
func initLocalizer(locale string) {
	locale, _, _ = strings.Cut(locale, ".")
	locale = strings.ReplaceAll(locale, "_", "-")

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, name := range []string{"locales/en.toml", "locales/fr.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, name); err != nil {
			panic(err)
		}
	}

	localizer = i18n.NewLocalizer(bundle, locale, "en")
}

func localize(messageID string) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil || msg == "" {
		return messageID
	}
	return msg
}

// newLogger returns the console logger the pipeline reports through.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
