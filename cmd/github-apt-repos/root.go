package main

import (
	"github.com/spf13/cobra"

	"github.com/rpatterson/github-apt-repos/cmd/github-apt-repos/commands"
)

func initCommands() {
	rootCmd = &cobra.Command{
		Use:          "github-apt-repos",
		Short:        "Build APT repositories from GitHub release .deb assets",
		Long:         localize("command.root"),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Lang != "" {
				initLocalizer(config.Lang)
			}
			logger := newLogger(config.Verbose)
			return commands.Run(cmd.Context(), &config, logger, localizer)
		},
	}

	// Local directories
	rootCmd.Flags().StringVar(&config.DebDir, "deb-dir", "", localize("flag.deb_dir"))
	rootCmd.Flags().StringVar(&config.AptDir, "apt-dir", "", localize("flag.apt_dir"))
	rootCmd.Flags().StringVar(&config.RepoDir, "repo-dir", ".", localize("flag.repo_dir"))

	// GitHub access and release selection
	rootCmd.Flags().StringVar(&config.GithubToken, "github-token", "", localize("flag.github_token"))
	rootCmd.Flags().StringVar(&config.GithubUser, "github-user", "", localize("flag.github_user"))
	rootCmd.Flags().StringVar(&config.GithubRepo, "github-repo", "", localize("flag.github_repo"))
	rootCmd.Flags().StringVar(&config.GithubAptRepo, "github-apt-repo", "", localize("flag.github_apt_repo"))
	rootCmd.Flags().StringVar(&config.DownloadTag, "github-download-tag", "", localize("flag.github_download_tag"))
	rootCmd.Flags().BoolVar(&config.Prerelease, "github-prerelease", false, localize("flag.github_prerelease"))
	rootCmd.Flags().StringVar(&config.ReleasePrefix, "github-release-prefix", "", localize("flag.github_release_prefix"))

	// Signing
	rootCmd.Flags().StringVar(&config.GpgPubKey, "gpg-pub-key", "", localize("flag.gpg_pub_key"))
	rootCmd.Flags().StringVar(&config.GpgUserID, "gpg-user-id", "", localize("flag.gpg_user_id"))
	rootCmd.Flags().StringVar(&config.GpgKeyringDir, "gpg-keyring-dir", "", localize("flag.gpg_keyring_dir"))

	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, localize("flag.verbose"))
	rootCmd.PersistentFlags().StringVar(&config.Lang, "lang", "", localize("flag.lang"))
}
