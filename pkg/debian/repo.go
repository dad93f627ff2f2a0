package debian

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// RepoBuilder generates APT repository metadata for a group directory by
// invoking the system packaging tools. The command names are configurable so
// tests can substitute stand-ins.
type RepoBuilder struct {
	DpkgScanpackages string
	AptFtparchive    string
	Logger           zerolog.Logger
}

// NewRepoBuilder returns a builder using the standard tool names.
func NewRepoBuilder(logger zerolog.Logger) *RepoBuilder {
	return &RepoBuilder{
		DpkgScanpackages: "dpkg-scanpackages",
		AptFtparchive:    "apt-ftparchive",
		Logger:           logger,
	}
}

// Build writes the Packages and Release files for a single group directory.
// The directory must only contain .deb files of one distribution and
// architecture pair, such as the grouping done by GroupPackages; mixing
// groups would make apt offer mismatched packages.
//
// Any tool failure is fatal for the run; nothing is retried.
func (b *RepoBuilder) Build(distArchDir string) error {
	packagesPath := filepath.Join(distArchDir, "Packages")
	b.Logger.Info().Str("path", packagesPath).Msg("writing package index")
	if err := b.runToFile(
		packagesPath, distArchDir,
		b.DpkgScanpackages, "-m", ".", "/dev/null",
	); err != nil {
		return err
	}

	releasePath := filepath.Join(distArchDir, "Release")
	b.Logger.Info().Str("path", releasePath).Msg("writing release metadata")
	return b.runToFile(
		releasePath, "",
		b.AptFtparchive, "release", distArchDir,
	)
}

// runToFile runs a command and streams its stdout into destPath. The file is
// truncated first, so re-running a partially failed build starts clean.
func (b *RepoBuilder) runToFile(destPath, workDir, name string, args ...string) error {
	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FilePermission)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", destPath, err)
	}
	defer destFile.Close()

	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Dir = workDir
	cmd.Stdout = destFile
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s",
			strings.Join(append([]string{name}, args...), " "),
			err, strings.TrimSpace(stderr.String()))
	}

	return nil
}
