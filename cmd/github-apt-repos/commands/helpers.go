package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/rpatterson/github-apt-repos/pkg/github"
)

// resolveOriginRepo reads the `origin` remote of the git checkout at repoDir
// and extracts its GitHub owner and repository.
func resolveOriginRepo(repoDir string) (owner, repo string, err error) {
	cmd := exec.Command("git", "-C", repoDir, "remote", "get-url", "origin")
	output, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("unable to read git origin remote in %s: %w", repoDir, err)
	}

	return github.ParseOriginURL(string(output))
}

// parseUserID splits a `Name <email>` user id, accepting a bare email too.
func parseUserID(userID string) (name, email string) {
	start := strings.LastIndex(userID, "<")
	end := strings.LastIndex(userID, ">")
	if start >= 0 && end > start {
		return strings.TrimSpace(userID[:start]), strings.TrimSpace(userID[start+1 : end])
	}

	userID = strings.TrimSpace(userID)
	if strings.Contains(userID, "@") {
		return "", userID
	}
	return userID, ""
}

// distArchFromDir recovers the distribution and architecture from a group
// directory path relative to the APT root.
func distArchFromDir(aptDir, distArchDir string) (dist, arch string, err error) {
	rel, err := filepath.Rel(aptDir, distArchDir)
	if err != nil {
		return "", "", fmt.Errorf("group directory %s outside APT root %s: %w", distArchDir, aptDir, err)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("unexpected group directory layout %s", rel)
	}
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "GitHub password for %s: ", username)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("unable to read password: %w", err)
	}

	return string(password), nil
}
