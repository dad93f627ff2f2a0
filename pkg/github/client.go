// Package github wraps the GitHub releases API for downloading .deb assets
// and publishing APT repository files back as release assets.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"

	apterrors "github.com/rpatterson/github-apt-repos/internal/errors"
	"github.com/rpatterson/github-apt-repos/pkg/utils"
)

const (
	debExtension   = ".deb"
	filePermission = os.FileMode(0644)
	listPageSize   = 100
)

// originURLPattern matches the GitHub remote URL forms emitted by
// `git remote get-url origin`, HTTPS and SSH alike.
var originURLPattern = regexp.MustCompile(
	`^(?:https://github\.com/|git@github\.com:)([^/]+)/(.+?)(?:\.git)?$`)

// Client performs the release operations the pipeline needs. Downloads and
// uploads are never retried, re-running the tool skips work already done.
type Client struct {
	// API is the underlying REST client. Tests point its BaseURL at a
	// local server.
	API    *github.Client
	logger zerolog.Logger
}

// NewTokenClient returns a client authenticating with a personal access
// token.
func NewTokenClient(token string, logger zerolog.Logger) *Client {
	return &Client{
		API:    github.NewClient(nil).WithAuthToken(token),
		logger: logger,
	}
}

// NewBasicClient returns a client authenticating with a username and
// password.
func NewBasicClient(username, password string, logger zerolog.Logger) *Client {
	transport := &github.BasicAuthTransport{
		Username: username,
		Password: password,
	}
	return &Client{
		API:    github.NewClient(transport.Client()),
		logger: logger,
	}
}

// ParseRepoPath splits an `owner/repo` path into its components.
func ParseRepoPath(repoPath string) (owner, repo string, err error) {
	owner, repo, found := strings.Cut(repoPath, "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository path %q, expected owner/repo", repoPath)
	}
	return owner, repo, nil
}

// ParseOriginURL extracts the owner and repository from a git remote URL.
func ParseOriginURL(originURL string) (owner, repo string, err error) {
	match := originURLPattern.FindStringSubmatch(strings.TrimSpace(originURL))
	if match == nil {
		return "", "", fmt.Errorf("remote URL %q is not a GitHub repository", originURL)
	}
	return match[1], match[2], nil
}

// ResolveRelease locates the release to download packages from. An explicit
// tag wins, otherwise the latest release, or the most recent pre-release when
// requested.
func (c *Client) ResolveRelease(ctx context.Context, owner, repo, tag string, prerelease bool) (*github.RepositoryRelease, error) {
	repoPath := owner + "/" + repo

	if tag != "" {
		release, resp, err := c.API.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
		if isNotFound(resp, err) {
			return nil, &apterrors.RemoteNotFoundError{Repo: repoPath, Tag: tag}
		}
		if err != nil {
			return nil, fmt.Errorf("error fetching release %s from %s: %w", tag, repoPath, err)
		}
		return release, nil
	}

	if prerelease {
		opts := &github.ListOptions{PerPage: listPageSize}
		for {
			releases, resp, err := c.API.Repositories.ListReleases(ctx, owner, repo, opts)
			if err != nil {
				return nil, fmt.Errorf("error listing releases from %s: %w", repoPath, err)
			}
			for _, release := range releases {
				if release.GetPrerelease() {
					return release, nil
				}
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil, &apterrors.RemoteNotFoundError{Repo: repoPath}
	}

	release, resp, err := c.API.Repositories.GetLatestRelease(ctx, owner, repo)
	if isNotFound(resp, err) {
		return nil, &apterrors.RemoteNotFoundError{Repo: repoPath}
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching latest release from %s: %w", repoPath, err)
	}
	return release, nil
}

// DownloadReleaseDebs downloads every .deb asset of a release into destDir
// and returns the downloaded paths. Assets already present on disk are
// skipped, so interrupted runs resume where they stopped.
func (c *Client) DownloadReleaseDebs(ctx context.Context, owner, repo string, release *github.RepositoryRelease, destDir string) ([]string, error) {
	assets, err := c.listAssets(ctx, owner, repo, release.GetID())
	if err != nil {
		return nil, err
	}

	var debPaths []string
	for _, asset := range assets {
		if !strings.HasSuffix(asset.GetName(), debExtension) {
			continue
		}

		destPath := filepath.Join(destDir, asset.GetName())
		if _, err := os.Stat(destPath); err == nil {
			c.logger.Debug().Str("path", destPath).Msg("asset already downloaded, skipping")
			debPaths = append(debPaths, destPath)
			continue
		}

		if err := c.downloadAsset(ctx, owner, repo, asset, destPath); err != nil {
			return nil, err
		}
		debPaths = append(debPaths, destPath)
	}

	c.logger.Info().
		Str("release", release.GetTagName()).
		Int("packages", len(debPaths)).
		Msg("downloaded release packages")
	return debPaths, nil
}

func (c *Client) listAssets(ctx context.Context, owner, repo string, releaseID int64) ([]*github.ReleaseAsset, error) {
	var assets []*github.ReleaseAsset
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		page, resp, err := c.API.Repositories.ListReleaseAssets(ctx, owner, repo, releaseID, opts)
		if err != nil {
			return nil, fmt.Errorf("error listing release assets: %w", err)
		}
		assets = append(assets, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return assets, nil
}

func (c *Client) downloadAsset(ctx context.Context, owner, repo string, asset *github.ReleaseAsset, destPath string) error {
	c.logger.Info().Str("asset", asset.GetName()).Msg("downloading release asset")

	body, _, err := c.API.Repositories.DownloadReleaseAsset(ctx, owner, repo, asset.GetID(), http.DefaultClient)
	if err != nil {
		return fmt.Errorf("error downloading asset %s: %w", asset.GetName(), err)
	}
	defer body.Close()

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", destPath, err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, body); err != nil {
		return fmt.Errorf("error writing %s: %w", destPath, err)
	}
	return nil
}

// EnsureRelease returns the release at the given tag, creating it when it
// does not exist yet.
func (c *Client) EnsureRelease(ctx context.Context, owner, repo, tag, name, body string) (*github.RepositoryRelease, error) {
	release, resp, err := c.API.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err == nil {
		return release, nil
	}
	if !isNotFound(resp, err) {
		return nil, fmt.Errorf("error fetching release %s: %w", tag, err)
	}

	c.logger.Info().Str("tag", tag).Msg("creating release")
	release, _, err = c.API.Repositories.CreateRelease(ctx, owner, repo, &github.RepositoryRelease{
		TagName: github.String(tag),
		Name:    github.String(name),
		Body:    github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating release %s: %w", tag, err)
	}
	return release, nil
}

// UploadAsset uploads a file as a release asset, replacing any existing
// asset of the same name so re-publishing always reflects the local files.
func (c *Client) UploadAsset(ctx context.Context, owner, repo string, releaseID int64, path string) error {
	name := filepath.Base(path)

	assets, err := c.listAssets(ctx, owner, repo, releaseID)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if asset.GetName() != name {
			continue
		}
		c.logger.Debug().Str("asset", name).Msg("deleting existing release asset")
		if _, err := c.API.Repositories.DeleteReleaseAsset(ctx, owner, repo, asset.GetID()); err != nil {
			return fmt.Errorf("error deleting asset %s: %w", name, err)
		}
	}

	assetFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer assetFile.Close()

	c.logger.Info().Str("asset", name).Msg("uploading release asset")
	_, _, err = c.API.Repositories.UploadReleaseAsset(ctx, owner, repo, releaseID, &github.UploadOptions{
		Name:      name,
		MediaType: utils.GuessContentType(name),
	}, assetFile)
	if err != nil {
		return fmt.Errorf("error uploading asset %s: %w", name, err)
	}
	return nil
}

// isNotFound reports whether an API error is a plain 404.
func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusNotFound
}
