package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	gogithub "github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"

	apterrors "github.com/rpatterson/github-apt-repos/internal/errors"
)

func releaseWithID(id int64) *gogithub.RepositoryRelease {
	return &gogithub.RepositoryRelease{ID: gogithub.Int64(id)}
}

func TestParseRepoPath(t *testing.T) {
	owner, repo, err := ParseRepoPath("rpatterson/github-apt-repos")
	if err != nil {
		t.Fatalf("unable to parse repo path: %v", err)
	}
	if owner != "rpatterson" || repo != "github-apt-repos" {
		t.Errorf("unexpected owner/repo: %s/%s", owner, repo)
	}

	for _, invalid := range []string{"", "noslash", "owner/", "/repo", "a/b/c"} {
		if _, _, err := ParseRepoPath(invalid); err == nil {
			t.Errorf("%q: expected an error", invalid)
		}
	}
}

func TestParseOriginURL(t *testing.T) {
	cases := []struct {
		originURL   string
		owner, repo string
	}{
		{"https://github.com/rpatterson/github-apt-repos", "rpatterson", "github-apt-repos"},
		{"https://github.com/rpatterson/github-apt-repos.git", "rpatterson", "github-apt-repos"},
		{"git@github.com:rpatterson/github-apt-repos.git", "rpatterson", "github-apt-repos"},
		{"git@github.com:rpatterson/github-apt-repos\n", "rpatterson", "github-apt-repos"},
	}
	for _, c := range cases {
		owner, repo, err := ParseOriginURL(c.originURL)
		if err != nil {
			t.Fatalf("%q: unable to parse: %v", c.originURL, err)
		}
		if owner != c.owner || repo != c.repo {
			t.Errorf("%q: unexpected owner/repo: %s/%s", c.originURL, owner, repo)
		}
	}

	if _, _, err := ParseOriginURL("https://gitlab.com/owner/repo"); err == nil {
		t.Error("expected an error for a non-GitHub remote")
	}
}

// newTestClient points a token client at a local test server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewTokenClient("test-token", zerolog.Nop())
	serverURL, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("unable to parse test server URL: %v", err)
	}
	client.API.BaseURL = serverURL
	client.API.UploadURL = serverURL

	return client
}

func TestResolveReleaseLatest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1, "tag_name": "v1.0"}`)
	})

	client := newTestClient(t, mux)
	release, err := client.ResolveRelease(t.Context(), "owner", "repo", "", false)
	if err != nil {
		t.Fatalf("unable to resolve latest release: %v", err)
	}
	if release.GetTagName() != "v1.0" {
		t.Errorf("unexpected release: %v", release)
	}
}

func TestResolveReleaseByTagNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/tags/v9.9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	client := newTestClient(t, mux)
	_, err := client.ResolveRelease(t.Context(), "owner", "repo", "v9.9", false)
	var notFound *apterrors.RemoteNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected RemoteNotFoundError, got %v", err)
	}
	if notFound.Tag != "v9.9" {
		t.Errorf("unexpected tag in error: %q", notFound.Tag)
	}
}

func TestResolveReleasePrerelease(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 1, "tag_name": "v1.0", "prerelease": false},
			{"id": 2, "tag_name": "v1.1-rc1", "prerelease": true}
		]`)
	})

	client := newTestClient(t, mux)
	release, err := client.ResolveRelease(t.Context(), "owner", "repo", "", true)
	if err != nil {
		t.Fatalf("unable to resolve pre-release: %v", err)
	}
	if release.GetTagName() != "v1.1-rc1" {
		t.Errorf("unexpected release: %v", release)
	}
}

func TestDownloadReleaseDebsSkipsExisting(t *testing.T) {
	downloads := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/1/assets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 10, "name": "mypkg_1.0_amd64.deb"},
			{"id": 11, "name": "release-notes.txt"}
		]`)
	})
	mux.HandleFunc("/repos/owner/repo/releases/assets/10", func(w http.ResponseWriter, r *http.Request) {
		downloads++
		w.Header().Set("Content-Type", "application/octet-stream")
		fmt.Fprint(w, "deb content")
	})

	client := newTestClient(t, mux)
	destDir := t.TempDir()
	release := releaseWithID(1)

	debs, err := client.DownloadReleaseDebs(t.Context(), "owner", "repo", release, destDir)
	if err != nil {
		t.Fatalf("unable to download release packages: %v", err)
	}
	expected := []string{filepath.Join(destDir, "mypkg_1.0_amd64.deb")}
	if len(debs) != 1 || debs[0] != expected[0] {
		t.Fatalf("unexpected downloads: %v", debs)
	}
	content, err := os.ReadFile(debs[0])
	if err != nil || string(content) != "deb content" {
		t.Fatalf("unexpected downloaded content: %q (%v)", content, err)
	}

	// A second run trusts the file already on disk.
	if _, err := client.DownloadReleaseDebs(t.Context(), "owner", "repo", release, destDir); err != nil {
		t.Fatalf("unable to re-run download: %v", err)
	}
	if downloads != 1 {
		t.Errorf("expected one download, got %d", downloads)
	}
}

func TestEnsureReleaseCreatesMissing(t *testing.T) {
	created := false
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/tags/apt-bionic-amd64", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	mux.HandleFunc("/repos/owner/repo/releases", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		created = true
		fmt.Fprint(w, `{"id": 7, "tag_name": "apt-bionic-amd64"}`)
	})

	client := newTestClient(t, mux)
	release, err := client.EnsureRelease(t.Context(), "owner", "repo", "apt-bionic-amd64", "APT repository", "body")
	if err != nil {
		t.Fatalf("unable to ensure release: %v", err)
	}
	if !created {
		t.Fatal("expected the release to be created")
	}
	if release.GetID() != 7 {
		t.Errorf("unexpected release id: %d", release.GetID())
	}
}

func TestEnsureReleaseReturnsExisting(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/tags/apt-amd64", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 3, "tag_name": "apt-amd64"}`)
	})

	client := newTestClient(t, mux)
	release, err := client.EnsureRelease(t.Context(), "owner", "repo", "apt-amd64", "", "")
	if err != nil {
		t.Fatalf("unable to ensure release: %v", err)
	}
	if release.GetID() != 3 {
		t.Errorf("unexpected release id: %d", release.GetID())
	}
}

func TestUploadAssetReplacesExisting(t *testing.T) {
	deleted := false
	uploaded := false
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/5/assets", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `[{"id": 20, "name": "Packages"}]`)
		case http.MethodPost:
			uploaded = true
			if name := r.URL.Query().Get("name"); name != "Packages" {
				t.Errorf("unexpected upload name: %q", name)
			}
			fmt.Fprint(w, `{"id": 21, "name": "Packages"}`)
		}
	})
	mux.HandleFunc("/repos/owner/repo/releases/assets/20", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		}
	})

	client := newTestClient(t, mux)
	assetPath := filepath.Join(t.TempDir(), "Packages")
	if err := os.WriteFile(assetPath, []byte("Package: mypkg\n"), 0644); err != nil {
		t.Fatalf("unable to write asset: %v", err)
	}

	if err := client.UploadAsset(t.Context(), "owner", "repo", 5, assetPath); err != nil {
		t.Fatalf("unable to upload asset: %v", err)
	}
	if !deleted {
		t.Error("expected the colliding asset to be deleted")
	}
	if !uploaded {
		t.Error("expected the asset to be uploaded")
	}
}
