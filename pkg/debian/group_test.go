package debian

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	apterrors "github.com/rpatterson/github-apt-repos/internal/errors"
)

func TestResolveDistArchNoDistribution(t *testing.T) {
	control := &Control{Package: "mypkg", Version: "1.0-1", Architecture: "amd64"}

	dist, arch, err := ResolveDistArch("/tmp/mypkg_1.0-1_amd64.deb", control)
	if err != nil {
		t.Fatalf("unable to resolve dist and arch: %v", err)
	}
	if dist != "" {
		t.Errorf("expected no distribution, got %q", dist)
	}
	if arch != "amd64" {
		t.Errorf("expected arch amd64, got %q", arch)
	}
}

func TestResolveDistArchDistributionSuffix(t *testing.T) {
	control := &Control{Package: "mypkg", Version: "1.0", Architecture: "amd64"}

	cases := []struct {
		basename string
		dist     string
	}{
		{"mypkg-bionic_1.0_amd64.deb", "bionic"},
		{"mypkg_buster_1.0_amd64.deb", "buster"},
		{"mypkg.stretch_1.0_amd64.deb", "stretch"},
		// A distribution tag may itself contain the separator characters.
		{"mypkg-ubuntu-focal_1.0_amd64.deb", "ubuntu-focal"},
	}
	for _, c := range cases {
		dist, _, err := ResolveDistArch(filepath.Join("/tmp", c.basename), control)
		if err != nil {
			t.Fatalf("unable to resolve %s: %v", c.basename, err)
		}
		if dist != c.dist {
			t.Errorf("%s: expected distribution %q, got %q", c.basename, c.dist, dist)
		}
	}
}

func TestResolveDistArchUnrecognizedFilename(t *testing.T) {
	control := &Control{Package: "mypkg", Version: "1.0", Architecture: "amd64"}

	for _, basename := range []string{
		"otherpkg_1.0_amd64.deb",
		"mypkg_2.0_amd64.deb",
		"mypkg_1.0_i386.deb",
		// Leading or trailing junk must not match either.
		"xmypkg_1.0_amd64.deb",
		"mypkg_1.0_amd64x.deb",
	} {
		_, _, err := ResolveDistArch(filepath.Join("/tmp", basename), control)
		var unrecognized *apterrors.UnrecognizedFilenameError
		if !errors.As(err, &unrecognized) {
			t.Errorf("%s: expected UnrecognizedFilenameError, got %v", basename, err)
		}
	}
}

func TestResolveDistArchEscapesControlFields(t *testing.T) {
	// Upstream version strings regularly carry regexp metacharacters.
	control := &Control{Package: "mypkg", Version: "1.2.3+git~rc1", Architecture: "amd64"}

	dist, _, err := ResolveDistArch("/tmp/mypkg_1.2.3+git~rc1_amd64.deb", control)
	if err != nil {
		t.Fatalf("unable to resolve with metacharacter version: %v", err)
	}
	if dist != "" {
		t.Errorf("expected no distribution, got %q", dist)
	}

	// The dots in the version must not match arbitrary characters.
	_, _, err = ResolveDistArch("/tmp/mypkg_1X2X3+git~rc1_amd64.deb", control)
	var unrecognized *apterrors.UnrecognizedFilenameError
	if !errors.As(err, &unrecognized) {
		t.Fatalf("expected UnrecognizedFilenameError, got %v", err)
	}
}

func TestDistArchDir(t *testing.T) {
	if dir := DistArchDir("/apt", "", "amd64"); dir != filepath.Join("/apt", "amd64") {
		t.Errorf("unexpected dir without distribution: %s", dir)
	}
	if dir := DistArchDir("/apt", "bionic", "amd64"); dir != filepath.Join("/apt", "bionic", "amd64") {
		t.Errorf("unexpected dir with distribution: %s", dir)
	}
}

func TestGroupPackagesPartitionsByDistArch(t *testing.T) {
	debDir := t.TempDir()
	aptDir := t.TempDir()

	fixtures := []struct {
		basename, pkg, version, arch string
	}{
		{"mypkg_1.0_amd64.deb", "mypkg", "1.0", "amd64"},
		{"mypkg_1.0_i386.deb", "mypkg", "1.0", "i386"},
		{"mypkg-bionic_1.0_amd64.deb", "mypkg", "1.0", "amd64"},
		{"otherpkg-bionic_2.0_amd64.deb", "otherpkg", "2.0", "amd64"},
	}
	for _, f := range fixtures {
		writeTestDeb(t, filepath.Join(debDir, f.basename),
			testControlStanza(f.pkg, f.version, f.arch), "gz")
	}

	distArchDirs, err := GroupPackages(debDir, aptDir)
	if err != nil {
		t.Fatalf("unable to group packages: %v", err)
	}

	expected := []string{
		filepath.Join(aptDir, "amd64"),
		filepath.Join(aptDir, "bionic", "amd64"),
		filepath.Join(aptDir, "i386"),
	}
	if !reflect.DeepEqual(distArchDirs, expected) {
		t.Fatalf("unexpected group directories:\n got %v\nwant %v", distArchDirs, expected)
	}

	// Both bionic packages end up in the same group, hard linked.
	for _, basename := range []string{"mypkg-bionic_1.0_amd64.deb", "otherpkg-bionic_2.0_amd64.deb"} {
		linked := filepath.Join(aptDir, "bionic", "amd64", basename)
		info, err := os.Stat(linked)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", linked, err)
		}
		original, err := os.Stat(filepath.Join(debDir, basename))
		if err != nil {
			t.Fatalf("unable to stat original: %v", err)
		}
		if !os.SameFile(info, original) {
			t.Errorf("%s is not a hard link of the original", linked)
		}
	}
}

func TestGroupPackagesIdempotent(t *testing.T) {
	debDir := t.TempDir()
	aptDir := t.TempDir()
	writeTestDeb(t, filepath.Join(debDir, "mypkg_1.0_amd64.deb"),
		testControlStanza("mypkg", "1.0", "amd64"), "gz")

	first, err := GroupPackages(debDir, aptDir)
	if err != nil {
		t.Fatalf("unable to group packages: %v", err)
	}
	second, err := GroupPackages(debDir, aptDir)
	if err != nil {
		t.Fatalf("second grouping over the same directories failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("grouping is not stable:\n got %v\nwant %v", second, first)
	}
}

func TestGroupPackagesEmptyDir(t *testing.T) {
	_, err := GroupPackages(t.TempDir(), t.TempDir())
	var noPackages *apterrors.NoPackagesFoundError
	if !errors.As(err, &noPackages) {
		t.Fatalf("expected NoPackagesFoundError, got %v", err)
	}
}

func TestGroupPackagesMalformedPackage(t *testing.T) {
	debDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(debDir, "broken_1.0_amd64.deb"),
		[]byte("not an archive"), FilePermission); err != nil {
		t.Fatalf("unable to write broken package: %v", err)
	}

	_, err := GroupPackages(debDir, t.TempDir())
	var malformed *apterrors.MalformedPackageError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedPackageError, got %v", err)
	}
}

func TestLinkIfAbsentSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("source"), FilePermission); err != nil {
		t.Fatalf("unable to write source: %v", err)
	}
	if err := os.WriteFile(dst, []byte("existing"), FilePermission); err != nil {
		t.Fatalf("unable to write destination: %v", err)
	}

	if err := LinkIfAbsent(src, dst); err != nil {
		t.Fatalf("unable to link: %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("unable to read destination: %v", err)
	}
	if string(content) != "existing" {
		t.Errorf("existing destination was replaced: %q", content)
	}
}
