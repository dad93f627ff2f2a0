package debian

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	apterrors "github.com/rpatterson/github-apt-repos/internal/errors"
)

// debBasenameTemplate matches the conventional `name[-dist]_version_arch`
// base name of a .deb file. The package, version, and architecture read from
// the control stanza are substituted as literal text; whatever is left
// between the package name and the version is the distribution tag:
//
//	mypkg_1.2.3_amd64         -> no distribution
//	mypkg-bionic_1.2.3_amd64  -> distribution "bionic"
const debBasenameTemplate = `^%s([-_.](.+)|)_%s_%s$`

// ResolveDistArch computes the (distribution, architecture) group key for a
// .deb file from its path and control fields. The distribution is empty when
// the base name carries no residual tag. A base name that does not follow the
// convention at all yields an UnrecognizedFilenameError.
func ResolveDistArch(debPath string, control *Control) (dist, arch string, err error) {
	base := filepath.Base(debPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	pattern := fmt.Sprintf(
		debBasenameTemplate,
		regexp.QuoteMeta(control.Package),
		regexp.QuoteMeta(control.Version),
		regexp.QuoteMeta(control.Architecture),
	)
	basenameRe, err := regexp.Compile(pattern)
	if err != nil {
		return "", "", fmt.Errorf("error compiling basename pattern for %s: %w", debPath, err)
	}

	match := basenameRe.FindStringSubmatch(base)
	if match == nil {
		return "", "", &apterrors.UnrecognizedFilenameError{Path: debPath, Pattern: pattern}
	}

	return match[2], control.Architecture, nil
}

// DistArchDir returns the group directory for a (distribution, architecture)
// pair under the apt root: `<aptDir>/<dist>/<arch>` when a distribution is
// present, `<aptDir>/<arch>` otherwise.
func DistArchDir(aptDir, dist, arch string) string {
	if dist == "" {
		return filepath.Join(aptDir, arch)
	}
	return filepath.Join(aptDir, dist, arch)
}

// GroupPackages partitions the `*.deb` files in debDir into group directories
// under aptDir, one per unique (distribution, architecture) pair, and returns
// the sorted set of group directories produced.
//
// Files are hard linked, not copied, so previously downloaded packages are
// re-used for free. Both the directory creation and the linking are
// idempotent: running the grouping twice over the same directories is safe
// and changes nothing the second time.
func GroupPackages(debDir, aptDir string) ([]string, error) {
	debs, err := filepath.Glob(filepath.Join(debDir, "*.deb"))
	if err != nil {
		return nil, fmt.Errorf("error listing package files in %s: %w", debDir, err)
	}

	distArchDirs := make(map[string]struct{})
	for _, deb := range debs {
		control, err := ReadControlFromDeb(deb)
		if err != nil {
			return nil, err
		}

		dist, arch, err := ResolveDistArch(deb, control)
		if err != nil {
			return nil, err
		}

		distArchDir := DistArchDir(aptDir, dist, arch)
		if err := os.MkdirAll(distArchDir, DirPermission); err != nil {
			return nil, fmt.Errorf("unable to create group directory %s: %w", distArchDir, err)
		}
		distArchDirs[distArchDir] = struct{}{}

		if err := LinkIfAbsent(deb, filepath.Join(distArchDir, filepath.Base(deb))); err != nil {
			return nil, err
		}
	}

	if len(distArchDirs) == 0 {
		return nil, &apterrors.NoPackagesFoundError{Dir: debDir}
	}

	result := make([]string, 0, len(distArchDirs))
	for dir := range distArchDirs {
		result = append(result, dir)
	}
	sort.Strings(result)

	return result, nil
}

// LinkIfAbsent hard links src to dst unless dst already exists. An existing
// dst is trusted and left untouched, which is what makes re-runs over a
// previously populated apt directory cheap.
func LinkIfAbsent(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("unable to check existing link %s: %w", dst, err)
	}

	if err := os.Link(src, dst); err != nil {
		return fmt.Errorf("unable to link %s to %s: %w", src, dst, err)
	}

	return nil
}
