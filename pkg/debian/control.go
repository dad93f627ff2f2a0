package debian

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	apterrors "github.com/rpatterson/github-apt-repos/internal/errors"
)

// Filesystem permission defaults used throughout the repository tree.
const (
	DirPermission  = os.FileMode(0755)
	FilePermission = os.FileMode(0644)
)

// Control holds the fields of a binary package control stanza.
type Control struct {
	// Required fields
	Package      string
	Version      string
	Architecture string

	// Optional fields
	Maintainer    string
	Description   string
	Source        string
	Section       string
	Priority      string
	Essential     string
	Depends       []string
	PreDepends    []string
	Recommends    []string
	Suggests      []string
	Breaks        []string
	Conflicts     []string
	Provides      []string
	Replaces      []string
	InstalledSize string
	Homepage      string
	MultiArch     string

	// Custom fields (X- prefixed or unknown)
	CustomFields map[string]string
}

// ReadControlFromDeb extracts the control stanza from a .deb archive on disk.
// Any failure to open the archive, locate the control member, or recover the
// required Package/Version/Architecture fields is reported as a
// MalformedPackageError.
func ReadControlFromDeb(debPath string) (*Control, error) {
	file, err := os.Open(debPath)
	if err != nil {
		return nil, &apterrors.MalformedPackageError{Path: debPath, Err: err}
	}
	defer file.Close()

	control, err := readControlArchive(file)
	if err != nil {
		return nil, &apterrors.MalformedPackageError{Path: debPath, Err: err}
	}

	return control, nil
}

// readControlArchive walks the outer ar container looking for the
// control.tar member, in whichever compression the build tools produced.
func readControlArchive(reader io.Reader) (*Control, error) {
	archive := ar.NewReader(reader)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("no control.tar member found")
		}
		if err != nil {
			return nil, fmt.Errorf("error reading ar archive: %w", err)
		}

		name := strings.TrimRight(header.Name, "/ ")
		if !strings.HasPrefix(name, "control.tar") {
			continue
		}

		decompressed, cleanup, err := newControlDecompressor(archive, name)
		if err != nil {
			return nil, err
		}
		if cleanup != nil {
			defer cleanup()
		}

		return readControlTar(decompressed)
	}
}

// newControlDecompressor wraps the control.tar member stream based on its
// extension. Returns the reader and a cleanup function (may be nil).
func newControlDecompressor(body io.Reader, name string) (io.Reader, func(), error) {
	switch {
	case name == "control.tar":
		return body, nil, nil

	case strings.HasSuffix(name, ".gz"):
		gzReader, err := gzip.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("error during gzip decompression: %w", err)
		}
		return gzReader, func() { gzReader.Close() }, nil

	case strings.HasSuffix(name, ".xz"):
		xzReader, err := xz.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("error during xz decompression: %w", err)
		}
		return xzReader, nil, nil

	case strings.HasSuffix(name, ".zst"):
		zstReader, err := zstd.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("error during zstd decompression: %w", err)
		}
		return zstReader, func() { zstReader.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported control archive compression: %s", name)
	}
}

func readControlTar(reader io.Reader) (*Control, error) {
	untar := tar.NewReader(reader)
	for {
		header, err := untar.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("no control file found in control.tar")
		}
		if err != nil {
			return nil, fmt.Errorf("error reading control.tar: %w", err)
		}

		if name := strings.TrimPrefix(header.Name, "./"); name != "control" {
			continue
		}

		data, err := io.ReadAll(untar)
		if err != nil {
			return nil, fmt.Errorf("error reading control file: %w", err)
		}

		return ParseControl(string(data))
	}
}

// ParseControl parses a control stanza. The Package, Version, and
// Architecture fields are required; everything else is optional.
func ParseControl(content string) (*Control, error) {
	control := &Control{
		CustomFields: make(map[string]string),
	}

	currentField := ""
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		// Continuation lines extend the previous field; only the long
		// description matters to us.
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if currentField == "description" {
				control.Description += "\n" + strings.TrimRight(line, "\n")
			}
			continue
		}

		colonIndex := strings.Index(line, ":")
		if colonIndex == -1 {
			continue
		}

		field := strings.TrimSpace(line[:colonIndex])
		value := strings.TrimSpace(line[colonIndex+1:])
		currentField = strings.ToLower(field)

		switch currentField {
		case "package":
			control.Package = value
		case "version":
			control.Version = value
		case "architecture":
			control.Architecture = value
		case "maintainer":
			control.Maintainer = value
		case "description":
			control.Description = value
		case "source":
			control.Source = value
		case "section":
			control.Section = value
		case "priority":
			control.Priority = value
		case "essential":
			control.Essential = value
		case "depends":
			control.Depends = parsePackageList(value)
		case "pre-depends":
			control.PreDepends = parsePackageList(value)
		case "recommends":
			control.Recommends = parsePackageList(value)
		case "suggests":
			control.Suggests = parsePackageList(value)
		case "breaks":
			control.Breaks = parsePackageList(value)
		case "conflicts":
			control.Conflicts = parsePackageList(value)
		case "provides":
			control.Provides = parsePackageList(value)
		case "replaces":
			control.Replaces = parsePackageList(value)
		case "installed-size":
			control.InstalledSize = value
		case "homepage":
			control.Homepage = value
		case "multi-arch":
			control.MultiArch = value
		default:
			control.CustomFields[field] = value
		}
	}

	if control.Package == "" || control.Version == "" || control.Architecture == "" {
		return nil, fmt.Errorf("invalid control stanza: missing required fields (Package, Version, Architecture)")
	}

	return control, nil
}

func parsePackageList(value string) []string {
	if value == "" {
		return nil
	}

	packages := strings.Split(value, ",")
	for i := range packages {
		packages[i] = strings.TrimSpace(packages[i])
	}
	return packages
}
