// Package errors defines the error taxonomy shared across the pipeline.
// Every error here is fatal for the run: the tool never retries, it relies on
// idempotent filesystem operations to make re-running cheap instead.
package errors

import "fmt"

// MalformedPackageError reports a .deb file whose control metadata could not
// be read. A corrupt download should be treated as a download failure
// upstream, so this is never retried.
type MalformedPackageError struct {
	Path string
	Err  error
}

func (e *MalformedPackageError) Error() string {
	return fmt.Sprintf("malformed package %s: %v", e.Path, e.Err)
}

func (e *MalformedPackageError) Unwrap() error { return e.Err }

// UnrecognizedFilenameError reports a .deb file whose base name does not
// follow the `name[-dist]_version_arch` convention.
type UnrecognizedFilenameError struct {
	Path    string
	Pattern string
}

func (e *UnrecognizedFilenameError) Error() string {
	return fmt.Sprintf("unrecognized package filename %s: does not match %s", e.Path, e.Pattern)
}

// NoPackagesFoundError reports an input directory with no usable .deb files.
// Callers must not build a repository index from an empty set.
type NoPackagesFoundError struct {
	Dir string
}

func (e *NoPackagesFoundError) Error() string {
	return fmt.Sprintf("no *.deb package files found in %s", e.Dir)
}

// SigningFailedError reports a signing operation that produced no
// fingerprint. The run aborts rather than publish an unsigned index.
type SigningFailedError struct {
	UserID string
	Err    error
}

func (e *SigningFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signing failed for %s: %v", e.UserID, e.Err)
	}
	return fmt.Sprintf("signing failed for %s: no fingerprint returned", e.UserID)
}

func (e *SigningFailedError) Unwrap() error { return e.Err }

// RemoteNotFoundError reports a missing release at the requested tag.
type RemoteNotFoundError struct {
	Repo string
	Tag  string
}

func (e *RemoteNotFoundError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("no release found in %s", e.Repo)
	}
	return fmt.Sprintf("no release found in %s at tag %s", e.Repo, e.Tag)
}

// AmbiguousConfigurationError reports mutually exclusive flags supplied
// together, or a remote operation requested without credentials. Raised
// during argument validation, before any network or filesystem mutation.
type AmbiguousConfigurationError struct {
	Message string
}

func (e *AmbiguousConfigurationError) Error() string { return e.Message }
