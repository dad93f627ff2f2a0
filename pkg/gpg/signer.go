// Package gpg signs APT repository metadata.
//
// Keys live in a plain directory of armored private keys rather than the
// ambient GnuPG home, so the signing behavior is fully determined by explicit
// configuration and nothing depends on per-user global state.
package gpg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/gopenpgp/v3/crypto"
	"github.com/rs/zerolog"

	apterrors "github.com/rpatterson/github-apt-repos/internal/errors"
	"github.com/rpatterson/github-apt-repos/pkg/utils"
)

const (
	keyFileExt        = ".asc"
	keyFilePermission = os.FileMode(0600)
	dirPermission     = os.FileMode(0755)
	filePermission    = os.FileMode(0644)
)

// Signer looks up, generates, and uses a GPG key to sign Release files.
type Signer struct {
	pgp        *crypto.PGPHandle
	keyringDir string
	key        *crypto.Key
	logger     zerolog.Logger
}

// NewSigner returns a signer backed by the given keyring directory, creating
// the directory if needed.
func NewSigner(keyringDir string, logger zerolog.Logger) (*Signer, error) {
	if err := os.MkdirAll(keyringDir, dirPermission); err != nil {
		return nil, fmt.Errorf("unable to create keyring directory %s: %w", keyringDir, err)
	}

	return &Signer{
		pgp:        crypto.PGP(),
		keyringDir: keyringDir,
		logger:     logger,
	}, nil
}

// DefaultKeyringDir returns the keyring location used when none is
// configured, under the user configuration directory.
func DefaultKeyringDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "github-apt-repos", "keys"), nil
}

// DefaultUserID derives a signing identity from a GitHub repository, the way
// a repository owner would want their packages attributed:
// `<repo> <owner> <owner+repo@github.com>`.
func DefaultUserID(owner, repo string) (name, email string) {
	return fmt.Sprintf("%s %s", repo, owner), fmt.Sprintf("%s+%s@github.com", owner, repo)
}

// Key returns the selected signing key, nil before lookup or generation.
func (s *Signer) Key() *crypto.Key { return s.key }

// UserID returns the name and email of the selected signing key's primary
// identity.
func (s *Signer) UserID() (name, email string) {
	if s.key == nil {
		return "", ""
	}
	return keyIdentity(s.key)
}

// LookupKey scans the keyring directory for a private key whose identity
// matches the given email and selects it. Returns false when no stored key
// matches.
func (s *Signer) LookupKey(email string) (bool, error) {
	keyFiles, err := filepath.Glob(filepath.Join(s.keyringDir, "*"+keyFileExt))
	if err != nil {
		return false, fmt.Errorf("error listing keyring directory %s: %w", s.keyringDir, err)
	}

	for _, keyFile := range keyFiles {
		armored, err := os.ReadFile(keyFile)
		if err != nil {
			return false, fmt.Errorf("unable to read key file %s: %w", keyFile, err)
		}

		key, err := crypto.NewPrivateKeyFromArmored(string(armored), []byte{})
		if err != nil {
			return false, fmt.Errorf("unable to parse key file %s: %w", keyFile, err)
		}

		if _, keyEmail := keyIdentity(key); strings.EqualFold(keyEmail, email) {
			s.key = key
			return true, nil
		}
	}

	return false, nil
}

// GenerateKey generates a fresh signing key for the given identity and
// persists it armored in the keyring directory. A generation that yields no
// fingerprint aborts the run rather than leave the repository unsigned.
func (s *Signer) GenerateKey(name, email string) error {
	userID := fmt.Sprintf("%s <%s>", name, email)
	s.logger.Info().Str("user-id", userID).Msg("generating new signing key")

	key, err := s.pgp.KeyGeneration().
		AddUserId(name, email).
		New().
		GenerateKey()
	if err != nil {
		return &apterrors.SigningFailedError{UserID: userID, Err: err}
	}
	if key.GetFingerprint() == "" {
		return &apterrors.SigningFailedError{UserID: userID}
	}

	armored, err := key.Armor()
	if err != nil {
		return &apterrors.SigningFailedError{UserID: userID, Err: err}
	}

	keyPath := filepath.Join(s.keyringDir, utils.QuoteDotted(email)+keyFileExt)
	if err := os.WriteFile(keyPath, []byte(armored), keyFilePermission); err != nil {
		return fmt.Errorf("unable to write key file %s: %w", keyPath, err)
	}

	s.key = key
	return nil
}

// EnsureKey selects the stored key for the given identity, generating one
// when the keyring has none.
func (s *Signer) EnsureKey(name, email string) error {
	found, err := s.LookupKey(email)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	s.logger.Info().Str("email", email).Msg("no stored key found for identity")
	return s.GenerateKey(name, email)
}

// SelectByPublicKey reads an exported armored public key, recovers its
// identity, and selects the matching private key from the keyring.
func (s *Signer) SelectByPublicKey(pubKeyPath string) error {
	armored, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return fmt.Errorf("unable to read public key %s: %w", pubKeyPath, err)
	}

	pubKey, err := crypto.NewKeyFromArmored(string(armored))
	if err != nil {
		return fmt.Errorf("unable to parse public key %s: %w", pubKeyPath, err)
	}

	_, email := keyIdentity(pubKey)
	found, err := s.LookupKey(email)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no private key in %s matching public key identity %s", s.keyringDir, email)
	}

	return nil
}

// ExportPublicKey returns the armored public key of the selected signing key.
func (s *Signer) ExportPublicKey() ([]byte, error) {
	if s.key == nil {
		return nil, fmt.Errorf("no signing key selected")
	}

	armored, err := s.key.GetArmoredPublicKey()
	if err != nil {
		return nil, fmt.Errorf("unable to export public key: %w", err)
	}

	return []byte(armored), nil
}

// SignRelease signs the Release file of a group directory, producing the
// clearsigned InRelease and the armored detached Release.gpg alongside it.
func (s *Signer) SignRelease(distArchDir string) error {
	if s.key == nil {
		return fmt.Errorf("no signing key selected")
	}
	name, email := keyIdentity(s.key)
	userID := fmt.Sprintf("%s <%s>", name, email)

	releasePath := filepath.Join(distArchDir, "Release")
	release, err := os.ReadFile(releasePath)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", releasePath, err)
	}

	signer, err := s.pgp.Sign().SigningKey(s.key).New()
	if err != nil {
		return &apterrors.SigningFailedError{UserID: userID, Err: err}
	}

	inReleasePath := filepath.Join(distArchDir, "InRelease")
	s.logger.Info().Str("path", inReleasePath).Msg("signing release metadata")
	cleartext, err := signer.SignCleartext(release)
	if err != nil {
		return &apterrors.SigningFailedError{UserID: userID, Err: err}
	}
	if err := os.WriteFile(inReleasePath, cleartext, filePermission); err != nil {
		return fmt.Errorf("unable to write %s: %w", inReleasePath, err)
	}

	detachedSigner, err := s.pgp.Sign().SigningKey(s.key).Detached().New()
	if err != nil {
		return &apterrors.SigningFailedError{UserID: userID, Err: err}
	}

	releaseGpgPath := filepath.Join(distArchDir, "Release.gpg")
	s.logger.Info().Str("path", releaseGpgPath).Msg("signing release metadata")
	signature, err := detachedSigner.Sign(release, crypto.Armor)
	if err != nil {
		return &apterrors.SigningFailedError{UserID: userID, Err: err}
	}
	if err := os.WriteFile(releaseGpgPath, signature, filePermission); err != nil {
		return fmt.Errorf("unable to write %s: %w", releaseGpgPath, err)
	}

	return nil
}

// keyIdentity returns the name and email of a key's first identity.
func keyIdentity(key *crypto.Key) (name, email string) {
	entity := key.GetEntity()
	if entity == nil {
		return "", ""
	}

	for _, identity := range entity.Identities {
		if identity.UserId == nil {
			continue
		}
		return identity.UserId.Name, identity.UserId.Email
	}

	return "", ""
}
