// Package verify checks downloaded artifacts against recipe checksums and
// detached OpenPGP signatures.
package verify

import (
	"bufio"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/teamcutter/huber/internal/domain"
)

const (
	AlgSHA256 = "sha256"
	AlgSHA512 = "sha512"
)

type Verifier struct {
	fetcher    domain.Fetcher
	keyringDir string
}

// New returns a verifier that downloads checksum files and signatures
// with fetcher and reads public keys from keyringDir/<package>.asc.
func New(fetcher domain.Fetcher, keyringDir string) *Verifier {
	return &Verifier{fetcher: fetcher, keyringDir: keyringDir}
}

// Digest returns the sha256 digest of path as "sha256:<hex>".
func (v *Verifier) Digest(path string) (string, error) {
	sum, err := fileHash(path, AlgSHA256)
	if err != nil {
		return "", err
	}
	return AlgSHA256 + ":" + sum, nil
}

// VerifyChecksum compares path against expected. Expected is a hex
// digest, optionally prefixed with sha256: or sha512:, or the URL of a
// checksum file listing the artifact by file name. An empty expected
// skips the comparison.
func (v *Verifier) VerifyChecksum(ctx context.Context, path, expected string) (string, error) {
	expected = strings.TrimSpace(expected)
	name := filepath.Base(path)

	if isURL(expected) {
		found, err := v.lookupChecksum(ctx, expected, name)
		if err != nil {
			return "", err
		}
		expected = found
	}

	if expected != "" {
		alg, want, err := parseChecksum(expected)
		if err != nil {
			return "", err
		}

		actual, err := fileHash(path, alg)
		if err != nil {
			return "", fmt.Errorf("calculate checksum: %w", err)
		}

		if !strings.EqualFold(actual, want) {
			return "", &domain.ChecksumMismatchError{
				Artifact: name,
				Expected: alg + ":" + strings.ToLower(want),
				Actual:   alg + ":" + actual,
			}
		}
	}

	return v.Digest(path)
}

func (v *Verifier) lookupChecksum(ctx context.Context, checksumURL, name string) (string, error) {
	dir, err := os.MkdirTemp("", "huber-checksum-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "checksums")
	if err := v.fetcher.Fetch(ctx, checksumURL, local); err != nil {
		return "", fmt.Errorf("fetch checksum file: %w", err)
	}

	sum, err := findChecksum(local, name)
	if err != nil {
		return "", err
	}
	return sum, nil
}

// VerifySignature checks the detached signature at signatureURL against
// the public keys held for pkg. Any failure is a *domain.SignatureError.
func (v *Verifier) VerifySignature(ctx context.Context, pkg, path, signatureURL string) error {
	fail := func(err error) error {
		return &domain.SignatureError{Artifact: filepath.Base(path), Err: err}
	}

	keyring, err := v.loadKeyring(pkg)
	if err != nil {
		return fail(err)
	}

	dir, err := os.MkdirTemp("", "huber-signature-*")
	if err != nil {
		return fail(err)
	}
	defer os.RemoveAll(dir)

	sigPath := filepath.Join(dir, "signature")
	if err := v.fetcher.Fetch(ctx, signatureURL, sigPath); err != nil {
		return fail(fmt.Errorf("fetch signature: %w", err))
	}

	if err := checkDetached(keyring, path, sigPath); err != nil {
		return fail(err)
	}
	return nil
}

func checkDetached(keyring openpgp.EntityList, path, sigPath string) error {
	artifact, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer artifact.Close()

	sig, err := os.Open(sigPath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sig.Close()

	// Try armored first
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, artifact, sig, nil)
	if err != nil {
		artifact.Seek(0, io.SeekStart)
		sig.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, artifact, sig, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

func (v *Verifier) loadKeyring(pkg string) (openpgp.EntityList, error) {
	f, err := os.Open(filepath.Join(v.keyringDir, pkg+".asc"))
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		f.Seek(0, io.SeekStart)
		keyring, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, errors.New("keyring is empty")
	}
	return keyring, nil
}

func parseChecksum(s string) (alg, sum string, err error) {
	if a, rest, ok := strings.Cut(s, ":"); ok {
		alg, sum = strings.ToLower(a), rest
	} else {
		sum = s
		switch len(s) {
		case sha256.Size * 2:
			alg = AlgSHA256
		case sha512.Size * 2:
			alg = AlgSHA512
		}
	}

	switch alg {
	case AlgSHA256, AlgSHA512:
	default:
		return "", "", fmt.Errorf("unrecognised checksum %q", s)
	}

	if _, err := hex.DecodeString(sum); err != nil {
		return "", "", fmt.Errorf("checksum %q is not hex: %w", s, err)
	}
	return alg, sum, nil
}

func fileHash(path, alg string) (string, error) {
	var h hash.Hash
	switch alg {
	case AlgSHA512:
		h = sha512.New()
	default:
		h = sha256.New()
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// findChecksum finds the checksum for a specific filename in a checksum file
// Format: "abc123def456  filename.tar.gz"
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		// "*name" marks binary mode in sha256sum output
		listed := strings.TrimPrefix(parts[1], "*")
		if listed == filename || filepath.Base(listed) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
