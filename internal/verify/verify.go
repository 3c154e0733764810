package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/utils"

	minisign "github.com/jedisct1/go-minisign"
)

// ZiglangPublicKey is the minisign key upstream signs every release artifact
// with. Not expected to change short of a key compromise.
const ZiglangPublicKey = "RWSGOq2NVecA2UPNdBUZykf1CCb147pkmdtYxgb3Ti+JO/wCYvhbAb/U"

// Archive runs both checks on a downloaded archive: the SHA-256 digest from
// the index when one was provided, and the minisign signature always. A
// failure of either rejects the archive.
func Archive(archivePath, sigPath, expectedName, shasum string) error {
	if shasum != "" {
		if err := Digest(archivePath, shasum); err != nil {
			return err
		}
	}
	return Minisign(archivePath, sigPath, expectedName, ZiglangPublicKey)
}

// Digest streams the file through SHA-256 and compares against the expected
// hex digest bytewise.
func Digest(path, expected string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer utils.Close(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: %s: expected %s, got %s", errs.ErrShasumMismatch, path, expected, actual)
	}
	return nil
}

// Minisign verifies the detached signature at sigPath over the archive,
// including the trusted-comment filename binding: upstream embeds the signed
// file's name in the trusted comment, which stops a mirror from answering a
// request for one artifact with a validly-signed different one.
func Minisign(archivePath, sigPath, expectedName, pubkey string) error {
	pk, err := minisign.NewPublicKey(pubkey)
	if err != nil {
		return fmt.Errorf("%w: invalid public key: %v", errs.ErrBadSignature, err)
	}

	sig, err := minisign.NewSignatureFromFile(sigPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrBadSignature, sigPath, err)
	}

	if expectedName != "" {
		signedName, err := filenameFromTrustedComment(sig.TrustedComment)
		if err != nil {
			return err
		}
		if signedName != expectedName {
			return fmt.Errorf("%w: signature is for %q, wanted %q", errs.ErrBadSignature, signedName, expectedName)
		}
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", archivePath, err)
	}

	ok, err := pk.Verify(data, sig)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrBadSignature, archivePath, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrBadSignature, archivePath)
	}
	return nil
}

// filenameFromTrustedComment extracts the file: field from a minisign
// trusted comment of the form "timestamp:<ts>\tfile:<name>\t<metadata>".
func filenameFromTrustedComment(comment string) (string, error) {
	trimmed := strings.TrimPrefix(comment, "trusted comment: ")
	for _, part := range strings.Split(trimmed, "\t") {
		if name, ok := strings.CutPrefix(part, "file:"); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: trusted comment missing file field: %q", errs.ErrBadSignature, comment)
}
