// Package minisigntest crafts minisign keypairs and detached signatures for
// tests, mirroring the format upstream publishes next to release archives.
package minisigntest

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/rand"
)

// Signer holds a throwaway minisign identity.
type Signer struct {
	pub   ed25519.PublicKey
	priv  ed25519.PrivateKey
	keyID [8]byte
}

// New derives a deterministic signer from seed.
func New(seed int64) *Signer {
	rng := rand.New(rand.NewSource(seed))
	pub, priv, err := ed25519.GenerateKey(rng)
	if err != nil {
		panic(err)
	}
	s := &Signer{pub: pub, priv: priv}
	rng.Read(s.keyID[:])
	return s
}

// PublicKey returns the base64 key string in the form verify.Minisign
// accepts: algorithm, key id, then the raw Ed25519 key.
func (s *Signer) PublicKey() string {
	raw := append([]byte("Ed"), s.keyID[:]...)
	raw = append(raw, s.pub...)
	return base64.StdEncoding.EncodeToString(raw)
}

// Sign produces the contents of a .minisig file over content, binding
// filename into the trusted comment the way upstream does.
func (s *Signer) Sign(content []byte, filename string) string {
	sig := ed25519.Sign(s.priv, content)

	sigBlob := append([]byte("Ed"), s.keyID[:]...)
	sigBlob = append(sigBlob, sig...)

	trusted := fmt.Sprintf("timestamp:1700000000\tfile:%s\thashed", filename)
	global := ed25519.Sign(s.priv, append(append([]byte(nil), sig...), []byte(trusted)...))

	return fmt.Sprintf("untrusted comment: signature from zv test key\n%s\ntrusted comment: %s\n%s\n",
		base64.StdEncoding.EncodeToString(sigBlob),
		trusted,
		base64.StdEncoding.EncodeToString(global))
}
