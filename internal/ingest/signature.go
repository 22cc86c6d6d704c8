package ingest

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// VerifySignature reports whether signatureB58 is a valid Ed25519 detached
// signature of body under publicKeyB58. Both values are base58 encoded.
// Malformed encodings or wrong key/signature lengths never verify.
func VerifySignature(publicKeyB58, signatureB58 string, body []byte) bool {
	keyBytes, err := base58.Decode(publicKeyB58)
	if err != nil || len(keyBytes) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(keyBytes), body, sig)
}
