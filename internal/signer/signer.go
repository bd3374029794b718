// Package signer signs toolchain feeds and checks their detached
// signatures.
package signer

// Signer creates detached signatures for feed files
type Signer interface {
	// SignDetached creates an armored detached signature (feed.xml.asc)
	SignDetached(data []byte) ([]byte, error)

	// GetPublicKey returns the public key
	GetPublicKey() ([]byte, error)
}

// Verifier checks detached signatures against a keyring
type Verifier interface {
	// Verify returns an error unless signature is a valid signature of
	// data by a key of the keyring
	Verify(data, signature []byte) error
}

// SignatureExt is appended to a feed location to find its signature
const SignatureExt = ".asc"
