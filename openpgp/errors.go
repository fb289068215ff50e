package openpgp

import "github.com/pkg/errors"

// ErrUnpad indicates that the PKCS#5-style padding recovered after an
// AES Key Wrap unwrap violates one of the invariants in RFC 6637 §8:
// non-empty, a multiple of 8, and every trailing pad byte equal to the
// pad length.
var ErrUnpad = errors.New("openpgp: invalid PKCS#5 padding")

// errStructural reports malformed wire data: wrong MPI counts or
// lengths, a missing 0x40 point prefix, a bad subpacket length, an
// unknown subpacket type, or an unsupported packet version.
func errStructural(msg string) error {
	return errors.New("openpgp: structural error: " + msg)
}

// errCrypto reports a cryptographic-layer failure: AES-KW unwrap,
// checksum mismatch, MDC verification, or DH failure.
func errCrypto(msg string) error {
	return errors.New("openpgp: crypto error: " + msg)
}

// errPolicy reports an operation this package refuses by design: a
// Plaintext session-key algorithm, a signing-only key used to decrypt,
// or EdDSA decryption (never implemented in OpenPGP).
func errPolicy(msg string) error {
	return errors.New("openpgp: policy error: " + msg)
}

// ErrWrongKeyID indicates the wrong passphrase, or a missing one, was
// supplied to unlock a secret key.
var ErrWrongKeyID = errors.New("openpgp: wrong encryption key or passphrase")
