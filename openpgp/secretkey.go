package openpgp

import (
	"crypto"
	"crypto/cipher"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/sha1"
	"crypto/subtle"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"
)

// SecretKeyRepr is the tagged variant of decrypted secret-key
// material. It is deliberately a plain sum type — a closed set of
// concrete structs behind a marker interface, exhaustively
// type-switched on at each call site — rather than a polymorphic
// interface with per-variant Decrypt methods.
type SecretKeyRepr interface {
	isSecretKeyRepr()
}

// RSASecretKey wraps a standard-library RSA private key, used as a
// black-box decryption primitive.
type RSASecretKey struct {
	PrivateKey crypto.Decrypter
}

func (RSASecretKey) isSecretKeyRepr() {}

// DSASecretKey marks a DSA secret key. DSA is signing-only; any
// attempt to decrypt with it fails.
type DSASecretKey struct {
	PrivateKey *dsa.PrivateKey
}

func (DSASecretKey) isSecretKeyRepr() {}

// ECDSASecretKey marks an ECDSA secret key. ECDSA is signing-only;
// any attempt to decrypt with it fails.
type ECDSASecretKey struct {
	PrivateKey *ecdsa.PrivateKey
}

func (ECDSASecretKey) isSecretKeyRepr() {}

// ECDHSecretKey holds the material needed to run the RFC 6637 ECDH
// transport of §4.1: the curve OID, the preferred symmetric/hash
// algorithms from the public key's KDF parameters, and the 32-byte
// big-endian clamped Curve25519 scalar.
type ECDHSecretKey struct {
	OID    []byte
	AlgSym SymmetricKeyAlgorithm
	Hash   HashAlgorithm
	Secret [32]byte // big-endian
}

func (ECDHSecretKey) isSecretKeyRepr() {}

// EdDSASecretKey marks an Ed25519 secret key. Only signing is
// implemented for EdDSA in OpenPGP; decryption is never defined.
type EdDSASecretKey struct {
	PrivateKey ed25519.PrivateKey
}

func (EdDSASecretKey) isSecretKeyRepr() {}

// LockedSecretKey models protected secret-key material as it sits in
// a Secret-Key packet: either plaintext or S2K-protected with a
// symmetric cipher, covering all five SecretKeyRepr algorithms.
type LockedSecretKey struct {
	fingerprintBytes [20]byte

	// encrypted holds the CFB-encrypted secret with its trailing
	// SHA-1 checksum; cipherAlg, s2k and iv below say how it was
	// protected. It is nil for an unencrypted key.
	encrypted    []byte
	cipherAlg    SymmetricKeyAlgorithm
	s2k          S2K
	iv           []byte
	unlockedRepr func(secret []byte) (SecretKeyRepr, error)
}

// Fingerprint returns the 20-byte SHA-1 fingerprint of the owning
// public key.
func (k *LockedSecretKey) Fingerprint() [20]byte {
	return k.fingerprintBytes
}

// NewLockedSecretKey builds a LockedSecretKey over S2K-protected
// secret material. decode turns the S2K-decrypted, checksum-verified
// secret bytes into the appropriate SecretKeyRepr for the owning
// public-key algorithm.
func NewLockedSecretKey(fingerprint [20]byte, cipherAlg SymmetricKeyAlgorithm, s2k S2K, iv, encrypted []byte, decode func([]byte) (SecretKeyRepr, error)) *LockedSecretKey {
	return &LockedSecretKey{
		fingerprintBytes: fingerprint,
		encrypted:        encrypted,
		cipherAlg:        cipherAlg,
		s2k:              s2k,
		iv:               iv,
		unlockedRepr:     decode,
	}
}

// NewUnlockedSecretKey builds a LockedSecretKey over already-plaintext
// secret material (a Secret-Key packet with S2K usage octet 0).
func NewUnlockedSecretKey(fingerprint [20]byte, plain []byte, decode func([]byte) (SecretKeyRepr, error)) *LockedSecretKey {
	return &LockedSecretKey{
		fingerprintBytes: fingerprint,
		unlockedRepr: func([]byte) (SecretKeyRepr, error) {
			return decode(plain)
		},
	}
}

// Unlock decrypts (if necessary) the protected secret material,
// invokes body with the resulting SecretKeyRepr, and zeroizes every
// plaintext buffer it allocated before returning — on success,
// failure, or panic. passphraseFn is called at most once, and only
// when the key is actually protected. The secret only exists for the
// scope of body's call.
func (k *LockedSecretKey) Unlock(passphraseFn func() ([]byte, error), body func(SecretKeyRepr) error) (err error) {
	if k.encrypted == nil {
		// Already-plaintext key: no separate buffer to zeroize here
		// because none was allocated by this call.
		repr, derr := k.unlockedRepr(nil)
		if derr != nil {
			return derr
		}
		return body(repr)
	}

	passphrase, err := passphraseFn()
	if err != nil {
		return errors.Wrap(err, "openpgp: passphrase callback failed")
	}
	if passphrase == nil {
		return ErrWrongKeyID
	}

	key, err := k.s2k.DeriveKey(passphrase, k.cipherAlg.KeySize())
	if err != nil {
		return err
	}

	plain := make([]byte, len(k.encrypted))
	copy(plain, k.encrypted)
	defer zeroize(plain)
	defer zeroize(key)

	block, err := k.cipherAlg.newBlockCipher(key)
	if err != nil {
		return err
	}
	stream := cipher.NewCFBDecrypter(block, k.iv)
	stream.XORKeyStream(plain, plain)

	secretMPI, check := plain[:len(plain)-20], plain[len(plain)-20:]
	mac := sha1.New()
	mac.Write(secretMPI)
	if subtle.ConstantTimeCompare(mac.Sum(nil), check) == 0 {
		return ErrWrongKeyID
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("openpgp: panic while unlocking secret key: %v", r)
		}
	}()

	repr, derr := k.unlockedRepr(secretMPI)
	if derr != nil {
		return derr
	}
	return body(repr)
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
