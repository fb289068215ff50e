package openpgp

import (
	"crypto/rand"

	"github.com/sirupsen/logrus"
)

// SymKeyEncryptedSessionKey models a Symmetric-Key Encrypted Session
// Key packet (Tag 3, RFC 4880 §5.3): an S2K specifier for the
// passphrase-derived key, the symmetric algorithm it protects, and an
// optional CFB-encrypted session key. When EncryptedKey is nil, the
// S2K-derived key is itself the session key.
type SymKeyEncryptedSessionKey struct {
	Version      byte
	SymAlgorithm SymmetricKeyAlgorithm
	S2K          S2K
	EncryptedKey []byte // nil if absent
}

// ParseSymKeyEncryptedSessionKey decodes a Symmetric-Key Encrypted
// Session Key packet body (Tag 3, RFC 4880 §5.3): a version octet, a
// symmetric-algorithm octet, an S2K specifier, and an optional
// trailing encrypted session key filling out the rest of the body.
func ParseSymKeyEncryptedSessionKey(body []byte) (*SymKeyEncryptedSessionKey, error) {
	if len(body) < 3 {
		return nil, errStructural("truncated SKESK packet")
	}
	version := body[0]
	if version != 4 {
		return nil, errStructural("unsupported SKESK packet version")
	}
	alg := SymmetricKeyAlgorithm(body[1])

	s2k, n, err := parseS2K(body[2:])
	if err != nil {
		return nil, err
	}

	var encrypted []byte
	if rest := body[2+n:]; len(rest) > 0 {
		encrypted = append([]byte{}, rest...)
	}

	return &SymKeyEncryptedSessionKey{
		Version:      version,
		SymAlgorithm: alg,
		S2K:          s2k,
		EncryptedKey: encrypted,
	}, nil
}

// DecryptSessionKey implements the asymmetric session-key recovery
// path: it unlocks locked with passphraseFn, decrypts the PKESK MPIs
// against whatever SecretKeyRepr the unlock yields, strips and
// verifies the mod-65536 checksum trailer, and returns the bare
// session key plus the symmetric algorithm octet it was prefixed
// with.
func DecryptSessionKey(locked *LockedSecretKey, passphraseFn func() ([]byte, error), mpis []MPI, fingerprint []byte) (key []byte, alg SymmetricKeyAlgorithm, err error) {
	logrus.Debug("decrypting session key")

	err = locked.Unlock(passphraseFn, func(repr SecretKeyRepr) error {
		var decrypted []byte
		var derr error

		switch priv := repr.(type) {
		case RSASecretKey:
			decrypted, derr = rsaDecryptSessionKey(priv, mpis)
		case DSASecretKey:
			return errPolicy("DSA is only used for signing")
		case ECDSASecretKey:
			return errPolicy("ECDSA is only used for signing")
		case ECDHSecretKey:
			decrypted, derr = ECDHDecrypt(&priv, mpis, fingerprint)
		case EdDSASecretKey:
			return errPolicy("EdDSA has no defined decryption operation")
		default:
			return errStructural("unrecognized secret-key representation")
		}
		if derr != nil {
			return derr
		}
		if len(decrypted) < 1 {
			return errStructural("decrypted session key payload is empty")
		}

		sessionAlg := SymmetricKeyAlgorithm(decrypted[0])
		if sessionAlg == Plaintext {
			return errPolicy("session key algorithm cannot be plaintext")
		}
		alg = sessionAlg
		logrus.WithField("algorithm", alg).Debug("recovered session-key algorithm")

		var k, sum []byte
		if _, isECDH := repr.(ECDHSecretKey); isECDH {
			n := len(decrypted)
			if n < 3 {
				return errStructural("ECDH session-key payload too short")
			}
			k, sum = decrypted[1:n-2], decrypted[n-2:]
		} else {
			ks := sessionAlg.KeySize()
			if ks == 0 || len(decrypted) < ks+3 {
				return errStructural("session-key payload too short for algorithm")
			}
			k, sum = decrypted[1:1+ks], decrypted[1+ks:1+ks+2]
		}

		if err := verifyChecksum(k, sum); err != nil {
			return err
		}
		key = append([]byte{}, k...)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return key, alg, nil
}

// verifyChecksum checks a session key's trailing big-endian
// sum-mod-65536 checksum, RFC 4880 §5.5.3.
func verifyChecksum(key, sum []byte) error {
	if len(sum) != 2 {
		return errStructural("malformed session-key checksum")
	}
	want := checksumMod65536(key)
	got := uint16(sum[0])<<8 | uint16(sum[1])
	if want != got {
		return errCrypto("session-key checksum mismatch")
	}
	return nil
}

// rsaDecryptSessionKey unwraps the single PKCS#1v1.5-padded MPI of an
// RSA PKESK body (RFC 4880 §5.1) via the RSASecretKey's
// crypto.Decrypter, treated as an opaque black box.
func rsaDecryptSessionKey(priv RSASecretKey, mpis []MPI) ([]byte, error) {
	if len(mpis) != 1 {
		return nil, errStructural("RSA PKESK must have exactly one MPI")
	}
	ct := mpis[0].AsBytes()
	plain, err := priv.PrivateKey.Decrypt(rand.Reader, ct, nil)
	if err != nil {
		return nil, errCrypto("RSA decryption failed: " + err.Error())
	}
	return plain, nil
}

// DecryptSessionKeyWithPassword implements the SKESK session-key
// recovery path: it derives a key from msgPassphrase via the packet's
// S2K, and either returns that derived key directly (when the packet
// carries no encrypted session key) or CFB-decrypts EncryptedKey with
// an all-zero IV and returns the payload it wraps.
func DecryptSessionKeyWithPassword(packet *SymKeyEncryptedSessionKey, msgPassphrase []byte) (key []byte, alg SymmetricKeyAlgorithm, err error) {
	logrus.Debug("decrypting session key")

	if packet.SymAlgorithm == Plaintext {
		return nil, 0, errPolicy("SKESK packet encryption algorithm cannot be plaintext")
	}

	derived, err := packet.S2K.DeriveKey(msgPassphrase, packet.SymAlgorithm.KeySize())
	if err != nil {
		return nil, 0, err
	}

	if packet.EncryptedKey == nil {
		return derived, packet.SymAlgorithm, nil
	}

	decrypted := append([]byte{}, packet.EncryptedKey...)
	iv := make([]byte, packet.SymAlgorithm.BlockSize())
	if err := packet.SymAlgorithm.DecryptWithIVRegular(derived, iv, decrypted); err != nil {
		return nil, 0, err
	}

	if len(decrypted) < 1 {
		return nil, 0, errStructural("decrypted SKESK payload is empty")
	}
	sessionAlg := SymmetricKeyAlgorithm(decrypted[0])
	if sessionAlg == Plaintext {
		return nil, 0, errPolicy("session key algorithm cannot be plaintext")
	}
	return decrypted[1:], sessionAlg, nil
}
