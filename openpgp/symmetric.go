package openpgp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/sha1"
	"crypto/subtle"

	"github.com/sirupsen/logrus"
)

// SymmetricKeyAlgorithm identifies an OpenPGP symmetric cipher. See
// RFC 4880 §9.2.
type SymmetricKeyAlgorithm byte

const (
	Plaintext SymmetricKeyAlgorithm = 0
	IDEA      SymmetricKeyAlgorithm = 1
	TripleDES SymmetricKeyAlgorithm = 2
	CAST5     SymmetricKeyAlgorithm = 3
	Blowfish  SymmetricKeyAlgorithm = 4
	AES128    SymmetricKeyAlgorithm = 7
	AES192    SymmetricKeyAlgorithm = 8
	AES256    SymmetricKeyAlgorithm = 9
	Twofish   SymmetricKeyAlgorithm = 10
)

// KeySize returns the key size in bytes for the algorithm.
func (a SymmetricKeyAlgorithm) KeySize() int {
	switch a {
	case TripleDES:
		return 24
	case CAST5, Blowfish, IDEA:
		return 16
	case AES128:
		return 16
	case AES192:
		return 24
	case AES256, Twofish:
		return 32
	default:
		return 0
	}
}

// BlockSize returns the cipher block size in bytes for the algorithm.
func (a SymmetricKeyAlgorithm) BlockSize() int {
	switch a {
	case TripleDES, CAST5, Blowfish, IDEA:
		return 8
	case AES128, AES192, AES256, Twofish:
		return 16
	default:
		return 0
	}
}

func (a SymmetricKeyAlgorithm) newBlockCipher(key []byte) (cipher.Block, error) {
	switch a {
	case AES128, AES192, AES256:
		return aes.NewCipher(key)
	case TripleDES:
		return des.NewTripleDESCipher(key)
	default:
		return nil, errPolicy("unsupported symmetric-key algorithm for CFB decryption")
	}
}

// DecryptWithIVRegular decrypts buf in place using CFB mode with the
// given explicit IV. It is used for the SKESK inner-key unwrap, which
// always uses an all-zero IV per RFC 4880 §5.3.
func (a SymmetricKeyAlgorithm) DecryptWithIVRegular(key, iv, buf []byte) error {
	if a == Plaintext {
		return errPolicy("plaintext is not a valid session-key algorithm")
	}
	block, err := a.newBlockCipher(key)
	if err != nil {
		return err
	}
	if len(iv) != block.BlockSize() {
		return errStructural("IV length does not match block size")
	}
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(buf, buf)
	return nil
}

// Decrypt decrypts an unprotected Symmetrically Encrypted Data packet
// body (Tag 9). The first block_size+2 bytes are an encrypted random
// prefix whose last two bytes repeat the two bytes before them as a
// quick integrity check (RFC 4880 §5.7); the remainder is the
// plaintext payload.
func (a SymmetricKeyAlgorithm) Decrypt(key, buf []byte) ([]byte, error) {
	block, err := a.newBlockCipher(key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	if len(buf) < bs+2 {
		return nil, errStructural("symmetrically encrypted data too short")
	}
	iv := make([]byte, bs)
	stream := cipher.NewCFBDecrypter(block, iv)
	plain := make([]byte, len(buf))
	stream.XORKeyStream(plain, buf)

	if plain[bs-2] != plain[bs] || plain[bs-1] != plain[bs+1] {
		logrus.WithField("algorithm", a).Debug("symmetric quick-check mismatch")
		return nil, errCrypto("symmetric decryption quick-check failed")
	}
	return plain[bs+2:], nil
}

// DecryptProtected decrypts a Sym. Encrypted Integrity Protected Data
// packet body (Tag 18): CFB with an all-zero IV over a random prefix
// plus payload plus a trailing Modification Detection Code (a SHA-1
// digest of everything preceding it, including the literal prefix
// marker bytes 0xD3 0x14). It verifies and strips the MDC, returning
// only the payload.
func (a SymmetricKeyAlgorithm) DecryptProtected(key, buf []byte) ([]byte, error) {
	block, err := a.newBlockCipher(key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	if len(buf) < bs+2+22 {
		return nil, errStructural("protected data too short")
	}
	iv := make([]byte, bs)
	stream := cipher.NewCFBDecrypter(block, iv)
	plain := make([]byte, len(buf))
	stream.XORKeyStream(plain, buf)

	mdcOffset := len(plain) - 22
	if plain[mdcOffset] != 0xd3 || plain[mdcOffset+1] != 0x14 {
		return nil, errCrypto("missing MDC packet header")
	}
	h := sha1.New()
	h.Write(plain[:mdcOffset+2])
	sum := h.Sum(nil)
	if subtle.ConstantTimeCompare(sum, plain[mdcOffset+2:]) == 0 {
		return nil, errCrypto("modification detection code mismatch")
	}

	return plain[bs+2 : mdcOffset], nil
}
