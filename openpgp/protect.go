package openpgp

import (
	"crypto/cipher"
	"crypto/sha1"
	"io"

	"github.com/pkg/errors"
)

// ProtectedSecretKey is the S2K-protected encoding of a Secret-Key
// packet's secret portion, ready to hand to NewLockedSecretKey: the
// cipher, S2K specifier, IV, and CFB-encrypted MPI-plus-checksum body.
type ProtectedSecretKey struct {
	CipherAlg SymmetricKeyAlgorithm
	S2K       S2K
	IV        []byte
	Encrypted []byte // ciphertext of (secretMPI || SHA-1(secretMPI))
}

// ProtectSecretKey encrypts secretMPI (the MPI-encoded secret
// material of a key, sans checksum) under a key derived from
// passphrase via s2k, using cipherAlg in CFB mode with a freshly
// drawn IV. It appends a SHA-1 integrity trailer before encrypting.
// Any S2K is accepted; cipherAlg must be AES-128/192/256 or TripleDES,
// and other algorithms are rejected with an error.
func ProtectSecretKey(rand io.Reader, passphrase, secretMPI []byte, cipherAlg SymmetricKeyAlgorithm, s2k S2K) (*ProtectedSecretKey, error) {
	key, err := s2k.DeriveKey(passphrase, cipherAlg.KeySize())
	if err != nil {
		return nil, err
	}
	defer zeroize(key)

	mac := sha1.New()
	mac.Write(secretMPI)
	plain := append(append([]byte{}, secretMPI...), mac.Sum(nil)...)
	defer zeroize(plain)

	iv := make([]byte, cipherAlg.BlockSize())
	if _, err := io.ReadFull(rand, iv); err != nil {
		return nil, errors.Wrap(err, "openpgp: failed to read randomness for IV")
	}

	block, err := cipherAlg.newBlockCipher(key)
	if err != nil {
		return nil, err
	}
	encrypted := make([]byte, len(plain))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(encrypted, plain)

	return &ProtectedSecretKey{
		CipherAlg: cipherAlg,
		S2K:       s2k,
		IV:        iv,
		Encrypted: encrypted,
	}, nil
}

// defaultProtectionS2K returns the Iterated+Salted/SHA-256 recipe at
// maximum encoded strength (0xff).
func defaultProtectionS2K(rand io.Reader) (S2K, error) {
	const maxStrengthCount = 0xff
	var salt [8]byte
	if _, err := io.ReadFull(rand, salt[:]); err != nil {
		return S2K{}, errors.Wrap(err, "openpgp: failed to read randomness for salt")
	}
	return S2K{
		Mode:  S2KIteratedSalted,
		Salt:  salt,
		Count: decodeS2KCount(maxStrengthCount),
	}, nil
}

// GenerateProtectedECDHKey draws a fresh Curve25519 keypair via
// GenerateECDHKey and immediately S2K-protects its secret scalar
// under passphrase, returning both the raw public point and a
// LockedSecretKey ready to run through the full Unlock path end to
// end.
func GenerateProtectedECDHKey(rand io.Reader, passphrase []byte, oid []byte, algSym SymmetricKeyAlgorithm, hashAlg HashAlgorithm, fingerprint [20]byte) (publicPoint []byte, locked *LockedSecretKey, err error) {
	publicPoint, secretBE, err := GenerateECDHKey(rand)
	if err != nil {
		return nil, nil, err
	}
	defer zeroize(secretBE[:])

	s2k, err := defaultProtectionS2K(rand)
	if err != nil {
		return nil, nil, err
	}

	protected, err := ProtectSecretKey(rand, passphrase, secretBE[:], AES256, s2k)
	if err != nil {
		return nil, nil, err
	}

	decode := func(secret []byte) (SecretKeyRepr, error) {
		if len(secret) != 32 {
			return nil, errStructural("ECDH secret scalar must be 32 bytes")
		}
		var scalar [32]byte
		copy(scalar[:], secret)
		return ECDHSecretKey{OID: oid, AlgSym: algSym, Hash: hashAlg, Secret: scalar}, nil
	}

	locked = NewLockedSecretKey(fingerprint, protected.CipherAlg, protected.S2K, protected.IV, protected.Encrypted, decode)
	return publicPoint, locked, nil
}
