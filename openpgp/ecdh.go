package openpgp

import (
	"crypto/aes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"hash"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"
)

// HashAlgorithm identifies an OpenPGP hash function. See RFC 4880 §9.4.
type HashAlgorithm byte

const (
	HashSHA1   HashAlgorithm = 2
	HashSHA256 HashAlgorithm = 8
	HashSHA384 HashAlgorithm = 9
	HashSHA512 HashAlgorithm = 10
	HashSHA224 HashAlgorithm = 11
)

// New returns a fresh hash.Hash for the algorithm.
func (h HashAlgorithm) New() (hash.Hash, error) {
	switch h {
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA384:
		return sha512.New384(), nil
	case HashSHA512:
		return sha512.New(), nil
	default:
		return nil, errStructural("unsupported hash algorithm")
	}
}

// Id returns the RFC 4880 §9.4 octet identifying the algorithm.
func (h HashAlgorithm) Id() byte { return byte(h) }

// anonSender is the fixed 20-byte "Anonymous Sender    " context
// string RFC 6637 §8 mixes into the KDF parameter block.
var anonSender = [20]byte{
	0x41, 0x6e, 0x6f, 0x6e, 0x79, 0x6d, 0x6f, 0x75, 0x73, 0x20,
	0x53, 0x65, 0x6e, 0x64, 0x65, 0x72, 0x20, 0x20, 0x20, 0x20,
}

// buildECDHParam assembles the RFC 6637 §8 KDF parameter block:
//
//	[oid_len] oid [0x12] [0x03 0x01 hash sym] "Anonymous Sender    " fingerprint
func buildECDHParam(oid []byte, algSym SymmetricKeyAlgorithm, hash HashAlgorithm, fingerprint []byte) []byte {
	const pubKeyAlgoECDH = 0x12
	param := make([]byte, 0, 1+len(oid)+1+4+20+len(fingerprint))
	param = append(param, byte(len(oid)))
	param = append(param, oid...)
	param = append(param, pubKeyAlgoECDH)
	param = append(param, 0x03, 0x01, byte(hash), byte(algSym))
	param = append(param, anonSender[:]...)
	param = append(param, fingerprint...)
	return param
}

// ecdhKDF implements RFC 6637 §7: H(0x00000001 || Z || param),
// truncated to length bytes.
func ecdhKDF(hashAlg HashAlgorithm, z []byte, length int, param []byte) ([]byte, error) {
	h, err := hashAlg.New()
	if err != nil {
		return nil, err
	}
	h.Write([]byte{0, 0, 0, 1})
	h.Write(z)
	h.Write(param)
	digest := h.Sum(nil)
	if len(digest) < length {
		return nil, errCrypto("KDF output shorter than requested key size")
	}
	return digest[:length], nil
}

// ECDHEncrypt implements RFC 6637 §8/§13.5: it wraps plain (a session
// key, |plain| < 239 bytes) for the Curve25519 public point q (33
// bytes, 0x40-prefixed), returning the three MPI-bound byte strings
// of an ECDH PKESK body: the ephemeral public point, the one-byte
// wrapped-key length, and the wrapped key itself.
func ECDHEncrypt(rand io.Reader, oid []byte, algSym SymmetricKeyAlgorithm, hashAlg HashAlgorithm, fingerprint, q, plain []byte) (ephemeralPoint, wrappedLen, wrapped []byte, err error) {
	const maxPlain = 239
	if len(plain) >= maxPlain {
		return nil, nil, nil, errStructural("session key too large for ECDH transport")
	}
	if len(q) != 33 || q[0] != 0x40 {
		return nil, nil, nil, errStructural("invalid ECDH public point")
	}

	var ourSecret [32]byte
	if _, err = io.ReadFull(rand, ourSecret[:]); err != nil {
		return nil, nil, nil, errors.Wrap(err, "openpgp: failed to read randomness")
	}
	clamp(&ourSecret)

	var theirPublic [32]byte
	copy(theirPublic[:], q[1:33])

	shared, err := curve25519.X25519(ourSecret[:], theirPublic[:])
	if err != nil {
		return nil, nil, nil, errCrypto("X25519 key agreement failed")
	}

	param := buildECDHParam(oid, algSym, hashAlg, fingerprint)
	z, err := ecdhKDF(hashAlg, shared, algSym.KeySize(), param)
	if err != nil {
		return nil, nil, nil, err
	}

	padded := pkcs5PadToAtLeastOneBlock(plain, 8)
	wrapped, err = aesKeyWrap(z, padded)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(wrapped) > 255 {
		return nil, nil, nil, errStructural("wrapped session key too long to encode")
	}

	ourPublic, err := curve25519.X25519(ourSecret[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, nil, errCrypto("failed to derive ephemeral public key")
	}
	ephemeralPoint = append([]byte{0x40}, ourPublic...)
	wrappedLen = []byte{byte(len(wrapped))}
	return ephemeralPoint, wrappedLen, wrapped, nil
}

// ECDHDecrypt implements RFC 6637 §8's unwrap direction. priv holds
// the recipient's secret; mpis must be exactly the three MPI-encoded
// fields of an ECDH PKESK body (ephemeral public point, wrapped-key
// length, wrapped key).
func ECDHDecrypt(priv *ECDHSecretKey, mpis []MPI, fingerprint []byte) ([]byte, error) {
	if len(mpis) != 3 {
		return nil, errStructural("ECDH PKESK must have exactly three MPIs")
	}
	pointBytes := mpis[0].AsBytes()
	if len(pointBytes) != 33 {
		return nil, errStructural("invalid ECDH public point length")
	}
	if pointBytes[0] != 0x40 {
		return nil, errStructural("ECDH public point missing 0x40 prefix")
	}

	param := buildECDHParam(priv.OID, priv.AlgSym, priv.Hash, fingerprint)

	var theirPublic [32]byte
	copy(theirPublic[:], pointBytes[1:33])

	// The stored scalar is big-endian; X25519 wants little-endian.
	// Reverse into a scratch buffer and zeroize it before returning.
	ourSecret := make([]byte, 32)
	for i := 0; i < 32; i++ {
		ourSecret[i] = priv.Secret[31-i]
	}
	defer zeroize(ourSecret)

	shared, err := curve25519.X25519(ourSecret, theirPublic[:])
	if err != nil {
		return nil, errCrypto("X25519 key agreement failed")
	}

	z, err := ecdhKDF(priv.Hash, shared, priv.AlgSym.KeySize(), param)
	if err != nil {
		return nil, err
	}

	encLen := int(mpis[1].First())
	rawWrapped := mpis[2].AsBytes()
	if encLen < len(rawWrapped) {
		return nil, errStructural("wrapped-key length smaller than supplied data")
	}
	wrappedBuf := make([]byte, encLen)
	copy(wrappedBuf[encLen-len(rawWrapped):], rawWrapped)

	paddedKey, err := aesKeyUnwrap(z, wrappedBuf)
	if err != nil {
		return nil, errCrypto("AES key unwrap failed: " + err.Error())
	}

	return pkcs5Unpad(paddedKey)
}

// GenerateECDHKey draws a fresh Curve25519 keypair, returning the
// 33-byte 0x40-prefixed public point and the big-endian clamped
// secret scalar.
func GenerateECDHKey(rand io.Reader) (publicPoint []byte, secretBE [32]byte, err error) {
	var secret [32]byte
	if _, err = io.ReadFull(rand, secret[:]); err != nil {
		return nil, secretBE, errors.Wrap(err, "openpgp: failed to read randomness")
	}
	clamp(&secret)

	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return nil, secretBE, errCrypto("failed to derive public key")
	}

	for i := 0; i < 32; i++ {
		secretBE[i] = secret[31-i]
	}
	return append([]byte{0x40}, pub...), secretBE, nil
}

// clamp applies the Curve25519 scalar clamp (RFC 7748 §5) in place.
// curve25519.X25519 already clamps internally, but we clamp up front
// so the scalar we later store/reverse matches what was actually used.
func clamp(s *[32]byte) {
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
}

// pkcs5PadToAtLeastOneBlock pads plain to the next multiple of
// blockSize with the PKCS#5 scheme: if plain is already aligned, a
// full extra block of padding is added (RFC 6637 §8).
func pkcs5PadToAtLeastOneBlock(plain []byte, blockSize int) []byte {
	padLen := blockSize - len(plain)%blockSize
	if padLen == 0 {
		padLen = blockSize
	}
	out := make([]byte, len(plain)+padLen)
	copy(out, plain)
	for i := len(plain); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

// pkcs5Unpad reverses pkcs5PadToAtLeastOneBlock, enforcing every
// invariant RFC 6637 §8 implies for the padded length: it must be a
// non-empty multiple of 8, the pad byte P must be in [1, len], the last
// P bytes must all equal P, and the unpadded remainder must be non-empty.
// Padding may legitimately exceed one block (RFC 6637 §8's 21/13/5
// byte examples for AES-128/192/256).
func pkcs5Unpad(padded []byte) ([]byte, error) {
	const blockSize = 8
	if len(padded) == 0 || len(padded)%blockSize != 0 {
		return nil, ErrUnpad
	}
	pad := int(padded[len(padded)-1])
	if pad <= 0 || pad > len(padded) {
		return nil, ErrUnpad
	}
	unpaddedLen := len(padded) - pad
	for _, b := range padded[unpaddedLen:] {
		if int(b) != pad {
			return nil, ErrUnpad
		}
	}
	if unpaddedLen < 1 {
		return nil, ErrUnpad
	}
	return padded[:unpaddedLen], nil
}

// aesKeyWrapDefaultIV is the fixed initial value RFC 3394 §2.2.3.1
// defines for AES Key Wrap.
var aesKeyWrapDefaultIV = [8]byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

// aesKeyWrap implements RFC 3394 AES Key Wrap directly over
// crypto/aes/crypto/cipher: an 8-byte running accumulator XORed each
// round with a big-endian round counter.
func aesKeyWrap(kek, cek []byte) ([]byte, error) {
	if len(cek)%8 != 0 || len(cek) == 0 {
		return nil, errStructural("key-wrap input must be a non-empty multiple of 8 bytes")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(cek) / 8
	r := make([][]byte, n)
	for i := 0; i < n; i++ {
		r[i] = append([]byte{}, cek[i*8:(i+1)*8]...)
	}

	buf := make([]byte, 16)
	copy(buf[:8], aesKeyWrapDefaultIV[:])

	for t := 1; t <= 6*n; t++ {
		copy(buf[8:], r[(t-1)%n])
		block.Encrypt(buf, buf)
		tBytes := be64(uint64(t))
		for i := 0; i < 8; i++ {
			buf[i] ^= tBytes[i]
		}
		copy(r[(t-1)%n], buf[8:])
	}

	out := make([]byte, (n+1)*8)
	copy(out, buf[:8])
	for i := range r {
		copy(out[(i+1)*8:], r[i])
	}
	return out, nil
}

// aesKeyUnwrap is the inverse of aesKeyWrap. It returns an error if
// the recovered integrity value does not match the RFC 3394 default
// IV — the caller (ECDHDecrypt) surfaces that as a crypto error.
func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 16 {
		return nil, errStructural("key-unwrap input must be at least 16 bytes and a multiple of 8")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(wrapped)/8 - 1
	r := make([][]byte, n)
	for i := 0; i < n; i++ {
		r[i] = append([]byte{}, wrapped[(i+1)*8:(i+2)*8]...)
	}

	buf := make([]byte, 16)
	copy(buf[:8], wrapped[:8])

	for t := 6 * n; t >= 1; t-- {
		tBytes := be64(uint64(t))
		for i := 0; i < 8; i++ {
			buf[i] ^= tBytes[i]
		}
		copy(buf[8:], r[(t-1)%n])
		block.Decrypt(buf, buf)
		copy(r[(t-1)%n], buf[8:])
	}

	if subtle.ConstantTimeCompare(buf[:8], aesKeyWrapDefaultIV[:]) == 0 {
		return nil, errors.New("integrity check failed")
	}

	out := make([]byte, n*8)
	for i := range r {
		copy(out[i*8:], r[i])
	}
	return out, nil
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
