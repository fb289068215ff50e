package openpgp

import "crypto/sha256"

// S2KMode distinguishes the three RFC 4880 §3.7.1 string-to-key
// variants this package derives keys with.
type S2KMode byte

const (
	S2KSimple         S2KMode = 0
	S2KSalted         S2KMode = 1
	S2KIteratedSalted S2KMode = 3
)

// S2K is a String-to-Key specifier: the recipe for turning a
// passphrase into a symmetric key, covering all three RFC 4880
// §3.7.1 modes.
type S2K struct {
	Mode  S2KMode
	Salt  [8]byte
	Count int // decoded octet count, only meaningful for S2KIteratedSalted
}

// decodeS2KCount expands the single-octet encoded iteration count of
// RFC 4880 §3.7.1.3 into the actual octet count fed to the hash.
func decodeS2KCount(c byte) int {
	return (16 + int(c&15)) << (uint(c>>4) + 6)
}

// parseS2K decodes a String-to-Key specifier (RFC 4880 §3.7.1) from
// its wire encoding: a mode octet, a hash-algorithm octet, and then
// mode-dependent salt/count fields. It returns the decoded S2K and
// the number of bytes consumed from data. The hash-algorithm octet is
// consumed but not recorded: DeriveKey always hashes with SHA-256.
func parseS2K(data []byte) (S2K, int, error) {
	if len(data) < 2 {
		return S2K{}, 0, errStructural("truncated S2K specifier")
	}
	mode := S2KMode(data[0])
	switch mode {
	case S2KSimple:
		return S2K{Mode: mode}, 2, nil
	case S2KSalted:
		if len(data) < 10 {
			return S2K{}, 0, errStructural("truncated salted S2K specifier")
		}
		var salt [8]byte
		copy(salt[:], data[2:10])
		return S2K{Mode: mode, Salt: salt}, 10, nil
	case S2KIteratedSalted:
		if len(data) < 11 {
			return S2K{}, 0, errStructural("truncated iterated-salted S2K specifier")
		}
		var salt [8]byte
		copy(salt[:], data[2:10])
		return S2K{Mode: mode, Salt: salt, Count: decodeS2KCount(data[10])}, 11, nil
	default:
		return S2K{}, 0, errStructural("unsupported S2K mode")
	}
}

// DeriveKey runs this S2K's recipe over passphrase with a single
// SHA-256 context and truncates the 32-byte digest to keySize bytes.
// The digest is not extended with further hash contexts, so a keySize
// above 32 is an error.
//
// Note: this follows the string-to-key algorithm as implemented by
// GnuPG and PGP in practice rather than RFC 4880's literally-stated
// version, which is subtly different from what any real implementation
// does (see https://dev.gnupg.org/T4676).
func (s S2K) DeriveKey(passphrase []byte, keySize int) ([]byte, error) {
	if keySize <= 0 {
		return nil, errStructural("invalid requested key size")
	}

	var full []byte
	switch s.Mode {
	case S2KSimple:
		full = passphrase
	case S2KSalted:
		full = append(append([]byte{}, s.Salt[:]...), passphrase...)
	case S2KIteratedSalted:
		full = append(append([]byte{}, s.Salt[:]...), passphrase...)
	default:
		return nil, errStructural("unsupported S2K mode")
	}

	h := sha256.New()
	if s.Mode == S2KIteratedSalted {
		count := s.Count
		if count < len(full) {
			count = len(full)
		}
		iterations := count / len(full)
		for i := 0; i < iterations; i++ {
			h.Write(full)
		}
		if tail := count - iterations*len(full); tail > 0 {
			h.Write(full[:tail])
		}
	} else {
		h.Write(full)
	}

	key := h.Sum(nil)
	if len(key) < keySize {
		return nil, errStructural("hash output too short for requested key size")
	}
	return key[:keySize], nil
}
