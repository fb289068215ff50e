package openpgp

import "encoding/binary"

// SignatureVersion distinguishes the legacy v2/v3 signature layouts
// from the subpacket-based v4 layout, RFC 4880 §5.2.
type SignatureVersion byte

const (
	SignatureV2 SignatureVersion = 2
	SignatureV3 SignatureVersion = 3
	SignatureV4 SignatureVersion = 4
)

// SignatureType identifies what a signature attests to, RFC 4880 §5.2.1.
type SignatureType byte

const (
	SigTypeBinary            SignatureType = 0x00
	SigTypeText              SignatureType = 0x01
	SigTypeStandalone        SignatureType = 0x02
	SigTypeCertGeneric       SignatureType = 0x10
	SigTypeCertPersona       SignatureType = 0x11
	SigTypeCertCasual        SignatureType = 0x12
	SigTypeCertPositive      SignatureType = 0x13
	SigTypeSubkeyBinding     SignatureType = 0x18
	SigTypePrimaryKeyBinding SignatureType = 0x19
	SigTypeDirectKey         SignatureType = 0x1f
	SigTypeKeyRevocation     SignatureType = 0x20
	SigTypeSubkeyRevocation  SignatureType = 0x28
	SigTypeCertRevocation    SignatureType = 0x30
	SigTypeTimestamp         SignatureType = 0x40
	SigTypeThirdPartyConfirm SignatureType = 0x50
)

// PublicKeyAlgorithm identifies the algorithm a signature's MPIs are
// encoded for, RFC 4880 §9.1 plus the RFC 6637 ECDH/EdDSA extensions.
type PublicKeyAlgorithm byte

const (
	PubKeyRSA            PublicKeyAlgorithm = 1
	PubKeyRSAEncryptOnly PublicKeyAlgorithm = 2
	PubKeyRSASignOnly    PublicKeyAlgorithm = 3
	PubKeyElGamal        PublicKeyAlgorithm = 16
	PubKeyDSA            PublicKeyAlgorithm = 17
	PubKeyECDH           PublicKeyAlgorithm = 18
	PubKeyECDSA          PublicKeyAlgorithm = 19
	PubKeyEdDSA          PublicKeyAlgorithm = 22
)

// RevocationKey records a designated-revoker subpacket (RFC 4880
// §5.2.3.15).
type RevocationKey struct {
	Class       byte
	Algorithm   PublicKeyAlgorithm
	Fingerprint [20]byte
}

// RevocationCode classifies a revocation-reason subpacket (RFC 4880
// §5.2.3.23).
type RevocationCode byte

const (
	RevocationNoReason    RevocationCode = 0
	RevocationSuperseded  RevocationCode = 1
	RevocationCompromised RevocationCode = 2
	RevocationRetired     RevocationCode = 3
	RevocationUserIDNotOK RevocationCode = 32
)

// Signature is the parsed form of a Signature packet (Tag 2), across
// versions 2, 3, and 4. Fields that only v4 populates are left at
// their zero value for v2/v3 signatures rather than using pointers
// everywhere.
type Signature struct {
	Version   SignatureVersion
	Type      SignatureType
	PubKeyAlg PublicKeyAlgorithm
	HashAlg   HashAlgorithm

	// v2/v3 only
	CreationTimeV3 uint32
	IssuerV3       [8]byte

	// v4 hashed-subpacket-derived fields
	Created                  *uint32
	Issuer                   *[8]byte
	PreferredSymmetricAlgs   []SymmetricKeyAlgorithm
	PreferredHashAlgs        []HashAlgorithm
	PreferredCompressionAlgs []CompressionAlgorithm
	KeyServerPrefs           []byte
	KeyFlags                 []byte
	Features                 []byte
	RevocationReasonCode     *RevocationCode
	RevocationReasonString   string
	IsPrimary                bool
	KeyExpirationTime        *uint32
	IsRevocable              bool
	revocableSet             bool
	EmbeddedSignature        *Signature
	PreferredKeyServer       string
	SignatureExpirationTime  *uint32
	Notations                map[string]string
	RevocationKey            *RevocationKey
	SignersUserID            string
	UnhashedSubpackets       []Subpacket

	LeftHashBits uint16
	MPIs         []MPI
}

// SubpacketType identifies a v4 signature subpacket, RFC 4880 §5.2.3.1.
type SubpacketType byte

const (
	SubSignatureCreationTime       SubpacketType = 2
	SubSignatureExpirationTime     SubpacketType = 3
	SubExportableCertification     SubpacketType = 4
	SubTrustSignature              SubpacketType = 5
	SubRegularExpression           SubpacketType = 6
	SubRevocable                   SubpacketType = 7
	SubKeyExpirationTime           SubpacketType = 9
	SubPreferredSymmetricAlgs      SubpacketType = 11
	SubRevocationKey               SubpacketType = 12
	SubIssuer                      SubpacketType = 16
	SubNotationData                SubpacketType = 20
	SubPreferredHashAlgs           SubpacketType = 21
	SubPreferredCompressionAlgs    SubpacketType = 22
	SubKeyServerPreferences        SubpacketType = 23
	SubPreferredKeyServer          SubpacketType = 24
	SubPrimaryUserID               SubpacketType = 25
	SubPolicyURI                   SubpacketType = 26
	SubKeyFlags                    SubpacketType = 27
	SubSignersUserID               SubpacketType = 28
	SubRevocationReason            SubpacketType = 29
	SubFeatures                    SubpacketType = 30
	SubSignatureTarget             SubpacketType = 31
	SubEmbeddedSignature           SubpacketType = 32
)

// Subpacket is the tagged variant a v4 hashed or unhashed subpacket
// area decodes into. Each concrete type below implements it; parsing
// exhaustively type-switches on SubpacketType rather than dispatching
// through per-variant interface methods.
type Subpacket interface {
	isSubpacket()
}

type subSignatureCreationTime uint32

func (subSignatureCreationTime) isSubpacket() {}

type subSignatureExpirationTime uint32

func (subSignatureExpirationTime) isSubpacket() {}

type subRevocable bool

func (subRevocable) isSubpacket() {}

type subKeyExpirationTime uint32

func (subKeyExpirationTime) isSubpacket() {}

type subPreferredSymmetricAlgs []SymmetricKeyAlgorithm

func (subPreferredSymmetricAlgs) isSubpacket() {}

type subRevocationKey RevocationKey

func (subRevocationKey) isSubpacket() {}

type subIssuer [8]byte

func (subIssuer) isSubpacket() {}

type subNotationData struct{ name, value string }

func (subNotationData) isSubpacket() {}

type subPreferredHashAlgs []HashAlgorithm

func (subPreferredHashAlgs) isSubpacket() {}

type subPreferredCompressionAlgs []CompressionAlgorithm

func (subPreferredCompressionAlgs) isSubpacket() {}

type subKeyServerPreferences []byte

func (subKeyServerPreferences) isSubpacket() {}

type subPreferredKeyServer string

func (subPreferredKeyServer) isSubpacket() {}

type subPrimaryUserID bool

func (subPrimaryUserID) isSubpacket() {}

type subKeyFlags []byte

func (subKeyFlags) isSubpacket() {}

type subSignersUserID string

func (subSignersUserID) isSubpacket() {}

type subRevocationReason struct {
	code   RevocationCode
	reason string
}

func (subRevocationReason) isSubpacket() {}

type subFeatures []byte

func (subFeatures) isSubpacket() {}

type subEmbeddedSignature Signature

func (subEmbeddedSignature) isSubpacket() {}

// KeyFlag enumerates the bits of a Key Flags subpacket, RFC 4880 §5.2.3.21.
type KeyFlag byte

const (
	KeyFlagCertifyKeys          KeyFlag = 0x01
	KeyFlagSignData             KeyFlag = 0x02
	KeyFlagEncryptCommunication KeyFlag = 0x04
	KeyFlagEncryptStorage       KeyFlag = 0x08
	KeyFlagSplitPrivateKey      KeyFlag = 0x10
	KeyFlagAuthentication       KeyFlag = 0x20
	KeyFlagSharedPrivateKey     KeyFlag = 0x80
)

// ParseSignaturePacket parses the body of a Signature packet (Tag 2),
// after the generic packet header has already been stripped by the
// Packet reader. It dispatches on the leading version octet.
func ParseSignaturePacket(body []byte) (*Signature, error) {
	return parseSignaturePacketAtDepth(body, 0)
}

func parseSignaturePacketAtDepth(body []byte, depth int) (*Signature, error) {
	if len(body) < 1 {
		return nil, errStructural("empty signature packet")
	}
	switch SignatureVersion(body[0]) {
	case SignatureV2:
		return parseV2OrV3Signature(SignatureV2, body[1:])
	case SignatureV3:
		return parseV2OrV3Signature(SignatureV3, body[1:])
	case SignatureV4:
		return parseV4Signature(body[1:], depth)
	default:
		return nil, errStructural("unsupported signature packet version")
	}
}

// parseV2OrV3Signature implements RFC 1991 §6.2 (v2, an obsolete
// format kept only for compatibility) and RFC 4880 §5.2.2 (v3), which
// share an identical wire layout apart from the version octet already
// consumed by the caller.
func parseV2OrV3Signature(version SignatureVersion, body []byte) (*Signature, error) {
	if len(body) < 1 || body[0] != 5 {
		return nil, errStructural("v2/v3 signature hashed-material length must be 5")
	}
	body = body[1:]
	if len(body) < 5+8+1+1+2 {
		return nil, errStructural("truncated v2/v3 signature packet")
	}

	sig := &Signature{Version: version}
	sig.Type = SignatureType(body[0])
	sig.CreationTimeV3 = binary.BigEndian.Uint32(body[1:5])
	copy(sig.IssuerV3[:], body[5:13])
	sig.PubKeyAlg = PublicKeyAlgorithm(body[13])
	sig.HashAlg = HashAlgorithm(body[14])
	sig.LeftHashBits = binary.BigEndian.Uint16(body[15:17])

	mpis, err := readAllMPIs(body[17:])
	if err != nil {
		return nil, err
	}
	sig.MPIs = mpis
	return sig, nil
}

// parseV4Signature implements RFC 4880 §5.2.3's subpacket-based
// layout.
func parseV4Signature(body []byte, depth int) (*Signature, error) {
	if len(body) < 1+1+1+2 {
		return nil, errStructural("truncated v4 signature packet")
	}
	sig := &Signature{Version: SignatureV4, Notations: map[string]string{}}
	sig.Type = SignatureType(body[0])
	sig.PubKeyAlg = PublicKeyAlgorithm(body[1])
	sig.HashAlg = HashAlgorithm(body[2])
	body = body[3:]

	if len(body) < 2 {
		return nil, errStructural("truncated hashed subpacket length")
	}
	hsubLen := int(binary.BigEndian.Uint16(body))
	body = body[2:]
	if len(body) < hsubLen {
		return nil, errStructural("truncated hashed subpacket data")
	}
	hashedSubpackets, err := parseSubpackets(body[:hsubLen], depth)
	if err != nil {
		return nil, err
	}
	body = body[hsubLen:]

	if len(body) < 2 {
		return nil, errStructural("truncated unhashed subpacket length")
	}
	usubLen := int(binary.BigEndian.Uint16(body))
	body = body[2:]
	if len(body) < usubLen {
		return nil, errStructural("truncated unhashed subpacket data")
	}
	unhashedSubpackets, err := parseSubpackets(body[:usubLen], depth)
	if err != nil {
		return nil, err
	}
	body = body[usubLen:]

	if len(body) < 2 {
		return nil, errStructural("truncated left-hash-bits field")
	}
	sig.LeftHashBits = binary.BigEndian.Uint16(body[:2])
	body = body[2:]

	mpis, err := readAllMPIs(body)
	if err != nil {
		return nil, err
	}
	sig.MPIs = mpis

	applyHashedSubpackets(sig, hashedSubpackets)
	sig.UnhashedSubpackets = unhashedSubpackets
	return sig, nil
}

func applyHashedSubpackets(sig *Signature, subs []Subpacket) {
	for _, s := range subs {
		switch v := s.(type) {
		case subSignatureCreationTime:
			t := uint32(v)
			sig.Created = &t
		case subIssuer:
			id := [8]byte(v)
			sig.Issuer = &id
		case subPreferredSymmetricAlgs:
			sig.PreferredSymmetricAlgs = v
		case subPreferredHashAlgs:
			sig.PreferredHashAlgs = v
		case subPreferredCompressionAlgs:
			sig.PreferredCompressionAlgs = v
		case subKeyServerPreferences:
			sig.KeyServerPrefs = v
		case subKeyFlags:
			sig.KeyFlags = v
		case subFeatures:
			sig.Features = v
		case subRevocationReason:
			code := v.code
			sig.RevocationReasonCode = &code
			sig.RevocationReasonString = v.reason
		case subPrimaryUserID:
			sig.IsPrimary = bool(v)
		case subKeyExpirationTime:
			t := uint32(v)
			sig.KeyExpirationTime = &t
		case subRevocable:
			b := bool(v)
			sig.IsRevocable = b
			sig.revocableSet = true
		case subEmbeddedSignature:
			embedded := Signature(v)
			sig.EmbeddedSignature = &embedded
		case subPreferredKeyServer:
			s := string(v)
			sig.PreferredKeyServer = s
		case subSignatureExpirationTime:
			t := uint32(v)
			sig.SignatureExpirationTime = &t
		case subNotationData:
			sig.Notations[v.name] = v.value
		case subRevocationKey:
			rk := RevocationKey(v)
			sig.RevocationKey = &rk
		case subSignersUserID:
			sig.SignersUserID = string(v)
		}
	}
	if !sig.revocableSet {
		sig.IsRevocable = true
	}
}

// parseSubpackets parses a hashed or unhashed subpacket area. depth
// is 0 for a top-level signature and 1 while parsing an embedded
// signature's own subpacket areas; an embedded signature is never
// allowed to carry a further embedded signature (a depth-1 recursion
// cap).
func parseSubpackets(data []byte, depth int) ([]Subpacket, error) {
	var out []Subpacket
	for len(data) > 0 {
		length, n, err := readSubpacketLength(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		if length < 1 || length > len(data) {
			return nil, errStructural("truncated signature subpacket")
		}
		raw := data[:length]
		data = data[length:]

		// The high bit of the type octet marks a subpacket critical,
		// but recognition failures below are rejected regardless of
		// it: the known subpacket set is closed, and an unimplemented
		// or unrecognized type is a structural error, not a matter of
		// critical-bit policy.
		typByte := raw[0] & 0x7f
		payload := raw[1:]

		// The depth cap is likewise enforced unconditionally.
		if SubpacketType(typByte) == SubEmbeddedSignature && depth >= 1 {
			return nil, errStructural("embedded signature nested beyond depth 1")
		}

		sp, err := parseSubpacket(SubpacketType(typByte), payload, depth)
		if err != nil {
			return nil, err
		}
		if sp == nil {
			return nil, errStructural("unknown signature subpacket type")
		}
		out = append(out, sp)
	}
	return out, nil
}

// readSubpacketLength decodes the 1/2/5-octet new-format length
// prefix of RFC 4880 §5.2.3.1, where the length counts the type octet
// plus the payload.
func readSubpacketLength(data []byte) (length, consumed int, err error) {
	if len(data) < 1 {
		return 0, 0, errStructural("empty subpacket length")
	}
	switch {
	case data[0] < 192:
		return int(data[0]), 1, nil
	case data[0] < 255:
		if len(data) < 2 {
			return 0, 0, errStructural("truncated two-octet subpacket length")
		}
		return (int(data[0])-192)<<8 + int(data[1]) + 192, 2, nil
	default:
		if len(data) < 5 {
			return 0, 0, errStructural("truncated five-octet subpacket length")
		}
		l := int(data[1])<<24 | int(data[2])<<16 | int(data[3])<<8 | int(data[4])
		return l, 5, nil
	}
}

// parseSubpacket decodes a single subpacket's payload by type. It
// deliberately rejects ExportableCertification, TrustSignature,
// RegularExpression, PolicyURI, and SignatureTarget as unimplemented;
// nothing in this package acts on them.
func parseSubpacket(typ SubpacketType, body []byte, depth int) (Subpacket, error) {
	switch typ {
	case SubSignatureCreationTime:
		if len(body) != 4 {
			return nil, errStructural("signature creation time must be four bytes")
		}
		return subSignatureCreationTime(binary.BigEndian.Uint32(body)), nil
	case SubSignatureExpirationTime:
		if len(body) != 4 {
			return nil, errStructural("signature expiration time must be four bytes")
		}
		return subSignatureExpirationTime(binary.BigEndian.Uint32(body)), nil
	case SubExportableCertification, SubTrustSignature, SubRegularExpression,
		SubPolicyURI, SubSignatureTarget:
		return nil, errStructural("unimplemented signature subpacket type")
	case SubRevocable:
		if len(body) != 1 {
			return nil, errStructural("revocable flag must be one byte")
		}
		return subRevocable(body[0] == 1), nil
	case SubKeyExpirationTime:
		if len(body) != 4 {
			return nil, errStructural("key expiration time must be four bytes")
		}
		return subKeyExpirationTime(binary.BigEndian.Uint32(body)), nil
	case SubPreferredSymmetricAlgs:
		algs := make([]SymmetricKeyAlgorithm, len(body))
		for i, b := range body {
			algs[i] = SymmetricKeyAlgorithm(b)
		}
		return subPreferredSymmetricAlgs(algs), nil
	case SubRevocationKey:
		if len(body) != 22 {
			return nil, errStructural("revocation key subpacket must be 22 bytes")
		}
		var fp [20]byte
		copy(fp[:], body[2:22])
		return subRevocationKey{Class: body[0], Algorithm: PublicKeyAlgorithm(body[1]), Fingerprint: fp}, nil
	case SubIssuer:
		if len(body) != 8 {
			return nil, errStructural("issuer subpacket must be 8 bytes")
		}
		var id [8]byte
		copy(id[:], body)
		return subIssuer(id), nil
	case SubNotationData:
		if len(body) < 8 {
			return nil, errStructural("truncated notation data subpacket")
		}
		nameLen := int(binary.BigEndian.Uint16(body[4:6]))
		valueLen := int(binary.BigEndian.Uint16(body[6:8]))
		rest := body[8:]
		if len(rest) < nameLen+valueLen {
			return nil, errStructural("truncated notation data payload")
		}
		name := string(rest[:nameLen])
		value := string(rest[nameLen : nameLen+valueLen])
		return subNotationData{name: name, value: value}, nil
	case SubPreferredHashAlgs:
		algs := make([]HashAlgorithm, len(body))
		for i, b := range body {
			algs[i] = HashAlgorithm(b)
		}
		return subPreferredHashAlgs(algs), nil
	case SubPreferredCompressionAlgs:
		algs := make([]CompressionAlgorithm, len(body))
		for i, b := range body {
			algs[i] = CompressionAlgorithm(b)
		}
		return subPreferredCompressionAlgs(algs), nil
	case SubKeyServerPreferences:
		return subKeyServerPreferences(append([]byte{}, body...)), nil
	case SubPreferredKeyServer:
		return subPreferredKeyServer(string(body)), nil
	case SubPrimaryUserID:
		if len(body) != 1 {
			return nil, errStructural("primary user id flag must be one byte")
		}
		return subPrimaryUserID(body[0] == 1), nil
	case SubKeyFlags:
		return subKeyFlags(append([]byte{}, body...)), nil
	case SubSignersUserID:
		return subSignersUserID(string(body)), nil
	case SubRevocationReason:
		if len(body) < 1 {
			return nil, errStructural("truncated revocation reason subpacket")
		}
		return subRevocationReason{code: RevocationCode(body[0]), reason: string(body[1:])}, nil
	case SubFeatures:
		return subFeatures(append([]byte{}, body...)), nil
	case SubEmbeddedSignature:
		if depth >= 1 {
			return nil, errStructural("embedded signature nested beyond depth 1")
		}
		embedded, err := parseSignaturePacketAtDepth(body, depth+1)
		if err != nil {
			return nil, err
		}
		return subEmbeddedSignature(*embedded), nil
	default:
		return nil, nil
	}
}

// readAllMPIs reads length-prefixed MPIs until buf is exhausted,
// forming a signature's trailing MPI list (one for RSA, two for
// DSA/ECDSA/EdDSA).
func readAllMPIs(buf []byte) ([]MPI, error) {
	var out []MPI
	for len(buf) > 0 {
		m, rest, err := readMPI(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
		buf = rest
	}
	return out, nil
}
