package openpgp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildV4SignatureBody(t *testing.T, hashedSubpackets, unhashedSubpackets []byte, mpis []byte) []byte {
	t.Helper()
	body := []byte{byte(SignatureV4), byte(SigTypeBinary), byte(PubKeyRSA), byte(HashSHA256)}
	body = append(body, byte(len(hashedSubpackets)>>8), byte(len(hashedSubpackets)))
	body = append(body, hashedSubpackets...)
	body = append(body, byte(len(unhashedSubpackets)>>8), byte(len(unhashedSubpackets)))
	body = append(body, unhashedSubpackets...)
	body = append(body, 0xab, 0xcd) // left-hash-bits
	body = append(body, mpis...)
	return body
}

func encodeSubpacket(typ SubpacketType, critical bool, payload []byte) []byte {
	length := len(payload) + 1
	var lengthBytes []byte
	switch {
	case length < 192:
		lengthBytes = []byte{byte(length)}
	default:
		lengthBytes = []byte{255, byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length)}
	}
	typByte := byte(typ)
	if critical {
		typByte |= 0x80
	}
	out := append([]byte{}, lengthBytes...)
	out = append(out, typByte)
	out = append(out, payload...)
	return out
}

func TestParseV4SignatureCreationTimeAndIssuer(t *testing.T) {
	creation := encodeSubpacket(SubSignatureCreationTime, true, []byte{0x00, 0x00, 0x00, 0x01})
	issuer := encodeSubpacket(SubIssuer, false, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	hashed := append(append([]byte{}, creation...), issuer...)

	mpi := mpiEncode([]byte{0x42})
	body := buildV4SignatureBody(t, hashed, nil, mpi)

	sig, err := ParseSignaturePacket(body)
	require.NoError(t, err)
	require.Equal(t, SignatureV4, sig.Version)
	require.NotNil(t, sig.Created)
	require.Equal(t, uint32(1), *sig.Created)
	require.NotNil(t, sig.Issuer)
	require.Equal(t, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, *sig.Issuer)
	require.Len(t, sig.MPIs, 1)
}

func TestParseV4SignatureRejectsPolicyURI(t *testing.T) {
	policyURI := encodeSubpacket(SubPolicyURI, false, []byte("https://example.com/policy"))
	body := buildV4SignatureBody(t, policyURI, nil, mpiEncode([]byte{0x01}))

	_, err := ParseSignaturePacket(body)
	require.Error(t, err)
}

func TestParseV4SignatureCriticalUnknownSubpacketFails(t *testing.T) {
	unknown := encodeSubpacket(SubpacketType(200), true, []byte{0x01})
	body := buildV4SignatureBody(t, unknown, nil, mpiEncode([]byte{0x01}))

	_, err := ParseSignaturePacket(body)
	require.Error(t, err)
}

func TestParseV4SignatureNonCriticalUnknownSubpacketFails(t *testing.T) {
	unknown := encodeSubpacket(SubpacketType(200), false, []byte{0x01})
	body := buildV4SignatureBody(t, unknown, nil, mpiEncode([]byte{0x01}))

	_, err := ParseSignaturePacket(body)
	require.Error(t, err)
}

func TestParseV4SignatureKeyFlagsAndFeaturesStayOpaque(t *testing.T) {
	flags := encodeSubpacket(SubKeyFlags, false, []byte{byte(KeyFlagSignData | KeyFlagCertifyKeys)})
	features := encodeSubpacket(SubFeatures, false, []byte{0x01})
	hashed := append(append([]byte{}, flags...), features...)
	body := buildV4SignatureBody(t, hashed, nil, mpiEncode([]byte{0x01}))

	sig, err := ParseSignaturePacket(body)
	require.NoError(t, err)
	require.Equal(t, []byte{byte(KeyFlagSignData | KeyFlagCertifyKeys)}, sig.KeyFlags)
	require.Equal(t, []byte{0x01}, sig.Features)
}

func TestParseV4SignatureEmbeddedSignatureDepthCap(t *testing.T) {
	innerMPI := mpiEncode([]byte{0x01})
	innerBody := buildV4SignatureBody(t, nil, nil, innerMPI)

	// An embedded signature whose own hashed area tries to carry a
	// further embedded signature must fail — depth is capped at 1.
	doublyEmbedded := encodeSubpacket(SubEmbeddedSignature, false, innerBody)
	innerWithEmbedded := buildV4SignatureBody(t, doublyEmbedded, nil, innerMPI)
	outerEmbedded := encodeSubpacket(SubEmbeddedSignature, false, innerWithEmbedded)

	body := buildV4SignatureBody(t, outerEmbedded, nil, mpiEncode([]byte{0x02}))
	_, err := ParseSignaturePacket(body)
	require.Error(t, err)
}

func TestParseV4SignatureEmbeddedSignatureOneLevelOK(t *testing.T) {
	innerMPI := mpiEncode([]byte{0x01})
	innerBody := buildV4SignatureBody(t, nil, nil, innerMPI)
	embedded := encodeSubpacket(SubEmbeddedSignature, false, innerBody)

	body := buildV4SignatureBody(t, embedded, nil, mpiEncode([]byte{0x02}))
	sig, err := ParseSignaturePacket(body)
	require.NoError(t, err)
	require.NotNil(t, sig.EmbeddedSignature)
}

func TestParseV2Signature(t *testing.T) {
	body := []byte{byte(SignatureV2), 5, byte(SigTypeBinary)}
	body = append(body, 0, 0, 0, 1) // creation time
	body = append(body, 1, 2, 3, 4, 5, 6, 7, 8)
	body = append(body, byte(PubKeyRSA), byte(HashSHA1))
	body = append(body, 0xaa, 0xbb)
	body = append(body, mpiEncode([]byte{0x01})...)

	sig, err := ParseSignaturePacket(body)
	require.NoError(t, err)
	require.Equal(t, SignatureV2, sig.Version)
	require.Equal(t, uint32(1), sig.CreationTimeV3)
	require.Len(t, sig.MPIs, 1)
}

func TestParseV3Signature(t *testing.T) {
	body := []byte{byte(SignatureV3), 5, byte(SigTypeBinary)}
	body = append(body, 0, 0, 0, 2) // creation time
	body = append(body, 8, 7, 6, 5, 4, 3, 2, 1)
	body = append(body, byte(PubKeyRSA), byte(HashSHA256))
	body = append(body, 0x11, 0x22)
	body = append(body, mpiEncode([]byte{0x05})...)

	sig, err := ParseSignaturePacket(body)
	require.NoError(t, err)
	require.Equal(t, SignatureV3, sig.Version)
	require.Equal(t, uint32(2), sig.CreationTimeV3)
	require.Equal(t, [8]byte{8, 7, 6, 5, 4, 3, 2, 1}, sig.IssuerV3)
}

func TestParseSignaturePacketUnsupportedVersion(t *testing.T) {
	_, err := ParseSignaturePacket([]byte{99})
	require.Error(t, err)
}

func TestParseSignaturePacketEmpty(t *testing.T) {
	_, err := ParseSignaturePacket(nil)
	require.Error(t, err)
}
