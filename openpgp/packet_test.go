package openpgp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPacketOldFormatOneByteLength(t *testing.T) {
	// Old-format packet, tag 11 (Literal Data), length-type 0 (1 byte length).
	raw := []byte{0x80 | (11 << 2) | 0, 0x03, 0xaa, 0xbb, 0xcc}
	p, err := ReadPacket(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, TagLiteralData, p.Tag)
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc}, p.Body)
}

func TestReadPacketNewFormatOneByteLength(t *testing.T) {
	raw := []byte{0xc0 | 2, 0x02, 0x01, 0x02}
	p, err := ReadPacket(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, TagSignature, p.Tag)
	require.Equal(t, []byte{0x01, 0x02}, p.Body)
}

func TestReadPacketNewFormatTwoByteLength(t *testing.T) {
	body := bytes.Repeat([]byte{0x01}, 300)
	// 300 encodes as (first-192)<<8 + second + 192 with first=192, second=108:
	// (192-192)*256 + 108 + 192 = 300. The loop below finds that pair by
	// applying the RFC 4880 formula directly.
	var firstByte, secondByte byte
	for f := 192; f < 224; f++ {
		for s := 0; s < 256; s++ {
			if (f-192)*256+s+192 == len(body) {
				firstByte, secondByte = byte(f), byte(s)
			}
		}
	}
	raw := append([]byte{0xc0 | 11, firstByte, secondByte}, body...)
	p, err := ReadPacket(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, TagLiteralData, p.Tag)
	require.Equal(t, body, p.Body)
}

func TestReadPacketMissingMSBFails(t *testing.T) {
	raw := []byte{0x00, 0x01}
	_, err := ReadPacket(bufio.NewReader(bytes.NewReader(raw)))
	require.Error(t, err)
}

func TestReadAllPacketsMultiple(t *testing.T) {
	first := []byte{0xc0 | 2, 0x01, 0xaa}
	second := []byte{0xc0 | 11, 0x01, 0xbb}
	raw := append(append([]byte{}, first...), second...)

	packets, err := ReadAllPackets(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, packets, 2)
	require.Equal(t, TagSignature, packets[0].Tag)
	require.Equal(t, TagLiteralData, packets[1].Tag)
}
