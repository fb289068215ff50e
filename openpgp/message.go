package openpgp

import (
	"bufio"
	"bytes"
)

// Edata is an opaque still-encrypted data packet: a Symmetrically
// Encrypted Data packet (tag 9) or a Sym. Encrypted Integrity
// Protected Data packet (tag 18), carried unparsed until a session
// key is available to open it.
type Edata struct {
	Tag  int
	Data []byte
}

// Message is the tagged union of a parsed OpenPGP message: a literal
// data payload, a compressed container, a one-pass-signed payload,
// nested still-encrypted data, or a session-key packet awaiting
// recovery. Like SecretKeyRepr it is a closed marker-interface sum
// type, exhaustively type-switched rather than polymorphic.
type Message interface {
	isMessage()
}

// LiteralMessage is a Literal Data packet's (tag 11) payload.
type LiteralMessage struct {
	Format   byte
	Filename string
	ModTime  uint32
	Data     []byte
}

func (LiteralMessage) isMessage() {}

// CompressedMessage holds the packets recovered from decompressing a
// Compressed Data packet (tag 8). Decompression itself is delegated
// to an injected Decompressor rather than a built-in codec.
type CompressedMessage struct {
	Algorithm CompressionAlgorithm
	Packets   []Message
}

func (CompressedMessage) isMessage() {}

// SignedMessage pairs a Signature packet (tag 2) with the message
// parsed just before it. OnePassVersion is the version octet of the
// One-Pass Signature packet (tag 4) that preceded that message, or 0
// when there was none.
type SignedMessage struct {
	OnePassVersion byte
	Signature      *Signature
	Message        Message
}

func (SignedMessage) isMessage() {}

// EncryptedMessage wraps a nested still-encrypted container opaquely.
// The iterator never decrypts these itself — it only classifies and
// surfaces them.
type EncryptedMessage struct {
	Edata Edata
}

func (EncryptedMessage) isMessage() {}

// PublicKeyEncryptedSessionKeyMessage wraps a Public-Key Encrypted
// Session Key packet (tag 1) as encountered in the packet stream. It
// is a session-key-recovery input, not message content, so it is kept
// distinct from Edata: DecryptSessionKey consumes its MPIs directly
// once they've been read out of Data by the caller's key-algorithm
// dispatch, the same declared packet-body-decoding boundary the
// signature parser's readAllMPIs sits behind.
type PublicKeyEncryptedSessionKeyMessage struct {
	Data []byte
}

func (PublicKeyEncryptedSessionKeyMessage) isMessage() {}

// SymKeyEncryptedSessionKeyMessage wraps a parsed Symmetric-Key
// Encrypted Session Key packet (tag 3), ready to hand to
// DecryptSessionKeyWithPassword. Like
// PublicKeyEncryptedSessionKeyMessage it is a session-key-recovery
// input, never Edata: it never gets decrypted by the iterator itself.
type SymKeyEncryptedSessionKeyMessage struct {
	Packet *SymKeyEncryptedSessionKey
}

func (SymKeyEncryptedSessionKeyMessage) isMessage() {}

// CompressionAlgorithm identifies an OpenPGP compression codec. See
// RFC 4880 §9.3.
type CompressionAlgorithm byte

const (
	CompressionUncompressed CompressionAlgorithm = 0
	CompressionZIP          CompressionAlgorithm = 1
	CompressionZLIB         CompressionAlgorithm = 2
	CompressionBZIP2        CompressionAlgorithm = 3
)

// Decompressor decompresses alg-encoded compressed data. Callers
// inject a concrete implementation (zlib, bzip2, ...); this package
// never hard-codes a codec.
type Decompressor func(alg CompressionAlgorithm, compressed []byte) ([]byte, error)

// ParseMessages reads packets from data and builds the Message tree
// for a single logical message, recursing into Compressed Data
// packets via decompress but never into further Encrypted Data
// packets.
//
// Generalized into a standalone recursive packet-tag dispatch over
// the Message sum type above.
func ParseMessages(data []byte, decompress Decompressor) ([]Message, error) {
	packets, err := ReadAllPackets(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	return buildMessages(packets, decompress)
}

func buildMessages(packets []Packet, decompress Decompressor) ([]Message, error) {
	var out []Message
	var pendingOnePass *byte

	for i := 0; i < len(packets); i++ {
		p := packets[i]
		switch p.Tag {
		case TagLiteralData:
			lit, err := parseLiteralData(p.Body)
			if err != nil {
				return nil, err
			}
			out = append(out, lit)

		case TagCompressedData:
			if len(p.Body) < 1 {
				return nil, errStructural("empty compressed data packet")
			}
			alg := CompressionAlgorithm(p.Body[0])
			var inner []byte
			var err error
			if alg == CompressionUncompressed {
				inner = p.Body[1:]
			} else {
				if decompress == nil {
					return nil, errStructural("no decompressor configured for compressed data")
				}
				inner, err = decompress(alg, p.Body[1:])
				if err != nil {
					return nil, err
				}
			}
			innerPackets, err := ReadAllPackets(bytes.NewReader(inner))
			if err != nil {
				return nil, err
			}
			innerMsgs, err := buildMessages(innerPackets, decompress)
			if err != nil {
				return nil, err
			}
			out = append(out, CompressedMessage{Algorithm: alg, Packets: innerMsgs})

		case TagOnePassSignature:
			if len(p.Body) < 1 {
				return nil, errStructural("empty one-pass signature packet")
			}
			v := p.Body[0]
			pendingOnePass = &v

		case TagSignature:
			sig, err := ParseSignaturePacket(p.Body)
			if err != nil {
				return nil, err
			}
			if len(out) > 0 {
				last := out[len(out)-1]
				signed := SignedMessage{Signature: sig, Message: last}
				if pendingOnePass != nil {
					signed.OnePassVersion = *pendingOnePass
					pendingOnePass = nil
				}
				out[len(out)-1] = signed
			}

		case TagSymEncryptedData, TagSymEncryptedProtectedData:
			out = append(out, EncryptedMessage{Edata: Edata{Tag: p.Tag, Data: p.Body}})

		case TagPublicKeyEncryptedSessionKey:
			out = append(out, PublicKeyEncryptedSessionKeyMessage{Data: p.Body})

		case TagSymKeyEncryptedSessionKey:
			skesk, err := ParseSymKeyEncryptedSessionKey(p.Body)
			if err != nil {
				return nil, err
			}
			out = append(out, SymKeyEncryptedSessionKeyMessage{Packet: skesk})

		case TagMarker, TagTrust:
			// Ignored per RFC 4880 §5.8/§5.10: no message content.

		default:
			return nil, errStructural("unexpected packet tag in message body")
		}
	}
	return out, nil
}

func parseLiteralData(body []byte) (LiteralMessage, error) {
	if len(body) < 6 {
		return LiteralMessage{}, errStructural("truncated literal data packet")
	}
	format := body[0]
	nameLen := int(body[1])
	if len(body) < 2+nameLen+4 {
		return LiteralMessage{}, errStructural("truncated literal data filename/timestamp")
	}
	filename := string(body[2 : 2+nameLen])
	off := 2 + nameLen
	modTime := uint32(body[off])<<24 | uint32(body[off+1])<<16 | uint32(body[off+2])<<8 | uint32(body[off+3])
	data := body[off+4:]
	return LiteralMessage{Format: format, Filename: filename, ModTime: modTime, Data: data}, nil
}

// MessageDecrypter lazily decrypts and parses a sequence of Edata
// packets one at a time, never eagerly materializing the whole
// plaintext and never recursing into nested encrypted containers.
//
// It is a small state machine over {NeedsPacket, Producing, Done},
// exposed as an explicit Next method rather than a channel or
// callback, since Go has no generator sugar to hide the state in.
type MessageDecrypter struct {
	key        []byte
	alg        SymmetricKeyAlgorithm
	edata      []Edata
	decompress Decompressor

	pos     int
	current []Message
	curIdx  int
}

// NewMessageDecrypter builds a decrypter over edata using the
// recovered session key and algorithm.
func NewMessageDecrypter(sessionKey []byte, alg SymmetricKeyAlgorithm, edata []Edata, decompress Decompressor) *MessageDecrypter {
	return &MessageDecrypter{key: sessionKey, alg: alg, edata: edata, decompress: decompress}
}

// Next returns the next decrypted Message, or (nil, nil, false) once
// every Edata packet has been consumed and fully drained.
func (d *MessageDecrypter) Next() (Message, error, bool) {
	for {
		if d.curIdx < len(d.current) {
			msg := d.current[d.curIdx]
			d.curIdx++
			return msg, nil, true
		}
		if d.pos >= len(d.edata) {
			return nil, nil, false
		}

		packet := d.edata[d.pos]
		d.pos++
		protected := packet.Tag == TagSymEncryptedProtectedData

		var plain []byte
		var err error
		if protected {
			plain, err = d.alg.DecryptProtected(d.key, packet.Data)
		} else {
			plain, err = d.alg.Decrypt(d.key, packet.Data)
		}
		if err != nil {
			return nil, err, true
		}

		msgs, err := ParseMessages(plain, d.decompress)
		if err != nil {
			return nil, err, true
		}
		d.current = msgs
		d.curIdx = 0
	}
}
