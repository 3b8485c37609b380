package domain

import (
	"bytes"
	"encoding/binary"
)

const (
	envelopeMagic   = "ESD1"
	maxFieldLength  = 1<<16 - 1
	envelopeMinSize = len(envelopeMagic) + 4 + 1 + 2 + 1
)

// Envelope is a sealed document: the payload encrypted under a one-off data key
// and that data key sealed to a document key version.
//
// Wire layout, big endian:
//
//	magic "ESD1" | key version u32 | alg len u8 | alg | sealed key len u16 |
//	sealed key | nonce len u8 | nonce | ciphertext
type Envelope struct {
	KeyVersion uint
	Algorithm  Algorithm
	SealedKey  []byte
	Nonce      []byte
	Ciphertext []byte
}

// Header returns the envelope prefix up to the sealed key. It is bound into the
// payload cipher as additional data so the version and algorithm cannot be
// swapped without failing authentication.
func (e *Envelope) Header() []byte {
	var buf bytes.Buffer
	buf.WriteString(envelopeMagic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(e.KeyVersion))
	buf.WriteByte(byte(len(e.Algorithm)))
	buf.WriteString(string(e.Algorithm))
	return buf.Bytes()
}

// Marshal encodes the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	if len(e.Algorithm) == 0 || len(e.Algorithm) > 255 || len(e.Nonce) > 255 ||
		len(e.SealedKey) > maxFieldLength {
		return nil, ErrInvalidEnvelope
	}

	var buf bytes.Buffer
	buf.Grow(envelopeMinSize + len(e.Algorithm) + len(e.SealedKey) + len(e.Nonce) + len(e.Ciphertext))
	buf.Write(e.Header())
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(e.SealedKey)))
	buf.Write(e.SealedKey)
	buf.WriteByte(byte(len(e.Nonce)))
	buf.Write(e.Nonce)
	buf.Write(e.Ciphertext)
	return buf.Bytes(), nil
}

// UnmarshalEnvelope decodes bytes produced by Envelope.Marshal.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	if len(data) < envelopeMinSize || string(data[:len(envelopeMagic)]) != envelopeMagic {
		return nil, ErrInvalidEnvelope
	}
	rest := data[len(envelopeMagic):]

	env := &Envelope{KeyVersion: uint(binary.BigEndian.Uint32(rest))}
	rest = rest[4:]

	algLen := int(rest[0])
	rest = rest[1:]
	if algLen == 0 || len(rest) < algLen+2 {
		return nil, ErrInvalidEnvelope
	}
	env.Algorithm = Algorithm(rest[:algLen])
	rest = rest[algLen:]

	keyLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < keyLen+1 {
		return nil, ErrInvalidEnvelope
	}
	env.SealedKey = bytes.Clone(rest[:keyLen])
	rest = rest[keyLen:]

	nonceLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < nonceLen {
		return nil, ErrInvalidEnvelope
	}
	env.Nonce = bytes.Clone(rest[:nonceLen])
	env.Ciphertext = bytes.Clone(rest[nonceLen:])

	return env, nil
}
