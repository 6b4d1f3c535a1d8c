package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// maxFrameBytes guards against a corrupt or hostile length prefix causing an
// unbounded allocation.
const maxFrameBytes = 64 << 20

// Encode serializes a Message using gob, the binary codec this module reaches
// for throughout (mirroring the upstream dispatcher's own choice of a binary
// wire format over JSON for inter-node traffic).
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return Message{}, fmt.Errorf("protocol: decode: %w", err)
	}
	return m, nil
}

// WriteFrame writes a length-prefixed frame: a 4-byte little-endian length
// followed by the encoded message. Each call performs exactly one write of
// the prefix and one of the payload.
func WriteFrame(w io.Writer, m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("protocol: write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	return nil
}

// ReadFrame blocks for exactly one length-prefixed frame and decodes it. It
// returns io.EOF unmodified when the peer closes before sending a frame, so
// callers can distinguish "clean disconnect" from a real error.
func ReadFrame(r io.Reader) (Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Message{}, fmt.Errorf("protocol: short length prefix: %w", io.EOF)
		}
		return Message{}, err
	}

	n := binary.LittleEndian.Uint32(prefix[:])
	if n > maxFrameBytes {
		return Message{}, fmt.Errorf("protocol: frame of %d bytes exceeds limit", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Message{}, fmt.Errorf("protocol: short payload: %w", io.EOF)
		}
		return Message{}, err
	}

	return Decode(payload)
}
