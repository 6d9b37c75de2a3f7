package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/autorun-labs/autorun/internal/realm"
)

// maxFrameLen bounds a single payload so a corrupt or adversarial length
// prefix can't make ReadMessage attempt an enormous allocation.
const maxFrameLen = 16 << 20

// Encode serializes msg into its frame: a 4-byte little-endian length
// prefix followed by the compact binary payload encoding.
// This implementation hand-rolls the wire format on encoding/binary
// rather than reaching for a general serialization library, because the
// format is exactly six fixed message variants — there is nothing for a
// schema-driven codec to generate here.
func Encode(msg Message) ([]byte, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	return frame, nil
}

func encodePayload(msg Message) ([]byte, error) {
	switch msg.Tag {
	case TagPing, TagPong, TagShutdown:
		return []byte{byte(msg.Tag)}, nil
	case TagPrint:
		return append([]byte{byte(msg.Tag)}, encodeString(msg.Text)...), nil
	case TagRunCode:
		buf := []byte{byte(msg.Tag), byte(msg.Realm)}
		return append(buf, encodeString(msg.Source)...), nil
	case TagSetWorkspacePath:
		return append([]byte{byte(msg.Tag)}, encodeString(msg.Path)...), nil
	default:
		return nil, fmt.Errorf("ipc: encode: unknown tag %d", msg.Tag)
	}
}

func encodeString(s string) []byte {
	buf := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(buf, uint32(len(s)))
	copy(buf[4:], s)
	return buf
}

// WriteMessage writes msg's full frame to w.
func WriteMessage(w io.Writer, msg Message) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads one length-prefixed frame from r and decodes it.
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return Message{}, fmt.Errorf("ipc: frame length %d exceeds max %d", n, maxFrameLen)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("ipc: read payload: %w", err)
	}
	return decodePayload(payload)
}

func decodePayload(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, fmt.Errorf("ipc: empty payload")
	}
	tag := Tag(payload[0])
	body := payload[1:]

	switch tag {
	case TagPing:
		return Ping(), nil
	case TagPong:
		return Pong(), nil
	case TagShutdown:
		return Shutdown(), nil
	case TagPrint:
		text, _, err := decodeString(body)
		if err != nil {
			return Message{}, fmt.Errorf("ipc: decode Print: %w", err)
		}
		return Print(text), nil
	case TagRunCode:
		if len(body) < 1 {
			return Message{}, fmt.Errorf("ipc: decode RunCode: missing realm byte")
		}
		re := realm.Realm(body[0])
		source, _, err := decodeString(body[1:])
		if err != nil {
			return Message{}, fmt.Errorf("ipc: decode RunCode: %w", err)
		}
		return RunCode(re, source), nil
	case TagSetWorkspacePath:
		path, _, err := decodeString(body)
		if err != nil {
			return Message{}, fmt.Errorf("ipc: decode SetWorkspacePath: %w", err)
		}
		return SetWorkspacePath(path), nil
	default:
		return Message{}, fmt.Errorf("ipc: unknown tag %d", tag)
	}
}

func decodeString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("truncated string length prefix")
	}
	n := binary.LittleEndian.Uint32(b)
	if uint32(len(b)-4) < n {
		return "", nil, fmt.Errorf("truncated string body")
	}
	return string(b[4 : 4+n]), b[4+n:], nil
}
