package wire

// code derived from the framing discipline of lnwire's WriteMessage/
// ReadMessage (github.com/lightningnetwork/lnd/lnwire/message.go): a small
// fixed header followed by a length-checked payload. Lighthouse messages
// don't share a wire, so there's no MessageType dispatch table here — each
// file or HTTP body holds exactly one message of a type the caller already
// knows (a project file, a pledge file, a status response) — but the
// length-delimited discipline itself is kept, since a cover image can run
// well past what a bare struct-copy decode would safely bound.

import (
	"bytes"
	"fmt"
	"io"
)

// MaxFrameLength bounds a single encoded Project/Pledge/ProjectStatus
// message. 16 MiB comfortably covers a project carrying a large cover image
// plus a pledge aggregating many inputs.
const MaxFrameLength = 16 * 1024 * 1024

// Encodable is implemented by every wire message type.
type Encodable interface {
	Encode(w io.Writer) error
}

// Decodable is implemented by every wire message type.
type Decodable interface {
	Decode(r io.Reader) error
}

// Message is a Lighthouse wire message: Project, Pledge, or ProjectStatus.
type Message interface {
	Encodable
	Decodable
}

// EncodeFramed serializes msg and prefixes it with a 4-byte big-endian
// length, producing the single length-delimited message the format requires
// for both on-disk files and HTTP bodies.
func EncodeFramed(msg Encodable) ([]byte, error) {
	var body bytes.Buffer
	if err := msg.Encode(&body); err != nil {
		return nil, err
	}
	if body.Len() > MaxFrameLength {
		return nil, fmt.Errorf("encoded message is %d bytes, exceeds max frame length %d",
			body.Len(), MaxFrameLength)
	}

	var framed bytes.Buffer
	if err := writeUint32(&framed, uint32(body.Len())); err != nil {
		return nil, err
	}
	framed.Write(body.Bytes())
	return framed.Bytes(), nil
}

// DecodeFramed reads a 4-byte length prefix then decodes exactly that many
// bytes into msg.
func DecodeFramed(r io.Reader, msg Decodable) error {
	n, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("reading frame length: %w", err)
	}
	if n > MaxFrameLength {
		return fmt.Errorf("frame length %d exceeds max %d", n, MaxFrameLength)
	}
	body := io.LimitReader(r, int64(n))
	return msg.Decode(body)
}
