package wire

// Field-at-a-time encode/decode helpers for the fixed-width and
// variable-length types a project/pledge message is built from.

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxVarBytesLength bounds any length-prefixed byte field so a malformed or
// adversarial message can't force an unbounded allocation.
const MaxVarBytesLength = 8 * 1024 * 1024 // 8 MiB, generous for a cover image

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// writeVarBytes writes a uint32 length prefix followed by the raw bytes.
func writeVarBytes(w io.Writer, b []byte) error {
	if len(b) > MaxVarBytesLength {
		return fmt.Errorf("var bytes field too large: %d bytes", len(b))
	}
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxVarBytesLength {
		return nil, fmt.Errorf("var bytes field too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeVarString(w io.Writer, s string) error {
	return writeVarBytes(w, []byte(s))
}

func readVarString(r io.Reader) (string, error) {
	b, err := readVarBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeHash(w io.Writer, h [32]byte) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) ([32]byte, error) {
	var h [32]byte
	_, err := io.ReadFull(r, h[:])
	return h, err
}

func writeChainHash(w io.Writer, h chainhash.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readChainHash(r io.Reader) (chainhash.Hash, error) {
	var h chainhash.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

// writePubKey writes a compressed secp256k1 public key, or 33 zero bytes if
// pub is nil (the field is optional on Project but required once set).
func writePubKey(w io.Writer, pub *btcec.PublicKey) error {
	var raw [33]byte
	if pub != nil {
		copy(raw[:], pub.SerializeCompressed())
	}
	_, err := w.Write(raw[:])
	return err
}

func readPubKey(r io.Reader) (*btcec.PublicKey, error) {
	var raw [33]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, err
	}
	allZero := true
	for _, b := range raw {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil, nil
	}
	return btcec.ParsePubKey(raw[:])
}

// writeVarBytesSlice writes a count-prefixed list of length-prefixed byte slices.
func writeVarBytesSlice(w io.Writer, items [][]byte) error {
	if err := writeUint32(w, uint32(len(items))); err != nil {
		return err
	}
	for _, item := range items {
		if err := writeVarBytes(w, item); err != nil {
			return err
		}
	}
	return nil
}

func readVarBytesSlice(r io.Reader) ([][]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > 1<<20 {
		return nil, fmt.Errorf("refusing to decode %d-element slice", n)
	}
	out := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		b, err := readVarBytes(r)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
