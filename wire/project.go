package wire

import (
	"bytes"
	"fmt"
	"io"
)

// Network identifies which chain parameters a Project's outputs and a
// Pledge's transactions are interpreted under.
type Network uint8

const (
	NetworkMainnet Network = 0
	NetworkTestnet Network = 1
	NetworkRegtest Network = 2
)

// String implements fmt.Stringer.
func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkTestnet:
		return "testnet"
	case NetworkRegtest:
		return "regtest"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(n))
	}
}

// Recognized reports whether n is one of the three network tags this
// message format defines.
func (n Network) Recognized() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkRegtest:
		return true
	default:
		return false
	}
}

// TxOutput is a (amount, script) pair, the unit the "outputs" field
// is built from. It mirrors wire.TxOut from btcd without importing it here,
// since a Project's outputs are a protocol-level field, not yet a
// btcd/wire.MsgTx output (that conversion happens in package project).
type TxOutput struct {
	AmountSatoshi int64
	Script        []byte
}

func (o TxOutput) encode(w io.Writer) error {
	if err := writeUint64(w, uint64(o.AmountSatoshi)); err != nil {
		return err
	}
	return writeVarBytes(w, o.Script)
}

func (o *TxOutput) decode(r io.Reader) error {
	amt, err := readUint64(r)
	if err != nil {
		return err
	}
	script, err := readVarBytes(r)
	if err != nil {
		return err
	}
	o.AmountSatoshi = int64(amt)
	o.Script = script
	return nil
}

// Project is the wire form of a project definition. Field names follow
// the binary schema (network_tag, outputs[], timestamp, memo,
// payment_url, merchant_data, extra); Extra carries the fields BIP70's base
// message has no room for (title, cover image, auth pubkey, min pledge).
type Project struct {
	NetworkTag   Network
	Outputs      []TxOutput
	Timestamp    uint64
	Memo         string
	PaymentURL   string
	MerchantData []byte
	Extra        ExtraDetails
}

// Encode serializes the Project into w in canonical form: encoding the same
// Project twice always produces the same bytes, which is what id_hash
// stability depends on.
func (p *Project) Encode(w io.Writer) error {
	if err := writeUint8(w, uint8(p.NetworkTag)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(p.Outputs))); err != nil {
		return err
	}
	for _, o := range p.Outputs {
		if err := o.encode(w); err != nil {
			return err
		}
	}
	if err := writeUint64(w, p.Timestamp); err != nil {
		return err
	}
	if err := writeVarString(w, p.Memo); err != nil {
		return err
	}
	if err := writeVarString(w, p.PaymentURL); err != nil {
		return err
	}
	if err := writeVarBytes(w, p.MerchantData); err != nil {
		return err
	}
	extraBytes, err := p.Extra.Bytes()
	if err != nil {
		return err
	}
	return writeVarBytes(w, extraBytes)
}

// Decode parses a Project previously produced by Encode.
func (p *Project) Decode(r io.Reader) error {
	netTag, err := readUint8(r)
	if err != nil {
		return err
	}
	p.NetworkTag = Network(netTag)

	numOutputs, err := readUint32(r)
	if err != nil {
		return err
	}
	if numOutputs > 1<<16 {
		return fmt.Errorf("refusing to decode %d outputs", numOutputs)
	}
	p.Outputs = make([]TxOutput, numOutputs)
	for i := range p.Outputs {
		if err := p.Outputs[i].decode(r); err != nil {
			return err
		}
	}

	if p.Timestamp, err = readUint64(r); err != nil {
		return err
	}
	if p.Memo, err = readVarString(r); err != nil {
		return err
	}
	if p.PaymentURL, err = readVarString(r); err != nil {
		return err
	}
	if p.MerchantData, err = readVarBytes(r); err != nil {
		return err
	}

	extraBytes, err := readVarBytes(r)
	if err != nil {
		return err
	}
	return p.Extra.Decode(bytes.NewReader(extraBytes))
}

// IDHash returns the canonical identity hash of the project: SHA-256 over
// its encoded bytes, stable as long as the project is never re-encoded with
// different field values.
func (p *Project) IDHash() ([32]byte, error) {
	framed, err := EncodeFramed(p)
	if err != nil {
		return [32]byte{}, err
	}
	// Hash the unframed payload so the length prefix (an encoding detail)
	// never leaks into the identity.
	return CanonicalHash(framed[4:]), nil
}
