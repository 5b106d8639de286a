package wire

import (
	"fmt"
	"io"
)

// Pledge is the wire form of a pledge. It is either full (Transactions is
// non-empty, OrigHash is nil) or scrubbed (Transactions is empty, OrigHash
// holds the hash of the full form it was scrubbed from). The design models
// "transactions[]" plural, BIP70-style; Lighthouse pledges only ever
// populate a single element, but the slot is kept so the wire format can
// carry alternates the way a PaymentRequest can without a format change.
type Pledge struct {
	ProjectIDHash       [32]byte
	TotalPledgedSatoshi uint64
	Timestamp           uint64
	Name                string
	Contact             string
	Memo                string
	Transactions        [][]byte

	// PrevOutputs declares, for each input of Transactions[0] in order,
	// the (amount, script) of the output it claims to spend. A pledge is
	// self-contained proof of a signature's validity against this
	// declaration (project.CheckPledgeShape verifies it); whether the
	// declaration matches chain reality is BitcoinView's job, not this
	// message's.
	PrevOutputs []TxOutput

	OrigHash *[32]byte
}

// IsScrubbed reports whether this pledge has had its transaction bytes
// removed.
func (p *Pledge) IsScrubbed() bool {
	return p.OrigHash != nil
}

// Encode serializes the Pledge. After the fields both forms share, a single
// scrubbed/full discriminator byte follows so Decode doesn't have to guess
// from field presence.
func (p *Pledge) Encode(w io.Writer) error {
	if err := writeHash(w, p.ProjectIDHash); err != nil {
		return err
	}
	if err := writeUint64(w, p.TotalPledgedSatoshi); err != nil {
		return err
	}
	if err := writeUint64(w, p.Timestamp); err != nil {
		return err
	}
	if err := writeVarString(w, p.Name); err != nil {
		return err
	}
	if err := writeVarString(w, p.Contact); err != nil {
		return err
	}
	if err := writeVarString(w, p.Memo); err != nil {
		return err
	}

	if p.IsScrubbed() {
		if err := writeUint8(w, 1); err != nil {
			return err
		}
		return writeHash(w, *p.OrigHash)
	}

	if err := writeUint8(w, 0); err != nil {
		return err
	}
	if err := writeVarBytesSlice(w, p.Transactions); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(p.PrevOutputs))); err != nil {
		return err
	}
	for _, o := range p.PrevOutputs {
		if err := o.encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses a Pledge previously produced by Encode.
func (p *Pledge) Decode(r io.Reader) error {
	var err error
	if p.ProjectIDHash, err = readHash(r); err != nil {
		return err
	}
	if p.TotalPledgedSatoshi, err = readUint64(r); err != nil {
		return err
	}
	if p.Timestamp, err = readUint64(r); err != nil {
		return err
	}
	if p.Name, err = readVarString(r); err != nil {
		return err
	}
	if p.Contact, err = readVarString(r); err != nil {
		return err
	}
	if p.Memo, err = readVarString(r); err != nil {
		return err
	}

	scrubbed, err := readUint8(r)
	if err != nil {
		return err
	}

	switch scrubbed {
	case 0:
		p.OrigHash = nil
		if p.Transactions, err = readVarBytesSlice(r); err != nil {
			return err
		}
		numPrev, err := readUint32(r)
		if err != nil {
			return err
		}
		if numPrev > 1<<16 {
			return fmt.Errorf("refusing to decode %d declared prevouts", numPrev)
		}
		p.PrevOutputs = make([]TxOutput, numPrev)
		for i := range p.PrevOutputs {
			if err := p.PrevOutputs[i].decode(r); err != nil {
				return err
			}
		}
	case 1:
		h, err := readHash(r)
		if err != nil {
			return err
		}
		p.OrigHash = &h
		p.Transactions = nil
	default:
		return fmt.Errorf("unknown pledge scrub discriminator %d", scrubbed)
	}
	return nil
}

// Identity returns the hash that other pledges, the engine's open-pledge
// index, and a served ProjectStatus all use to refer to this pledge: the
// hash of the full form's encoded bytes, whether or not this particular
// copy has already been scrubbed.
func (p *Pledge) Identity() ([32]byte, error) {
	if p.IsScrubbed() {
		return *p.OrigHash, nil
	}
	framed, err := EncodeFramed(p)
	if err != nil {
		return [32]byte{}, err
	}
	return CanonicalHash(framed[4:]), nil
}

// Scrub returns a copy of p with its transaction bytes replaced by the hash
// of the full form. Scrubbing is irreversible: the returned value carries
// no path back to the original transaction bytes.
func (p *Pledge) Scrub() (*Pledge, error) {
	if p.IsScrubbed() {
		cp := *p
		return &cp, nil
	}

	id, err := p.Identity()
	if err != nil {
		return nil, err
	}

	return &Pledge{
		ProjectIDHash:       p.ProjectIDHash,
		TotalPledgedSatoshi: p.TotalPledgedSatoshi,
		Timestamp:           p.Timestamp,
		Name:                p.Name,
		Contact:             p.Contact,
		Memo:                p.Memo,
		OrigHash:            &id,
	}, nil
}
