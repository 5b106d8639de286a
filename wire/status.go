package wire

import "io"

// ProjectStatus is what the HTTP relay serves: a snapshot of a project's
// pledges, scrubbed unless the caller authenticated with the project's auth
// key (the design).
type ProjectStatus struct {
	ProjectIDHash     [32]byte
	Timestamp         uint64
	ValuePledgedSoFar uint64
	Pledges           []*Pledge
	ClaimedBy         *[32]byte // claim tx hash, nil while OPEN
}

// Encode serializes the ProjectStatus.
func (s *ProjectStatus) Encode(w io.Writer) error {
	if err := writeHash(w, s.ProjectIDHash); err != nil {
		return err
	}
	if err := writeUint64(w, s.Timestamp); err != nil {
		return err
	}
	if err := writeUint64(w, s.ValuePledgedSoFar); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(s.Pledges))); err != nil {
		return err
	}
	for _, pl := range s.Pledges {
		if err := pl.Encode(w); err != nil {
			return err
		}
	}
	if s.ClaimedBy != nil {
		if err := writeUint8(w, 1); err != nil {
			return err
		}
		return writeHash(w, *s.ClaimedBy)
	}
	return writeUint8(w, 0)
}

// Decode parses a ProjectStatus previously produced by Encode.
func (s *ProjectStatus) Decode(r io.Reader) error {
	var err error
	if s.ProjectIDHash, err = readHash(r); err != nil {
		return err
	}
	if s.Timestamp, err = readUint64(r); err != nil {
		return err
	}
	if s.ValuePledgedSoFar, err = readUint64(r); err != nil {
		return err
	}

	n, err := readUint32(r)
	if err != nil {
		return err
	}
	s.Pledges = make([]*Pledge, n)
	for i := range s.Pledges {
		pl := &Pledge{}
		if err := pl.Decode(r); err != nil {
			return err
		}
		s.Pledges[i] = pl
	}

	hasClaim, err := readUint8(r)
	if err != nil {
		return err
	}
	if hasClaim == 1 {
		h, err := readHash(r)
		if err != nil {
			return err
		}
		s.ClaimedBy = &h
	}
	return nil
}

// Scrubbed returns a copy of the status with every pledge's transaction
// bytes removed. This is the invariant the design tests directly: a scrubbed
// ProjectStatus must never contain any transactions bytes.
func (s *ProjectStatus) Scrubbed() (*ProjectStatus, error) {
	out := &ProjectStatus{
		ProjectIDHash:     s.ProjectIDHash,
		Timestamp:         s.Timestamp,
		ValuePledgedSoFar: s.ValuePledgedSoFar,
		ClaimedBy:         s.ClaimedBy,
		Pledges:           make([]*Pledge, len(s.Pledges)),
	}
	for i, pl := range s.Pledges {
		scrubbed, err := pl.Scrub()
		if err != nil {
			return nil, err
		}
		out.Pledges[i] = scrubbed
	}
	return out, nil
}
