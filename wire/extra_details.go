package wire

// ExtraDetails is Lighthouse's BIP70-flavored extension point: a
// length-delimited, tag-numbered set of optional fields attached to a
// project. Unlike the rest of this package (fixed field order, hand-rolled
// framing) this sub-message encodes through
// github.com/lightningnetwork/lnd/tlv, since new optional fields need to
// be addable without breaking older readers.

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeTitle       tlv.Type = 1
	typeCoverImage  tlv.Type = 2
	typeAuthPubkey  tlv.Type = 3
	typeMinPledge   tlv.Type = 4
	typeOwnerHint   tlv.Type = 5
	typeServerURL   tlv.Type = 6
)

// ExtraDetails carries the fields BIP70's PaymentRequest.merchant_data slot
// doesn't have room for: a human title, an optional cover image, the
// project's auth public key, the minimum single pledge, an optional wallet
// hint for the owner, and an optional relay URL.
type ExtraDetails struct {
	Title            string
	CoverImage       []byte
	AuthPubkey       *btcec.PublicKey
	MinPledgeSatoshi uint64
	OwnerWalletHint  []byte
	ServerURL        string
}

func (e *ExtraDetails) records() ([]tlv.Record, error) {
	var recs []tlv.Record

	titleBytes := []byte(e.Title)
	recs = append(recs, tlv.MakeDynamicRecord(
		typeTitle, &titleBytes, func() uint64 { return uint64(len(titleBytes)) },
		tlv.EVarBytes, tlv.DVarBytes,
	))

	if len(e.CoverImage) > 0 {
		img := e.CoverImage
		recs = append(recs, tlv.MakeDynamicRecord(
			typeCoverImage, &img, func() uint64 { return uint64(len(img)) },
			tlv.EVarBytes, tlv.DVarBytes,
		))
	}

	if e.AuthPubkey != nil {
		var pk [33]byte
		copy(pk[:], e.AuthPubkey.SerializeCompressed())
		recs = append(recs, tlv.MakePrimitiveRecord(typeAuthPubkey, &pk))
	}

	minPledge := e.MinPledgeSatoshi
	recs = append(recs, tlv.MakePrimitiveRecord(typeMinPledge, &minPledge))

	if len(e.OwnerWalletHint) > 0 {
		hint := e.OwnerWalletHint
		recs = append(recs, tlv.MakeDynamicRecord(
			typeOwnerHint, &hint, func() uint64 { return uint64(len(hint)) },
			tlv.EVarBytes, tlv.DVarBytes,
		))
	}

	if e.ServerURL != "" {
		url := []byte(e.ServerURL)
		recs = append(recs, tlv.MakeDynamicRecord(
			typeServerURL, &url, func() uint64 { return uint64(len(url)) },
			tlv.EVarBytes, tlv.DVarBytes,
		))
	}

	return recs, nil
}

// Encode writes the ExtraDetails sub-message as a TLV stream.
func (e *ExtraDetails) Encode(w io.Writer) error {
	recs, err := e.records()
	if err != nil {
		return err
	}
	stream, err := tlv.NewStream(recs...)
	if err != nil {
		return err
	}
	return stream.Encode(w)
}

// Decode parses a TLV stream previously produced by Encode. Unknown odd
// types are ignored per the TLV even/odd convention (forward compatible);
// unknown even types are a hard decode error, since those would be fields a
// future version considers mandatory.
func (e *ExtraDetails) Decode(r io.Reader) error {
	var (
		titleBytes, coverImage, ownerHint, serverURL []byte
		authPubkeyRaw                                [33]byte
		minPledge                                    uint64
	)

	recs := []tlv.Record{
		tlv.MakeDynamicRecord(
			typeTitle, &titleBytes, func() uint64 { return uint64(len(titleBytes)) },
			tlv.EVarBytes, tlv.DVarBytes,
		),
		tlv.MakeDynamicRecord(
			typeCoverImage, &coverImage, func() uint64 { return uint64(len(coverImage)) },
			tlv.EVarBytes, tlv.DVarBytes,
		),
		tlv.MakePrimitiveRecord(typeAuthPubkey, &authPubkeyRaw),
		tlv.MakePrimitiveRecord(typeMinPledge, &minPledge),
		tlv.MakeDynamicRecord(
			typeOwnerHint, &ownerHint, func() uint64 { return uint64(len(ownerHint)) },
			tlv.EVarBytes, tlv.DVarBytes,
		),
		tlv.MakeDynamicRecord(
			typeServerURL, &serverURL, func() uint64 { return uint64(len(serverURL)) },
			tlv.EVarBytes, tlv.DVarBytes,
		),
	}

	stream, err := tlv.NewStream(recs...)
	if err != nil {
		return err
	}
	parsed, err := stream.DecodeWithParsedTypes(r)
	if err != nil {
		return err
	}

	e.Title = string(titleBytes)
	e.CoverImage = coverImage
	e.MinPledgeSatoshi = minPledge
	e.OwnerWalletHint = ownerHint
	e.ServerURL = string(serverURL)

	if _, ok := parsed[typeAuthPubkey]; ok {
		pub, err := btcec.ParsePubKey(authPubkeyRaw[:])
		if err != nil {
			return err
		}
		e.AuthPubkey = pub
	}

	return nil
}

// Bytes returns the TLV-encoded form, used when ExtraDetails is embedded as
// a length-prefixed blob inside Project's own framing.
func (e *ExtraDetails) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
