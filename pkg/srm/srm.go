// Package srm parses HDCP 1.4 System Renewability Messages: signed blobs
// distributed by DCP LLC that carry the list of revoked Key Selection
// Vectors. A malformed blob never yields a partial result; callers keep
// whatever revocation state they already had.
package srm

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/backkem/hdcp/pkg/ksv"
)

// SRM blob layout constants from the HDCP 1.4 specification.
const (
	// HeaderSize covers the SRM ID / reserved bits, version and
	// generation number.
	HeaderSize = 5

	// ID is the fixed SRM identifier nibble for HDCP 1.4 messages.
	ID = 0x8

	// VRLLengthSize is the size of the 24-bit big-endian length field
	// that follows the header. The value it carries covers the field
	// itself, all VRL records and the signature trailer.
	VRLLengthSize = 3

	// SignatureSize is the size of the DCP LLC signature trailer.
	SignatureSize = 40
)

// Parse errors.
var (
	// ErrTooShort is returned when the blob cannot hold even an empty SRM.
	ErrTooShort = errors.New("srm: blob too short")

	// ErrInvalidID is returned when the SRM identifier does not match the
	// fixed HDCP 1.4 value. The whole blob is rejected.
	ErrInvalidID = errors.New("srm: invalid SRM identifier")

	// ErrInvalidLength is returned when the declared VRL length is
	// inconsistent with the blob size or too small to hold the trailer.
	ErrInvalidLength = errors.New("srm: invalid VRL length")

	// ErrNoVRL is returned when the declared length leaves no room for
	// any VRL records.
	ErrNoVRL = errors.New("srm: no VRL present")

	// ErrMalformedVRL is returned when the VRL region does not tile
	// exactly into whole {count, count x KSV} records.
	ErrMalformedVRL = errors.New("srm: malformed VRL region")

	// ErrCountMismatch is returned when the defensive re-count during the
	// copy pass disagrees with the sizing pass.
	ErrCountMismatch = errors.New("srm: KSV count mismatch between passes")
)

// Header is the fixed-size prefix of an SRM blob.
type Header struct {
	ID         uint8
	Version    uint16
	Generation uint8
}

// SRM is a decoded System Renewability Message.
type SRM struct {
	Header  Header
	Revoked []ksv.KSV
}

// Parse decodes an SRM blob into the flat list of revoked KSVs.
//
// Validation is strict: bad framing anywhere rejects the whole blob. The
// VRL region is walked twice, once to size the result and once to copy,
// and the two passes must agree.
func Parse(blob []byte) (*SRM, error) {
	if len(blob) < HeaderSize+VRLLengthSize+SignatureSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(blob))
	}

	s := cryptobyte.String(blob)

	var idByte, reserved, generation uint8
	var version uint16
	if !s.ReadUint8(&idByte) || !s.ReadUint8(&reserved) ||
		!s.ReadUint16(&version) || !s.ReadUint8(&generation) {
		return nil, ErrTooShort
	}
	hdr := Header{ID: idByte >> 4, Version: version, Generation: generation}
	if hdr.ID != ID {
		return nil, fmt.Errorf("%w: 0x%x", ErrInvalidID, hdr.ID)
	}

	var vrlLength uint32
	if !s.ReadUint24(&vrlLength) {
		return nil, ErrTooShort
	}
	if uint32(len(blob)) < HeaderSize+vrlLength ||
		vrlLength < VRLLengthSize+SignatureSize {
		return nil, fmt.Errorf("%w: declared %d, blob %d", ErrInvalidLength,
			vrlLength, len(blob))
	}

	// The length field covers itself and the signature trailer; what is
	// left is the concatenated VRL records.
	regionLen := int(vrlLength) - VRLLengthSize - SignatureSize
	if regionLen == 0 {
		return nil, ErrNoVRL
	}

	var region cryptobyte.String
	if !s.ReadBytes((*[]byte)(&region), regionLen) {
		return nil, ErrTooShort
	}

	count, err := countRevoked(region)
	if err != nil {
		return nil, err
	}

	revoked := make([]ksv.KSV, 0, count)
	revoked, err = copyRevoked(revoked, region)
	if err != nil {
		return nil, err
	}
	if len(revoked) != count {
		return nil, ErrCountMismatch
	}

	return &SRM{Header: hdr, Revoked: revoked}, nil
}

// countRevoked sizes the revoked list by walking the VRL record framing.
// The region must end exactly on a record boundary.
func countRevoked(region cryptobyte.String) (int, error) {
	count := 0
	for !region.Empty() {
		var n uint8
		if !region.ReadUint8(&n) || !region.Skip(int(n)*ksv.Len) {
			return 0, ErrMalformedVRL
		}
		count += int(n)
	}
	return count, nil
}

// copyRevoked re-walks the region appending every KSV.
func copyRevoked(dst []ksv.KSV, region cryptobyte.String) ([]ksv.KSV, error) {
	for !region.Empty() {
		var n uint8
		if !region.ReadUint8(&n) {
			return nil, ErrMalformedVRL
		}
		for i := 0; i < int(n); i++ {
			var raw []byte
			if !region.ReadBytes(&raw, ksv.Len) {
				return nil, ErrMalformedVRL
			}
			k, err := ksv.FromBytes(raw)
			if err != nil {
				return nil, err
			}
			dst = append(dst, k)
		}
	}
	return dst, nil
}
