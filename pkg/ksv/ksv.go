// Package ksv implements Key Selection Vector handling for HDCP 1.4:
// validity checking and revocation-list membership.
package ksv

import (
	"fmt"
	"math/bits"
)

// Len is the length of a KSV in bytes (40 bits).
const Len = 5

// KSV is a Key Selection Vector, the 40-bit public identifier of an HDCP
// device's key set.
type KSV [Len]byte

// IsValid reports whether the KSV is well formed. HDCP 1.4 requires every
// KSV to contain exactly 20 ones and 20 zeros.
func (k KSV) IsValid() bool {
	ones := 0
	for _, b := range k {
		ones += bits.OnesCount8(b)
	}
	return ones == 20
}

// String formats the KSV as hex for logging.
func (k KSV) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x", k[0], k[1], k[2], k[3], k[4])
}

// FromBytes copies a KSV out of a 5-byte slice.
func FromBytes(b []byte) (KSV, error) {
	var k KSV
	if len(b) != Len {
		return k, fmt.Errorf("ksv: invalid length %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

// ParseList splits a KSV FIFO byte buffer into individual KSVs.
// The buffer length must be an exact multiple of the KSV length.
func ParseList(buf []byte) ([]KSV, error) {
	if len(buf)%Len != 0 {
		return nil, fmt.Errorf("ksv: list length %d is not a multiple of %d", len(buf), Len)
	}
	list := make([]KSV, 0, len(buf)/Len)
	for off := 0; off < len(buf); off += Len {
		var k KSV
		copy(k[:], buf[off:off+Len])
		list = append(list, k)
	}
	return list, nil
}
