package ksv

import (
	"math/bits"
	"math/rand"
	"testing"
)

func TestIsValidBoundaryPatterns(t *testing.T) {
	tests := []struct {
		name string
		ksv  KSV
		want bool
	}{
		{"all zeros", KSV{0x00, 0x00, 0x00, 0x00, 0x00}, false},
		{"all ones", KSV{0xff, 0xff, 0xff, 0xff, 0xff}, false},
		{"alternating 20 ones", KSV{0xaa, 0xaa, 0xaa, 0xaa, 0xaa}, true},
		{"alternating inverted", KSV{0x55, 0x55, 0x55, 0x55, 0x55}, true},
		{"low half set", KSV{0xff, 0xff, 0x0f, 0x00, 0x00}, true},
		{"19 ones", KSV{0xff, 0xff, 0x07, 0x00, 0x00}, false},
		{"21 ones", KSV{0xff, 0xff, 0x1f, 0x00, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ksv.IsValid(); got != tt.want {
				t.Errorf("IsValid(%s) = %v, want %v", tt.ksv, got, tt.want)
			}
		})
	}
}

func TestIsValidMatchesPopcount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		var k KSV
		rng.Read(k[:])

		ones := 0
		for _, b := range k {
			ones += bits.OnesCount8(b)
		}
		if got, want := k.IsValid(), ones == 20; got != want {
			t.Fatalf("IsValid(%s) = %v, want %v (ones=%d)", k, got, want, ones)
		}
	}
}

func TestParseList(t *testing.T) {
	buf := []byte{
		1, 2, 3, 4, 5,
		6, 7, 8, 9, 10,
	}
	list, err := ParseList(buf)
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d KSVs, want 2", len(list))
	}
	if list[0] != (KSV{1, 2, 3, 4, 5}) || list[1] != (KSV{6, 7, 8, 9, 10}) {
		t.Errorf("unexpected KSVs: %v", list)
	}

	if _, err := ParseList(buf[:7]); err == nil {
		t.Error("ParseList should reject a buffer that is not a multiple of 5")
	}
}

func TestRevocationTable(t *testing.T) {
	revoked := KSV{0xde, 0xad, 0xbe, 0xef, 0x01}
	clean := KSV{0x01, 0x02, 0x03, 0x04, 0x05}

	table := NewRevocationTable([]KSV{revoked}, 42)
	if table.BlobID != 42 {
		t.Errorf("BlobID = %d, want 42", table.BlobID)
	}
	if !table.Contains(revoked) {
		t.Error("Contains should find the revoked KSV")
	}
	if table.Contains(clean) {
		t.Error("Contains should not match a clean KSV")
	}
	if !table.ContainsAny([]KSV{clean, revoked}) {
		t.Error("ContainsAny should match when any candidate is revoked")
	}
	if table.ContainsAny([]KSV{clean}) {
		t.Error("ContainsAny should not match clean candidates")
	}
}

func TestRevocationTableNil(t *testing.T) {
	var table *RevocationTable
	if table.Contains(KSV{}) {
		t.Error("nil table should revoke nothing")
	}
	if table.ContainsAny([]KSV{{}, {1, 2, 3, 4, 5}}) {
		t.Error("nil table should revoke nothing")
	}
	if table.Len() != 0 {
		t.Error("nil table should be empty")
	}
}
