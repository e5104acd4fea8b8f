package hdcp

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/backkem/hdcp/pkg/hw"
	"github.com/backkem/hdcp/pkg/ksv"
)

func downstreamKsvs(n int) []ksv.KSV {
	list := make([]ksv.KSV, n)
	for i := range list {
		for j := range list[i] {
			list[i][j] = byte(0x10*(i+1) + j)
		}
	}
	return list
}

// TestRepeaterAuthentication drives the full Part 2 flow against the
// simulated SHA engine for every leftover-byte alignment a 5-byte KSV
// can produce, verifying the engine saw the exact message bytes and the
// correct bit-length word.
func TestRepeaterAuthentication(t *testing.T) {
	for n := 1; n <= 4; n++ {
		t.Run(fmt.Sprintf("%dDevices", n), func(t *testing.T) {
			sim := hw.NewSim()
			list := downstreamKsvs(n)
			f := newFakeRepeater(sim.M0(), list...)
			c := newTestConnector(t, sim, f)
			defer c.Close() //nolint:errcheck

			if err := c.enableSync(); err != nil {
				t.Fatalf("enable failed: %v", err)
			}

			want := repeaterMessage(list, f.bstatus)
			if got := sim.ShaStream(); !bytes.Equal(got, want) {
				t.Errorf("SHA stream = %x, want %x", got, want)
			}
			wantBits := uint32((n*ksv.Len + 10) * 8)
			if got := sim.LengthWord(); got != wantBits {
				t.Errorf("length word = %d, want %d", got, wantBits)
			}

			info := c.DownstreamInfo()
			if !info.IsRepeater || info.DeviceCount != n || info.Depth != 2 {
				t.Errorf("unexpected downstream info: %+v", info)
			}
			if len(info.KSVList) != n || info.KSVList[0] != list[0] {
				t.Errorf("downstream KSV list = %v, want %v", info.KSVList, list)
			}
		})
	}
}

// TestRepeaterKnownStream pins the exact message for three KSVs: the
// three vectors back to back, then the two Bstatus bytes, with the
// length word covering the hardware-appended 64-bit M0.
func TestRepeaterKnownStream(t *testing.T) {
	a := ksv.KSV{0x01, 0x02, 0x03, 0x04, 0x05}
	b := ksv.KSV{0x11, 0x12, 0x13, 0x14, 0x15}
	ck := ksv.KSV{0x21, 0x22, 0x23, 0x24, 0x25}

	sim := hw.NewSim()
	f := newFakeRepeater(sim.M0(), a, b, ck)
	c := newTestConnector(t, sim, f)
	defer c.Close() //nolint:errcheck

	if err := c.enableSync(); err != nil {
		t.Fatalf("enable failed: %v", err)
	}

	want := []byte{
		0x01, 0x02, 0x03, 0x04, 0x05,
		0x11, 0x12, 0x13, 0x14, 0x15,
		0x21, 0x22, 0x23, 0x24, 0x25,
		0x03, 0x02,
	}
	if got := sim.ShaStream(); !bytes.Equal(got, want) {
		t.Fatalf("SHA stream = %x, want %x", got, want)
	}
	if got := sim.LengthWord(); got != 200 {
		t.Errorf("length word = %d, want 200 bits", got)
	}
}

// TestShaStreamPacking drives the stream writer directly with arbitrary
// Bstatus bytes, independent of the topology checks, and verifies the
// engine reconstructed exactly KSVs || Bstatus and accepted the digest.
func TestShaStreamPacking(t *testing.T) {
	list := []ksv.KSV{
		{0x01, 0x02, 0x03, 0x04, 0x05},
		{0x11, 0x12, 0x13, 0x14, 0x15},
		{0x21, 0x22, 0x23, 0x24, 0x25},
	}
	bstatus := [2]byte{0x01, 0x02}

	sim := hw.NewSim()
	for i, w := range vprimeFor(list, bstatus, sim.M0()) {
		if err := sim.Write(hw.ShaVPrime(i), w); err != nil {
			t.Fatal(err)
		}
	}

	c, err := NewConnector(Config{Port: sim, DDI: hw.DDIB})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close() //nolint:errcheck

	if err := c.writeShaStreamLocked(list, bstatus); err != nil {
		t.Fatalf("stream write failed: %v", err)
	}
	want := repeaterMessage(list, bstatus)
	if got := sim.ShaStream(); !bytes.Equal(got, want) {
		t.Errorf("SHA stream = %x, want %x", got, want)
	}
	if got := sim.LengthWord(); got != 200 {
		t.Errorf("length word = %d, want 200 bits", got)
	}
}

func TestRepeaterShaMismatch(t *testing.T) {
	sim := hw.NewSim()
	f := newFakeRepeater(sim.M0(), downstreamKsvs(2)...)
	f.vprime[2]++
	c := newTestConnector(t, sim, f)
	defer c.Close() //nolint:errcheck

	if err := c.enableSync(); !errors.Is(err, ErrShaMismatch) {
		t.Fatalf("enable = %v, want ErrShaMismatch", err)
	}
	if c.State() != Desired {
		t.Errorf("state = %v, want Desired", c.State())
	}
}

func TestRepeaterTopologyLimits(t *testing.T) {
	cases := []struct {
		name    string
		bstatus [2]byte
		wantErr error
	}{
		{"TooManyDevices", [2]byte{bstatusMaxDevsExceeded | 0x02, 0x01}, ErrTopology},
		{"CascadeTooDeep", [2]byte{0x02, bstatusMaxCascadeExceeded | 0x01}, ErrTopology},
		{"ZeroDevices", [2]byte{0x00, 0x01}, ErrZeroDevices},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := hw.NewSim()
			f := newFakeRepeater(sim.M0(), downstreamKsvs(2)...)
			f.bstatus = tc.bstatus
			c := newTestConnector(t, sim, f)
			defer c.Close() //nolint:errcheck

			if err := c.enableSync(); !errors.Is(err, tc.wantErr) {
				t.Errorf("enable = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRepeaterRevokedDownstream(t *testing.T) {
	sim := hw.NewSim()
	list := downstreamKsvs(3)
	f := newFakeRepeater(sim.M0(), list...)
	c := newTestConnector(t, sim, f)
	defer c.Close() //nolint:errcheck

	if err := c.UpdateSRM(7, srmBlob(list[1])); err != nil {
		t.Fatal(err)
	}
	if err := c.enableSync(); !errors.Is(err, ErrRevoked) {
		t.Fatalf("enable = %v, want ErrRevoked", err)
	}
	for _, w := range sim.Writes() {
		if w.Reg == hw.ShaText {
			t.Fatal("a revoked downstream list must never reach the SHA engine")
		}
	}
}

// TestRepeaterKsvReadyPoll exercises the bounded wait for the repeater's
// KSV FIFO to assemble.
func TestRepeaterKsvReadyPoll(t *testing.T) {
	sim := hw.NewSim()
	f := newFakeRepeater(sim.M0(), downstreamKsvs(1)...)
	f.readyAt = 5
	c := newTestConnector(t, sim, f)
	defer c.Close() //nolint:errcheck

	if err := c.enableSync(); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if f.readyPolls <= f.readyAt {
		t.Errorf("expected more than %d ready polls, got %d", f.readyAt, f.readyPolls)
	}
}
