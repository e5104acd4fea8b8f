package hw

import (
	"errors"
	"testing"
	"time"
)

type flakyPort struct {
	readsUntilReady int
	reads           int
}

func (p *flakyPort) Read(reg Register) (uint32, error) {
	p.reads++
	if p.reads >= p.readsUntilReady {
		return StatusAnReady, nil
	}
	return 0, nil
}

func (p *flakyPort) Write(Register, uint32) error { return nil }

func TestPollSucceedsOnceConditionHolds(t *testing.T) {
	p := &flakyPort{readsUntilReady: 3}
	if err := Poll(p, Status, StatusAnReady, StatusAnReady, 100*time.Millisecond); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if p.reads < 3 {
		t.Errorf("polled %d times, want at least 3", p.reads)
	}
}

func TestPollTimesOut(t *testing.T) {
	s := NewSim()
	start := time.Now()
	err := Poll(s, Status, StatusAnReady, StatusAnReady, 5*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Poll = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("poll overran its timeout: %v", elapsed)
	}
}

type brokenPort struct{ err error }

func (p *brokenPort) Read(Register) (uint32, error) { return 0, p.err }
func (p *brokenPort) Write(Register, uint32) error  { return p.err }

func TestPollPropagatesReadError(t *testing.T) {
	readErr := errors.New("bus fault")
	err := Poll(&brokenPort{err: readErr}, Status, StatusEnc, StatusEnc, 50*time.Millisecond)
	if !errors.Is(err, readErr) {
		t.Fatalf("Poll = %v, want the read error", err)
	}
}

func TestPollCond(t *testing.T) {
	calls := 0
	err := PollCond(func() (bool, error) {
		calls++
		return calls >= 2, nil
	}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("PollCond failed: %v", err)
	}

	if err := PollCond(func() (bool, error) { return false, nil }, 5*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("PollCond = %v, want ErrTimeout", err)
	}
}

func TestRepeaterControl(t *testing.T) {
	seen := map[uint32]bool{}
	for _, d := range []DDI{DDIA, DDIB, DDIC, DDID, DDIE} {
		ctl, err := RepeaterControl(d)
		if err != nil {
			t.Fatalf("RepeaterControl(%d) failed: %v", d, err)
		}
		if seen[ctl] {
			t.Errorf("duplicate control bits %#x for DDI %d", ctl, d)
		}
		seen[ctl] = true
	}

	if _, err := RepeaterControl(DDI(99)); !errors.Is(err, ErrUnknownDDI) {
		t.Errorf("RepeaterControl(99) = %v, want ErrUnknownDDI", err)
	}
}
