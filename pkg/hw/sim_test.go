package hw

import (
	"testing"
	"time"
)

func TestSimAnCapture(t *testing.T) {
	s := NewSim()
	if err := s.Write(AnInit, 0x11223344); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(AnInit, 0x55667788); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(Conf, ConfCaptureAn); err != nil {
		t.Fatal(err)
	}

	if err := Poll(s, Status, StatusAnReady, StatusAnReady, 10*time.Millisecond); err != nil {
		t.Fatalf("An never became ready: %v", err)
	}
	lo, _ := s.Read(AnLo)
	hi, _ := s.Read(AnHi)
	if lo != 0x11223344 || hi != 0x55667788 {
		t.Errorf("An = %#x/%#x, want the two injected halves", lo, hi)
	}
}

func TestSimKeyLoadScripting(t *testing.T) {
	s := NewSim()
	s.SetKeyLoadFailures(2)

	for attempt := 1; attempt <= 3; attempt++ {
		s.Write(KeyConf, KeyLoadTrigger)
		status, _ := s.Read(KeyStatus)
		if status&KeyLoadDone == 0 {
			t.Fatalf("attempt %d: load never completed", attempt)
		}
		ok := status&KeyLoadStatus != 0
		if attempt <= 2 && ok {
			t.Errorf("attempt %d: load should have failed", attempt)
		}
		if attempt == 3 && !ok {
			t.Errorf("attempt %d: load should have succeeded", attempt)
		}
		if !ok {
			s.Write(KeyConf, ClearKeysTrigger)
		}
	}
}

func TestSimRecordsWrites(t *testing.T) {
	s := NewSim()
	s.Write(Conf, ConfCaptureAn)
	s.Write(BksvLo, 0xdeadbeef)

	writes := s.Writes()
	if len(writes) != 2 {
		t.Fatalf("got %d writes, want 2", len(writes))
	}
	if writes[1].Reg != BksvLo || writes[1].Val != 0xdeadbeef {
		t.Errorf("unexpected write record: %+v", writes[1])
	}
}

func TestSimDisableClearsStatus(t *testing.T) {
	s := NewSim()
	s.Write(RPrime, 0x1234)
	if v, _ := s.Read(Status); v&StatusEnc == 0 {
		t.Fatal("encryption should be reported after Ri match")
	}
	s.Write(Conf, 0)
	if v, _ := s.Read(Status); v != 0 {
		t.Errorf("status = %#x after disable, want 0", v)
	}
}
