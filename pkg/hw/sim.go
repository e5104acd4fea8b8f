package hw

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
)

// WriteOp records one register write for test assertions.
type WriteOp struct {
	Reg Register
	Val uint32
}

// Sim is an in-memory Port emulating the authentication-relevant behavior
// of the HDCP hardware block: An capture, key loading with scriptable
// failures, Ri matching, and the SHA-1 repeater engine. The SHA engine
// reconstructs the message text from the N-bit text-mode codes, consumes
// its own M0 secret and compares the resulting digest against the V'
// compare registers, so stream-packing code can be validated bit-for-bit
// against a software SHA-1.
type Sim struct {
	mu        sync.Mutex
	regs      map[Register]uint32
	writes    []WriteOp
	repStatus uint32

	// Failure scripting.
	keyLoadFailures int
	riFailures      int
	holdAnReady     bool

	keyLoadAttempts int
	riAttempts      int
	anInit          []uint32

	// SHA-1 engine state.
	m0         [8]byte
	shaText    []byte
	m0Started  bool
	m0Consumed int
	lenWord    uint32
	textBits   int
	hashDone   bool
}

// NewSim creates a simulated port with a fixed default M0 secret.
func NewSim() *Sim {
	return &Sim{
		regs: make(map[Register]uint32),
		m0:   [8]byte{0x4d, 0x30, 0x5f, 0x73, 0x65, 0x63, 0x72, 0x74},
	}
}

var _ Port = (*Sim)(nil)

// SetKeyLoadFailures makes the first n key-load triggers complete with the
// load-status bit clear before loads start succeeding.
func (s *Sim) SetKeyLoadFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyLoadFailures = n
}

// SetRiFailures makes the first n RPrime writes fail to set the Ri-match
// bit, forcing the authenticator through its retry loop.
func (s *Sim) SetRiFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riFailures = n
}

// HoldAnReady suppresses the An-ready status bit so An capture times out.
func (s *Sim) HoldAnReady(hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdAnReady = hold
}

// SetM0 replaces the hardware-held M0 secret.
func (s *Sim) SetM0(m0 [8]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m0 = m0
}

// M0 returns the hardware-held M0 secret, for computing reference digests.
func (s *Sim) M0() [8]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m0
}

// ClearStatus clears status bits, e.g. to simulate a link silently
// dropping encryption.
func (s *Sim) ClearStatus(bits uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[Status] &^= bits
}

// ShaStream returns the message text reconstructed by the SHA engine.
func (s *Sim) ShaStream() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.shaText))
	copy(out, s.shaText)
	return out
}

// LengthWord returns the final bit-length word received by the SHA engine.
func (s *Sim) LengthWord() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenWord
}

// Writes returns a copy of all recorded register writes.
func (s *Sim) Writes() []WriteOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WriteOp, len(s.writes))
	copy(out, s.writes)
	return out
}

// WriteCount returns the number of register writes so far.
func (s *Sim) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// Read implements Port.
func (s *Sim) Read(reg Register) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg == RepCtl {
		return s.regs[RepCtl] | s.repStatus | Sha1Ready, nil
	}
	return s.regs[reg], nil
}

// Write implements Port.
func (s *Sim) Write(reg Register, val uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, WriteOp{Reg: reg, Val: val})

	switch reg {
	case KeyConf:
		if val&ClearKeysTrigger != 0 {
			s.regs[KeyStatus] = 0
		}
		if val&KeyLoadTrigger != 0 {
			s.keyLoadAttempts++
			if s.keyLoadAttempts > s.keyLoadFailures {
				s.regs[KeyStatus] |= KeyLoadDone | KeyLoadStatus
			} else {
				s.regs[KeyStatus] |= KeyLoadDone
			}
		}
	case KeyStatus:
		// Write-one-to-clear.
		s.regs[KeyStatus] &^= val
	case AnInit:
		s.anInit = append(s.anInit, val)
	case Conf:
		switch val {
		case ConfCaptureAn:
			if n := len(s.anInit); n >= 2 {
				s.regs[AnLo] = s.anInit[n-2]
				s.regs[AnHi] = s.anInit[n-1]
			}
			if !s.holdAnReady {
				s.regs[Status] |= StatusAnReady
			}
			s.resetShaLocked()
		case ConfAuthAndEnc:
			s.regs[Status] |= StatusR0Ready
		case 0:
			s.regs[Status] = 0
		}
	case RPrime:
		s.riAttempts++
		if s.riAttempts > s.riFailures {
			s.regs[Status] |= StatusRiMatch | StatusEnc
		}
	case RepCtl:
		s.regs[RepCtl] = val
		switch val & Sha1OpMask {
		case Sha1Text32:
			s.textBits = 32
		case Sha1Text24:
			s.textBits = 24
		case Sha1Text16:
			s.textBits = 16
		case Sha1Text8:
			s.textBits = 8
		case Sha1Text0:
			s.textBits = 0
		case Sha1CompleteHash:
			s.completeHashLocked()
		}
	case ShaText:
		s.ingestShaWordLocked(val)
	default:
		s.regs[reg] = val
	}
	return nil
}

func (s *Sim) resetShaLocked() {
	s.shaText = nil
	s.m0Started = false
	s.m0Consumed = 0
	s.lenWord = 0
	s.hashDone = false
	s.repStatus = 0
}

// ingestShaWordLocked consumes one 32-bit SHA text word. The current text
// mode says how many of the word's bytes are message text; the rest is M0
// while M0 is being absorbed, then zero padding. The word in which M0
// absorption starts still carries trailing text; everything after it is
// padding until the final bit-length word.
func (s *Sim) ingestShaWordLocked(val uint32) {
	if s.hashDone {
		return
	}
	n := s.textBits / 8
	switch {
	case !s.m0Started:
		for i := n - 1; i >= 0; i-- {
			s.shaText = append(s.shaText, byte(val>>(8*uint(i))))
		}
		if n < 4 {
			s.m0Started = true
			s.m0Consumed = 4 - n
		}
	case s.m0Consumed < 8:
		s.m0Consumed += 4 - n
	default:
		// Zero padding, then the total bit length as the last word.
		s.lenWord = val
	}
}

func (s *Sim) completeHashLocked() {
	msg := make([]byte, 0, len(s.shaText)+len(s.m0))
	msg = append(msg, s.shaText...)
	msg = append(msg, s.m0[:]...)
	digest := sha1.Sum(msg)

	match := s.m0Consumed >= 8 && s.lenWord == uint32(len(msg)*8)
	for i := 0; i < VPrimeParts; i++ {
		if binary.BigEndian.Uint32(digest[i*4:]) != s.regs[ShaVPrime(i)] {
			match = false
		}
	}

	s.repStatus |= Sha1Complete
	if match {
		s.repStatus |= Sha1VMatch
	}
	s.hashDone = true
}
