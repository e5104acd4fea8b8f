package hdcp

import (
	"fmt"

	"github.com/backkem/hdcp/pkg/hw"
	"github.com/backkem/hdcp/pkg/ksv"
)

// authenticateDownstreamLocked is the Part 2 flow: wait for the KSV FIFO,
// validate topology, gate the downstream list against revocation, then
// have the hardware SHA-1 engine verify V'.
func (c *Connector) authenticateDownstreamLocked() error {
	sh := c.cfg.Shim

	// Repeaters get up to five seconds to assemble their KSV list.
	if err := hw.PollCond(sh.ReadKsvReady, ksvReadyTimeout); err != nil {
		return fmt.Errorf("KSV list never became ready: %w", err)
	}

	bstatus, err := sh.ReadBstatus()
	if err != nil {
		return fmt.Errorf("reading Bstatus: %w", err)
	}
	if bstatus[0]&bstatusMaxDevsExceeded != 0 || bstatus[1]&bstatusMaxCascadeExceeded != 0 {
		return ErrTopology
	}
	count := int(bstatus[0] & bstatusDeviceCountMask)
	if count == 0 {
		return ErrZeroDevices
	}
	c.downstream.DeviceCount = count
	c.downstream.Depth = int(bstatus[1] & bstatusDepthMask)

	list, err := sh.ReadKsvFifo(count)
	if err != nil {
		return fmt.Errorf("reading KSV FIFO: %w", err)
	}
	if c.revoked(list...) {
		if c.log != nil {
			c.log.Errorf("downstream KSV list contains a revoked KSV")
		}
		return fmt.Errorf("%w: downstream KSV list", ErrRevoked)
	}
	c.downstream.KSVList = append([]ksv.KSV(nil), list...)

	for i := 0; i < hw.VPrimeParts; i++ {
		v, err := sh.ReadVPrimePart(i)
		if err != nil {
			return fmt.Errorf("reading V' part %d: %w", i, err)
		}
		if err := c.port.Write(hw.ShaVPrime(i), v); err != nil {
			return err
		}
	}

	if err := c.writeShaStreamLocked(list, bstatus); err != nil {
		return err
	}
	if c.log != nil {
		c.log.Infof("HDCP is enabled, %d downstream devices", count)
	}
	return nil
}

// shaStream feeds the hardware SHA-1 engine 32-bit words, tracking how
// many message bytes have gone in. The engine's text-mode codes declare
// how many of each word's bytes are message text; the remainder is the
// hardware-held M0 and then padding.
type shaStream struct {
	port hw.Port
	ctl  uint32
	idx  int
}

func (s *shaStream) setMode(op uint32) error {
	return s.port.Write(hw.RepCtl, s.ctl|op)
}

func (s *shaStream) writeWord(w uint32) error {
	if err := s.port.Write(hw.ShaText, w); err != nil {
		return err
	}
	if err := hw.Poll(s.port, hw.RepCtl, hw.Sha1Ready, hw.Sha1Ready, shaReadyTimeout); err != nil {
		return fmt.Errorf("SHA engine never became ready: %w", err)
	}
	s.idx += 4
	return nil
}

// writeShaStreamLocked streams the repeater verification message
// (KSV list || Bstatus || M0, M0 supplied by the hardware) into the SHA
// engine and checks the V' compare result. KSVs are packed big-endian
// into 32-bit words; since each KSV is five bytes the words carry one to
// three leftover bytes, and the two Bstatus bytes are folded into the
// leftover tail using the per-word text-width codes.
func (c *Connector) writeShaStreamLocked(list []ksv.KSV, bstatus [2]byte) error {
	ctl, err := hw.RepeaterControl(c.cfg.DDI)
	if err != nil {
		return err
	}
	s := &shaStream{port: c.port, ctl: ctl}

	if err := s.setMode(hw.Sha1Text32); err != nil {
		return err
	}
	var text uint32
	leftovers := 0
	for _, k := range list {
		empty := 4 - leftovers
		for j := 0; j < empty; j++ {
			text |= uint32(k[j]) << uint(8*(3-leftovers-j))
		}
		if err := s.writeWord(text); err != nil {
			return err
		}
		// The engine drops byte alignment at each 64-byte block boundary
		// and needs the text mode re-asserted.
		if s.idx%64 == 0 {
			if err := s.setMode(hw.Sha1Text32); err != nil {
				return err
			}
		}
		leftovers = ksv.Len - empty
		text = 0
		for j := 0; j < leftovers; j++ {
			text |= uint32(k[empty+j]) << uint(8*(3-j))
		}
		if leftovers == 4 {
			if err := s.writeWord(text); err != nil {
				return err
			}
			if s.idx%64 == 0 {
				if err := s.setMode(hw.Sha1Text32); err != nil {
					return err
				}
			}
			leftovers = 0
			text = 0
		}
	}

	// Append the two Bstatus bytes behind the leftover KSV bytes, then
	// let the engine absorb its 64-bit M0. The write widths depend on
	// how the 2 Bstatus bytes straddle the word boundary.
	switch leftovers {
	case 0:
		if err := s.setMode(hw.Sha1Text16); err != nil {
			return err
		}
		if err := s.writeWord(uint32(bstatus[0])<<8 | uint32(bstatus[1])); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text0); err != nil {
			return err
		}
		if err := s.writeWord(0); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text16); err != nil {
			return err
		}
		if err := s.writeWord(0); err != nil {
			return err
		}
	case 1:
		text |= uint32(bstatus[0])<<16 | uint32(bstatus[1])<<8
		text >>= 8
		if err := s.setMode(hw.Sha1Text24); err != nil {
			return err
		}
		if err := s.writeWord(text); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text0); err != nil {
			return err
		}
		if err := s.writeWord(0); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text8); err != nil {
			return err
		}
		if err := s.writeWord(0); err != nil {
			return err
		}
	case 2:
		text |= uint32(bstatus[0])<<8 | uint32(bstatus[1])
		if err := s.setMode(hw.Sha1Text32); err != nil {
			return err
		}
		if err := s.writeWord(text); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text0); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if err := s.writeWord(0); err != nil {
				return err
			}
		}
	case 3:
		text |= uint32(bstatus[0])
		if err := s.setMode(hw.Sha1Text32); err != nil {
			return err
		}
		if err := s.writeWord(text); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text8); err != nil {
			return err
		}
		if err := s.writeWord(uint32(bstatus[1])); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text0); err != nil {
			return err
		}
		if err := s.writeWord(0); err != nil {
			return err
		}
		if err := s.setMode(hw.Sha1Text24); err != nil {
			return err
		}
		if err := s.writeWord(0); err != nil {
			return err
		}
	default:
		return ErrLeftovers
	}

	// Zero-pad the final 64-byte block up to its last word, which carries
	// the total message bit length: the KSV list plus two Bstatus bytes
	// plus eight M0 bytes.
	if err := s.setMode(hw.Sha1Text32); err != nil {
		return err
	}
	for s.idx%64 < 60 {
		if err := s.writeWord(0); err != nil {
			return err
		}
	}
	if err := s.writeWord(uint32((len(list)*ksv.Len + 10) * 8)); err != nil {
		return err
	}

	if err := s.setMode(hw.Sha1CompleteHash); err != nil {
		return err
	}
	if err := hw.Poll(c.port, hw.RepCtl, hw.Sha1Complete, hw.Sha1Complete, shaCompleteTimeout); err != nil {
		return fmt.Errorf("SHA engine never completed: %w", err)
	}
	v, err := c.port.Read(hw.RepCtl)
	if err != nil {
		return err
	}
	if v&hw.Sha1VMatch == 0 {
		return ErrShaMismatch
	}
	return nil
}
