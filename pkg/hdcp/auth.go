package hdcp

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/backkem/hdcp/pkg/hw"
	"github.com/backkem/hdcp/pkg/ksv"
	"github.com/backkem/hdcp/pkg/shim"
)

// authenticateLocked runs one full Part 1 authentication attempt,
// delegating to the repeater flow when the receiver reports downstream
// devices.
func (c *Connector) authenticateLocked() error {
	sh := c.cfg.Shim

	// Transports that can probe capability must do so before anything is
	// written to the receiver.
	if prober, ok := sh.(shim.CapabilityProber); ok {
		capable, err := prober.HdcpCapable()
		if err != nil {
			return fmt.Errorf("probing capability: %w", err)
		}
		if !capable {
			return ErrNotCapable
		}
	}

	// Seed and capture the 64-bit An session nonce.
	if err := c.port.Write(hw.AnInit, c.cfg.Random.Uint32()); err != nil {
		return err
	}
	if err := c.port.Write(hw.AnInit, c.cfg.Random.Uint32()); err != nil {
		return err
	}
	if err := c.port.Write(hw.Conf, hw.ConfCaptureAn); err != nil {
		return err
	}
	if err := hw.Poll(c.port, hw.Status, hw.StatusAnReady, hw.StatusAnReady, anReadyTimeout); err != nil {
		return fmt.Errorf("capturing An: %w", err)
	}
	lo, err := c.port.Read(hw.AnLo)
	if err != nil {
		return err
	}
	hi, err := c.port.Read(hw.AnHi)
	if err != nil {
		return err
	}
	var an [8]byte
	binary.LittleEndian.PutUint32(an[:4], lo)
	binary.LittleEndian.PutUint32(an[4:], hi)

	if err := sh.WriteAnAksv(an, c.cfg.Aksv); err != nil {
		return fmt.Errorf("writing An/Aksv: %w", err)
	}
	// The receiver computes R0' from here; the Ri' comparison below must
	// not start before the settle time has passed.
	r0Start := time.Now()

	var bksv ksv.KSV
	valid := false
	for i := 0; i < BksvTries; i++ {
		if bksv, err = sh.ReadBksv(); err != nil {
			return fmt.Errorf("reading Bksv: %w", err)
		}
		if bksv.IsValid() {
			valid = true
			break
		}
	}
	if !valid {
		return ErrNoDevice
	}

	// The revocation gate sits before any further write involving the
	// receiver's key.
	if c.revoked(bksv) {
		if c.log != nil {
			c.log.Errorf("Bksv %s is revoked", bksv)
		}
		return fmt.Errorf("%w: Bksv %s", ErrRevoked, bksv)
	}
	c.downstream.BKSV = bksv

	if err := c.port.Write(hw.BksvLo, binary.LittleEndian.Uint32(bksv[:4])); err != nil {
		return err
	}
	if err := c.port.Write(hw.BksvHi, uint32(bksv[4])); err != nil {
		return err
	}

	repeater, err := sh.RepeaterPresent()
	if err != nil {
		return fmt.Errorf("probing repeater: %w", err)
	}
	if repeater {
		ctl, err := hw.RepeaterControl(c.cfg.DDI)
		if err != nil {
			return err
		}
		if err := c.port.Write(hw.RepCtl, ctl); err != nil {
			return err
		}
		c.downstream.IsRepeater = true
	}

	if err := sh.ToggleSignalling(true); err != nil {
		return fmt.Errorf("enabling signalling: %w", err)
	}
	if err := c.port.Write(hw.Conf, hw.ConfAuthAndEnc); err != nil {
		return err
	}

	// R0 becomes available, or encryption starts straight away on ports
	// that skip the explicit R0 phase.
	err = hw.PollCond(func() (bool, error) {
		v, err := c.port.Read(hw.Status)
		return v&(hw.StatusR0Ready|hw.StatusEnc) != 0, err
	}, r0ReadyTimeout)
	if err != nil {
		return fmt.Errorf("waiting for R0: %w", err)
	}

	if remaining := c.cfg.R0SettleTime - time.Since(r0Start); remaining > 0 {
		time.Sleep(remaining)
	}

	matched := false
	for i := 0; i < RiPrimeTries; i++ {
		ri, err := sh.ReadRiPrime()
		if err != nil {
			return fmt.Errorf("reading Ri': %w", err)
		}
		if err := c.port.Write(hw.RPrime, uint32(binary.LittleEndian.Uint16(ri[:]))); err != nil {
			return err
		}
		err = hw.PollCond(func() (bool, error) {
			v, err := c.port.Read(hw.Status)
			return v&(hw.StatusRiMatch|hw.StatusEnc) != 0, err
		}, riMatchTimeout)
		if err == nil {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("Ri' never matched after %d tries: %w", RiPrimeTries, hw.ErrTimeout)
	}

	if err := hw.Poll(c.port, hw.Status, hw.StatusEnc, hw.StatusEnc, encTimeout); err != nil {
		return fmt.Errorf("waiting for encryption: %w", err)
	}

	if repeater {
		return c.authenticateDownstreamLocked()
	}
	if c.log != nil {
		c.log.Infof("HDCP is enabled, no repeater present")
	}
	return nil
}
