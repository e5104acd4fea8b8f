package shim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/hw"
	"github.com/backkem/hdcp/pkg/ksv"
)

// HDCP 1.4 DDC (I²C slave 0x3A) register offsets.
const (
	ddcBksv    = 0x00
	ddcRi      = 0x08
	ddcAksv    = 0x10
	ddcAn      = 0x18
	ddcVPrime  = 0x20
	ddcBcaps   = 0x40
	ddcBstatus = 0x41
	ddcKsvFifo = 0x43
)

// Bcaps bits.
const (
	bcapsKsvFifoReady = 1 << 5
	bcapsRepeater     = 1 << 6
)

// riMatchTimeout bounds the hardware Ri-match poll during link checks.
const riMatchTimeout = time.Millisecond

// DDC is the HDMI display data channel used for HDCP register traffic.
type DDC interface {
	Read(offset uint8, buf []byte) error
	Write(offset uint8, buf []byte) error
}

// HDMIConfig configures the HDMI shim.
type HDMIConfig struct {
	// Bus is the DDC channel to the receiver. Required.
	Bus DDC

	// Port is the connector's HDCP hardware block, used to confirm Ri
	// matches during link checks. Required.
	Port hw.Port

	// ToggleSignalling switches HDCP signalling on the TMDS link.
	// Optional; signalling is left untouched when absent.
	ToggleSignalling func(enable bool) error

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// HDMI drives HDCP 1.4 authentication traffic over an HDMI DDC channel.
// HDMI receivers carry no capability probe; a valid Bksv is the only
// indication of HDCP support.
type HDMI struct {
	bus    DDC
	port   hw.Port
	toggle func(enable bool) error
	log    logging.LeveledLogger
}

var _ Shim = (*HDMI)(nil)

// NewHDMI creates the HDMI transport shim.
func NewHDMI(config HDMIConfig) (*HDMI, error) {
	if config.Bus == nil {
		return nil, errors.New("shim: DDC bus is required")
	}
	if config.Port == nil {
		return nil, errors.New("shim: hardware port is required")
	}

	h := &HDMI{
		bus:    config.Bus,
		port:   config.Port,
		toggle: config.ToggleSignalling,
	}
	if config.LoggerFactory != nil {
		h.log = config.LoggerFactory.NewLogger("hdcp-hdmi")
	}
	return h, nil
}

// WriteAnAksv implements Shim.
func (h *HDMI) WriteAnAksv(an [8]byte, aksv ksv.KSV) error {
	if err := h.bus.Write(ddcAn, an[:]); err != nil {
		return fmt.Errorf("writing An: %w", err)
	}
	if err := h.bus.Write(ddcAksv, aksv[:]); err != nil {
		return fmt.Errorf("writing Aksv: %w", err)
	}
	return nil
}

// ReadBksv implements Shim.
func (h *HDMI) ReadBksv() (ksv.KSV, error) {
	var k ksv.KSV
	if err := h.bus.Read(ddcBksv, k[:]); err != nil {
		return ksv.KSV{}, fmt.Errorf("reading Bksv: %w", err)
	}
	return k, nil
}

// ReadBstatus implements Shim.
func (h *HDMI) ReadBstatus() ([2]byte, error) {
	var b [2]byte
	if err := h.bus.Read(ddcBstatus, b[:]); err != nil {
		return [2]byte{}, fmt.Errorf("reading Bstatus: %w", err)
	}
	return b, nil
}

// ReadKsvFifo implements Shim. HDMI exposes the whole FIFO at a single
// offset; one bus transaction drains it.
func (h *HDMI) ReadKsvFifo(count int) ([]ksv.KSV, error) {
	buf := make([]byte, count*ksv.Len)
	if err := h.bus.Read(ddcKsvFifo, buf); err != nil {
		return nil, fmt.Errorf("reading KSV FIFO: %w", err)
	}
	return ksv.ParseList(buf)
}

// ReadVPrimePart implements Shim.
func (h *HDMI) ReadVPrimePart(i int) (uint32, error) {
	var buf [4]byte
	if err := h.bus.Read(ddcVPrime+uint8(i)*4, buf[:]); err != nil {
		return 0, fmt.Errorf("reading V'H%d: %w", i, err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadRiPrime implements Shim.
func (h *HDMI) ReadRiPrime() ([2]byte, error) {
	var ri [2]byte
	if err := h.bus.Read(ddcRi, ri[:]); err != nil {
		return [2]byte{}, fmt.Errorf("reading Ri': %w", err)
	}
	return ri, nil
}

// ReadKsvReady implements Shim.
func (h *HDMI) ReadKsvReady() (bool, error) {
	bcaps, err := h.readBcaps()
	if err != nil {
		return false, err
	}
	return bcaps&bcapsKsvFifoReady != 0, nil
}

// RepeaterPresent implements Shim.
func (h *HDMI) RepeaterPresent() (bool, error) {
	bcaps, err := h.readBcaps()
	if err != nil {
		return false, err
	}
	return bcaps&bcapsRepeater != 0, nil
}

// ToggleSignalling implements Shim.
func (h *HDMI) ToggleSignalling(enable bool) error {
	if h.toggle == nil {
		return nil
	}
	return h.toggle(enable)
}

// CheckLink implements Shim. HDMI has no receiver-side link status, so the
// check re-reads Ri' and asks the hardware whether it still matches the
// cipher state.
func (h *HDMI) CheckLink() error {
	ri, err := h.ReadRiPrime()
	if err != nil {
		return err
	}
	if err := h.port.Write(hw.RPrime, uint32(binary.LittleEndian.Uint16(ri[:]))); err != nil {
		return err
	}

	want := uint32(hw.StatusRiMatch | hw.StatusEnc)
	if err := hw.Poll(h.port, hw.Status, want, want, riMatchTimeout); err != nil {
		if h.log != nil {
			h.log.Warnf("Ri' mismatch on link check: %v", err)
		}
		return ErrLinkFailed
	}
	return nil
}

func (h *HDMI) readBcaps() (byte, error) {
	var buf [1]byte
	if err := h.bus.Read(ddcBcaps, buf[:]); err != nil {
		return 0, fmt.Errorf("reading Bcaps: %w", err)
	}
	return buf[0], nil
}
