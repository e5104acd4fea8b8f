package shim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/ksv"
)

// HDCP 1.4 DPCD addresses.
const (
	dpcdBksv    = 0x68000
	dpcdRiPrime = 0x68005
	dpcdAksv    = 0x68007
	dpcdAn      = 0x6800C
	dpcdVPrime  = 0x68014
	dpcdBcaps   = 0x68028
	dpcdBstatus = 0x68029
	dpcdBinfo   = 0x6802A
	dpcdKsvFifo = 0x6802C
)

// Bcaps bits.
const (
	dpBcapsHdcpCapable = 1 << 0
	dpBcapsRepeater    = 1 << 1
)

// Bstatus bits.
const (
	dpBstatusReady       = 1 << 0
	dpBstatusR0Available = 1 << 1
	dpBstatusLinkFailure = 1 << 2
	dpBstatusReauthReq   = 1 << 3
)

// ksvFifoChunk is the DP KSV FIFO read granularity: 3 KSVs per AUX
// transaction.
const ksvFifoChunk = 3 * ksv.Len

// AUX is the DisplayPort AUX channel, addressing the DPCD space.
type AUX interface {
	Read(addr uint32, buf []byte) error
	Write(addr uint32, buf []byte) error
}

// DPConfig configures the DisplayPort shim.
type DPConfig struct {
	// Aux is the AUX channel to the receiver. Required.
	Aux AUX

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DP drives HDCP 1.4 authentication traffic over the DisplayPort AUX
// channel. DP mandates the capability probe before An is written, carries
// topology in Binfo rather than Bstatus, and needs no signalling toggle
// because HDCP signalling travels in-band.
type DP struct {
	aux AUX
	log logging.LeveledLogger
}

var (
	_ Shim             = (*DP)(nil)
	_ CapabilityProber = (*DP)(nil)
)

// NewDP creates the DisplayPort transport shim.
func NewDP(config DPConfig) (*DP, error) {
	if config.Aux == nil {
		return nil, errors.New("shim: AUX channel is required")
	}

	d := &DP{aux: config.Aux}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("hdcp-dp")
	}
	return d, nil
}

// HdcpCapable implements CapabilityProber.
func (d *DP) HdcpCapable() (bool, error) {
	bcaps, err := d.readBcaps()
	if err != nil {
		return false, err
	}
	return bcaps&dpBcapsHdcpCapable != 0, nil
}

// WriteAnAksv implements Shim.
func (d *DP) WriteAnAksv(an [8]byte, aksv ksv.KSV) error {
	if err := d.aux.Write(dpcdAn, an[:]); err != nil {
		return fmt.Errorf("writing An: %w", err)
	}
	if err := d.aux.Write(dpcdAksv, aksv[:]); err != nil {
		return fmt.Errorf("writing Aksv: %w", err)
	}
	return nil
}

// ReadBksv implements Shim.
func (d *DP) ReadBksv() (ksv.KSV, error) {
	var k ksv.KSV
	if err := d.aux.Read(dpcdBksv, k[:]); err != nil {
		return ksv.KSV{}, fmt.Errorf("reading Bksv: %w", err)
	}
	return k, nil
}

// ReadBstatus implements Shim. DP carries device count and depth in
// Binfo; the layout matches the HDMI Bstatus bytes.
func (d *DP) ReadBstatus() ([2]byte, error) {
	var b [2]byte
	if err := d.aux.Read(dpcdBinfo, b[:]); err != nil {
		return [2]byte{}, fmt.Errorf("reading Binfo: %w", err)
	}
	return b, nil
}

// ReadKsvFifo implements Shim, draining the FIFO in 15-byte chunks as the
// DP HDCP spec requires.
func (d *DP) ReadKsvFifo(count int) ([]ksv.KSV, error) {
	buf := make([]byte, count*ksv.Len)
	for off := 0; off < len(buf); off += ksvFifoChunk {
		end := off + ksvFifoChunk
		if end > len(buf) {
			end = len(buf)
		}
		if err := d.aux.Read(dpcdKsvFifo, buf[off:end]); err != nil {
			return nil, fmt.Errorf("reading KSV FIFO: %w", err)
		}
	}
	return ksv.ParseList(buf)
}

// ReadVPrimePart implements Shim.
func (d *DP) ReadVPrimePart(i int) (uint32, error) {
	var buf [4]byte
	if err := d.aux.Read(dpcdVPrime+uint32(i)*4, buf[:]); err != nil {
		return 0, fmt.Errorf("reading V'H%d: %w", i, err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadRiPrime implements Shim.
func (d *DP) ReadRiPrime() ([2]byte, error) {
	var ri [2]byte
	if err := d.aux.Read(dpcdRiPrime, ri[:]); err != nil {
		return [2]byte{}, fmt.Errorf("reading R0': %w", err)
	}
	return ri, nil
}

// ReadKsvReady implements Shim.
func (d *DP) ReadKsvReady() (bool, error) {
	bstatus, err := d.readBstatus()
	if err != nil {
		return false, err
	}
	return bstatus&dpBstatusReady != 0, nil
}

// RepeaterPresent implements Shim.
func (d *DP) RepeaterPresent() (bool, error) {
	bcaps, err := d.readBcaps()
	if err != nil {
		return false, err
	}
	return bcaps&dpBcapsRepeater != 0, nil
}

// ToggleSignalling implements Shim. HDCP signalling is carried in the DP
// main stream; there is nothing to toggle.
func (d *DP) ToggleSignalling(enable bool) error {
	return nil
}

// CheckLink implements Shim, reading the receiver's link-integrity bits.
func (d *DP) CheckLink() error {
	bstatus, err := d.readBstatus()
	if err != nil {
		return err
	}
	if bstatus&(dpBstatusLinkFailure|dpBstatusReauthReq) != 0 {
		if d.log != nil {
			d.log.Warnf("receiver reports link failure, Bstatus %#x", bstatus)
		}
		return ErrLinkFailed
	}
	return nil
}

func (d *DP) readBcaps() (byte, error) {
	var buf [1]byte
	if err := d.aux.Read(dpcdBcaps, buf[:]); err != nil {
		return 0, fmt.Errorf("reading Bcaps: %w", err)
	}
	return buf[0], nil
}

func (d *DP) readBstatus() (byte, error) {
	var buf [1]byte
	if err := d.aux.Read(dpcdBstatus, buf[:]); err != nil {
		return 0, fmt.Errorf("reading Bstatus: %w", err)
	}
	return buf[0], nil
}
