// Package shim defines the per-transport capability set the HDCP session
// controller drives, and its two conforming implementations: HDMI over a
// DDC (I²C) channel and DisplayPort over the DPCD (AUX) address space.
// The controller is generic over Shim and never branches on transport
// identity.
package shim

import (
	"errors"

	"github.com/backkem/hdcp/pkg/ksv"
)

// Shim is the transport-specific half of HDCP 1.4 authentication. Every
// method reads from or writes to the downstream receiver; failures
// propagate unchanged as the current phase's failure.
type Shim interface {
	// WriteAnAksv hands the captured An and the source's Aksv to the
	// receiver, starting its R0' computation.
	WriteAnAksv(an [8]byte, aksv ksv.KSV) error

	// ReadBksv reads the receiver's KSV.
	ReadBksv() (ksv.KSV, error)

	// ReadBstatus reads the 2-byte topology status: device count and
	// max-devices bit in the first byte, depth and max-cascade bit in
	// the second.
	ReadBstatus() ([2]byte, error)

	// ReadKsvFifo reads count downstream KSVs from the repeater's FIFO.
	ReadKsvFifo(count int) ([]ksv.KSV, error)

	// ReadVPrimePart reads 32-bit word i of the repeater's V' digest.
	ReadVPrimePart(i int) (uint32, error)

	// ReadRiPrime reads the receiver's current link-check value.
	ReadRiPrime() ([2]byte, error)

	// ReadKsvReady reports whether the repeater's KSV FIFO is ready.
	ReadKsvReady() (bool, error)

	// RepeaterPresent reports whether the receiver is a repeater.
	RepeaterPresent() (bool, error)

	// ToggleSignalling enables or disables HDCP signalling on the link.
	ToggleSignalling(enable bool) error

	// CheckLink verifies link integrity; a non-nil error means the link
	// lost synchronization and must be re-authenticated.
	CheckLink() error
}

// CapabilityProber is the optional pre-authentication capability probe.
// DisplayPort requires it before An is written; HDMI transports do not
// implement it.
type CapabilityProber interface {
	HdcpCapable() (bool, error)
}

// ErrLinkFailed is returned by CheckLink when the receiver reports or
// exhibits a broken encrypted link.
var ErrLinkFailed = errors.New("shim: link integrity check failed")
