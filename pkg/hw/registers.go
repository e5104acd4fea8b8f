// Package hw models the per-port HDCP hardware interface: the named
// registers and status bits of the display engine's HDCP block, a
// bounded-timeout poll primitive, and an in-memory simulated port for
// testing against.
package hw

import "errors"

// Register names one 32-bit register of a port's HDCP block. Each Port
// instance addresses a single connector, so registers are logical names
// rather than bus offsets.
type Register int

const (
	// KeyConf triggers key-load operations.
	KeyConf Register = iota
	// KeyStatus reports key-load and fuse state.
	KeyStatus
	// AnInit receives the two random halves seeding An generation.
	AnInit
	// AnLo and AnHi expose the captured 64-bit An value.
	AnLo
	AnHi
	// Conf carries the authentication control triggers.
	Conf
	// Status reports the authentication state machine.
	Status
	// BksvLo and BksvHi receive the receiver's 40-bit Bksv.
	BksvLo
	BksvHi
	// RPrime receives the Ri' value read from the receiver.
	RPrime
	// RepCtl is the repeater/SHA-1 control and status register.
	RepCtl
	// ShaText is the SHA-1 accumulator input, written 4 bytes at a time.
	ShaText
	// ShaVPrime0..ShaVPrime4 hold the receiver's V' digest for the
	// hardware compare.
	ShaVPrime0
	ShaVPrime1
	ShaVPrime2
	ShaVPrime3
	ShaVPrime4
)

// VPrimeParts is the number of 32-bit words in the V' digest.
const VPrimeParts = 5

// ShaVPrime returns the register holding word i of the V' digest.
func ShaVPrime(i int) Register {
	return ShaVPrime0 + Register(i)
}

func (r Register) String() string {
	switch r {
	case KeyConf:
		return "KEY_CONF"
	case KeyStatus:
		return "KEY_STATUS"
	case AnInit:
		return "AN_INIT"
	case AnLo:
		return "AN_LO"
	case AnHi:
		return "AN_HI"
	case Conf:
		return "CONF"
	case Status:
		return "STATUS"
	case BksvLo:
		return "BKSV_LO"
	case BksvHi:
		return "BKSV_HI"
	case RPrime:
		return "RPRIME"
	case RepCtl:
		return "REP_CTL"
	case ShaText:
		return "SHA_TEXT"
	case ShaVPrime0, ShaVPrime1, ShaVPrime2, ShaVPrime3, ShaVPrime4:
		return "SHA_V_PRIME"
	default:
		return "UNKNOWN"
	}
}

// KeyConf trigger bits.
const (
	AksvSendTrigger  = 1 << 31
	ClearKeysTrigger = 1 << 30
	KeyLoadTrigger   = 1 << 8
)

// KeyStatus bits.
const (
	FuseInProgress = 1 << 7
	FuseError      = 1 << 6
	FuseDone       = 1 << 5
	KeyLoadStatus  = 1 << 1
	KeyLoadDone    = 1 << 0
)

// Conf trigger values.
const (
	ConfCaptureAn  = 1 << 0
	ConfAuthAndEnc = 1<<1 | 1<<0
)

// Status bits.
const (
	StatusAuth    = 1 << 21
	StatusEnc     = 1 << 20
	StatusRiMatch = 1 << 19
	StatusR0Ready = 1 << 18
	StatusAnReady = 1 << 17
	StatusCipher  = 1 << 16
)

// RepCtl status bits.
const (
	Sha1Busy     = 1 << 16
	Sha1Ready    = 1 << 17
	Sha1Complete = 1 << 18
	Sha1VMatch   = 1 << 19
)

// RepCtl operation codes, held in bits 3:1. The text codes tell the
// hardware how many of the next ShaText word's 32 bits are message text;
// the remainder is M0 or padding supplied by the hardware.
const (
	Sha1Text32       = 1 << 1
	Sha1CompleteHash = 2 << 1
	Sha1Text24       = 4 << 1
	Sha1Text16       = 5 << 1
	Sha1Text8        = 6 << 1
	Sha1Text0        = 7 << 1

	Sha1OpMask = 7 << 1
)

// Per-DDI repeater-present and M0-select bits for RepCtl.
const (
	DDIBRepPresent = 1 << 30
	DDIARepPresent = 1 << 29
	DDICRepPresent = 1 << 28
	DDIDRepPresent = 1 << 27
	DDIERepPresent = 1 << 25

	DDIBSha1M0 = 1 << 20
	DDIASha1M0 = 2 << 20
	DDICSha1M0 = 3 << 20
	DDIDSha1M0 = 4 << 20
	DDIESha1M0 = 5 << 20
)

// DDI identifies the digital display interface a connector is attached to.
type DDI int

const (
	DDIA DDI = iota
	DDIB
	DDIC
	DDID
	DDIE
)

// ErrUnknownDDI is returned for DDIs without HDCP repeater support.
var ErrUnknownDDI = errors.New("hw: unknown DDI")

// RepeaterControl returns the RepCtl repeater-present and M0-select bits
// for the given DDI.
func RepeaterControl(d DDI) (uint32, error) {
	switch d {
	case DDIA:
		return DDIARepPresent | DDIASha1M0, nil
	case DDIB:
		return DDIBRepPresent | DDIBSha1M0, nil
	case DDIC:
		return DDICRepPresent | DDICSha1M0, nil
	case DDID:
		return DDIDRepPresent | DDIDSha1M0, nil
	case DDIE:
		return DDIERepPresent | DDIESha1M0, nil
	default:
		return 0, ErrUnknownDDI
	}
}
