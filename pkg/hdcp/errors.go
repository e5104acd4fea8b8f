package hdcp

import "errors"

// Errors returned by the hdcp package.
var (
	// ErrNoShim is returned when a connector without a transport shim is
	// asked to authenticate.
	ErrNoShim = errors.New("hdcp: connector has no transport shim")

	// ErrClosed is returned for operations on a closed connector.
	ErrClosed = errors.New("hdcp: connector is closed")

	// ErrNotCapable is returned when the capability probe reports the
	// receiver does not support HDCP. Nothing is written to it.
	ErrNotCapable = errors.New("hdcp: receiver is not HDCP capable")

	// ErrNoDevice is returned when the receiver never produces a Bksv
	// with the mandated 20 ones / 20 zeros.
	ErrNoDevice = errors.New("hdcp: receiver never produced a valid Bksv")

	// ErrRevoked is returned when the Bksv or a downstream KSV appears
	// in the revocation table. Authentication must not be retried with
	// the same key, and no further hardware writes follow.
	ErrRevoked = errors.New("hdcp: KSV is revoked")

	// ErrKeysNotLoadable is returned when the hardware power domain
	// needed for key loading is down.
	ErrKeysNotLoadable = errors.New("hdcp: key load is not possible")

	// ErrKeyLoad is returned when the key-load status bit stays clear
	// after a completed load.
	ErrKeyLoad = errors.New("hdcp: key load failed")

	// ErrTopology is returned when the repeater reports more devices or
	// a deeper cascade than HDCP 1.4 allows.
	ErrTopology = errors.New("hdcp: downstream topology limit exceeded")

	// ErrZeroDevices is returned when a repeater claims no downstream
	// devices; with nothing consuming content it cannot legitimately
	// request decryption.
	ErrZeroDevices = errors.New("hdcp: repeater reports zero downstream devices")

	// ErrShaMismatch is returned when the hardware SHA-1 digest does not
	// match the V' value supplied by the repeater.
	ErrShaMismatch = errors.New("hdcp: SHA-1 digest does not match V'")

	// ErrLinkDown is returned by CheckLink when the encrypting bit is
	// found clear. The condition is recoverable; the session demotes to
	// Desired and may be re-enabled.
	ErrLinkDown = errors.New("hdcp: link dropped encryption")

	// ErrLeftovers flags an internal inconsistency in SHA-1 stream
	// packing: the leftover byte count left the 0..3 range.
	ErrLeftovers = errors.New("hdcp: invalid SHA-1 leftover count")
)
