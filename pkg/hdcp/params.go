package hdcp

import "time"

// Retry budgets. These are compatibility numbers settled against deployed
// receivers; treat them as part of the protocol surface.
const (
	// KeyLoadTries bounds key-load attempts, clearing keys between tries.
	KeyLoadTries = 5

	// BksvTries bounds Bksv reads. Some receivers need a second read
	// before presenting a spec-conformant KSV.
	BksvTries = 2

	// RiPrimeTries bounds Ri' reads during the initial match. Receivers
	// may be slow to settle on R0'.
	RiPrimeTries = 3

	// AuthTries bounds full authentication attempts per enable, with a
	// hardware disable between attempts.
	AuthTries = 3
)

// Defaults for the configurable timings.
const (
	// DefaultR0SettleTime is the protocol-mandated minimum wait between
	// writing An/Aksv and acting on an Ri'/R0 comparison.
	DefaultR0SettleTime = 300 * time.Millisecond

	// DefaultCheckPeriod is the link-monitor interval: 128 frames at
	// 16 ms, rounded to the value deployed receivers are validated
	// against.
	DefaultCheckPeriod = 2048 * time.Millisecond
)

// Hardware poll timeouts.
const (
	keyLoadTimeout     = 500 * time.Microsecond
	anReadyTimeout     = time.Millisecond
	r0ReadyTimeout     = time.Second
	riMatchTimeout     = time.Millisecond
	encTimeout         = 20 * time.Millisecond
	disableTimeout     = 20 * time.Millisecond
	ksvReadyTimeout    = 5 * time.Second
	shaReadyTimeout    = time.Millisecond
	shaCompleteTimeout = 20 * time.Millisecond
)

// Bstatus topology fields: device count and max-devices flag in the first
// byte, cascade depth and max-cascade flag in the second.
const (
	bstatusDeviceCountMask    = 0x7f
	bstatusMaxDevsExceeded    = 0x80
	bstatusDepthMask          = 0x07
	bstatusMaxCascadeExceeded = 0x08
)
