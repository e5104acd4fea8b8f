package hdcp

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/hw"
	"github.com/backkem/hdcp/pkg/ksv"
	"github.com/backkem/hdcp/pkg/shim"
)

// RandomSource supplies the entropy halves seeding An generation. It can
// be swapped for a deterministic source in tests.
type RandomSource interface {
	Uint32() uint32
}

type cryptoRandom struct{}

func (cryptoRandom) Uint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// DefaultRandomSource draws from crypto/rand.
var DefaultRandomSource RandomSource = cryptoRandom{}

// Config collects the dependencies and tunables of a Connector.
type Config struct {
	// Port is the connector's HDCP hardware block. Required.
	Port hw.Port

	// DDI is the display interface the connector is attached to. It
	// selects the repeater-present and M0 bits in RepCtl.
	DDI hw.DDI

	// Shim is the transport half of authentication. A connector without
	// one (e.g. a disconnected port) rejects Enable with ErrNoShim.
	Shim shim.Shim

	// Aksv is the source's public key selection vector.
	Aksv ksv.KSV

	// KeyLoadable reports whether the power domain needed for key
	// loading is up. Nil means always loadable.
	KeyLoadable func() bool

	// OnStateChange is invoked from a dedicated goroutine whenever the
	// protection state changes. It must not call back into the
	// Connector's blocking operations.
	OnStateChange func(ProtectionState)

	// Random seeds An generation. Defaults to DefaultRandomSource.
	Random RandomSource

	// R0SettleTime overrides the wait between writing An/Aksv and the
	// first Ri' comparison. The protocol floor is DefaultR0SettleTime;
	// shorten it only against simulated hardware.
	R0SettleTime time.Duration

	// CheckPeriod overrides the link-monitor interval.
	CheckPeriod time.Duration

	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.Random == nil {
		c.Random = DefaultRandomSource
	}
	if c.R0SettleTime == 0 {
		c.R0SettleTime = DefaultR0SettleTime
	}
	if c.CheckPeriod == 0 {
		c.CheckPeriod = DefaultCheckPeriod
	}
}
