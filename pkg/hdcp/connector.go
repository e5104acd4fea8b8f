package hdcp

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/hw"
	"github.com/backkem/hdcp/pkg/ksv"
	"github.com/backkem/hdcp/pkg/srm"
)

// notifyBuffer bounds queued state notifications. The state machine has
// three states, so a small buffer absorbs any realistic burst.
const notifyBuffer = 8

// DownstreamInfo is a snapshot of the authenticated topology.
type DownstreamInfo struct {
	BKSV        ksv.KSV
	IsRepeater  bool
	DeviceCount int
	Depth       int
	KSVList     []ksv.KSV
}

// Connector is the per-port HDCP session controller. All operations on a
// Connector are safe for concurrent use; authentication runs serialized
// under an internal lock.
type Connector struct {
	cfg  Config
	port hw.Port
	log  logging.LeveledLogger

	revocation atomic.Pointer[ksv.RevocationTable]

	mu         sync.Mutex
	state      ProtectionState
	downstream DownstreamInfo
	monitor    *linkMonitor
	closed     bool

	notifyCh   chan ProtectionState
	notifyDone chan struct{}
}

// NewConnector creates a session controller for one port. The connector
// starts Undesired with no hardware touched.
func NewConnector(config Config) (*Connector, error) {
	if config.Port == nil {
		return nil, errors.New("hdcp: config requires a hardware port")
	}
	config.applyDefaults()

	c := &Connector{
		cfg:        config,
		port:       config.Port,
		notifyCh:   make(chan ProtectionState, notifyBuffer),
		notifyDone: make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("hdcp")
	}
	go c.notifyLoop()
	return c, nil
}

// State returns the current protection state.
func (c *Connector) State() ProtectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DownstreamInfo returns a snapshot of the last authenticated topology.
// It is zero outside an authenticated session.
func (c *Connector) DownstreamInfo() DownstreamInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.downstream
	info.KSVList = append([]ksv.KSV(nil), c.downstream.KSVList...)
	return info
}

// Enable requests protection. The state moves to Desired immediately and
// authentication proceeds in the background; on success the state becomes
// Enabled and the link monitor starts. A failed attempt leaves the state
// at Desired. Enable is idempotent: on an already-enabled session it is
// a no-op, so a redundant request never drops an intact link.
func (c *Connector) Enable() error {
	if c.cfg.Shim == nil {
		return ErrNoShim
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Enabled {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(Desired)
	c.mu.Unlock()

	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.state != Desired {
			return
		}
		if err := c.enableLocked(); err != nil {
			if c.log != nil {
				c.log.Errorf("enable failed: %v", err)
			}
		}
	}()
	return nil
}

// Disable drops protection: state to Undesired, hardware torn down, the
// monitor cancelled. Software state is cleared even when the hardware
// teardown times out; the timeout is still reported.
func (c *Connector) Disable() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	var err error
	mon := c.monitor
	c.monitor = nil
	if c.state != Undesired {
		c.setStateLocked(Undesired)
		err = c.disableLocked()
	}
	c.mu.Unlock()

	if mon != nil {
		mon.stop()
	}
	return err
}

// Detach tears protection down because the display went away while
// protection was wanted. Unlike Disable the state is left at Desired, so
// a later attach can re-authenticate without new policy input.
func (c *Connector) Detach() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	var err error
	mon := c.monitor
	c.monitor = nil
	if c.state == Enabled {
		err = c.disableLocked()
		c.setStateLocked(Desired)
	}
	c.mu.Unlock()

	if mon != nil {
		mon.stop()
	}
	return err
}

// Close disables protection if needed and releases the connector's
// goroutines. The connector is unusable afterwards.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var err error
	mon := c.monitor
	c.monitor = nil
	if c.state != Undesired {
		c.setStateLocked(Undesired)
		err = c.disableLocked()
	}
	c.mu.Unlock()

	if mon != nil {
		mon.stop()
	}
	close(c.notifyCh)
	<-c.notifyDone
	return err
}

// CheckLink verifies link integrity and recovers from transient drops by
// re-authenticating in place. Unrecoverable failures demote the state to
// Desired and return the cause.
func (c *Connector) CheckLink() error {
	if c.cfg.Shim == nil {
		return ErrNoShim
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.checkLinkLocked()
}

// UpdateSRM parses blob as a System Renewability Message and replaces the
// revocation table. A blob whose ID matches the current table is skipped.
// A malformed blob is rejected and the previous table stays in force.
func (c *Connector) UpdateSRM(blobID uint64, blob []byte) error {
	if cur := c.revocation.Load(); cur != nil && cur.BlobID == blobID {
		return nil
	}
	msg, err := srm.Parse(blob)
	if err != nil {
		if c.log != nil {
			c.log.Errorf("rejecting SRM blob %d: %v", blobID, err)
		}
		return err
	}
	c.revocation.Store(ksv.NewRevocationTable(msg.Revoked, blobID))
	if c.log != nil {
		c.log.Infof("SRM blob %d installed, %d revoked KSVs", blobID, len(msg.Revoked))
	}
	return nil
}

// revoked reports whether any of the given KSVs is in the revocation
// table. A connector without an installed table revokes nothing.
func (c *Connector) revoked(list ...ksv.KSV) bool {
	return c.revocation.Load().ContainsAny(list)
}

func (c *Connector) setStateLocked(s ProtectionState) {
	if s == c.state {
		return
	}
	c.state = s
	select {
	case c.notifyCh <- s:
	default:
		if c.log != nil {
			c.log.Warnf("dropping state notification: %v", s)
		}
	}
}

func (c *Connector) notifyLoop() {
	defer close(c.notifyDone)
	for s := range c.notifyCh {
		if c.cfg.OnStateChange != nil {
			c.cfg.OnStateChange(s)
		}
	}
}

// enableLocked loads keys and runs up to AuthTries authentication
// attempts with a hardware disable between failures. Revocation failures
// are terminal: retrying with a revoked key is pointless and forbidden.
func (c *Connector) enableLocked() error {
	if c.cfg.Shim == nil {
		return ErrNoShim
	}
	if c.log != nil {
		c.log.Infof("HDCP is being enabled")
	}
	if c.cfg.KeyLoadable != nil && !c.cfg.KeyLoadable() {
		return ErrKeysNotLoadable
	}

	err := c.loadKeysLocked()
	for i := 1; err != nil && i < KeyLoadTries; i++ {
		c.clearKeysLocked()
		err = c.loadKeysLocked()
	}
	if err != nil {
		return fmt.Errorf("loading keys: %w", err)
	}

	for i := 0; i < AuthTries; i++ {
		err = c.authenticateLocked()
		if err == nil {
			c.setStateLocked(Enabled)
			c.armMonitorLocked()
			return nil
		}
		if c.log != nil {
			c.log.Debugf("authentication attempt %d failed: %v", i+1, err)
		}
		_ = c.disableLocked()
		if errors.Is(err, ErrRevoked) {
			break
		}
	}
	return fmt.Errorf("authentication failed: %w", err)
}

// disableLocked tears down the hardware session. State transitions are
// the caller's business.
func (c *Connector) disableLocked() error {
	if c.log != nil {
		c.log.Infof("HDCP is being disabled")
	}
	c.downstream = DownstreamInfo{}

	var err error
	if werr := c.port.Write(hw.Conf, 0); werr != nil {
		err = werr
	} else if perr := hw.Poll(c.port, hw.Status, ^uint32(0), 0, disableTimeout); perr != nil {
		err = fmt.Errorf("disabling encryption: %w", perr)
	}
	if c.cfg.Shim != nil {
		if terr := c.cfg.Shim.ToggleSignalling(false); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

// checkLinkLocked is the Part 3 integrity check. Nothing to do when
// protection is not established; on a failed shim check the session is
// torn down and re-authenticated in place.
func (c *Connector) checkLinkLocked() error {
	if c.state != Enabled {
		return nil
	}

	v, err := c.port.Read(hw.Status)
	if err != nil {
		return err
	}
	if v&hw.StatusEnc == 0 {
		if c.log != nil {
			c.log.Errorf("link is not encrypted, status %#x", v)
		}
		c.setStateLocked(Desired)
		return ErrLinkDown
	}

	if err := c.cfg.Shim.CheckLink(); err == nil {
		return nil
	}
	if c.log != nil {
		c.log.Infof("link failed, retrying authentication")
	}

	if err := c.disableLocked(); err != nil {
		c.setStateLocked(Desired)
		return fmt.Errorf("recovering link: %w", err)
	}
	if err := c.enableLocked(); err != nil {
		c.setStateLocked(Desired)
		return fmt.Errorf("recovering link: %w", err)
	}
	return nil
}

func (c *Connector) armMonitorLocked() {
	if c.monitor == nil {
		c.monitor = newLinkMonitor(c, c.cfg.CheckPeriod)
	}
}
