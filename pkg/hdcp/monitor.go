package hdcp

import (
	"sync"
	"time"
)

// linkMonitor drives the periodic Part 3 integrity check. It holds no
// session state of its own; each tick re-reads the connector's state
// under the lock, so a monitor racing a Disable sees Undesired and exits.
type linkMonitor struct {
	c      *Connector
	period time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newLinkMonitor(c *Connector, period time.Duration) *linkMonitor {
	m := &linkMonitor{
		c:      c,
		period: period,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *linkMonitor) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if !m.c.monitorTick() {
				return
			}
		}
	}
}

// stop cancels the monitor and waits for any in-flight tick to finish.
func (m *linkMonitor) stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

// monitorTick runs one link check. The return value is false when the
// monitor should exit because protection is no longer wanted.
func (c *Connector) monitorTick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Undesired:
		return false
	case Desired:
		// A previous tick demoted the session; try to bring it back.
		if err := c.enableLocked(); err != nil && c.log != nil {
			c.log.Debugf("re-enable failed: %v", err)
		}
		return true
	default:
		if err := c.checkLinkLocked(); err != nil && c.log != nil {
			c.log.Warnf("link check failed: %v", err)
		}
		return c.state != Undesired
	}
}
