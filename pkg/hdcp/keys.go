package hdcp

import (
	"fmt"

	"github.com/backkem/hdcp/pkg/hw"
)

// loadKeysLocked triggers one hardware key load and arms the Aksv send
// path. A load that completes with the status bit clear means the fused
// keys did not verify.
func (c *Connector) loadKeysLocked() error {
	v, err := c.port.Read(hw.KeyStatus)
	if err != nil {
		return err
	}
	if v&hw.KeyLoadDone == 0 || v&hw.KeyLoadStatus == 0 {
		if err := c.port.Write(hw.KeyConf, hw.KeyLoadTrigger); err != nil {
			return err
		}
		if err := hw.Poll(c.port, hw.KeyStatus, hw.KeyLoadDone, hw.KeyLoadDone, keyLoadTimeout); err != nil {
			return fmt.Errorf("waiting for key load: %w", err)
		}
		if v, err = c.port.Read(hw.KeyStatus); err != nil {
			return err
		}
		if v&hw.KeyLoadStatus == 0 {
			return ErrKeyLoad
		}
	}
	// Route the loaded Aksv into the authentication block.
	return c.port.Write(hw.KeyConf, hw.AksvSendTrigger)
}

// clearKeysLocked wipes the loaded keys and any stale load status before
// a retry.
func (c *Connector) clearKeysLocked() {
	_ = c.port.Write(hw.KeyConf, hw.ClearKeysTrigger)
	_ = c.port.Write(hw.KeyStatus, ^uint32(0))
}
