package hw

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// Port is register-level access to one connector's HDCP hardware block.
// Implementations address disjoint per-port registers, so no two sessions
// share a Port.
type Port interface {
	Read(reg Register) (uint32, error)
	Write(reg Register, val uint32) error
}

// Poll errors.
var (
	// ErrTimeout is returned when a polled register does not reach the
	// expected state within the bounded timeout.
	ErrTimeout = errors.New("hw: register poll timed out")

	errNotReady = errors.New("hw: condition not met")
)

// Poll backoff bounds. Polls start tight and back off exponentially, but
// never wait longer than pollMaxInterval between reads so long timeouts
// (the 5 s KSV FIFO wait) still observe the condition promptly.
const (
	pollInitialInterval = 10 * time.Microsecond
	pollMaxInterval     = 100 * time.Millisecond
)

func newPollBackoff(timeout time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = pollInitialInterval
	bo.MaxInterval = timeout / 8
	if bo.MaxInterval < pollInitialInterval {
		bo.MaxInterval = pollInitialInterval
	}
	if bo.MaxInterval > pollMaxInterval {
		bo.MaxInterval = pollMaxInterval
	}
	bo.MaxElapsedTime = timeout
	return bo
}

// Poll busy-polls reg with exponential backoff until (value & mask) == value
// or the timeout expires. Read errors abort the poll immediately; no poll
// blocks past its timeout.
func Poll(p Port, reg Register, mask, value uint32, timeout time.Duration) error {
	bo := newPollBackoff(timeout)

	op := func() error {
		v, err := p.Read(reg)
		if err != nil {
			return backoff.Permanent(err)
		}
		if v&mask == value {
			return nil
		}
		return errNotReady
	}

	if err := backoff.Retry(op, bo); err != nil {
		if errors.Is(err, errNotReady) {
			return fmt.Errorf("%w: %v mask %#x want %#x", ErrTimeout, reg, mask, value)
		}
		return err
	}
	return nil
}

// PollCond busy-polls an arbitrary condition with the same backoff scheme
// as Poll. cond errors abort immediately; a condition that never turns true
// yields ErrTimeout.
func PollCond(cond func() (bool, error), timeout time.Duration) error {
	bo := newPollBackoff(timeout)

	op := func() error {
		ok, err := cond()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errNotReady
		}
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		if errors.Is(err, errNotReady) {
			return ErrTimeout
		}
		return err
	}
	return nil
}
