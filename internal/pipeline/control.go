package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is a control state of source or output.
type State uint8

const (
	// StateRunning element is invoked.
	StateRunning State = iota
	// StatePaused element is not invoked until resumed.
	StatePaused
	// StateStopped element is never invoked again.
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Trigger configures when [Pipeline.Run] polls a source.
type Trigger struct {
	// Interval between polls.
	//
	// Zero means interval of Run.
	Interval time.Duration
	// FlushInterval is a period of sending accumulated points to
	// transforms and outputs. It is rounded down to a multiple of Interval.
	//
	// Zero means every poll.
	FlushInterval time.Duration
}

// Validate checks trigger durations.
func (t Trigger) Validate() error {
	if t.Interval < 0 {
		return errors.Errorf("negative interval %s", t.Interval)
	}
	if t.FlushInterval < 0 {
		return errors.Errorf("negative flush interval %s", t.FlushInterval)
	}
	return nil
}

func (t Trigger) withDefault(interval time.Duration) Trigger {
	if t.Interval == 0 {
		t.Interval = interval
	}
	return t
}

// flushRounds returns number of polls between flushes.
func (t Trigger) flushRounds() int {
	if t.Interval <= 0 || t.FlushInterval <= t.Interval {
		return 1
	}
	return int(t.FlushInterval / t.Interval)
}

// control is a state of element that can be watched for changes.
type control struct {
	mux     sync.Mutex
	state   State
	trigger Trigger
	changed chan struct{}
}

func newControl(tr Trigger) *control {
	return &control{
		trigger: tr,
		changed: make(chan struct{}),
	}
}

// watch returns current state, trigger and channel that is closed on
// next change.
func (c *control) watch() (State, Trigger, <-chan struct{}) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state, c.trigger, c.changed
}

// State returns current state.
func (c *control) State() State {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}

// notify must be called with mux held.
func (c *control) notify() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *control) setState(s State) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.state == StateStopped {
		return ErrStopped
	}
	if c.state == s {
		return nil
	}
	c.state = s
	c.notify()
	return nil
}

func (c *control) setTrigger(tr Trigger) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.state == StateStopped {
		return ErrStopped
	}
	c.trigger = tr
	c.notify()
	return nil
}

func (c *control) stop() {
	_ = c.setState(StateStopped)
}

// ErrStopped is returned when controlling a stopped element.
var ErrStopped = errors.New("element is stopped")

// ErrUnknownElement is returned when element is not found in pipeline.
var ErrUnknownElement = errors.New("unknown element")

func (p *Pipeline) controlled(id uuid.UUID) (*element, error) {
	for _, list := range [][]*element{p.sources, p.transforms, p.outputs} {
		for _, e := range list {
			if e.info.ID != id {
				continue
			}
			if e.ctl == nil {
				return nil, errors.Errorf("%s %s/%s cannot be controlled", e.info.Kind, e.info.Plugin, e.info.Name)
			}
			return e, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownElement, "element %s", id)
}

func (p *Pipeline) setState(id uuid.UUID, s State) error {
	e, err := p.controlled(id)
	if err != nil {
		return err
	}
	if err := e.ctl.setState(s); err != nil {
		return errors.Wrapf(err, "%s %s/%s", e.info.Kind, e.info.Plugin, e.info.Name)
	}
	e.lg.Debug("State changed", zap.Stringer("state", s))
	return nil
}

// Pause suspends source or output with given id.
//
// Paused source is not polled. Paused output is not written to, and
// when run by [Pipeline.Run] it loses the oldest pending batches once
// its queue is full.
func (p *Pipeline) Pause(id uuid.UUID) error {
	return p.setState(id, StatePaused)
}

// Resume resumes paused source or output with given id.
func (p *Pipeline) Resume(id uuid.UUID) error {
	return p.setState(id, StateRunning)
}

// Stop stops source or output with given id permanently.
//
// Stopped element is not invoked again, but it is dropped only on
// [Pipeline.Close].
func (p *Pipeline) Stop(id uuid.UUID) error {
	return p.setState(id, StateStopped)
}

// State returns control state of source or output with given id.
func (p *Pipeline) State(id uuid.UUID) (State, error) {
	e, err := p.controlled(id)
	if err != nil {
		return 0, err
	}
	return e.ctl.State(), nil
}

// SetTrigger changes trigger of source with given id.
//
// The change is applied by running [Pipeline.Run] without restart.
func (p *Pipeline) SetTrigger(id uuid.UUID, tr Trigger) error {
	if err := tr.Validate(); err != nil {
		return errors.Wrap(err, "invalid trigger")
	}
	e, err := p.controlled(id)
	if err != nil {
		return err
	}
	if e.info.Kind != KindSource {
		return errors.Errorf("%s %s/%s has no trigger", e.info.Kind, e.info.Plugin, e.info.Name)
	}
	if err := e.ctl.setTrigger(tr); err != nil {
		return errors.Wrapf(err, "%s %s/%s", e.info.Kind, e.info.Plugin, e.info.Name)
	}
	return nil
}
