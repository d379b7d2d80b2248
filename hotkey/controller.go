package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrBusy is returned by Reload while a recording or transcription is in
// progress; the active spec is left untouched.
var ErrBusy = errors.New("hotkey busy: dictation in progress")

// Handler receives the debounced press/release edges. Implementations
// may block; the controller runs them on its own worker, never on the OS
// event-delivery thread.
type Handler interface {
	OnActivate()
	OnDeactivate()
}

// StateQuerier lets the controller ask its owner whether a reload is
// currently safe. Typically implemented by the dictation orchestrator.
type StateQuerier interface {
	Busy() bool
}

// keyEvent is a translated OS key transition.
type keyEvent struct {
	key  string
	down bool
}

// eventSource abstracts the global OS key hook so the controller can be
// exercised in tests with a synthetic stream.
type eventSource interface {
	// Start begins delivery. The returned channel is closed by Stop.
	Start() (<-chan keyEvent, error)
	Stop()
}

// Controller owns the tracker for the active Spec and dispatches its
// edges to a Handler with single-flight guards: a burst of matching OS
// events produces at most one in-flight OnActivate and one in-flight
// OnDeactivate. Dispatch uses a bounded one-slot-per-direction queue
// drained by a single worker, so key-repeat storms cannot pile up
// goroutines.
type Controller struct {
	mu      sync.Mutex
	tracker *Tracker
	handler Handler
	state   StateQuerier
	source  eventSource

	activationInFlight   bool
	deactivationInFlight bool

	tasks   chan func()
	stop    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// NewController creates a controller for spec dispatching to handler.
func NewController(spec Spec, handler Handler) *Controller {
	c := &Controller{
		handler: handler,
		source:  &gohookSource{},
		// one slot per direction; the in-flight flags guarantee no
		// more than two outstanding tasks
		tasks: make(chan func(), 2),
	}
	c.tracker = NewTracker(spec, c.dispatchActivate, c.dispatchDeactivate)
	return c
}

// SetStateQuerier installs the collaborator consulted by Reload.
func (c *Controller) SetStateQuerier(q StateQuerier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = q
}

// Spec returns the active combination.
func (c *Controller) Spec() Spec {
	return c.tracker.Spec()
}

// Start begins listening for global key events.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("hotkey controller already started")
	}
	c.running = true
	c.stop = make(chan struct{})
	c.mu.Unlock()

	events, err := c.source.Start()
	if err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("start key listener: %w", err)
	}

	c.wg.Add(2)
	go c.runWorker()
	go c.runReader(events)

	slog.Info("hotkey listener started", "spec", c.tracker.Spec().String())
	return nil
}

// Stop halts the OS listener and the dispatch worker. Safe to call when
// not running.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	c.mu.Unlock()

	c.source.Stop()
	c.wg.Wait()
	slog.Info("hotkey listener stopped")
}

// Reload atomically swaps the active spec, resetting all pressed/armed/
// in-flight state, then restarts the OS listener. It fails with ErrBusy
// while the orchestrator reports a non-idle state so an in-progress
// recording can never observe a spec change.
func (c *Controller) Reload(spec Spec) error {
	c.mu.Lock()
	if c.state != nil && c.state.Busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.tracker.Reset(spec)
	c.activationInFlight = false
	c.deactivationInFlight = false
	wasRunning := c.running
	c.mu.Unlock()

	if wasRunning {
		c.Stop()
		if err := c.Start(); err != nil {
			return err
		}
	}
	slog.Info("hotkey reloaded", "spec", spec.String())
	return nil
}

func (c *Controller) runReader(events <-chan keyEvent) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.down {
				c.tracker.KeyDown(ev.key)
			} else {
				c.tracker.KeyUp(ev.key)
			}
		}
	}
}

func (c *Controller) runWorker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case task := <-c.tasks:
			task()
		}
	}
}

func (c *Controller) dispatchActivate() {
	c.mu.Lock()
	if c.activationInFlight {
		c.mu.Unlock()
		return
	}
	c.activationInFlight = true
	c.mu.Unlock()

	c.submit(func() {
		defer c.clearInFlight(&c.activationInFlight)
		c.handler.OnActivate()
	}, &c.activationInFlight)
}

func (c *Controller) dispatchDeactivate() {
	c.mu.Lock()
	if c.deactivationInFlight {
		c.mu.Unlock()
		return
	}
	c.deactivationInFlight = true
	c.mu.Unlock()

	c.submit(func() {
		defer c.clearInFlight(&c.deactivationInFlight)
		c.handler.OnDeactivate()
	}, &c.deactivationInFlight)
}

// submit enqueues a task for the worker. The flags make overflow
// impossible in practice; if the queue is somehow full the edge is
// dropped and its flag cleared rather than blocking the event thread.
func (c *Controller) submit(task func(), flag *bool) {
	select {
	case c.tasks <- task:
	default:
		slog.Warn("hotkey dispatch queue full, dropping edge")
		c.clearInFlight(flag)
	}
}

func (c *Controller) clearInFlight(flag *bool) {
	c.mu.Lock()
	*flag = false
	c.mu.Unlock()
}
