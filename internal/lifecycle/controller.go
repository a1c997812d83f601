// Package lifecycle drives state-changing actions against the asynchronous
// control plane and blocks until the instance converges or a bound is hit.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
	"github.com/lobot-sh/lobot/internal/logger"
)

// Policy bounds the polling loop. Values are operational tuning, not
// semantics, so they come from config rather than constants.
type Policy struct {
	// PollInterval is the fixed delay between describe calls.
	PollInterval time.Duration
	// MaxPolls bounds the number of describe calls per wait.
	MaxPolls int
	// TransientRetries bounds consecutive transient provider failures
	// absorbed during polling before escalating to a timeout.
	TransientRetries int
}

// DefaultPolicy returns the bounds used when config doesn't override them.
func DefaultPolicy() Policy {
	return Policy{
		PollInterval:     3 * time.Second,
		MaxPolls:         40,
		TransientRetries: 3,
	}
}

// ProgressFunc is called with each observed snapshot while waiting, so the
// CLI can keep a spinner label current. May be nil.
type ProgressFunc func(cloud.Instance)

// Controller executes start/stop/resize/rename and blocks the caller until
// the instance reaches a terminal-for-the-action state or a bound elapses.
//
// One action per instance id may be in flight at a time; concurrent calls for
// the same id serialize on a per-id mutex so two resizes can't race each
// other's precondition checks.
type Controller struct {
	cp     cloud.ControlPlane
	clock  Clock
	policy Policy
	log    logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a controller. A nil clock means the system clock, and a nil
// logger discards output.
func New(cp cloud.ControlPlane, policy Policy, clock Clock, log logger.Logger) *Controller {
	if clock == nil {
		clock = RealClock()
	}
	if log == nil {
		log = logger.Noop()
	}
	if policy.PollInterval <= 0 {
		policy.PollInterval = DefaultPolicy().PollInterval
	}
	if policy.MaxPolls <= 0 {
		policy.MaxPolls = DefaultPolicy().MaxPolls
	}
	if policy.TransientRetries < 0 {
		policy.TransientRetries = DefaultPolicy().TransientRetries
	}

	return &Controller{
		cp:     cp,
		clock:  clock,
		policy: policy,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing actions on one instance id.
func (c *Controller) lockFor(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.locks[id]; !ok {
		c.locks[id] = &sync.Mutex{}
	}
	return c.locks[id]
}

// Fetch reads a fresh snapshot. Every call hits the control plane.
func (c *Controller) Fetch(ctx context.Context, id string) (cloud.Instance, error) {
	return c.cp.DescribeInstance(ctx, id)
}

// Start brings a stopped instance to running and waits until the provider
// reports both the running state and a public address. Calling it on an
// instance that is already running (or already on its way there) is a no-op
// success; the request is not re-issued.
func (c *Controller) Start(ctx context.Context, id string, progress ProgressFunc) (cloud.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := c.Fetch(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}

	switch snap.State {
	case cloud.StateRunning:
		if snap.HasAddress() {
			return snap, nil
		}
		// State already flipped but the address hasn't bound yet; just wait.
	case cloud.StatePending:
		// A start is already in flight; wait for it rather than re-issuing.
	case cloud.StateStopped:
		if err := c.cp.StartInstance(ctx, id); err != nil {
			return cloud.Instance{}, err
		}
	default:
		return cloud.Instance{}, errors.New(errors.ErrTransition,
			fmt.Sprintf("Can't start %s while it is %s", id, snap.State),
			"Only a stopped instance can be started")
	}

	return c.await(ctx, id, "running with an address", progress,
		func(s cloud.Instance) bool { return s.Ready() })
}

// Stop brings a running instance to stopped. Stopping an already stopped (or
// stopping) instance is a no-op success.
func (c *Controller) Stop(ctx context.Context, id string, progress ProgressFunc) (cloud.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := c.Fetch(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}

	switch snap.State {
	case cloud.StateStopped:
		return snap, nil
	case cloud.StateStopping:
		// Already on its way down; wait.
	case cloud.StateRunning:
		if err := c.cp.StopInstance(ctx, id); err != nil {
			return cloud.Instance{}, err
		}
	default:
		return cloud.Instance{}, errors.New(errors.ErrTransition,
			fmt.Sprintf("Can't stop %s while it is %s", id, snap.State),
			"Only a running instance can be stopped")
	}

	return c.await(ctx, id, "stopped", progress,
		func(s cloud.Instance) bool { return s.State == cloud.StateStopped })
}

// Resize changes the machine type of a stopped instance. The change is
// synchronous at the API, but the result is re-fetched and verified; a
// mismatch is reported, never silently retried. Resizing any non-stopped
// instance is rejected locally before any request is issued.
func (c *Controller) Resize(ctx context.Context, id, newType string) (cloud.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := c.Fetch(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}

	if snap.State != cloud.StateStopped {
		return cloud.Instance{}, errors.New(errors.ErrTransition,
			fmt.Sprintf("Can't resize %s while it is %s", id, snap.State),
			"Stop the instance first, then resize")
	}
	if snap.Type == newType {
		return snap, nil
	}

	if err := c.cp.ModifyInstanceType(ctx, id, newType); err != nil {
		return cloud.Instance{}, err
	}

	verified, err := c.Fetch(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}
	if verified.Type != newType {
		return cloud.Instance{}, errors.New(errors.ErrVerify,
			fmt.Sprintf("Asked for type %s but %s still reports %s", newType, id, verified.Type),
			"Re-check the instance and retry the resize if it still looks wrong")
	}

	c.log.Info("resized %s to %s", id, newType)
	return verified, nil
}

// Rename sets the display name. No state precondition: if the provider
// rejects it anyway, that surfaces as a precondition violation. The change
// is re-fetched and verified like a resize.
func (c *Controller) Rename(ctx context.Context, id, newName string) (cloud.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := c.cp.SetInstanceName(ctx, id, newName); err != nil {
		return cloud.Instance{}, err
	}

	verified, err := c.Fetch(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}
	if verified.Name != newName {
		return cloud.Instance{}, errors.New(errors.ErrVerify,
			fmt.Sprintf("Asked for name %q but %s still reports %q", newName, id, verified.Name),
			"The tag write may not have propagated; re-check in a moment")
	}

	c.log.Info("renamed %s to %q", id, newName)
	return verified, nil
}

// await polls until done(snapshot) holds, the instance leaves the legal path,
// or the policy bounds run out. Transient provider failures are absorbed up
// to the policy's consecutive-retry bound. Cancellation returns ctx.Err()
// unchanged: it stops local waiting only, and the cloud-side request keeps
// processing — callers must warn the operator about that.
func (c *Controller) await(ctx context.Context, id, goal string, progress ProgressFunc, done func(cloud.Instance) bool) (cloud.Instance, error) {
	transient := 0

	for poll := 0; poll < c.policy.MaxPolls; poll++ {
		if err := c.clock.Sleep(ctx, c.policy.PollInterval); err != nil {
			return cloud.Instance{}, err
		}

		snap, err := c.Fetch(ctx, id)
		if err != nil {
			if errors.Retryable(err) {
				transient++
				c.log.Warn("transient failure while polling %s (%d/%d): %v",
					id, transient, c.policy.TransientRetries, err)
				if transient > c.policy.TransientRetries {
					return cloud.Instance{}, errors.WrapWithCode(err, errors.ErrTimeout,
						fmt.Sprintf("Gave up polling %s after repeated provider failures", id),
						"The action may still complete. Re-check with: lobot list")
				}
				continue
			}
			// AUTH, NOTFOUND and friends abort immediately.
			return cloud.Instance{}, err
		}
		transient = 0

		c.log.Debug("%s is %s", id, snap.State)
		if progress != nil {
			progress(snap)
		}

		if done(snap) {
			return snap, nil
		}
		if snap.State.Terminal() {
			return cloud.Instance{}, errors.New(errors.ErrVerify,
				fmt.Sprintf("%s was terminated while waiting for it to become %s", id, goal),
				"Someone or something else shut it down; nothing left to wait for")
		}
	}

	return cloud.Instance{}, errors.New(errors.ErrTimeout,
		fmt.Sprintf("%s didn't become %s within %s", id, goal,
			time.Duration(c.policy.MaxPolls)*c.policy.PollInterval),
		"It may still converge. Re-check with 'lobot list'; don't re-issue the action")
}
