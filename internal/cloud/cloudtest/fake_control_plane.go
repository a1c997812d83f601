// Package cloudtest provides a scriptable in-memory control plane for tests.
package cloudtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
)

// FakeInstance is the fake's mutable record backing one instance.
type FakeInstance struct {
	Snapshot cloud.Instance

	// StateSequence, when non-empty, overrides Snapshot.State on successive
	// DescribeInstance calls, letting tests script a convergence like
	// pending, pending, running. The final entry repeats forever.
	StateSequence []cloud.State

	// AddressOnRunning is assigned to the snapshot the first time a scripted
	// sequence reaches running, simulating the provider's late address binding.
	AddressOnRunning string

	describeCount int
}

// FakeControlPlane implements cloud.ControlPlane entirely in memory.
// Tests script state sequences and inject failures; all mutations record the
// calls they received so tests can assert on side effects (or their absence).
type FakeControlPlane struct {
	mu        sync.Mutex
	instances map[string]*FakeInstance
	regions   []cloud.Region
	details   map[string]cloud.InstanceDetails

	// addressPool hands out a fresh address per start request, so two
	// start/stop/start cycles observe different addresses.
	addressPool []string

	// describeFailures injects transient errors: the next N DescribeInstance
	// calls fail with a PROVIDER error before the fake recovers.
	// describeSuccessesFirst lets that many calls through untouched first, so
	// tests can keep a precondition check healthy and fail only the polls.
	describeFailures       int
	describeSuccessesFirst int

	// Err, when set, is returned by every call. Use for AUTH failures.
	Err error

	// Call records for assertions.
	DescribeCalls int
	StartCalls    []string
	StopCalls     []string
	ModifyCalls   []ModifyCall
	NameCalls     []NameCall
}

// ModifyCall records one ModifyInstanceType invocation.
type ModifyCall struct {
	ID   string
	Type string
}

// NameCall records one SetInstanceName invocation.
type NameCall struct {
	ID   string
	Name string
}

// NewFakeControlPlane creates an empty fake.
func NewFakeControlPlane() *FakeControlPlane {
	return &FakeControlPlane{
		instances: make(map[string]*FakeInstance),
		details:   make(map[string]cloud.InstanceDetails),
	}
}

// AddInstance registers an instance snapshot.
func (f *FakeControlPlane) AddInstance(inst cloud.Instance) *FakeInstance {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := &FakeInstance{Snapshot: inst}
	f.instances[inst.ID] = rec
	return rec
}

// SetDetails registers the extended metadata returned for an id.
func (f *FakeControlPlane) SetDetails(id string, d cloud.InstanceDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[id] = d
}

// SetRegions configures the region list.
func (f *FakeControlPlane) SetRegions(regions []cloud.Region) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions = regions
}

// SetAddressPool configures the addresses handed out on successive starts.
func (f *FakeControlPlane) SetAddressPool(addrs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addressPool = addrs
}

// FailDescribes makes the next n DescribeInstance calls fail transiently.
func (f *FakeControlPlane) FailDescribes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeFailures = n
}

// FailDescribesAfter lets the next successes calls through, then fails the
// n after that transiently.
func (f *FakeControlPlane) FailDescribesAfter(successes, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeSuccessesFirst = successes
	f.describeFailures = n
}

// ScriptStates replaces the instance's scripted describe sequence.
func (f *FakeControlPlane) ScriptStates(id string, states ...cloud.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.instances[id]; ok {
		rec.StateSequence = states
		rec.describeCount = 0
	}
}

func (f *FakeControlPlane) lookup(id string) (*FakeInstance, error) {
	rec, ok := f.instances[id]
	if !ok {
		return nil, errors.New(errors.ErrNotFound,
			fmt.Sprintf("No instance with id %s", id),
			"Check the id with: lobot list")
	}
	return rec, nil
}

// DescribeInstance returns the next scripted snapshot for the id.
func (f *FakeControlPlane) DescribeInstance(ctx context.Context, id string) (cloud.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DescribeCalls++
	if f.Err != nil {
		return cloud.Instance{}, f.Err
	}
	if f.describeSuccessesFirst > 0 {
		f.describeSuccessesFirst--
	} else if f.describeFailures > 0 {
		f.describeFailures--
		return cloud.Instance{}, errors.New(errors.ErrProvider,
			"Describe call failed", "Transient fault injected by test")
	}

	rec, err := f.lookup(id)
	if err != nil {
		return cloud.Instance{}, err
	}

	if len(rec.StateSequence) > 0 {
		idx := rec.describeCount
		if idx >= len(rec.StateSequence) {
			idx = len(rec.StateSequence) - 1
		}
		rec.describeCount++
		rec.Snapshot.State = rec.StateSequence[idx]

		if rec.Snapshot.State == cloud.StateRunning && rec.AddressOnRunning != "" {
			rec.Snapshot.PublicAddress = rec.AddressOnRunning
		}
		if rec.Snapshot.State != cloud.StateRunning {
			rec.Snapshot.PublicAddress = ""
		}
	}

	return rec.Snapshot, nil
}

// DescribeInstanceDetails returns the registered details for the id.
func (f *FakeControlPlane) DescribeInstanceDetails(ctx context.Context, id string) (cloud.InstanceDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return cloud.InstanceDetails{}, f.Err
	}
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	rec, err := f.lookup(id)
	if err != nil {
		return cloud.InstanceDetails{}, err
	}
	return cloud.InstanceDetails{Instance: rec.Snapshot}, nil
}

// ListInstances returns all registered snapshots.
func (f *FakeControlPlane) ListInstances(ctx context.Context) ([]cloud.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	var out []cloud.Instance
	for _, rec := range f.instances {
		out = append(out, rec.Snapshot)
	}
	return out, nil
}

// StartInstance records the request and scripts a pending→running convergence.
func (f *FakeControlPlane) StartInstance(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	rec, err := f.lookup(id)
	if err != nil {
		return err
	}

	f.StartCalls = append(f.StartCalls, id)

	// Assign a fresh address for this start cycle.
	if len(f.addressPool) > 0 {
		rec.AddressOnRunning = f.addressPool[0]
		f.addressPool = f.addressPool[1:]
	}

	if len(rec.StateSequence) == 0 {
		rec.StateSequence = []cloud.State{cloud.StatePending, cloud.StatePending, cloud.StateRunning}
		rec.describeCount = 0
	}
	return nil
}

// StopInstance records the request and scripts a stopping→stopped convergence.
func (f *FakeControlPlane) StopInstance(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	rec, err := f.lookup(id)
	if err != nil {
		return err
	}

	f.StopCalls = append(f.StopCalls, id)
	if len(rec.StateSequence) == 0 {
		rec.StateSequence = []cloud.State{cloud.StateStopping, cloud.StateStopping, cloud.StateStopped}
		rec.describeCount = 0
	}
	return nil
}

// ModifyInstanceType records the request and applies the new type.
func (f *FakeControlPlane) ModifyInstanceType(ctx context.Context, id, instanceType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	rec, err := f.lookup(id)
	if err != nil {
		return err
	}

	f.ModifyCalls = append(f.ModifyCalls, ModifyCall{ID: id, Type: instanceType})
	if rec.Snapshot.State != cloud.StateStopped {
		return errors.New(errors.ErrTransition,
			"Provider rejected the type change",
			"The instance must be stopped first")
	}
	rec.Snapshot.Type = instanceType
	return nil
}

// SetInstanceName records the request and applies the new name tag.
func (f *FakeControlPlane) SetInstanceName(ctx context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	rec, err := f.lookup(id)
	if err != nil {
		return err
	}

	f.NameCalls = append(f.NameCalls, NameCall{ID: id, Name: name})
	rec.Snapshot.Name = name
	return nil
}

// ListRegions returns the configured region list.
func (f *FakeControlPlane) ListRegions(ctx context.Context) ([]cloud.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return f.regions, nil
}

var _ cloud.ControlPlane = (*FakeControlPlane)(nil)
