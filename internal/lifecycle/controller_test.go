package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/cloud/cloudtest"
	"github.com/lobot-sh/lobot/internal/errors"
)

func testPolicy() Policy {
	return Policy{
		PollInterval:     time.Second,
		MaxPolls:         10,
		TransientRetries: 2,
	}
}

func newController(fake *cloudtest.FakeControlPlane) (*Controller, *FakeClock) {
	clock := NewFakeClock()
	return New(fake, testPolicy(), clock, nil), clock
}

func stoppedInstance(id string) cloud.Instance {
	return cloud.Instance{
		ID:      id,
		Name:    "trainer",
		Type:    "t3.small",
		State:   cloud.StateStopped,
		KeyName: "trainer-key",
	}
}

func TestStartConvergesWithAddress(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))
	fake.SetAddressPool("10.0.0.5")

	ctrl, clock := newController(fake)

	var observed []cloud.State
	snap, err := ctrl.Start(context.Background(), "i-1", func(s cloud.Instance) {
		observed = append(observed, s.State)
	})

	require.NoError(t, err)
	assert.Equal(t, cloud.StateRunning, snap.State)
	assert.Equal(t, "10.0.0.5", snap.PublicAddress)
	assert.Equal(t, []string{"i-1"}, fake.StartCalls)
	assert.Equal(t,
		[]cloud.State{cloud.StatePending, cloud.StatePending, cloud.StateRunning},
		observed)
	// Polling slept between describes; never a wall-clock wait in tests.
	assert.Len(t, clock.Sleeps, 3)
}

func TestStartIdempotentWhenRunning(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	// Invoked twice in immediate succession: same success both times, and no
	// start request is ever issued.
	for i := 0; i < 2; i++ {
		snap, err := ctrl.Start(context.Background(), "i-1", nil)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.5", snap.PublicAddress)
	}
	assert.Empty(t, fake.StartCalls)
}

func TestStartWhilePendingWaitsWithoutReissuing(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StatePending
	rec := fake.AddInstance(inst)
	rec.StateSequence = []cloud.State{cloud.StatePending, cloud.StatePending, cloud.StateRunning}
	rec.AddressOnRunning = "10.0.0.9"

	ctrl, _ := newController(fake)

	snap, err := ctrl.Start(context.Background(), "i-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", snap.PublicAddress)
	assert.Empty(t, fake.StartCalls, "start must not be re-issued while pending")
}

func TestStartRejectedWhileStopping(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateStopping
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	_, err := ctrl.Start(context.Background(), "i-1", nil)
	assert.True(t, errors.IsCode(err, errors.ErrTransition))
	assert.Empty(t, fake.StartCalls)
}

func TestFreshAddressAcrossStartCycles(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))
	fake.SetAddressPool("10.0.0.5", "10.0.0.77")

	ctrl, _ := newController(fake)
	ctx := context.Background()

	first, err := ctrl.Start(ctx, "i-1", nil)
	require.NoError(t, err)

	fake.ScriptStates("i-1", cloud.StateStopping, cloud.StateStopped)
	_, err = ctrl.Stop(ctx, "i-1", nil)
	require.NoError(t, err)

	fake.ScriptStates("i-1")
	second, err := ctrl.Start(ctx, "i-1", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, first.PublicAddress)
	assert.NotEmpty(t, second.PublicAddress)
	assert.NotEqual(t, first.PublicAddress, second.PublicAddress,
		"address must be freshly assigned on every start")
}

func TestStartUnexpectedTermination(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))

	ctrl, _ := newController(fake)
	// The provider kills the instance mid-start. The precondition check
	// consumes the first scripted state, so the script starts from stopped.
	fake.ScriptStates("i-1", cloud.StateStopped, cloud.StatePending, cloud.StateShuttingDown)

	_, err := ctrl.Start(context.Background(), "i-1", nil)
	assert.True(t, errors.IsCode(err, errors.ErrVerify), "got %v", err)
}

func TestStopConverges(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	snap, err := ctrl.Stop(context.Background(), "i-1", nil)
	require.NoError(t, err)
	assert.Equal(t, cloud.StateStopped, snap.State)
	assert.Empty(t, snap.PublicAddress, "address is undefined once stopped")
	assert.Equal(t, []string{"i-1"}, fake.StopCalls)
}

func TestStopIdempotentWhenStopped(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))

	ctrl, _ := newController(fake)

	snap, err := ctrl.Stop(context.Background(), "i-1", nil)
	require.NoError(t, err)
	assert.Equal(t, cloud.StateStopped, snap.State)
	assert.Empty(t, fake.StopCalls)
}

func TestTransientFailuresAbsorbed(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	// The precondition check succeeds, then two consecutive describe
	// failures during polling, then recovery: still a success.
	fake.FailDescribesAfter(1, 2)

	snap, err := ctrl.Stop(context.Background(), "i-1", nil)
	require.NoError(t, err)
	assert.Equal(t, cloud.StateStopped, snap.State)
}

func TestTransientFailuresExhaustedEscalateToTimeout(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	// The precondition fetch succeeds, then every poll fails: three
	// consecutive transient failures exceed the bound of two.
	fake.FailDescribesAfter(1, 1000)

	_, err := ctrl.Stop(context.Background(), "i-1", nil)
	assert.True(t, errors.IsCode(err, errors.ErrTimeout), "got %v", err)
}

func TestAuthErrorAbortsImmediately(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))
	fake.Err = errors.New(errors.ErrAuth, "credentials expired", "")

	ctrl, clock := newController(fake)

	_, err := ctrl.Start(context.Background(), "i-1", nil)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	assert.Empty(t, clock.Sleeps, "auth failures must not be retried")
}

func TestPollTimeout(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, clock := newController(fake)

	// The instance never leaves stopping.
	fake.ScriptStates("i-1", cloud.StateStopping)
	_, err := ctrl.Stop(context.Background(), "i-1", nil)

	assert.True(t, errors.IsCode(err, errors.ErrTimeout))
	assert.Len(t, clock.Sleeps, testPolicy().MaxPolls)
}

func TestCancelStopsLocalWaitingOnly(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctrl.Stop(ctx, "i-1", nil)
	assert.ErrorIs(t, err, context.Canceled)
	// The stop request itself went out before the first poll; cancellation
	// never rolls back the cloud-side request.
	assert.Equal(t, []string{"i-1"}, fake.StopCalls)
}

func TestResizeStoppedVerifies(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))

	ctrl, _ := newController(fake)

	snap, err := ctrl.Resize(context.Background(), "i-1", "m5.large")
	require.NoError(t, err)
	assert.Equal(t, "m5.large", snap.Type)
	assert.Equal(t, cloud.StateStopped, snap.State)
	assert.Equal(t, []cloudtest.ModifyCall{{ID: "i-1", Type: "m5.large"}}, fake.ModifyCalls)
}

func TestResizeRunningRejectedWithoutRequest(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	_, err := ctrl.Resize(context.Background(), "i-1", "m5.large")
	assert.True(t, errors.IsCode(err, errors.ErrTransition))
	assert.Empty(t, fake.ModifyCalls, "no request may be issued on a precondition violation")
}

func TestResizeNoopWhenTypeAlreadyMatches(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))

	ctrl, _ := newController(fake)

	snap, err := ctrl.Resize(context.Background(), "i-1", "t3.small")
	require.NoError(t, err)
	assert.Equal(t, "t3.small", snap.Type)
	assert.Empty(t, fake.ModifyCalls)
}

func TestRenameVerifies(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance("i-1"))

	ctrl, _ := newController(fake)

	snap, err := ctrl.Rename(context.Background(), "i-1", "oracle")
	require.NoError(t, err)
	assert.Equal(t, "oracle", snap.Name)
	assert.Equal(t, []cloudtest.NameCall{{ID: "i-1", Name: "oracle"}}, fake.NameCalls)
}

func TestScenarioResizeStartStop(t *testing.T) {
	// From stopped/small: resize to large, start (pending,pending,running with
	// 10.0.0.5), then stop (stopping,stopping,stopped; address gone).
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.Type = "t3.small"
	fake.AddInstance(inst)
	fake.SetAddressPool("10.0.0.5")

	ctrl, _ := newController(fake)
	ctx := context.Background()

	resized, err := ctrl.Resize(ctx, "i-1", "m5.large")
	require.NoError(t, err)
	assert.Equal(t, "m5.large", resized.Type)
	assert.Equal(t, cloud.StateStopped, resized.State)

	started, err := ctrl.Start(ctx, "i-1", nil)
	require.NoError(t, err)
	assert.Equal(t, cloud.StateRunning, started.State)
	assert.Equal(t, "10.0.0.5", started.PublicAddress)
	assert.Equal(t, "m5.large", started.Type)

	fake.ScriptStates("i-1", cloud.StateStopping, cloud.StateStopping, cloud.StateStopped)
	stopped, err := ctrl.Stop(ctx, "i-1", nil)
	require.NoError(t, err)
	assert.Equal(t, cloud.StateStopped, stopped.State)
	assert.Empty(t, stopped.PublicAddress)
}

func TestResolveEndpoint(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	inst.PublicAddress = "10.0.0.5"
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	addr, err := ctrl.ResolveEndpoint(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", addr)
}

func TestResolveEndpointRefetchesOnce(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	live := stoppedInstance("i-1")
	live.State = cloud.StateRunning
	live.PublicAddress = "10.0.0.5"
	fake.AddInstance(live)

	ctrl, _ := newController(fake)

	// Stale snapshot without an address: one defensive re-fetch recovers it.
	stale := live
	stale.PublicAddress = ""
	addr, err := ctrl.ResolveEndpoint(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", addr)
}

func TestResolveEndpointFailsWithoutAddress(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	inst.State = cloud.StateRunning
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	_, err := ctrl.ResolveEndpoint(context.Background(), inst)
	assert.True(t, errors.IsCode(err, errors.ErrConnect))
}

func TestResolveEndpointRejectsNonRunning(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	inst := stoppedInstance("i-1")
	fake.AddInstance(inst)

	ctrl, _ := newController(fake)

	_, err := ctrl.ResolveEndpoint(context.Background(), inst)
	assert.True(t, errors.IsCode(err, errors.ErrTransition))
}
