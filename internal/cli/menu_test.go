package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/cloud/cloudtest"
	"github.com/lobot-sh/lobot/internal/errors"
)

func optionValues(state cloud.State) []string {
	var values []string
	for _, opt := range actionOptions(state) {
		values = append(values, opt.Value)
	}
	return values
}

func TestActionOptionsRunning(t *testing.T) {
	values := optionValues(cloud.StateRunning)

	assert.Contains(t, values, "connect")
	assert.Contains(t, values, "notebook")
	assert.Contains(t, values, "deploy")
	assert.Contains(t, values, "fetch")
	assert.Contains(t, values, "stop")
	assert.Contains(t, values, "rename")
	assert.NotContains(t, values, "start", "a running instance cannot be started")
	assert.NotContains(t, values, "resize", "resize needs a stopped instance")
}

func TestActionOptionsStopped(t *testing.T) {
	values := optionValues(cloud.StateStopped)

	assert.Contains(t, values, "start")
	assert.Contains(t, values, "resize")
	assert.Contains(t, values, "rename")
	assert.NotContains(t, values, "stop")
	assert.NotContains(t, values, "connect")
	assert.NotContains(t, values, "deploy")
}

func TestActionOptionsTerminalStateOnlyNavigation(t *testing.T) {
	values := optionValues(cloud.StateTerminated)

	assert.Equal(t, []string{menuInfo, menuBack, menuQuit}, values,
		"terminated instances should offer nothing but navigation")
}

func TestActionOptionsAlwaysEndWithNavigation(t *testing.T) {
	for _, state := range []cloud.State{
		cloud.StatePending, cloud.StateRunning, cloud.StateStopping,
		cloud.StateStopped, cloud.StateShuttingDown, cloud.StateTerminated,
	} {
		values := optionValues(state)
		require.GreaterOrEqual(t, len(values), 3)
		assert.Equal(t, []string{menuInfo, menuBack, menuQuit}, values[len(values)-3:])
	}
}

func TestActionLabelsAreHuman(t *testing.T) {
	assert.Equal(t, "Open shell", actionLabel(cloud.ActionConnect))
	assert.Equal(t, "Change instance type", actionLabel(cloud.ActionResize))
	assert.Equal(t, "Deploy files", actionLabel(cloud.ActionDeploy))
}

func TestDispatchUnknownAction(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance())
	a, _ := newTestApp(t, fake)

	err := a.dispatch(context.Background(), stoppedInstance(), "bogus")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestDispatchInfo(t *testing.T) {
	fake := cloudtest.NewFakeControlPlane()
	fake.AddInstance(stoppedInstance())
	a, out := newTestApp(t, fake)

	err := a.dispatch(context.Background(), stoppedInstance(), menuInfo)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "i-0abc123")
}

func TestPickMenuInstanceEmptyGoesToSessionMenu(t *testing.T) {
	inst, err := pickMenuInstance(nil)
	require.NoError(t, err)
	assert.Nil(t, inst)
}
