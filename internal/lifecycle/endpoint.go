package lifecycle

import (
	"context"
	"fmt"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
)

// ResolveEndpoint extracts the public address from a converged running
// snapshot. The controller's start guarantee makes a missing address
// unlikely, but it is still checked defensively: one extra re-fetch is
// allowed before failing, since the provider can bind the address a beat
// after the state flips.
func (c *Controller) ResolveEndpoint(ctx context.Context, snap cloud.Instance) (string, error) {
	if snap.State != cloud.StateRunning {
		return "", errors.New(errors.ErrTransition,
			fmt.Sprintf("%s is %s, not running", snap.ID, snap.State),
			"Start the instance first")
	}
	if snap.HasAddress() {
		return snap.PublicAddress, nil
	}

	refetched, err := c.Fetch(ctx, snap.ID)
	if err != nil {
		return "", err
	}
	if refetched.Ready() {
		return refetched.PublicAddress, nil
	}

	return "", errors.New(errors.ErrConnect,
		fmt.Sprintf("%s is running but has no public address", snap.ID),
		"The instance may have no public IP assigned; check its network configuration")
}
