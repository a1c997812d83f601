package cloud

import "context"

// ControlPlane is the thin typed surface over the provider's management API.
// Implementations classify provider failures into the structured error codes:
// NOTFOUND for an unknown id, AUTH for credential failures (never retried),
// PROVIDER for anything transient.
//
// Every Describe call is a fresh read against the control plane; nothing is
// cached here.
type ControlPlane interface {
	// DescribeInstance fetches a point-in-time snapshot of one instance.
	DescribeInstance(ctx context.Context, id string) (Instance, error)

	// DescribeInstanceDetails fetches the extended metadata for the details view.
	DescribeInstanceDetails(ctx context.Context, id string) (InstanceDetails, error)

	// ListInstances fetches snapshots of every instance in the region.
	ListInstances(ctx context.Context) ([]Instance, error)

	// StartInstance issues an asynchronous start request. The instance moves
	// to pending immediately; running comes later.
	StartInstance(ctx context.Context, id string) error

	// StopInstance issues an asynchronous stop request.
	StopInstance(ctx context.Context, id string) error

	// ModifyInstanceType changes the machine type. Synchronous at the API, but
	// the provider rejects it unless the instance is stopped.
	ModifyInstanceType(ctx context.Context, id, instanceType string) error

	// SetInstanceName creates or replaces the display-name tag.
	SetInstanceName(ctx context.Context, id, name string) error

	// ListRegions enumerates the regions available to the caller.
	ListRegions(ctx context.Context) ([]Region, error)
}
