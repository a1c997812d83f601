package cloud

import (
	"fmt"
	"time"
)

// Instance is a point-in-time snapshot of a single machine as the control
// plane last reported it. Snapshots are fetched on demand and never cached
// beyond one operation's polling loop, so every field may be stale the moment
// it is read.
type Instance struct {
	ID            string
	Name          string
	Type          string
	State         State
	PublicAddress string // present only while running
	KeyName       string
	ImageID       string
	Zone          string
	LaunchTime    time.Time
}

// HasAddress reports whether the snapshot carries a public address.
// The address is assigned fresh on every pending→running transition and may
// lag the state flip by one describe call.
func (i Instance) HasAddress() bool {
	return i.PublicAddress != ""
}

// Ready reports whether the instance can accept remote sessions.
func (i Instance) Ready() bool {
	return i.State == StateRunning && i.HasAddress()
}

// Uptime returns how long the instance has been up, or zero when it isn't
// running.
func (i Instance) Uptime(now time.Time) time.Duration {
	if i.State != StateRunning || i.LaunchTime.IsZero() {
		return 0
	}
	return now.Sub(i.LaunchTime)
}

// Label is the short human identifier used in pickers and prompts.
func (i Instance) Label() string {
	if i.Name != "" {
		return fmt.Sprintf("%s (%s)", i.Name, i.ID)
	}
	return i.ID
}

// Region describes an available provider region.
type Region struct {
	Code     string // e.g. "eu-central-1"
	Location string // e.g. "EU (Frankfurt)", empty when unmapped
}

// Image holds the subset of machine-image metadata the details view shows.
type Image struct {
	ID   string
	Name string
}

// InstanceDetails extends a snapshot with fields only the details view needs.
type InstanceDetails struct {
	Instance
	ImageName string
	CPUCores  int
}
