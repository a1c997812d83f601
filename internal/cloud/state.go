package cloud

import (
	"fmt"
)

// State is the closed set of lifecycle states the provider reports.
// Raw provider strings are parsed at the boundary; an unrecognized string is an
// error, never a silently widened enum.
type State int

const (
	StatePending State = iota
	StateRunning
	StateStopping
	StateStopped
	StateShuttingDown
	StateTerminated
)

var stateNames = map[State]string{
	StatePending:      "pending",
	StateRunning:      "running",
	StateStopping:     "stopping",
	StateStopped:      "stopped",
	StateShuttingDown: "shutting-down",
	StateTerminated:   "terminated",
}

// String returns the provider's name for the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState maps a raw provider state string onto the closed enum.
func ParseState(raw string) (State, error) {
	for s, name := range stateNames {
		if name == raw {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unrecognized instance state %q", raw)
}

// Terminal reports whether the instance is gone or on its way out and no
// action will ever apply to it again.
func (s State) Terminal() bool {
	return s == StateShuttingDown || s == StateTerminated
}

// Action is an operator-selectable operation on an instance.
type Action int

const (
	ActionStart Action = iota
	ActionStop
	ActionResize
	ActionRename
	ActionConnect
	ActionNotebook
	ActionDeploy
	ActionFetch
)

var actionNames = map[Action]string{
	ActionStart:    "start",
	ActionStop:     "stop",
	ActionResize:   "resize",
	ActionRename:   "rename",
	ActionConnect:  "connect",
	ActionNotebook: "notebook",
	ActionDeploy:   "deploy",
	ActionFetch:    "fetch",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Actionable reports whether the action is legal given the observed state.
// This is the single source of truth for both the menu (which hides illegal
// actions) and the controller (which rejects them with a clear error).
//
// Rename carries no state precondition; if the provider still rejects it,
// that rejection is surfaced as a precondition violation.
func Actionable(a Action, s State) bool {
	if s.Terminal() {
		return false
	}
	switch a {
	case ActionStart, ActionResize:
		return s == StateStopped
	case ActionStop, ActionConnect, ActionNotebook, ActionDeploy, ActionFetch:
		return s == StateRunning
	case ActionRename:
		return true
	default:
		return false
	}
}

// ActionsFor returns the actions legal for the given state, in menu order.
func ActionsFor(s State) []Action {
	order := []Action{
		ActionConnect,
		ActionNotebook,
		ActionDeploy,
		ActionFetch,
		ActionStart,
		ActionStop,
		ActionResize,
		ActionRename,
	}

	var legal []Action
	for _, a := range order {
		if Actionable(a, s) {
			legal = append(legal, a)
		}
	}
	return legal
}
