package alerts

import (
	"github.com/rewired-gh/velofeed/internal/models"
	"github.com/rewired-gh/velofeed/internal/outage"
)

// Action is what a reconciliation pass does to a city's alert history.
type Action int

const (
	ActionNone Action = iota
	ActionOpen
	ActionTouch
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionTouch:
		return "touch"
	default:
		return "none"
	}
}

// Decision is the outcome of Decide. StationsDown is set for ActionOpen,
// Ref for ActionTouch.
type Decision struct {
	Action       Action
	StationsDown []string
	Ref          models.AlertRef
}

// Decide compares the current outage with the latest stored alert. Any
// change of membership, including to or from the empty set, opens a new
// episode; an identical set only refreshes the latest one.
func Decide(current outage.Set, latest *models.SystemAlert) Decision {
	if latest == nil || !current.Equal(outage.FromIDs(latest.StationsDown)) {
		return Decision{Action: ActionOpen, StationsDown: current.Sorted()}
	}
	return Decision{Action: ActionTouch, Ref: latest.Ref()}
}
