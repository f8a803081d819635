// File: internal/controller/state.go (complete file)

package controller

import (
	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/ipcodec"
)

type State string

const (
	Activating  State = "ACTIVATING"
	LiveFocused State = "LIVE-FOCUSED"
	LiveBlurred State = "LIVE-BLURRED"
	Offline     State = "OFFLINE"
	// Checking is transient: it always resolves to a live state or Offline.
	Checking State = "CHECKING"
)

var allStates = []string{
	string(Activating), string(LiveFocused), string(LiveBlurred), string(Offline), string(Checking),
}

func (s State) Live() bool { return s == LiveFocused || s == LiveBlurred }

type Event string

const (
	EventActivate          Event = "activate"
	EventOffline           Event = "offline-detected"
	EventConnectionChanged Event = "connection-changed"
	EventPeriodicCheck     Event = "periodic-check"
	EventFocus             Event = "focus"
	EventBlur              Event = "blur"
)

// Update is published on every visible transition.
type Update struct {
	State  State
	Reason Event

	// Snapshot is the last successfully fetched metadata. It survives failed
	// refreshes.
	Snapshot  *conninfo.Snapshot
	Headers   *conninfo.HeaderInfo
	Addresses ipcodec.Set

	// Suppressed is set while blurred: the update should not be surfaced as
	// a live change.
	Suppressed bool

	// Changed lists the snapshot fields that triggered a connection change.
	Changed []string
	// Recorded is the history entry written when this cycle completed, if any.
	Recorded *conninfo.Stored
}
