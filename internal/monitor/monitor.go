// File: internal/monitor/monitor.go (complete file)

package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/controller"
	"github.com/baptistax/connscope/internal/report"
)

type Kind string

const (
	KindActivating Kind = "activating"
	KindLive       Kind = "live"
	KindChanged    Kind = "changed"
	KindOffline    Kind = "offline"
	KindFocus      Kind = "focus"
)

type Event struct {
	AtUTC      time.Time          `json:"at_utc"`
	Kind       Kind               `json:"kind"`
	State      controller.State   `json:"state"`
	Message    string             `json:"message"`
	Changed    []string           `json:"changed,omitempty"`
	Suppressed bool               `json:"suppressed,omitempty"`
	Previous   *report.Connection `json:"previous,omitempty"`
	Current    *report.Connection `json:"current,omitempty"`
	RecordedID *uint64            `json:"recorded_id,omitempty"`
}

type Options struct {
	Now func() time.Time
}

// Monitor turns controller updates into user-facing events. Repeated
// offline updates collapse into one event.
type Monitor struct {
	now  func() time.Time
	emit func(Event)

	mu       sync.Mutex
	state    controller.State
	offline  bool
	last     *conninfo.Repr
	lastView *report.Connection
}

func New(opt Options, onEvent func(Event)) *Monitor {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Monitor{now: opt.Now, emit: onEvent}
}

// Notify has the controller.Options.Notify signature.
func (m *Monitor) Notify(u controller.Update) {
	m.mu.Lock()
	ev, ok := m.eventLocked(u)
	m.mu.Unlock()
	if ok && m.emit != nil {
		m.emit(ev)
	}
}

func (m *Monitor) eventLocked(u controller.Update) (Event, bool) {
	ev := Event{
		AtUTC:      m.now().UTC(),
		State:      u.State,
		Suppressed: u.Suppressed,
	}
	prevState := m.state
	m.state = u.State

	switch {
	case u.State == controller.Offline:
		if m.offline {
			return Event{}, false
		}
		m.offline = true
		ev.Kind = KindOffline
		ev.Message = "origin unreachable"

	case u.State == controller.Activating && len(u.Changed) > 0:
		ev.Kind = KindChanged
		ev.Changed = append([]string(nil), u.Changed...)
		ev.Message = "connection changed: " + strings.Join(u.Changed, ", ")
		ev.Previous = m.lastView

	case u.State == controller.Activating:
		ev.Kind = KindActivating
		ev.Message = "refreshing connection"
		if m.offline {
			ev.Message = "origin reachable again, refreshing"
		}
		m.offline = false

	case u.Reason == controller.EventFocus || u.Reason == controller.EventBlur:
		if prevState == u.State {
			return Event{}, false
		}
		ev.Kind = KindFocus
		ev.Message = "focused"
		if u.Reason == controller.EventBlur {
			ev.Message = "blurred"
		}

	default:
		m.offline = false
		ev.Kind = KindLive
		if u.Snapshot == nil {
			ev.Message = "live, metadata unavailable"
			break
		}
		cur := conninfo.Repr{Info: *u.Snapshot, Addresses: u.Addresses.Clone()}
		view := report.NewConnection(cur)
		ev.Current = &view
		ev.Message = "live"
		if m.last != nil && moved(*m.last, cur) {
			ev.Previous = m.lastView
			ev.Message = "live on a different connection"
		}
		m.last = &cur
		m.lastView = &view
		if u.Recorded != nil {
			id := u.Recorded.ID
			ev.RecordedID = &id
		}
	}
	return ev, true
}

// moved reports whether two live connections differ in metadata or in any
// discovered address.
func moved(a, b conninfo.Repr) bool {
	return !conninfo.SameIdentity(a, b, true)
}

// Text is the one-event rendering used by the watch command.
func (e Event) Text() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s %s", e.AtUTC.Format("15:04:05"), strings.ToUpper(string(e.Kind)), e.Message))
	if e.Suppressed && e.Kind != KindFocus {
		b.WriteString(" (background)")
	}
	if e.RecordedID != nil {
		b.WriteString(fmt.Sprintf(" [saved #%d]", *e.RecordedID))
	}
	b.WriteString("\n")
	if e.Current != nil {
		for _, line := range strings.Split(strings.TrimRight(report.RenderConnection(*e.Current), "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}
