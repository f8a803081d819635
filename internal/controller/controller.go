// File: internal/controller/controller.go (complete file)

package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/baptistax/connscope/internal/barrier"
	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/discovery"
	"github.com/baptistax/connscope/internal/ipcodec"
	"github.com/baptistax/connscope/internal/logging"
	"github.com/baptistax/connscope/internal/metadata"
	"github.com/baptistax/connscope/internal/metrics"
	"github.com/baptistax/connscope/internal/sched"
)

var log = logging.Logger("controller")

type Fetcher interface {
	Fetch(ctx context.Context, withHeaders bool) (conninfo.Message, error)
}

type Discoverer interface {
	Refresh()
	Discover(ctx context.Context) (ipcodec.Set, error)
}

// Recorder receives the two completion signals of a refresh cycle.
// *history.Store satisfies it.
type Recorder interface {
	MetadataComplete(conninfo.Snapshot) (conninfo.Stored, bool, error)
	DiscoveryComplete(ipcodec.Set) (conninfo.Stored, bool, error)
	Reset()
}

type Options struct {
	Fetcher   Fetcher
	Discovery Discoverer
	History   Recorder

	Interval time.Duration
	Clock    clock.Clock

	// Notify is called with the dispatcher held; it must not call back into
	// Dispatch.
	Notify func(Update)
	// OnActivate runs at the start of every activate path.
	OnActivate func(ctx context.Context)

	Metrics *metrics.Metrics
}

const (
	slotMetadata = iota
	slotDiscovery
)

// Controller is the connectivity state machine. Fetch-driven events are
// handled one at a time; discovery runs on its own goroutine and re-enters
// the dispatcher tagged with its cycle.
type Controller struct {
	opt   Options
	sched *sched.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// run is the dispatcher: held for the whole handling of an event.
	run sync.Mutex

	mu             sync.Mutex
	state          State
	online         bool
	focused        bool
	headersPending bool
	snapshot       *conninfo.Snapshot
	headers        *conninfo.HeaderInfo
	addresses      ipcodec.Set
	recorded       *conninfo.Stored
	cycle          uint64
	join           *barrier.Join
}

func New(opt Options) *Controller {
	if opt.History == nil {
		opt.History = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opt:            opt,
		ctx:            ctx,
		cancel:         cancel,
		state:          Activating,
		online:         true,
		focused:        true,
		headersPending: true,
	}
	c.sched = sched.New(sched.Options{
		Interval: opt.Interval,
		Clock:    opt.Clock,
		Logger:   log,
	}, func(ctx context.Context) error {
		c.Dispatch(ctx, EventPeriodicCheck)
		return nil
	})
	return c
}

// Start runs the initial activate.
func (c *Controller) Start(ctx context.Context) {
	c.Dispatch(ctx, EventActivate)
}

// Close stops the periodic checks and waits for in-flight discovery.
func (c *Controller) Close() {
	c.sched.Close()
	c.cancel()
	c.opt.Discovery.Refresh()
	c.wg.Wait()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Online reports whether the controller currently believes the origin is
// reachable.
func (c *Controller) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *Controller) Snapshot() (conninfo.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return conninfo.Snapshot{}, false
	}
	return *c.snapshot, true
}

func (c *Controller) Addresses() ipcodec.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addresses.Clone()
}

// Dispatch handles one event. Focus changes are applied immediately; every
// other event waits for the one in progress.
func (c *Controller) Dispatch(ctx context.Context, ev Event) {
	switch ev {
	case EventFocus, EventBlur:
		if c.setFocus(ev, ev == EventFocus) {
			c.Dispatch(ctx, EventPeriodicCheck)
		}
		return
	}

	c.run.Lock()
	defer c.run.Unlock()
	if c.ctx.Err() != nil {
		return
	}

	switch ev {
	case EventActivate:
		c.activate(ctx, ev, nil)
	case EventOffline:
		c.goOffline(ev)
	case EventConnectionChanged:
		if !c.Online() {
			c.check(ctx)
			return
		}
		c.changed(ctx, ev, nil, nil)
	case EventPeriodicCheck:
		c.check(ctx)
	default:
		log.Warn("ignoring unknown event", "event", ev)
	}
}

func (c *Controller) liveStateLocked() State {
	if c.focused {
		return LiveFocused
	}
	return LiveBlurred
}

func (c *Controller) updateLocked(reason Event) Update {
	u := Update{
		State:      c.state,
		Reason:     reason,
		Headers:    c.headers,
		Addresses:  c.addresses.Clone(),
		Suppressed: !c.focused,
		Recorded:   c.recorded,
	}
	if c.snapshot != nil {
		s := *c.snapshot
		u.Snapshot = &s
	}
	return u
}

// transition moves to state and, when visible, publishes an Update.
func (c *Controller) transition(state State, reason Event, visible bool, edit func(*Update)) {
	c.mu.Lock()
	from := c.state
	c.state = state
	if state == Offline {
		c.online = false
	} else if state != Checking {
		c.online = true
	}
	u := c.updateLocked(reason)
	c.mu.Unlock()

	c.opt.Metrics.Transition(string(reason), string(state), allStates)
	if from != state {
		log.Info("state changed", "from", from, "to", state, "reason", reason)
	}
	if !visible || c.opt.Notify == nil {
		return
	}
	if edit != nil {
		edit(&u)
	}
	c.opt.Notify(u)
}

// setFocus applies a focus change. It reports whether a blurred live
// controller regained focus, which warrants an immediate check.
func (c *Controller) setFocus(ev Event, focused bool) bool {
	c.mu.Lock()
	c.focused = focused
	from := c.state
	state := from
	if state.Live() {
		state = c.liveStateLocked()
	}
	c.mu.Unlock()
	if !state.Live() {
		return false
	}
	c.transition(state, ev, true, nil)
	return from == LiveBlurred && state == LiveFocused
}

// beginCycle invalidates the previous refresh cycle: discovery is reset,
// history forgets the live connection and a fresh join is armed.
func (c *Controller) beginCycle(reason Event, clear bool) uint64 {
	c.opt.Discovery.Refresh()
	c.opt.History.Reset()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycle++
	cycle := c.cycle
	c.recorded = nil
	if clear {
		c.addresses = ipcodec.Set{}
	}
	c.join = barrier.New(2, func() { c.cycleDone(cycle, reason) })
	return cycle
}

func (c *Controller) currentLocked(cycle uint64) bool {
	return c.cycle == cycle && c.join != nil
}

// fetch performs a metadata request, asking for header info until the first
// request succeeds.
func (c *Controller) fetch(ctx context.Context) (conninfo.Message, error) {
	c.mu.Lock()
	withHeaders := c.headersPending
	c.mu.Unlock()

	msg, err := c.opt.Fetcher.Fetch(ctx, withHeaders)
	if err != nil {
		return conninfo.Message{}, err
	}
	c.mu.Lock()
	c.headersPending = false
	c.mu.Unlock()
	return msg, nil
}

// failed maps a fetch error to a transition. Transport failures take the
// offline path; anything else leaves the last good snapshot in place.
func (c *Controller) failed(ctx context.Context, reason Event, fallback State, err error) {
	switch {
	case ctx.Err() != nil || c.ctx.Err() != nil:
		log.Debug("fetch abandoned", "err", err)
	case errors.Is(err, metadata.ErrNetwork):
		log.Warn("metadata fetch failed, going offline", "reason", reason, "err", err)
		c.goOffline(EventOffline)
	default:
		log.Warn("metadata fetch returned an unusable record", "reason", reason, "err", err)
		c.transition(fallback, reason, true, nil)
		c.sched.Start()
	}
}

func (c *Controller) goOffline(reason Event) {
	if c.Online() {
		c.opt.Discovery.Refresh()
		c.opt.History.Reset()
		c.mu.Lock()
		c.cycle++
		c.join = nil
		c.mu.Unlock()
	}
	c.transition(Offline, reason, true, nil)
	c.sched.Start()
}

// activate is the full refresh: visible state is cleared and both
// completion halves are awaited before going live. pre carries a message
// already fetched by the caller.
func (c *Controller) activate(ctx context.Context, reason Event, pre *conninfo.Message) {
	c.transition(Activating, reason, true, nil)
	if c.opt.OnActivate != nil {
		c.opt.OnActivate(ctx)
	}
	cycle := c.beginCycle(reason, true)
	c.refresh(ctx, reason, cycle, pre)
}

// changed re-runs discovery and metadata without clearing what is shown.
func (c *Controller) changed(ctx context.Context, reason Event, pre *conninfo.Message, fields []string) {
	c.transition(Activating, reason, true, func(u *Update) { u.Changed = fields })
	cycle := c.beginCycle(reason, false)
	c.refresh(ctx, reason, cycle, pre)
}

func (c *Controller) refresh(ctx context.Context, reason Event, cycle uint64, pre *conninfo.Message) {
	var msg conninfo.Message
	if pre != nil {
		msg = *pre
	} else {
		m, err := c.fetch(ctx)
		if err != nil {
			c.mu.Lock()
			fallback := c.liveStateLocked()
			c.mu.Unlock()
			c.failed(ctx, reason, fallback, err)
			return
		}
		msg = m
	}

	c.mu.Lock()
	if msg.Headers != nil {
		h := *msg.Headers
		c.headers = &h
	}
	c.mu.Unlock()

	if msg.Info == nil {
		// Nothing to show yet; keep the previous snapshot and try again on
		// the next check.
		log.Info("metadata source declined to answer", "reason", reason)
		c.mu.Lock()
		state := c.liveStateLocked()
		c.join = nil
		c.mu.Unlock()
		c.transition(state, reason, true, nil)
		c.sched.Start()
		return
	}

	snap := *msg.Info
	c.mu.Lock()
	c.snapshot = &snap
	join := c.join
	c.mu.Unlock()

	c.wg.Add(1)
	go c.discover(cycle)

	c.record(c.opt.History.MetadataComplete(snap))
	join.Arrive(slotMetadata)
}

func (c *Controller) discover(cycle uint64) {
	defer c.wg.Done()

	addrs, err := c.opt.Discovery.Discover(c.ctx)
	if errors.Is(err, discovery.ErrAborted) || c.ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warn("address discovery failed", "err", err)
	}

	c.run.Lock()
	defer c.run.Unlock()

	c.mu.Lock()
	if !c.currentLocked(cycle) {
		c.mu.Unlock()
		log.Debug("dropping discovery result of a stale cycle", "cycle", cycle)
		return
	}
	c.addresses = addrs.Clone()
	join := c.join
	c.mu.Unlock()

	c.record(c.opt.History.DiscoveryComplete(addrs))
	join.Arrive(slotDiscovery)
}

func (c *Controller) record(st conninfo.Stored, ok bool, err error) {
	if err != nil {
		log.Error("persisting connection failed", "err", err)
		return
	}
	if ok {
		c.mu.Lock()
		c.recorded = &st
		c.mu.Unlock()
	}
}

// cycleDone runs once both halves of cycle have completed.
func (c *Controller) cycleDone(cycle uint64, reason Event) {
	c.mu.Lock()
	if c.cycle != cycle {
		c.mu.Unlock()
		return
	}
	state := c.liveStateLocked()
	c.mu.Unlock()

	c.transition(state, reason, true, nil)
	c.sched.Start()
}

// check is the periodic re-check. Offline it checks for recovery; live it
// fetches metadata only and compares it with the last snapshot.
func (c *Controller) check(ctx context.Context) {
	c.mu.Lock()
	prev := c.state
	last := c.snapshot
	c.mu.Unlock()

	if prev != Offline && !prev.Live() {
		log.Debug("check skipped, refresh in progress", "state", prev)
		return
	}

	// Focus may change while checking; a live state is restored from the
	// current focus, not from prev.
	restore := func() State {
		if !prev.Live() {
			return prev
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.liveStateLocked()
	}

	c.transition(Checking, EventPeriodicCheck, false, nil)
	msg, err := c.fetch(ctx)
	if err != nil {
		if prev == Offline && errors.Is(err, metadata.ErrNetwork) {
			log.Debug("still offline", "err", err)
			c.transition(Offline, EventPeriodicCheck, false, nil)
			c.sched.Start()
			return
		}
		c.failed(ctx, EventPeriodicCheck, restore(), err)
		return
	}

	if prev == Offline {
		log.Info("origin reachable again")
		c.activate(ctx, EventPeriodicCheck, &msg)
		return
	}

	if msg.Info == nil {
		c.transition(restore(), EventPeriodicCheck, false, nil)
		return
	}
	var fields []string
	if last == nil {
		fields = []string{"Snapshot"}
	} else {
		fields = conninfo.Diff(*last, *msg.Info)
	}
	if len(fields) == 0 {
		c.transition(restore(), EventPeriodicCheck, false, nil)
		return
	}
	log.Info("connection changed", "fields", fields)
	c.changed(ctx, EventConnectionChanged, &msg, fields)
}

type nopRecorder struct{}

func (nopRecorder) MetadataComplete(conninfo.Snapshot) (conninfo.Stored, bool, error) {
	return conninfo.Stored{}, false, nil
}

func (nopRecorder) DiscoveryComplete(ipcodec.Set) (conninfo.Stored, bool, error) {
	return conninfo.Stored{}, false, nil
}

func (nopRecorder) Reset() {}
