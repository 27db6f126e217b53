package search

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eringen/wanderbites/content"
)

// DefaultDelay is the debounce window.
const DefaultDelay = 300 * time.Millisecond

// ErrorMessage is the only failure text shown to users.
const ErrorMessage = "Something went wrong. Please try again."

// Status is the phase of a search surface.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is a snapshot of a search surface.
type State struct {
	Status  Status
	Records []content.Record
	Total   int
	Filters FilterSet // filter set of the request the state belongs to
	Err     string    // generic user-facing text when Status is StatusError
	Seq     uint64    // sequence number of that request, 0 before the first
}

// Request is one issued search.
type Request struct {
	Filters FilterSet
	Seq     uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// Searcher runs a single search. Implementations must honour ctx
// cancellation.
type Searcher interface {
	Search(ctx context.Context, f FilterSet) (content.Result, error)
}

// Timer is the part of *time.Timer the orchestrator uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.delay = d }
}

// WithAfterFunc replaces the timer source.
func WithAfterFunc(fn AfterFunc) Option {
	return func(o *Orchestrator) { o.afterFunc = fn }
}

// WithOnChange registers a callback receiving every state transition, in
// order. It may call State and Update but must not call Close.
func WithOnChange(fn func(State)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator owns the result state of one search surface. Filter changes
// go through Update; after the debounce window the latest filter set is
// searched, cancelling whatever request was still running. Responses that
// arrive for a superseded request are dropped, so State always reflects the
// most recently issued request.
type Orchestrator struct {
	searcher  Searcher
	delay     time.Duration
	afterFunc AfterFunc
	onChange  func(State)
	log       zerolog.Logger

	mu       sync.Mutex
	state    State
	pending  FilterSet
	gen      uint64 // bumped by every Update; a timer only fires its own generation
	timer    Timer
	seq      uint64
	inflight *Request
	closed   bool

	tickets   uint64 // transitions handed out for notification, under mu
	delivered uint64 // transitions the observer has returned from, under mu
	waiters   []chan struct{}

	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	turn       uint64 // next ticket to notify, under notifyMu

	wg sync.WaitGroup
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(s Searcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		searcher:  s,
		delay:     DefaultDelay,
		afterFunc: realAfterFunc,
		log:       zerolog.Nop(),
		state:     State{Status: StatusIdle},
	}
	o.notifyCond = sync.NewCond(&o.notifyMu)
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With().Str("component", "search").Logger()
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Update records a filter change and restarts the debounce timer.
func (o *Orchestrator) Update(f FilterSet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.pending = f
	o.gen++
	gen := o.gen
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = o.afterFunc(o.delay, func() { o.fire(gen) })
}

// fire runs when the debounce window of generation gen elapses.
func (o *Orchestrator) fire(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	f := o.pending
	o.cancelInflight()

	if f.IsEmpty() {
		o.transition(State{Status: StatusIdle, Filters: f, Seq: o.state.Seq})
		return
	}

	o.seq++
	ctx, cancel := context.WithCancel(context.Background())
	req := &Request{Filters: f, Seq: o.seq, ctx: ctx, cancel: cancel}
	o.inflight = req
	o.wg.Add(1)
	go o.run(req)

	o.transition(State{Status: StatusLoading, Filters: f, Seq: req.Seq})
}

func (o *Orchestrator) run(req *Request) {
	defer o.wg.Done()
	res, err := o.searcher.Search(req.ctx, req.Filters)

	o.mu.Lock()
	if o.inflight != req || req.ctx.Err() != nil {
		o.mu.Unlock()
		o.log.Debug().Uint64("seq", req.Seq).Msg("dropping superseded response")
		return
	}
	o.inflight = nil
	req.cancel()

	if err != nil {
		o.log.Warn().Err(err).Uint64("seq", req.Seq).Str("filters", req.Filters.String()).Msg("search failed")
		o.transition(State{Status: StatusError, Filters: req.Filters, Err: ErrorMessage, Seq: req.Seq})
		return
	}
	records := res.Records
	if records == nil {
		records = []content.Record{}
	}
	o.transition(State{Status: StatusSuccess, Records: records, Total: res.Total, Filters: req.Filters, Seq: req.Seq})
}

// transition stores s and hands it to the observer. It must be called with
// mu held and releases it. Callbacks run outside mu, one at a time, in the
// order the transitions happened.
func (o *Orchestrator) transition(s State) {
	o.state = s
	if o.onChange == nil {
		o.wakeLocked()
		o.mu.Unlock()
		return
	}
	ticket := o.tickets
	o.tickets++
	o.mu.Unlock()

	o.notifyMu.Lock()
	for o.turn != ticket {
		o.notifyCond.Wait()
	}
	o.onChange(s)
	o.turn++
	o.notifyCond.Broadcast()

	o.mu.Lock()
	o.delivered++
	o.wakeLocked()
	o.mu.Unlock()
	o.notifyMu.Unlock()
}

// settledLocked reports whether no search is scheduled or running and the
// observer has seen every transition.
func (o *Orchestrator) settledLocked() bool {
	return o.closed || (o.timer == nil && o.inflight == nil && o.delivered == o.tickets)
}

func (o *Orchestrator) wakeLocked() {
	if !o.settledLocked() {
		return
	}
	for _, ch := range o.waiters {
		close(ch)
	}
	o.waiters = nil
}

// Wait blocks until the orchestrator has nothing scheduled or in flight and
// every transition has been delivered, then returns the current state. After
// a final Update, that state belongs to the request the Update issued.
func (o *Orchestrator) Wait(ctx context.Context) (State, error) {
	o.mu.Lock()
	if o.settledLocked() {
		s := o.state
		o.mu.Unlock()
		return s, nil
	}
	ch := make(chan struct{})
	o.waiters = append(o.waiters, ch)
	o.mu.Unlock()

	select {
	case <-ch:
		return o.State(), nil
	case <-ctx.Done():
		return o.State(), ctx.Err()
	}
}

func (o *Orchestrator) cancelInflight() {
	if o.inflight != nil {
		o.inflight.cancel()
		o.inflight = nil
	}
}

// Close stops the debounce timer, cancels the in-flight request and waits
// for its goroutine to return. Later Updates are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.cancelInflight()
	o.wakeLocked()
	o.mu.Unlock()
	o.wg.Wait()
}
