package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/wanderbites/content"
)

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) AfterFunc(_ time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) snapshot() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.timers...)
}

// Elapse fires every timer that is still armed.
func (c *fakeClock) Elapse() {
	for _, t := range c.snapshot() {
		t.mu.Lock()
		run := !t.stopped && !t.fired
		t.fired = t.fired || run
		t.mu.Unlock()
		if run {
			t.fn()
		}
	}
}

// ElapseAll fires every timer, including stopped ones, as a timer whose Stop
// lost the race with its expiry would.
func (c *fakeClock) ElapseAll() {
	for _, t := range c.snapshot() {
		t.mu.Lock()
		t.fired = true
		t.mu.Unlock()
		t.fn()
	}
}

func (c *fakeClock) stoppedCount() int {
	n := 0
	for _, t := range c.snapshot() {
		t.mu.Lock()
		if t.stopped {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

type reply struct {
	res content.Result
	err error
}

type pendingCall struct {
	filters FilterSet
	ctx     context.Context
	reply   chan reply
}

func (c *pendingCall) succeed(titles ...string) {
	records := make([]content.Record, len(titles))
	for i, title := range titles {
		records[i] = content.Record{ID: title, Slug: title, Title: title}
	}
	c.reply <- reply{res: content.Result{Records: records, Total: len(records)}}
}

func (c *pendingCall) fail(err error) {
	c.reply <- reply{err: err}
}

// fakeSearcher blocks every Search until the test replies. It ignores
// cancellation unless honorCancel is set, so late responses can be produced
// on purpose.
type fakeSearcher struct {
	calls       chan *pendingCall
	honorCancel bool
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{calls: make(chan *pendingCall, 16)}
}

func (f *fakeSearcher) Search(ctx context.Context, fs FilterSet) (content.Result, error) {
	c := &pendingCall{filters: fs, ctx: ctx, reply: make(chan reply, 1)}
	f.calls <- c
	if f.honorCancel {
		select {
		case r := <-c.reply:
			return r.res, r.err
		case <-ctx.Done():
			return content.Result{}, ctx.Err()
		}
	}
	r := <-c.reply
	return r.res, r.err
}

func (f *fakeSearcher) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a search call")
		return nil
	}
}

func (f *fakeSearcher) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected search call with %s", c.filters)
	case <-time.After(50 * time.Millisecond):
	}
}

// recorder collects state transitions.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.states))
	for i, s := range r.states {
		out[i] = s.Status
	}
	return out
}

func newTestOrchestrator(t *testing.T, s Searcher) (*Orchestrator, *fakeClock, *recorder) {
	t.Helper()
	clock := &fakeClock{}
	rec := &recorder{}
	o := NewOrchestrator(s, WithAfterFunc(clock.AfterFunc), WithOnChange(rec.record))
	t.Cleanup(o.Close)
	return o, clock, rec
}

func waitForStatus(t *testing.T, o *Orchestrator, want Status) State {
	t.Helper()
	require.Eventually(t, func() bool { return o.State().Status == want }, 2*time.Second, 5*time.Millisecond,
		"state never reached %s", want)
	return o.State()
}

func titles(s State) []string {
	out := make([]string, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Title
	}
	return out
}

func TestOrchestratorStartsIdle(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, newFakeSearcher())
	s := o.State()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Empty(t, s.Records)
	assert.Zero(t, s.Seq)
}

func TestOrchestratorDebounceIssuesOneRequest(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, _ := newTestOrchestrator(t, fs)

	o.Update(Normalize("r", "", "", "", ""))
	o.Update(Normalize("ra", "", "", "", ""))
	o.Update(Normalize("ram", "asia", "", "", ""))
	assert.Equal(t, 2, clock.stoppedCount(), "each change restarts the timer")
	assert.Equal(t, StatusIdle, o.State().Status, "nothing happens before the window elapses")

	// Superseded timers that fire anyway must not issue requests.
	clock.ElapseAll()

	call := fs.next(t)
	assert.Equal(t, FilterSet{Text: "ram", Region: "asia"}, call.filters)
	fs.assertNoCall(t)

	s := o.State()
	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, uint64(1), s.Seq)

	call.succeed("Tokyo Ramen Guide")
	s = waitForStatus(t, o, StatusSuccess)
	assert.Equal(t, []string{"Tokyo Ramen Guide"}, titles(s))
	assert.Equal(t, 1, s.Total)
}

func TestOrchestratorEmptyFilterSetNeverSearches(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, rec := newTestOrchestrator(t, fs)

	o.Update(Normalize("  ", "", "", "", ""))
	clock.Elapse()

	fs.assertNoCall(t)
	s := o.State()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Empty(t, s.Records)
	assert.Equal(t, []Status{StatusIdle}, rec.statuses())
}

func TestOrchestratorLastRequestWins(t *testing.T) {
	for _, order := range []string{"newer first", "older first"} {
		t.Run(order, func(t *testing.T) {
			fs := newFakeSearcher()
			o, clock, _ := newTestOrchestrator(t, fs)

			o.Update(Normalize("bangkok", "", "", "", ""))
			clock.Elapse()
			a := fs.next(t)

			o.Update(Normalize("tokyo", "", "", "", ""))
			clock.Elapse()
			b := fs.next(t)

			assert.ErrorIs(t, a.ctx.Err(), context.Canceled, "issuing B cancels A")
			assert.NoError(t, b.ctx.Err())

			if order == "newer first" {
				b.succeed("Tokyo Ramen Guide")
				waitForStatus(t, o, StatusSuccess)
				a.succeed("Bangkok Night Market Noodles")
			} else {
				a.succeed("Bangkok Night Market Noodles")
				b.succeed("Tokyo Ramen Guide")
				waitForStatus(t, o, StatusSuccess)
			}
			o.Close() // waits for A's response to be handled

			s := o.State()
			assert.Equal(t, StatusSuccess, s.Status)
			assert.Equal(t, []string{"Tokyo Ramen Guide"}, titles(s))
			assert.Equal(t, FilterSet{Text: "tokyo"}, s.Filters)
			assert.Equal(t, uint64(2), s.Seq)
		})
	}
}

func TestOrchestratorStaleFailureIsDiscarded(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, rec := newTestOrchestrator(t, fs)

	o.Update(Normalize("pho", "", "", "", ""))
	clock.Elapse()
	a := fs.next(t)

	o.Update(Normalize("pho", "asia", "", "", ""))
	clock.Elapse()
	b := fs.next(t)

	a.fail(&content.TransportError{Op: "search", Status: 503, Err: errors.New("unavailable")})
	fs.assertNoCall(t)
	assert.Equal(t, StatusLoading, o.State().Status, "stale failure must not surface")

	b.succeed("Hanoi Pho Trail")
	s := waitForStatus(t, o, StatusSuccess)
	assert.Equal(t, []string{"Hanoi Pho Trail"}, titles(s))
	assert.NotContains(t, rec.statuses(), StatusError)
}

func TestOrchestratorTransportFailure(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, _ := newTestOrchestrator(t, fs)

	o.Update(Normalize("tacos", "", "", "", ""))
	clock.Elapse()
	fs.next(t).fail(&content.TransportError{Op: "search", Status: 500, Err: errors.New("boom")})

	s := waitForStatus(t, o, StatusError)
	assert.Equal(t, ErrorMessage, s.Err)
	assert.Empty(t, s.Records)
	fs.assertNoCall(t) // no automatic retry

	o.Update(Normalize("tacos", "north-america", "", "", ""))
	clock.Elapse()
	assert.Equal(t, StatusLoading, o.State().Status)
	fs.next(t).succeed("Tacos de Oaxaca")
	waitForStatus(t, o, StatusSuccess)
}

func TestOrchestratorEmptyCancelsInflight(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, _ := newTestOrchestrator(t, fs)

	o.Update(Normalize("dumplings", "", "", "", ""))
	clock.Elapse()
	a := fs.next(t)

	o.Update(Normalize("", "", "", "", ""))
	clock.Elapse()
	assert.ErrorIs(t, a.ctx.Err(), context.Canceled)
	assert.Equal(t, StatusIdle, o.State().Status)

	a.succeed("Shanghai Dumplings")
	o.Close()
	assert.Equal(t, StatusIdle, o.State().Status)
	assert.Empty(t, o.State().Records)
}

func TestOrchestratorTransitionsInOrder(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, rec := newTestOrchestrator(t, fs)

	o.Update(Normalize("curry", "", "", "", ""))
	clock.Elapse()
	fs.next(t).succeed()
	waitForStatus(t, o, StatusSuccess)

	o.Update(FilterSet{})
	clock.Elapse()

	assert.Equal(t, []Status{StatusLoading, StatusSuccess, StatusIdle}, rec.statuses())
}

func TestOrchestratorCloseCancelsAndStops(t *testing.T) {
	fs := newFakeSearcher()
	fs.honorCancel = true
	o, clock, _ := newTestOrchestrator(t, fs)

	o.Update(Normalize("bibimbap", "", "", "", ""))
	clock.Elapse()
	call := fs.next(t)

	done := make(chan struct{})
	go func() {
		o.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.ErrorIs(t, call.ctx.Err(), context.Canceled)
	assert.Equal(t, StatusLoading, o.State().Status, "cancellation is not an error")

	o.Update(Normalize("kimchi", "", "", "", ""))
	clock.Elapse()
	fs.assertNoCall(t)
}

func TestOrchestratorCloseStopsPendingTimer(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, _ := newTestOrchestrator(t, fs)

	o.Update(Normalize("laksa", "", "", "", ""))
	o.Close()
	clock.ElapseAll()

	fs.assertNoCall(t)
	assert.Equal(t, 1, clock.stoppedCount())
}

// stubRepo filters a fixed record list in memory.
type stubRepo struct {
	content.Repository
	records []content.Record
}

func (r stubRepo) Search(_ context.Context, q content.Query) (content.Result, error) {
	out := content.Filter(r.records, q)
	return content.Result{Records: out, Total: len(out)}, nil
}

func TestOrchestratorWithRealTimer(t *testing.T) {
	repo := stubRepo{records: []content.Record{
		{ID: "1", Slug: "bangkok-night-market", Title: "Bangkok Night Market Noodles"},
		{ID: "2", Slug: "tokyo-ramen", Title: "Tokyo Ramen Guide"},
	}}
	o := NewOrchestrator(RepositorySearcher{Repo: repo}, WithDelay(10*time.Millisecond))
	defer o.Close()

	o.Update(Normalize("ram", "", "", "", ""))
	o.Update(Normalize("ramen", "", "", "", ""))
	s := waitForStatus(t, o, StatusSuccess)
	require.Equal(t, []string{"Tokyo Ramen Guide"}, titles(s))

	d := Present(s, s.Filters.Text)
	require.Len(t, d.Items, 1)
	assert.Equal(t, []Segment{{Text: "Tokyo "}, {Text: "Ramen", Match: true}, {Text: " Guide"}}, d.Items[0].Title)
}

func TestOrchestratorWaitReturnsFinalState(t *testing.T) {
	fs := newFakeSearcher()
	o, clock, rec := newTestOrchestrator(t, fs)

	s, err := o.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, s.Status, "an idle orchestrator is already settled")

	o.Update(Normalize("ramen", "", "", "", ""))
	done := make(chan State, 1)
	go func() {
		s, err := o.Wait(context.Background())
		assert.NoError(t, err)
		done <- s
	}()

	assertNotSettled := func(msg string) {
		t.Helper()
		select {
		case s := <-done:
			t.Fatalf("Wait returned %s %s", s.Status, msg)
		case <-time.After(30 * time.Millisecond):
		}
	}
	assertNotSettled("while the debounce timer was armed")

	clock.Elapse()
	call := fs.next(t)
	assertNotSettled("while the search was in flight")

	call.succeed("Tokyo Ramen Guide")
	select {
	case s := <-done:
		assert.Equal(t, StatusSuccess, s.Status)
		assert.Equal(t, uint64(1), s.Seq)
		assert.Equal(t, []string{"Tokyo Ramen Guide"}, titles(s))
	case <-time.After(2 * time.Second):
		t.Fatal("Wait never returned")
	}
	assert.Equal(t, []Status{StatusLoading, StatusSuccess}, rec.statuses(),
		"the observer has seen the final state before Wait returns")
}

func TestOrchestratorWaitHonorsContext(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, newFakeSearcher())
	o.Update(Normalize("ramen", "", "", "", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s, err := o.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusIdle, s.Status)
}

func TestOrchestratorCloseReleasesWaiters(t *testing.T) {
	fs := newFakeSearcher()
	fs.honorCancel = true
	o, clock, _ := newTestOrchestrator(t, fs)

	o.Update(Normalize("ramen", "", "", "", ""))
	clock.Elapse()
	fs.next(t)

	done := make(chan error, 1)
	go func() {
		_, err := o.Wait(context.Background())
		done <- err
	}()
	o.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait blocked past Close")
	}
}
