package editor

import (
	"context"
	"sync"
	"time"
)

// Notification is what a finished preset reports to the outside world.
type Notification struct {
	SessionID   string     `json:"session_uid"`
	Kind        PresetKind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	At          time.Time  `json:"created_at"`
}

// Notifier receives preset completions. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type EventType string

const (
	EventState        EventType = "state"
	EventNotification EventType = "notification"
)

// Event is pushed to subscribers on every state change and on every preset completion.
// A completion always produces its state event before its notification event.
type Event struct {
	Type         EventType     `json:"type"`
	State        *State        `json:"state,omitempty"`
	Effect       *Effect       `json:"effect,omitempty"`
	Style        *Style        `json:"style,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

const subscriberBuffer = 32

// Session is the live controller around one State. Every transition runs under mu,
// timer callbacks included, so a session behaves as a single thread of control.
type Session struct {
	id       string
	variant  Variant
	clock    Clock
	notifier Notifier
	onChange func(State)

	mu      sync.Mutex
	state   State
	timers  map[PresetKind]Timer
	subs    map[int]chan Event
	nextSub int
	touched time.Time
	closed  bool
}

type Option func(*Session)

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

func WithVariant(v Variant) Option {
	return func(s *Session) { s.variant = v }
}

// WithChangeHook registers f to be called with every committed state. f runs under the
// session lock and must not call back into the session.
func WithChangeHook(f func(State)) Option {
	return func(s *Session) { s.onChange = f }
}

func NewSession(id string, st State, opts ...Option) *Session {
	s := &Session{
		id:      id,
		variant: VariantFull,
		clock:   RealClock{},
		state:   st,
		timers:  make(map[PresetKind]Timer),
		subs:    make(map[int]chan Event),
	}
	for _, o := range opts {
		o(s)
	}
	s.touched = s.clock.Now()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Variant() Variant { return s.variant }

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Effect is recomputed from the current sliders on every call.
func (s *Session) Effect() Effect {
	return ComputeEffect(s.Snapshot().Params)
}

// SetImage and the other mutators return false without touching anything once the
// session is closed.
func (s *Session) SetImage(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.commitLocked(s.state.WithImage(handle))
	return true
}

func (s *Session) ClearImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.commitLocked(s.state.WithoutImage())
	return true
}

// SetParam is the slider setter. It returns false for sliders the variant lacks.
func (s *Session) SetParam(p Param, v float64) bool {
	return s.SetParams(map[Param]float64{p: v})
}

// SetParams applies several sliders as one change, or none of them if any is unsupported
// or the session is closed.
func (s *Session) SetParams(values map[Param]float64) bool {
	for p := range values {
		if !s.variant.SupportsParam(p) {
			return false
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	next := s.state
	for p, v := range values {
		next = next.WithParam(p, v)
	}
	s.commitLocked(next)
	return true
}

func (s *Session) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.commitLocked(s.state.Reset())
	return true
}

// AutoEnhance starts the auto-enhance preset. It is a no-op returning false while any
// preset is running.
func (s *Session) AutoEnhance() bool {
	return s.start(PresetAutoEnhance)
}

// FaceRetouch starts the retouch preset; the basic variant never starts it.
func (s *Session) FaceRetouch() bool {
	return s.start(PresetFaceRetouch)
}

func (s *Session) start(kind PresetKind) bool {
	ps, ok := LookupPreset(kind)
	if !ok || !s.variant.SupportsPreset(kind) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	next, ok := s.state.Start(kind)
	if !ok {
		return false
	}
	s.commitLocked(next)
	s.timers[kind] = s.clock.AfterFunc(ps.Delay, func() { s.complete(kind) })
	return true
}

func (s *Session) complete(kind PresetKind) {
	ps, _ := LookupPreset(kind)

	s.mu.Lock()
	delete(s.timers, kind)
	s.commitLocked(s.state.Complete(kind))
	n := Notification{
		SessionID:   s.id,
		Kind:        kind,
		Title:       ps.Title,
		Description: ps.Description,
		At:          s.clock.Now().UTC(),
	}
	s.broadcastLocked(Event{Type: EventNotification, Notification: &n})
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Notify(context.Background(), n)
	}
}

// FinishInterrupted completes presets whose flag is set but which have no timer in this
// process, e.g. a state loaded back after a restart. Returns the kinds it completed.
func (s *Session) FinishInterrupted() []PresetKind {
	s.mu.Lock()
	var orphans []PresetKind
	for _, k := range s.state.Pending() {
		if _, ok := s.timers[k]; !ok {
			orphans = append(orphans, k)
		}
	}
	s.mu.Unlock()

	for _, k := range orphans {
		s.complete(k)
	}
	return orphans
}

// Pending is the number of presets waiting for their timer.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Subscribe returns a channel of events, starting with the current state. Slow readers
// lose events once the buffer is full. The returned func detaches the subscriber.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.stateEventLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// Persist hands the current state to the change hook again without changing it.
func (s *Session) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onChange != nil && !s.closed {
		s.onChange(s.state)
	}
}

// Closed reports whether the session was taken out of service. A closed session never
// reopens; callers holding it must load the session again.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseIfIdle closes the session when Idle(ttl) holds, in one step under the lock, so
// nothing can start on it between the check and the close.
func (s *Session) CloseIfIdle(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.idleLocked(ttl) {
		return false
	}
	s.closed = true
	return true
}

// Close takes the session out of service. Presets already running still complete.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Idle reports whether the session has no pending presets, no subscribers and has not
// changed for at least ttl.
func (s *Session) Idle(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleLocked(ttl)
}

func (s *Session) idleLocked(ttl time.Duration) bool {
	return len(s.timers) == 0 && len(s.subs) == 0 && s.clock.Now().Sub(s.touched) >= ttl
}

func (s *Session) commitLocked(next State) {
	s.state = next
	s.touched = s.clock.Now()
	if s.onChange != nil {
		s.onChange(next)
	}
	s.broadcastLocked(s.stateEventLocked())
}

func (s *Session) stateEventLocked() Event {
	st := s.state
	eff := ComputeEffect(st.Params)
	style := eff.Style(s.variant)
	return Event{Type: EventState, State: &st, Effect: &eff, Style: &style}
}

func (s *Session) broadcastLocked(e Event) {
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
