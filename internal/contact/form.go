package contact

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultAutoDismiss is how long a success banner stays up.
const DefaultAutoDismiss = 5 * time.Second

// Sender delivers a payload to the remote relay. A nil error means the relay
// acknowledged the message.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, p Payload) error

func (f SenderFunc) Send(ctx context.Context, p Payload) error { return f(ctx, p) }

// Option configures a Form.
type Option func(*Form)

// WithAutoDismiss overrides how long a success banner stays before the form
// reverts to Idle.
func WithAutoDismiss(d time.Duration) Option {
	return func(f *Form) {
		if d > 0 {
			f.autoDismiss = d
		}
	}
}

// WithLogger sets the logger used for the diagnostic trace of failures.
func WithLogger(log *zap.Logger) Option {
	return func(f *Form) {
		if log != nil {
			f.log = log
		}
	}
}

// View is a snapshot of a form for rendering.
type View struct {
	ID          string
	Phase       Phase
	Message     string
	Success     bool
	Disabled    bool
	FieldErrors FieldErrors
	Values      Payload
	// Missing is filled by callers that rejected an incomplete submit.
	Missing []string
}

// Banner reports whether the status banner is visible.
func (v View) Banner() bool { return v.Message != "" }

// Error returns the inline error for a form key.
func (v View) Error(key string) string { return v.FieldErrors[key] }

// IsMissing reports whether key was flagged as a missing required field.
func (v View) IsMissing(key string) bool {
	for _, m := range v.Missing {
		if m == key {
			return true
		}
	}
	return false
}

// Form is the state of one rendered contact form:
// Idle -> Submitting -> Succeeded|Failed -> Idle.
type Form struct {
	id          string
	sender      Sender
	log         *zap.Logger
	autoDismiss time.Duration

	mu      sync.Mutex
	status  Status
	fields  FieldErrors
	values  Payload
	episode uint64
	timer   *time.Timer
	closed  bool
	touched time.Time
}

// NewForm returns an Idle form that submits through sender.
func NewForm(id string, sender Sender, opts ...Option) *Form {
	f := &Form{
		id:          id,
		sender:      sender,
		log:         zap.NewNop(),
		autoDismiss: DefaultAutoDismiss,
		touched:     time.Now(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ID returns the identifier of the view.
func (f *Form) ID() string { return f.id }

// Submit runs one submission: Begin, a single Send, then Finish. Relay
// failures are recovered into the returned View; the error is only set when
// the submit was refused before reaching the relay.
func (f *Form) Submit(ctx context.Context, p Payload) (View, error) {
	if err := f.Begin(p); err != nil {
		return f.View(), err
	}
	err := f.sender.Send(ctx, p)
	if err != nil {
		f.log.Warn("contact submission failed", zap.String("form", f.id), zap.Error(err))
	} else {
		f.log.Info("contact submission sent", zap.String("form", f.id))
	}
	return f.Finish(err), nil
}

// Begin moves the form to Submitting. It refuses a second submit while one is
// in flight and a payload with empty required fields.
func (f *Form) Begin(p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.touched = time.Now()
	if f.status.Phase == Submitting {
		return ErrInFlight
	}
	if missing := p.Missing(); len(missing) > 0 {
		f.values = p
		return &IncompleteError{Missing: missing}
	}

	f.stopTimer()
	f.episode++
	f.status = Status{Phase: Submitting}
	f.fields = nil
	f.values = p
	return nil
}

// Finish records the outcome of the Send started by Begin. It is a no-op
// unless the form is Submitting.
func (f *Form) Finish(err error) View {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.status.Phase != Submitting {
		return f.viewLocked()
	}
	f.touched = time.Now()
	f.episode++

	if err == nil {
		f.status = Status{Phase: Succeeded, Message: MsgSent}
		f.values = Payload{}
		ep := f.episode
		f.timer = time.AfterFunc(f.autoDismiss, func() { f.expire(ep) })
		return f.viewLocked()
	}

	msg, fields := failure(err)
	f.status = Status{Phase: Failed, Message: msg}
	f.fields = fields
	return f.viewLocked()
}

// Dismiss hides the banner of a Succeeded or Failed form and reports whether
// anything changed. Inline field errors stay until the next submit.
func (f *Form) Dismiss() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.touched = time.Now()
	if f.status.Phase != Succeeded && f.status.Phase != Failed {
		return false
	}
	f.stopTimer()
	f.episode++
	f.status = Status{Phase: Idle}
	return true
}

// Close tears the view down. Pending timers are stopped and later calls do
// not change the state.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimer()
	f.closed = true
}

// Closed reports whether Close was called.
func (f *Form) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Status returns the active status.
func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// View returns a snapshot for rendering.
func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

// idleSince reports when the form was last used and whether it may be
// evicted now. A form with a request in flight is never evictable.
func (f *Form) idleSince() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched, f.status.Phase != Submitting
}

func (f *Form) expire(ep uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || ep != f.episode {
		return
	}
	f.timer = nil
	f.episode++
	f.status = Status{Phase: Idle}
}

func (f *Form) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Form) viewLocked() View {
	return View{
		ID:          f.id,
		Phase:       f.status.Phase,
		Message:     f.status.Message,
		Success:     f.status.Phase == Succeeded,
		Disabled:    f.status.Phase == Submitting,
		FieldErrors: f.fields.clone(),
		Values:      f.values,
	}
}
