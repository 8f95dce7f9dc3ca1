package contact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLimit caps the live views when NewRegistry is given no limit.
const DefaultLimit = 1000

// Registry holds the contact form views handed out to visitors. A page load
// only hands out a Draft id; the Form behind it is allocated on the first
// submit. Views idle longer than the TTL are torn down, and at most limit
// views are live at once.
type Registry struct {
	sender Sender
	ttl    time.Duration
	limit  int
	log    *zap.Logger
	opts   []Option

	mu    sync.Mutex
	forms map[string]*Form
}

// NewRegistry creates a Registry whose forms submit through sender.
func NewRegistry(sender Sender, ttl time.Duration, limit int, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Registry{
		sender: sender,
		ttl:    ttl,
		limit:  limit,
		log:    log,
		opts:   append([]Option{WithLogger(log)}, opts...),
		forms:  make(map[string]*Form),
	}
}

// Draft returns an Idle view under a new id without allocating a Form.
func (r *Registry) Draft() View {
	return View{ID: uuid.NewString(), Phase: Idle}
}

// Peek returns the view for id. A well-formed id with no live Form is an
// Idle view; a malformed id is ErrNotFound.
func (r *Registry) Peek(id string) (View, error) {
	if f, err := r.Get(id); err == nil {
		return f.View(), nil
	}
	if !ValidID(id) {
		return View{}, ErrNotFound
	}
	return View{ID: id, Phase: Idle}, nil
}

// Open creates a fresh Idle view, making room by evicting idle views.
func (r *Registry) Open() *Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, _ := r.insertLocked(uuid.NewString(), true)
	return f
}

// Acquire returns the Form for id, allocating it when id is a well-formed
// Draft id. When the registry is full and every view has a request in
// flight it returns ErrFull.
func (r *Registry) Acquire(id string) (*Form, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.forms[id]; ok {
		return f, nil
	}
	return r.insertLocked(id, false)
}

func (r *Registry) insertLocked(id string, force bool) (*Form, error) {
	for len(r.forms) >= r.limit {
		if !r.evictOldestLocked() {
			if !force {
				return nil, ErrFull
			}
			break
		}
	}
	f := NewForm(id, r.sender, r.opts...)
	r.forms[id] = f
	return f, nil
}

// evictOldestLocked closes the least recently used view that has no request
// in flight.
func (r *Registry) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, f := range r.forms {
		touched, evictable := f.idleSince()
		if evictable && (oldestID == "" || touched.Before(oldest)) {
			oldestID, oldest = id, touched
		}
	}
	if oldestID == "" {
		return false
	}
	f := r.forms[oldestID]
	delete(r.forms, oldestID)
	f.Close()
	r.log.Debug("evicted contact form to make room", zap.String("form", oldestID))
	return true
}

// ValidID reports whether id is a view id in canonical form.
func ValidID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

// Get looks a view up by id.
func (r *Registry) Get(id string) (*Form, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// Release tears a view down and forgets it.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	f, ok := r.forms[id]
	delete(r.forms, id)
	r.mu.Unlock()
	if ok {
		f.Close()
	}
}

// Len returns the number of live views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Sweep evicts views untouched for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep(now time.Time) int {
	var stale []*Form

	r.mu.Lock()
	for id, f := range r.forms {
		touched, evictable := f.idleSince()
		if evictable && now.Sub(touched) > r.ttl {
			stale = append(stale, f)
			delete(r.forms, id)
		}
	}
	r.mu.Unlock()

	for _, f := range stale {
		f.Close()
	}
	return len(stale)
}

// Run sweeps on every interval until ctx is cancelled, then closes all views.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.log.Debug("evicted idle contact forms", zap.Int("count", n))
			}
		}
	}
}

// Close tears down every view.
func (r *Registry) Close() {
	r.mu.Lock()
	forms := r.forms
	r.forms = make(map[string]*Form)
	r.mu.Unlock()
	for _, f := range forms {
		f.Close()
	}
}
