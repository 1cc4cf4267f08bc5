// Package registry holds every in-flight and completed lab in memory and
// arbitrates concurrent access to each one. It never persists anything
// across a process restart (spec.md's explicit non-goal) and never blocks
// an external call — or a slow reader — behind another lab's lock.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/labforge/pkg/lab"
)

// Lab is the live, mutable record behind one lab_id. Every field below is
// guarded by mu; callers outside this package only ever see it through
// Mutate (while mu is held) or through the copies returned by Get/List.
type Lab struct {
	ID           string
	Prompt       string
	Options      lab.Options
	Status       lab.Status
	CurrentStage lab.Stage
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Conversation      []lab.Message
	AwaitingUserInput bool

	Progress   lab.Progress
	Error      string
	RetryCount int

	mu      sync.Mutex
	pending chan string
}

// Registry is the concurrent-safe store of all labs for this process.
type Registry struct {
	mu        sync.RWMutex
	labs      map[string]*Lab
	queueSize int
}

// New builds an empty Registry. queueSize bounds each lab's pending-message
// queue (§5 back-pressure).
func New(queueSize int) *Registry {
	return &Registry{
		labs:      make(map[string]*Lab),
		queueSize: queueSize,
	}
}

// Create installs a new lab in PlannerRunning state and returns its id. It
// never blocks on anything but the registry-wide map lock.
func (r *Registry) Create(prompt string, opts lab.Options) string {
	id := uuid.New().String()
	now := time.Now()

	l := &Lab{
		ID:        id,
		Prompt:    prompt,
		Options:   opts,
		Status:    lab.StatusPlannerRunning,
		CreatedAt: now,
		UpdatedAt: now,
		pending:   make(chan string, r.queueSize),
	}

	r.mu.Lock()
	r.labs[id] = l
	r.mu.Unlock()

	return id
}

func (r *Registry) find(id string) (*Lab, error) {
	r.mu.RLock()
	l, ok := r.labs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l, nil
}

// Get returns a deep-copied, lock-free snapshot of one lab.
func (r *Registry) Get(id string) (lab.Snapshot, error) {
	l, err := r.find(id)
	if err != nil {
		return lab.Snapshot{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return snapshotLocked(l), nil
}

func snapshotLocked(l *Lab) lab.Snapshot {
	return lab.Snapshot{
		ID:                l.ID,
		Prompt:            l.Prompt,
		Options:           l.Options,
		Status:            l.Status,
		CurrentStage:      l.CurrentStage,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
		Conversation:      append([]lab.Message(nil), l.Conversation...),
		AwaitingUserInput: l.AwaitingUserInput,
		Progress:          l.Progress.Clone(),
		Error:             l.Error,
		RetryCount:        l.RetryCount,
	}
}

// List returns a summary of every lab, most recently created first.
func (r *Registry) List() []lab.Summary {
	r.mu.RLock()
	all := make([]*Lab, 0, len(r.labs))
	for _, l := range r.labs {
		all = append(all, l)
	}
	r.mu.RUnlock()

	out := make([]lab.Summary, len(all))
	for i, l := range all {
		l.mu.Lock()
		out[i] = lab.Summary{
			ID:        l.ID,
			Title:     lab.TitleOrPrompt(l.Progress, l.Prompt),
			Status:    l.Status,
			CreatedAt: l.CreatedAt,
		}
		l.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Mutate runs fn with exclusive access to the lab's live record and bumps
// UpdatedAt afterward. fn must not block — no network calls, no channel
// receives — since it runs under the lab's own mutex.
func (r *Registry) Mutate(id string, fn func(*Lab)) error {
	l, err := r.find(id)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l)
	l.UpdatedAt = time.Now()
	return nil
}

// EnqueueMessage submits a user-authored message for the Planner controller
// to consume. It fails with ErrInvalidState unless the lab is currently
// running its Planner turn loop, and ErrQueueFull once the bounded queue is
// saturated (§5).
func (r *Registry) EnqueueMessage(id, content string) error {
	l, err := r.find(id)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Status != lab.StatusPlannerRunning && l.Status != lab.StatusAwaitingUserInput {
		return fmt.Errorf("%w: status is %s", ErrInvalidState, l.Status)
	}

	select {
	case l.pending <- content:
		return nil
	default:
		return ErrQueueFull
	}
}

// DequeueMessage blocks until a pending message arrives for id, ctx is
// cancelled, or ctx's deadline passes. It never holds the lab's mutex while
// waiting.
func (r *Registry) DequeueMessage(ctx context.Context, id string) (string, error) {
	l, err := r.find(id)
	if err != nil {
		return "", err
	}

	select {
	case msg := <-l.pending:
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
