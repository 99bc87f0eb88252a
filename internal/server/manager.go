// Package server exposes tuning sweeps over HTTP. Submitted jobs queue on a
// manager whose single worker runs them one at a time, so the device is never
// shared between sweeps.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anantzoid/kernel-tuner/internal/jobfile"
	"github.com/anantzoid/kernel-tuner/internal/logger"
	"github.com/anantzoid/kernel-tuner/internal/report"
)

// Status of a submitted sweep.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Sweep is the lifecycle record of one submitted tuning job.
type Sweep struct {
	ID         string         `json:"id"`
	Status     Status         `json:"status"`
	Kernel     string         `json:"kernel"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	Report     *report.Report `json:"report,omitempty"`

	job *jobfile.Job
}

func (s *Sweep) snapshot() Sweep {
	out := *s
	out.job = nil
	return out
}

// Runner executes one job and produces its report. The manager calls it from
// the worker goroutine only, never concurrently.
type Runner func(ctx context.Context, job *jobfile.Job) (*report.Report, error)

// Sentinel errors for cancellation outcomes.
var (
	ErrNotFound   = errors.New("sweep not found")
	ErrNotPending = errors.New("sweep is not pending")
)

// Manager tracks submitted sweeps and feeds them to the worker in submission
// order.
type Manager struct {
	runner Runner
	log    logger.Logger
	clock  func() time.Time

	mu     sync.Mutex
	sweeps map[string]*Sweep
	order  []string
	queue  []string

	wake chan struct{}
	wg   sync.WaitGroup
}

// NewManager builds a manager around a runner. A nil logger falls back to the
// default one.
func NewManager(runner Runner, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		runner: runner,
		log:    log,
		clock:  time.Now,
		sweeps: make(map[string]*Sweep),
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. The worker exits when ctx is
// cancelled; pending sweeps are left in place.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

// Wait blocks until the worker has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Submit registers a job and queues it for the worker.
func (m *Manager) Submit(job *jobfile.Job) Sweep {
	sw := &Sweep{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Kernel:    job.Kernel.Name,
		CreatedAt: m.clock().UTC(),
		job:       job,
	}

	m.mu.Lock()
	m.sweeps[sw.ID] = sw
	m.order = append(m.order, sw.ID)
	m.queue = append(m.queue, sw.ID)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}

	m.log.Info("sweep queued", "id", sw.ID, "kernel", sw.Kernel)
	return sw.snapshot()
}

// Get returns a snapshot of one sweep.
func (m *Manager) Get(id string) (Sweep, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sw, ok := m.sweeps[id]
	if !ok {
		return Sweep{}, false
	}
	return sw.snapshot(), true
}

// List returns snapshots of all sweeps in submission order.
func (m *Manager) List() []Sweep {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sweep, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sweeps[id].snapshot())
	}
	return out
}

// Cancel withdraws a pending sweep. Sweeps that have already started (or
// finished) report ErrNotPending with their status.
func (m *Manager) Cancel(id string) (Sweep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sw, ok := m.sweeps[id]
	if !ok {
		return Sweep{}, ErrNotFound
	}
	if sw.Status != StatusPending {
		return sw.snapshot(), fmt.Errorf("%w: status is %s", ErrNotPending, sw.Status)
	}
	now := m.clock().UTC()
	sw.Status = StatusCancelled
	sw.FinishedAt = &now
	m.log.Info("sweep cancelled", "id", sw.ID, "kernel", sw.Kernel)
	return sw.snapshot(), nil
}

func (m *Manager) run(ctx context.Context) {
	for {
		id, ok := m.next(ctx)
		if !ok {
			return
		}
		m.execute(ctx, id)
	}
}

// next pops the oldest pending sweep, marking it running. Entries cancelled
// while queued are skipped. With an empty queue it sleeps until Submit wakes
// it or ctx ends.
func (m *Manager) next(ctx context.Context) (string, bool) {
	for {
		m.mu.Lock()
		for len(m.queue) > 0 {
			id := m.queue[0]
			m.queue = m.queue[1:]
			sw := m.sweeps[id]
			if sw.Status != StatusPending {
				continue
			}
			now := m.clock().UTC()
			sw.Status = StatusRunning
			sw.StartedAt = &now
			m.mu.Unlock()
			return id, true
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-m.wake:
		}
	}
}

func (m *Manager) execute(ctx context.Context, id string) {
	m.mu.Lock()
	sw := m.sweeps[id]
	job := sw.job
	kernel := sw.Kernel
	m.mu.Unlock()

	m.log.Info("sweep started", "id", id, "kernel", kernel)
	start := m.clock()
	rep, err := m.runner(ctx, job)
	now := m.clock().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	sw.FinishedAt = &now
	if err != nil {
		sw.Status = StatusFailed
		sw.Error = err.Error()
		m.log.Error("sweep failed", "id", id, "kernel", kernel, "error", err)
		return
	}
	sw.Status = StatusCompleted
	sw.Report = rep
	m.log.Info("sweep finished", "id", id, "kernel", kernel, "elapsed", m.clock().Sub(start))
}
