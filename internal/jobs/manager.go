package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lunarsound/longwave/internal/audio"
	"github.com/lunarsound/longwave/internal/extend"
	"github.com/lunarsound/longwave/internal/observability"
	"github.com/lunarsound/longwave/internal/store"
)

var ErrJobNotFound = errors.New("job not found")

// State is a job's lifecycle phase.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Job is a caller-visible snapshot of one generation request.
type Job struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Seconds    int       `json:"seconds"`
	State      State     `json:"state"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Update is pushed to progress subscribers whenever a job changes.
type Update struct {
	State    State   `json:"state"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

func (s State) terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Config holds job manager parameters.
type Config struct {
	Plan            extend.Plan // segment parameters, target replaced per job
	SampleRate      int
	SmoothingWindow int // samples ramped at each edge of a finished track
	MaxQueue        int
	MaxSeconds      int // longest accepted request
}

// Manager owns the generation worker. Requests are queued and run strictly
// one at a time: the backend serializes GPU work and the extended pipeline is
// sequential by construction.
type Manager struct {
	proc    extend.Processor
	store   *store.Store
	metrics *observability.Metrics
	cfg     Config

	frameCh chan []int16

	previewMu     sync.Mutex
	previewCancel context.CancelFunc

	mu    sync.RWMutex
	jobs  map[string]*job
	queue chan string
}

type job struct {
	Job
	abort atomic.Bool
	subs  map[chan Update]struct{}
}

// NewManager creates a job manager around a processor and a track store.
func NewManager(proc extend.Processor, st *store.Store, metrics *observability.Metrics, cfg Config) *Manager {
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 16
	}
	return &Manager{
		proc:    proc,
		store:   st,
		metrics: metrics,
		cfg:     cfg,
		frameCh: make(chan []int16, 100),
		jobs:    make(map[string]*job),
		queue:   make(chan string, cfg.MaxQueue),
	}
}

// Frames returns the channel of preview PCM frames for finished tracks.
func (m *Manager) Frames() <-chan []int16 {
	return m.frameCh
}

// Submit queues a generation request and returns its job snapshot.
func (m *Manager) Submit(prompt string, seconds int) (Job, error) {
	if prompt == "" {
		return Job{}, fmt.Errorf("prompt must not be empty")
	}
	if seconds <= 0 {
		return Job{}, fmt.Errorf("seconds must be positive")
	}
	if m.cfg.MaxSeconds > 0 && seconds > m.cfg.MaxSeconds {
		return Job{}, fmt.Errorf("seconds must not exceed %d", m.cfg.MaxSeconds)
	}

	j := &job{
		Job: Job{
			ID:        uuid.NewString(),
			Prompt:    prompt,
			Seconds:   seconds,
			State:     StateQueued,
			CreatedAt: time.Now().UTC(),
		},
		subs: make(map[chan Update]struct{}),
	}

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.mu.Unlock()

	select {
	case m.queue <- j.ID:
	default:
		m.mu.Lock()
		delete(m.jobs, j.ID)
		m.mu.Unlock()
		return Job{}, fmt.Errorf("generation queue is full")
	}

	m.metrics.QueuedJobs.Inc()
	log.Printf("Job %s queued: %ds %q", j.ID, seconds, prompt)
	return j.Job, nil
}

// Get returns a job snapshot, falling back to the track store for jobs from
// earlier runs of the service.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	if ok {
		snapshot := j.Job
		m.mu.RUnlock()
		return snapshot, nil
	}
	m.mu.RUnlock()

	track, err := m.store.Get(id)
	if errors.Is(err, store.ErrTrackNotFound) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return trackJob(track), nil
}

// Cancel requests an abort. A queued job is discarded when it reaches the
// worker; a running job stops at its next cancellation point (between
// segments on the extended path, at the next progress report on the short
// path).
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	j.abort.Store(true)
	return nil
}

// Subscribe registers a progress listener for a job. The current state is
// delivered immediately; the channel is closed once the job reaches a
// terminal state. The returned func unsubscribes.
func (m *Manager) Subscribe(id string) (<-chan Update, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, nil, ErrJobNotFound
	}

	ch := make(chan Update, 16)
	ch <- Update{State: j.State, Progress: j.Progress, Error: j.Error}
	if j.State.terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	j.subs[ch] = struct{}{}

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, still := j.subs[ch]; still {
			delete(j.subs, ch)
			close(ch)
		}
	}
	return ch, unsubscribe, nil
}

// Run drains the queue until ctx is cancelled. Call once.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			m.metrics.QueuedJobs.Dec()
			m.runJob(ctx, id)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, id string) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return
	}

	if j.abort.Load() || ctx.Err() != nil {
		m.finish(j, StateCancelled, "cancelled before start", nil)
		return
	}

	m.publish(j, StateRunning, 0, "")
	start := time.Now()

	samples, err := m.proc.Process(j.Prompt, j.Seconds, func(elapsed, total float64) bool {
		frac := 0.0
		if total > 0 {
			frac = elapsed / total
		}
		if frac > 1 {
			frac = 1
		}
		m.advance(j, frac)
		return j.abort.Load() || ctx.Err() != nil
	})

	if err != nil {
		var segErr *extend.SegmentError
		if errors.As(err, &segErr) {
			m.metrics.SegmentFailures.Inc()
		}
		if errors.Is(err, extend.ErrAborted) {
			log.Printf("Job %s cancelled after %v", id, time.Since(start).Round(time.Millisecond))
			m.finish(j, StateCancelled, "", nil)
			return
		}
		log.Printf("Job %s failed: %v", id, err)
		m.finish(j, StateFailed, err.Error(), nil)
		return
	}

	// Suppress clicks at the hard edges of the finished buffer.
	extend.ApplySmoothing(samples, m.cfg.SmoothingWindow)

	if expected := j.Seconds * m.cfg.SampleRate; len(samples) < expected {
		// The backend under-delivered; accepted as a best-effort result.
		log.Printf("Job %s delivered %d of %d samples", id, len(samples), expected)
	}

	m.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	m.metrics.SegmentsGenerated.Add(float64(m.segmentsFor(j.Seconds)))

	m.finish(j, StateDone, "", samples)
	log.Printf("Job %s done: %d samples in %v", id, len(samples), time.Since(start).Round(time.Millisecond))

	m.startPreview(ctx, samples)
}

// segmentsFor mirrors the dispatch policy: short requests are one direct
// call, long ones run the segment plan.
func (m *Manager) segmentsFor(seconds int) int {
	if seconds <= extend.MaxSegmentSeconds {
		return 1
	}
	plan := m.cfg.Plan
	plan.TargetDuration = seconds
	return plan.SegmentCount()
}

// finish moves a job to a terminal state, persists it, and notifies
// subscribers. samples is nil for anything but a successful run.
func (m *Manager) finish(j *job, state State, errMsg string, samples []float32) {
	if state == StateDone {
		wav, err := audio.EncodeWAV(samples, m.cfg.SampleRate)
		if err != nil {
			state, errMsg = StateFailed, fmt.Sprintf("encode track: %v", err)
		} else if err := m.store.PutAudio(j.ID, wav); err != nil {
			state, errMsg = StateFailed, fmt.Sprintf("persist track: %v", err)
		}
	}

	m.mu.Lock()
	j.State = state
	j.Error = errMsg
	j.FinishedAt = time.Now().UTC()
	if state == StateDone {
		j.Progress = 1
	}
	update := Update{State: j.State, Progress: j.Progress, Error: j.Error}
	for ch := range j.subs {
		select {
		case ch <- update:
		default:
		}
		close(ch)
		delete(j.subs, ch)
	}
	record := jobTrack(&j.Job, len(samples), m.cfg.SampleRate)
	m.mu.Unlock()

	if err := m.store.Put(record); err != nil {
		log.Printf("Job %s: persist record: %v", j.ID, err)
	}

	outcome := string(state)
	m.metrics.JobsTotal.WithLabelValues(outcome).Inc()
}

func (m *Manager) publish(j *job, state State, progress float64, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.State = state
	j.Progress = progress
	j.Error = errMsg
	update := Update{State: state, Progress: progress, Error: errMsg}
	for ch := range j.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

// advance raises a running job's progress; regressions are ignored so the
// reported signal stays monotonic.
func (m *Manager) advance(j *job, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if progress <= j.Progress {
		return
	}
	j.Progress = progress
	update := Update{State: j.State, Progress: progress}
	for ch := range j.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

// startPreview paces the finished track through the frame channel in real
// time, replacing any preview still playing.
func (m *Manager) startPreview(ctx context.Context, samples []float32) {
	pcm := audio.Float32ToPCM16(samples)
	frameSize := audio.FrameSize(m.cfg.SampleRate)
	if frameSize <= 0 || len(pcm) < frameSize {
		return
	}

	m.previewMu.Lock()
	if m.previewCancel != nil {
		m.previewCancel()
	}
	pctx, cancel := context.WithCancel(ctx)
	m.previewCancel = cancel
	m.previewMu.Unlock()

	go func() {
		defer cancel()
		ticker := time.NewTicker(audio.FrameDuration)
		defer ticker.Stop()

		for off := 0; off+frameSize <= len(pcm); off += frameSize {
			select {
			case <-pctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case m.frameCh <- pcm[off : off+frameSize]:
			case <-pctx.Done():
				return
			}
		}
	}()
}

func jobTrack(j *Job, samples int, sampleRate int) *store.Track {
	return &store.Track{
		ID:         j.ID,
		Prompt:     j.Prompt,
		Seconds:    j.Seconds,
		SampleRate: sampleRate,
		Samples:    samples,
		State:      string(j.State),
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		FinishedAt: j.FinishedAt,
	}
}

func trackJob(t *store.Track) Job {
	j := Job{
		ID:         t.ID,
		Prompt:     t.Prompt,
		Seconds:    t.Seconds,
		State:      State(t.State),
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
		FinishedAt: t.FinishedAt,
	}
	if j.State == StateDone {
		j.Progress = 1
	}
	return j
}
