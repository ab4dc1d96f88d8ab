/*
document.go - Tracker-document ingestion pipeline

PURPOSE:
  Orchestrates the two-phase ingestion of a scanned tracker report:
  (1) page-by-page conversion to images, with (currentPage, totalPages)
  progress, then (2) a single batched call to the extraction service,
  tracked with an elapsed-time counter because the service emits no
  intermediate progress signal.

SESSIONS:
  Each run is a Session. The session is the liveness flag demanded by the
  no-cancellation reality of the external call: abandoning a session does
  not stop in-flight work, it only guarantees that a late-arriving result
  (success or failure) is discarded instead of committed.

ORDER OF CHECKS:
  Active rate config and input format are verified synchronously in Start,
  before any pipeline work: both are hard preconditions, not mid-flight
  failures.

SEE ALSO:
  - convert.go:    phase 1
  - extraction.go: phase 2 and the trust boundary
*/
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frotaops/settlement-engine/payroll"
)

// =============================================================================
// SESSION - One ingestion run with observable progress
// =============================================================================

type Stage string

const (
	StageConverting Stage = "converting"
	StageExtracting Stage = "extracting"
	StageDone       Stage = "done"
	StageEmpty      Stage = "empty"     // extraction succeeded with zero entries
	StageFailed     Stage = "failed"
	StageAbandoned  Stage = "abandoned"
)

// Progress is a point-in-time snapshot of a session.
type Progress struct {
	Stage       Stage
	CurrentPage int
	TotalPages  int
	// Elapsed time of the extraction phase; the service gives no finer signal.
	ExtractionElapsed time.Duration
	Error             string
}

// Session tracks one document ingestion from upload to committed day set.
type Session struct {
	ID       string
	DriverID payroll.DriverID
	Filename string

	mu           sync.Mutex
	stage        Stage
	currentPage  int
	totalPages   int
	extractStart time.Time
	extractEnd   time.Time
	finishedAt   time.Time
	days         []payroll.DayRecord
	err          error
	abandoned    bool
	done         chan struct{}
}

// Progress returns the current snapshot.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Progress{
		Stage:       s.stage,
		CurrentPage: s.currentPage,
		TotalPages:  s.totalPages,
	}
	if !s.extractStart.IsZero() {
		end := s.extractEnd
		if end.IsZero() {
			end = time.Now()
		}
		p.ExtractionElapsed = end.Sub(s.extractStart)
	}
	if s.err != nil {
		p.Error = s.err.Error()
	}
	return p
}

// Abandon marks the session dead. In-flight work still completes or fails
// independently, but its result will be discarded.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageDone || s.stage == StageFailed || s.stage == StageEmpty {
		return // already terminal; result stands
	}
	s.abandoned = true
	s.stage = StageAbandoned
	s.finishedAt = time.Now()
}

// terminalSince returns when the session reached a terminal stage.
func (s *Session) terminalSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt, !s.finishedAt.IsZero()
}

// Result returns the extracted day set once the session is terminal.
func (s *Session) Result() ([]payroll.DayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stage {
	case StageDone:
		out := make([]payroll.DayRecord, len(s.days))
		copy(out, s.days)
		return out, nil
	case StageEmpty:
		return nil, payroll.ErrEmptyExtraction
	case StageFailed:
		return nil, s.err
	case StageAbandoned:
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: "session abandoned"}
	default:
		return nil, &payroll.ExtractionError{Stage: "extraction", Reason: "still in progress"}
	}
}

// Wait blocks until the pipeline goroutine finishes or ctx expires.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) setConverting(current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return // progress reporting stops for abandoned sessions
	}
	s.stage = StageConverting
	s.currentPage = current
	s.totalPages = total
}

func (s *Session) setExtracting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.abandoned {
		s.stage = StageExtracting
	}
	s.extractStart = time.Now()
}

// finish commits the terminal state unless the session was abandoned, in
// which case both results and failures are silently dropped.
func (s *Session) finish(days []payroll.DayRecord, err error) (committed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.extractStart.IsZero() && s.extractEnd.IsZero() {
		s.extractEnd = time.Now()
	}
	if s.finishedAt.IsZero() {
		s.finishedAt = time.Now()
	}
	defer close(s.done)

	if s.abandoned {
		return false
	}
	switch {
	case err == nil && len(days) == 0:
		s.stage = StageEmpty
	case err == nil:
		s.stage = StageDone
		s.days = days
	default:
		s.stage = StageFailed
		s.err = err
	}
	return true
}

// =============================================================================
// PIPELINE
// =============================================================================

// sessionRetention is how long a terminal session stays fetchable before
// the registry sweeps it.
const sessionRetention = 30 * time.Minute

// Pipeline runs document ingestions and keeps a registry of live sessions.
// Terminal sessions are removed on import (see Remove) or swept after the
// retention window, so the registry cannot grow without bound.
type Pipeline struct {
	client   ExtractionClient
	configs  payroll.RateConfigStore
	holidays payroll.HolidayStore
	log      *logrus.Logger

	// Converters maps a sniffed format to its converter. Overridable in
	// tests to inject failing or instant converters.
	Converters func(Format) (PageConverter, error)

	// Retention bounds how long terminal sessions remain in the registry.
	Retention time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewPipeline(client ExtractionClient, configs payroll.RateConfigStore, holidays payroll.HolidayStore, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{
		client:     client,
		configs:    configs,
		holidays:   holidays,
		log:        log,
		Converters: ConverterFor,
		Retention:  sessionRetention,
		sessions:   make(map[string]*Session),
	}
}

// Get returns a registered session.
func (p *Pipeline) Get(sessionID string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked()
	s, ok := p.sessions[sessionID]
	return s, ok
}

// Remove drops a session from the registry, typically after its day set has
// been committed into a settlement.
func (p *Pipeline) Remove(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, sessionID)
}

// sweepLocked evicts sessions that have been terminal longer than the
// retention window. Caller holds p.mu.
func (p *Pipeline) sweepLocked() {
	cutoff := time.Now().Add(-p.Retention)
	for id, s := range p.sessions {
		if finished, terminal := s.terminalSince(); terminal && finished.Before(cutoff) {
			delete(p.sessions, id)
		}
	}
}

// Start verifies the hard preconditions synchronously, registers a session
// and runs the two-phase pipeline in the background. ctx is the caller's
// cancellation token for the external call.
func (p *Pipeline) Start(ctx context.Context, driverID payroll.DriverID, filename string, data []byte) (*Session, error) {
	// Precondition 1: an active rate config. Refusing here keeps ingestion
	// from ever producing day records with defaulted rates.
	config, err := p.configs.GetActiveConfig(ctx, driverID)
	if err != nil {
		return nil, err
	}

	// Precondition 2: a recognized input format.
	format, err := SniffFormat(data)
	if err != nil {
		return nil, err
	}
	converter, err := p.Converters(format)
	if err != nil {
		return nil, err
	}

	// Snapshot the declared holidays for this run: the set is a value, not
	// shared state, so concurrent settlements cannot contaminate each other.
	declared, err := p.holidays.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	set := payroll.NewHolidaySet(declared...)

	session := &Session{
		ID:       uuid.NewString(),
		DriverID: driverID,
		Filename: filename,
		stage:    StageConverting,
		done:     make(chan struct{}),
	}
	p.mu.Lock()
	p.sweepLocked()
	p.sessions[session.ID] = session
	p.mu.Unlock()

	go p.run(ctx, session, config, set, converter, data)
	return session, nil
}

func (p *Pipeline) run(ctx context.Context, session *Session, config payroll.RateConfig, holidays payroll.HolidaySet, converter PageConverter, data []byte) {
	log := p.log.WithFields(logrus.Fields{
		"session": session.ID,
		"driver":  session.DriverID,
		"file":    session.Filename,
	})

	// Phase 1: page-by-page conversion. Any failure aborts the whole batch.
	pages, err := converter.Convert(ctx, data, session.setConverting)
	if err != nil {
		if session.finish(nil, wrapConversion(err)) {
			log.WithError(err).Warn("document conversion failed")
		}
		return
	}

	// Phase 2: one batched, open-ended extraction call.
	session.setExtracting()
	entries, err := p.client.Extract(ctx, ExtractionRequest{Filename: session.Filename, Pages: pages})
	if err != nil {
		if session.finish(nil, err) {
			log.WithError(err).Warn("extraction failed")
		}
		return
	}
	if len(entries) == 0 {
		if session.finish(nil, nil) {
			log.Info("extraction returned no day entries")
		}
		return
	}

	days := make([]payroll.DayRecord, 0, len(entries))
	for _, entry := range entries {
		in, err := entry.ToDayInput(holidays)
		if err != nil {
			if session.finish(nil, &payroll.ExtractionError{Stage: "validation", Reason: err.Error(), Err: err}) {
				log.WithError(err).Warn("extracted entry rejected")
			}
			return
		}
		day, err := payroll.ComputeDay(config, in)
		if err != nil {
			if session.finish(nil, &payroll.ExtractionError{Stage: "validation", Reason: err.Error(), Err: err}) {
				log.WithError(err).Warn("extracted entry rejected")
			}
			return
		}
		day.ID = uuid.NewString()
		day.Source = payroll.SourceTracker
		raw, _ := json.Marshal(entry)
		day.TrackerRawPayload = raw
		days = append(days, day)
	}

	if session.finish(days, nil) {
		log.WithField("days", len(days)).Info("document ingestion complete")
	} else {
		log.Info("late extraction result discarded for abandoned session")
	}
}

func wrapConversion(err error) error {
	var exErr *payroll.ExtractionError
	if errors.As(err, &exErr) {
		return err
	}
	return &payroll.ExtractionError{Stage: "conversion", Reason: err.Error(), Err: err}
}
