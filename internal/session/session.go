// Package session holds the in-memory state of one analysis session: the
// loaded dataset, the current report, and the pending refinement directive.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/KaramelBytes/datalens-cli/internal/logger"
	"github.com/KaramelBytes/datalens-cli/internal/prompt"
)

// ErrSuperseded is returned by Load when a newer upload was started after the
// ticket was issued. The parse result is discarded.
var ErrSuperseded = errors.New("upload superseded by a newer file")

// Config wires a session to its generation backend.
type Config struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	Logger      *logger.Logger
}

// Session is safe for concurrent use. Report generation runs in a single
// slot: a second Analyze or Regenerate while one is in flight fails with
// KindBusy and never touches the report.
type Session struct {
	id   string
	rt   ai.Runtime
	opt  prompt.Options
	log  *logger.Logger
	slot *semaphore.Weighted

	mu        sync.Mutex
	ticket    uint64
	fileName  string
	ds        *dataset.Dataset
	report    string
	hasReport bool
	generated time.Time
	directive string
	usage     ai.Usage
	lastErr   error
}

// New creates an empty session.
func New(cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = logger.L()
	}
	id := uuid.NewString()
	return &Session{
		id:   id,
		rt:   cfg.Runtime,
		opt:  prompt.Options{Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature},
		log:  log.With("session", id),
		slot: semaphore.NewWeighted(1),
	}
}

func (s *Session) ID() string { return s.id }

// BeginUpload invalidates any parse still in flight and returns the ticket
// for the new one.
func (s *Session) BeginUpload() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket++
	return s.ticket
}

// Load parses content and, if ticket is still current, replaces the dataset
// wholesale. On any failure the previous dataset stays in place.
func (s *Session) Load(ticket uint64, name string, content []byte) error {
	s.clearErr()
	ds, err := ingest.Load(name, content)
	if err == nil && ds.Empty() {
		err = apperr.Newf(apperr.KindNoData, "%s contains no data rows", baseName(name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.ticket {
		s.log.Debug("discarding superseded upload", "file", name, "ticket", ticket, "current", s.ticket)
		return ErrSuperseded
	}
	if err != nil {
		s.lastErr = err
		s.log.Warn("upload rejected", "file", name, "kind", string(apperr.KindOf(err)), "error", err.Error())
		return err
	}
	s.fileName = name
	s.ds = ds
	s.log.Info("dataset loaded", "file", name, "rows", ds.Len(), "columns", len(ds.Columns))
	return nil
}

// Upload is BeginUpload followed by Load.
func (s *Session) Upload(name string, content []byte) error {
	return s.Load(s.BeginUpload(), name, content)
}

// SetDirective stores the refinement directive used by the next Regenerate.
func (s *Session) SetDirective(d string) {
	s.mu.Lock()
	s.directive = d
	s.mu.Unlock()
}

// Analyze requests a fresh report for the loaded dataset.
func (s *Session) Analyze(ctx context.Context) (string, error) {
	return s.generate(ctx, prompt.ModeInitial)
}

// Regenerate requests a new report focused on the pending directive. The
// directive is cleared only when the new report is stored.
func (s *Session) Regenerate(ctx context.Context) (string, error) {
	return s.generate(ctx, prompt.ModeRegenerate)
}

// Preview builds the request Analyze or Regenerate would send, without sending it.
func (s *Session) Preview(mode prompt.Mode) (prompt.Request, error) {
	s.mu.Lock()
	name, ds, directive := s.fileName, s.ds, s.directive
	s.mu.Unlock()
	return s.build(name, ds, directive, mode)
}

func (s *Session) build(name string, ds *dataset.Dataset, directive string, mode prompt.Mode) (prompt.Request, error) {
	if ds.Empty() {
		return prompt.Request{}, apperr.New(apperr.KindNoData, "no dataset loaded: upload a .csv, .xlsx or .xls file first")
	}
	return prompt.Build(dataset.Summarize(baseName(name), ds), ds, directive, mode, s.opt)
}

func (s *Session) generate(ctx context.Context, mode prompt.Mode) (string, error) {
	if !s.slot.TryAcquire(1) {
		return "", apperr.New(apperr.KindBusy, "a report is already being generated")
	}
	defer s.slot.Release(1)

	s.mu.Lock()
	s.lastErr = nil
	name, ds, directive := s.fileName, s.ds, s.directive
	s.mu.Unlock()

	req, err := s.build(name, ds, directive, mode)
	if err != nil {
		return "", s.fail(err)
	}
	if s.rt == nil {
		return "", s.fail(apperr.New(apperr.KindGenerationFailure, "no generation runtime configured"))
	}

	start := time.Now()
	s.log.Info("requesting report", "mode", mode.String(), "model", req.Model, "file", name)
	resp, err := s.rt.Generate(ctx, req.GenerateRequest())
	if err != nil {
		return "", s.fail(apperr.Wrap(apperr.KindGenerationFailure, err, "report generation failed"))
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", s.fail(apperr.New(apperr.KindGenerationEmpty, "the generation service returned no report content"))
	}

	s.mu.Lock()
	s.report = text
	s.hasReport = true
	s.generated = time.Now()
	s.usage = resp.Usage
	if mode == prompt.ModeRegenerate && s.directive == directive {
		s.directive = ""
	}
	s.mu.Unlock()

	s.log.Info("report generated",
		"mode", mode.String(),
		"request_id", resp.RequestID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start).String(),
	)
	return text, nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Warn("report generation failed", "kind", string(apperr.KindOf(err)), "retryable", ai.Retryable(err), "error", err.Error())
	return err
}

func (s *Session) clearErr() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// Report returns the current report text and whether one exists.
func (s *Session) Report() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.hasReport
}

func (s *Session) Directive() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directive
}

// Err returns the error recorded by the most recent operation, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileName
}

// Dataset returns the loaded dataset. Callers must not modify it.
func (s *Session) Dataset() *dataset.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds
}

// Summary builds a fresh summary of the loaded dataset.
func (s *Session) Summary() (dataset.Summary, error) {
	s.mu.Lock()
	name, ds := s.fileName, s.ds
	s.mu.Unlock()
	if ds.Empty() {
		return dataset.Summary{}, apperr.New(apperr.KindNoData, "no dataset loaded")
	}
	return dataset.Summarize(baseName(name), ds), nil
}

// State is a point-in-time view of the session for display.
type State struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName,omitempty"`
	RowCount    int       `json:"rowCount"`
	HasReport   bool      `json:"hasReport"`
	GeneratedAt time.Time `json:"generatedAt,omitzero"`
	Directive   string    `json:"directive,omitempty"`
	Usage       ai.Usage  `json:"usage"`
	Error       string    `json:"error,omitempty"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:        s.id,
		FileName:  baseName(s.fileName),
		RowCount:  s.ds.Len(),
		HasReport: s.hasReport,
		Directive: s.directive,
		Usage:     s.usage,
	}
	if s.hasReport {
		st.GeneratedAt = s.generated
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
