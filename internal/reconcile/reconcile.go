// Package reconcile orchestrates one capture cycle: detect windows,
// recognize each window's crop, filter out already-known messages, and
// merge the rest into the chat collection.
package reconcile

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/evgray/chatglass/internal/capture"
	"github.com/evgray/chatglass/internal/chats"
	"github.com/evgray/chatglass/internal/dedupe"
	"github.com/evgray/chatglass/internal/domain"
	"github.com/evgray/chatglass/internal/recognize"
	"github.com/evgray/chatglass/internal/store"
	"github.com/google/uuid"
)

// WindowError records a failure scoped to a single window. Other
// windows in the same cycle are unaffected.
type WindowError struct {
	Window string
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %q: %v", e.Window, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }

// CycleReport summarizes one completed cycle.
type CycleReport struct {
	Windows      int
	Updated      int
	NewMessages  int
	SelectedID   string
	WindowErrors []*WindowError
}

// Config tunes the reconciler.
type Config struct {
	// SimilarityThreshold is the dedupe cutoff; candidates scoring at
	// or above it against a recent same-sender message are dropped.
	SimilarityThreshold float64
	// Lookback is how many recent messages per chat the filter
	// compares against.
	Lookback int
}

// DefaultConfig returns default reconciler settings.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: dedupe.DefaultThreshold,
		Lookback:            dedupe.Lookback,
	}
}

// Reconciler runs capture cycles against the shared chat collection.
// Cycles are mutually exclusive: triggering while one is in flight is a
// no-op.
type Reconciler struct {
	source     capture.Source
	recognizer recognize.Service
	list       *chats.List
	repo       store.Repository
	cfg        Config
	logger     *slog.Logger
	running    atomic.Bool
	now        func() time.Time
}

// New creates a reconciler.
func New(source capture.Source, recognizer recognize.Service, list *chats.List, repo store.Repository, cfg Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = dedupe.DefaultThreshold
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = dedupe.Lookback
	}
	return &Reconciler{
		source:     source,
		recognizer: recognizer,
		list:       list,
		repo:       repo,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// RunCycle processes all currently detected windows once. It returns
// (nil, nil) when a cycle is already in flight: the trigger is ignored,
// not queued. A capture failure aborts the whole cycle; recognition
// failures are isolated per window; persistence failures are logged and
// do not roll back in-memory state.
func (r *Reconciler) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("cycle already running, trigger ignored")
		return nil, nil
	}
	defer r.running.Store(false)

	started := r.now()

	frame, err := r.source.CaptureFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	windows, err := r.source.DetectWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect windows: %w", err)
	}

	report := &CycleReport{Windows: len(windows)}
	for _, w := range windows {
		if err := r.processWindow(ctx, frame, w, report); err != nil {
			werr := &WindowError{Window: w.Name, Err: err}
			report.WindowErrors = append(report.WindowErrors, werr)
			r.logger.Warn("window failed, continuing cycle", "window", w.Name, "error", err)
		}
	}

	if id, ok := r.list.SelectedID(); ok {
		report.SelectedID = id.String()
	}

	r.logger.Info("cycle complete",
		"windows", report.Windows,
		"updated", report.Updated,
		"new_messages", report.NewMessages,
		"window_errors", len(report.WindowErrors),
		"duration", r.now().Sub(started),
	)
	return report, nil
}

// processWindow runs crop → recognize → filter → merge → persist for
// one window. Any error leaves that window's chat untouched.
func (r *Reconciler) processWindow(ctx context.Context, frame image.Image, w capture.Window, report *CycleReport) error {
	crop, err := r.source.Crop(frame, w.Region)
	if err != nil {
		return fmt.Errorf("crop: %w", err)
	}

	candidates, err := r.recognizer.Extract(ctx, crop)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	msgs := r.toMessages(candidates)
	recent := r.list.RecentMessages(w.Name, r.cfg.Lookback)
	fresh := dedupe.FilterNew(msgs, recent, r.cfg.SimilarityThreshold)

	accepted := r.list.ApplyBatch(w.Name, fresh, crop)
	if accepted == 0 {
		return nil
	}
	report.Updated++
	report.NewMessages += accepted

	// Persist after each merge so a crash mid-cycle loses at most the
	// windows not yet processed. Failures are logged, never retried,
	// and never roll back the in-memory state.
	if err := r.repo.SaveChats(ctx, r.list.Records()); err != nil {
		r.logger.Warn("failed to persist chats, in-memory state remains authoritative",
			"window", w.Name, "error", err)
	}
	return nil
}

// toMessages stamps recognition candidates into immutable messages.
// Batch order is preserved; timestamps are assigned at acceptance and
// are non-decreasing within the batch.
func (r *Reconciler) toMessages(candidates []recognize.Candidate) []domain.Message {
	if len(candidates) == 0 {
		return nil
	}
	base := r.now()
	msgs := make([]domain.Message, 0, len(candidates))
	for i, cand := range candidates {
		msgs = append(msgs, domain.Message{
			ID:             uuid.New(),
			Sender:         cand.Sender,
			OriginalText:   cand.OriginalText,
			TranslatedText: cand.TranslatedText,
			Timestamp:      base.Add(time.Duration(i) * time.Nanosecond),
			Side:           domain.ParseSide(cand.Side),
		})
	}
	return msgs
}
