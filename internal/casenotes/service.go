package casenotes

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notewatch/internal/anomaly"
	"notewatch/internal/db"
	"notewatch/internal/ingest"
	"notewatch/internal/metrics"
	"notewatch/internal/pipeline"
)

type Options struct {
	// HistoryWindow is how many prior notes of the patient are compared.
	HistoryWindow int
	MaxLength     int
	Workers       int
}

type Service struct {
	store    *db.Store
	detector *anomaly.Detector
	logger   *zap.Logger
	opts     Options

	inflight sync.WaitGroup
}

type NewNote struct {
	PatientID int64
	NoteType  string
	Title     string
	Content   string
}

type RescoreSummary struct {
	RunID    string              `json:"run_id"`
	Total    int                 `json:"total"`
	Scored   int64               `json:"scored"`
	Flagged  int64               `json:"flagged"`
	Skipped  int64               `json:"skipped"`
	Failures []pipeline.JobError `json:"-"`
	Duration time.Duration       `json:"duration"`
}

func NewService(store *db.Store, detector *anomaly.Detector, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryWindow < anomaly.MinHistory {
		opts.HistoryWindow = 3
	}
	return &Service{
		store:    store,
		detector: detector,
		logger:   logger.Named("casenotes"),
		opts:     opts,
	}
}

// AddNote stores the note and scores it in the background. A scoring
// failure is logged and never fails the save.
func (s *Service) AddNote(ctx context.Context, in NewNote) (db.Note, error) {
	if _, err := s.store.GetPatient(ctx, in.PatientID); err != nil {
		return db.Note{}, err
	}
	content, err := ingest.CheckText(in.Content, s.opts.MaxLength)
	if err != nil {
		return db.Note{}, fmt.Errorf("note content: %w", err)
	}
	if in.NoteType == "" {
		in.NoteType = "Progress"
	}
	note, err := s.store.InsertNote(ctx, db.Note{
		PatientID: in.PatientID,
		NoteType:  in.NoteType,
		Title:     in.Title,
		Content:   content,
	})
	if err != nil {
		return db.Note{}, err
	}
	s.logger.Info("note saved", zap.Int64("note_id", note.ID), zap.Int64("patient_id", note.PatientID))

	bg := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if _, err := s.ScoreNote(bg, note.ID); err != nil {
			s.logger.Warn("note saved, but anomaly detection failed", zap.Int64("note_id", note.ID), zap.Error(err))
		}
	}()
	return note, nil
}

// Wait blocks until background scoring started by AddNote has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// ScoreNote compares a stored note with the patient's preceding notes and
// persists the flag and score. Without enough history the note is left
// untouched.
func (s *Service) ScoreNote(ctx context.Context, noteID int64) (anomaly.Result, error) {
	res, _, err := s.score(ctx, noteID)
	return res, err
}

// score reports false when the note had too little history to be scored.
func (s *Service) score(ctx context.Context, noteID int64) (anomaly.Result, bool, error) {
	start := time.Now()
	defer func() { metrics.ScoringDuration.Observe(time.Since(start).Seconds()) }()

	note, history, err := s.load(ctx, noteID)
	if err != nil {
		return anomaly.Result{}, false, err
	}
	res := s.detector.Detect(note.Content, history)
	if len(history) < anomaly.MinHistory {
		metrics.NotesScored.WithLabelValues(metrics.OutcomeInsufficientHistory).Inc()
		s.logger.Debug("insufficient history", zap.Int64("note_id", noteID), zap.Int("history", len(history)))
		return res, false, nil
	}

	if err := s.store.UpdateAnomaly(ctx, noteID, res.IsAnomaly, res.Score); err != nil {
		metrics.ScoringErrors.WithLabelValues("persist").Inc()
		return anomaly.Result{}, false, err
	}

	outcome := metrics.OutcomeClear
	if res.IsAnomaly {
		outcome = metrics.OutcomeFlagged
	}
	metrics.NotesScored.WithLabelValues(outcome).Inc()
	metrics.AnomalyScore.Observe(res.Score)
	s.logger.Info("note scored",
		zap.Int64("note_id", noteID),
		zap.Bool("flagged", res.IsAnomaly),
		zap.Float64("score", res.Score),
		zap.Any("indicators", res.Triggered),
	)
	return res, true, nil
}

func (s *Service) ExplainNote(ctx context.Context, noteID int64) (anomaly.Explanation, error) {
	note, history, err := s.load(ctx, noteID)
	if err != nil {
		return anomaly.Explanation{}, err
	}
	exp := s.detector.Explain(note.Content, history)
	if exp.Metrics != nil && exp.Metrics.Degenerate {
		s.logger.Debug("degenerate feature space", zap.Int64("note_id", noteID))
	}
	return exp, nil
}

// Rescore re-runs detection over every note, or one patient's notes.
// workers <= 0 uses the configured worker count.
func (s *Service) Rescore(ctx context.Context, patientID *int64, workers int) (RescoreSummary, error) {
	start := time.Now()
	summary := RescoreSummary{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", summary.RunID))

	ids, err := s.store.NoteIDs(ctx, patientID)
	if err != nil {
		return summary, err
	}
	summary.Total = len(ids)
	if workers <= 0 {
		workers = s.opts.Workers
	}
	log.Info("rescore started", zap.Int("notes", len(ids)), zap.Int("workers", workers))

	var scored, flagged, skipped int64
	summary.Failures = pipeline.Run(ctx, ids, workers, func(ctx context.Context, id int64) error {
		res, ok, err := s.score(ctx, id)
		switch {
		case err != nil:
			return err
		case !ok:
			atomic.AddInt64(&skipped, 1)
		default:
			atomic.AddInt64(&scored, 1)
			if res.IsAnomaly {
				atomic.AddInt64(&flagged, 1)
			}
		}
		return nil
	})
	summary.Scored, summary.Flagged, summary.Skipped = scored, flagged, skipped
	summary.Duration = time.Since(start)

	for _, f := range summary.Failures {
		log.Warn("rescore failed for note", zap.Int64("note_id", f.ID), zap.Error(f.Err))
	}
	log.Info("rescore completed",
		zap.Int64("scored", scored),
		zap.Int64("flagged", flagged),
		zap.Int64("skipped", skipped),
		zap.Int("failed", len(summary.Failures)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, ctx.Err()
}

func (s *Service) Flagged(ctx context.Context) ([]db.Note, error) {
	return s.store.FlaggedNotes(ctx)
}

// ListNotes returns the patient's notes oldest first with their current
// flag and score.
func (s *Service) ListNotes(ctx context.Context, patientID int64) ([]db.Note, error) {
	if _, err := s.store.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, patientID)
}

func (s *Service) ListPatients(ctx context.Context) ([]db.Patient, error) {
	return s.store.ListPatients(ctx)
}

type Stats struct {
	Patients int `json:"patients"`
	Notes    int `json:"notes"`
	Flagged  int `json:"flagged"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Patients, err = s.store.CountRows(ctx, "patients"); err != nil {
		return Stats{}, err
	}
	if st.Notes, err = s.store.CountRows(ctx, "case_notes"); err != nil {
		return Stats{}, err
	}
	if st.Flagged, err = s.store.CountFlagged(ctx); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *Service) load(ctx context.Context, noteID int64) (db.Note, []string, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		metrics.ScoringErrors.WithLabelValues("load").Inc()
		return db.Note{}, nil, err
	}
	prev, err := s.store.PreviousNotes(ctx, note, s.opts.HistoryWindow)
	if err != nil {
		metrics.ScoringErrors.WithLabelValues("history").Inc()
		return db.Note{}, nil, err
	}
	history := make([]string, 0, len(prev))
	for _, p := range prev {
		history = append(history, p.Content)
	}
	return note, history, nil
}
