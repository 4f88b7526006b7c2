// Package reconciler computes per-workshop reconciliations.
//
// It plays the external aggregator and parser of the engine: Verify reports
// the detected layout of every assigned movement file, and Process reads the
// stock snapshot once, then aggregates each workshop concurrently into
// matches and discrepancies.
//
// Failures are split in two kinds. A problem with the request as a whole
// (no stock file, unreadable snapshot, cancellation) is returned as an
// error and nothing is produced. A problem with one workshop is recorded in
// that workshop's result slot, logged, and does not stop the others.
//
// Example usage:
//
//	svc, err := reconciler.NewService(reconciler.DefaultConfig(), log)
//	result, err := svc.Process(ctx, &reconciler.Request{
//		Unit:   unit,
//		Stock:  stockFile,
//		Files:  assignment.Files,
//		Period: period,
//	})
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/parsers"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	// Workers bounds how many workshops are aggregated at once
	Workers int
	// ProgressInterval is how often progress is logged
	ProgressInterval time.Duration
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Workers:          4,
		ProgressInterval: 2 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative")
	}
	return nil
}

// Request describes one verification or processing run
type Request struct {
	Unit models.Unit
	// Stock is the snapshot workbook; Verify does not need it
	Stock models.FileRef
	// Files maps workshop names to their movement file
	Files     map[string]models.FileRef
	Period    models.Period
	Overrides map[string]models.Override
	// OnProgress, if set, receives every progress change
	OnProgress func(logger.ProgressStats)
}

// Validate validates the request. Stock and period are only checked when
// processing.
func (r *Request) Validate(processing bool) error {
	if len(r.Files) == 0 {
		return apperrors.ReconciliationError(apperrors.CodeNotReady, "processing", nil).
			WithSuggestion("assign at least one movement file to a workshop")
	}
	for name := range r.Files {
		if _, ok := r.Unit.Workshop(name); !ok {
			return apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", name, nil)
		}
	}
	if !processing {
		return nil
	}
	if r.Stock.IsZero() {
		return apperrors.ReconciliationError(apperrors.CodeNotReady, "processing", nil).
			WithSuggestion("add a stock snapshot file")
	}
	if r.Unit.FilterByPeriod {
		if err := r.Period.Validate(); err != nil {
			return apperrors.ValidationError(apperrors.CodeInvalidPeriod, "period", r.Period.String(), err)
		}
	}
	return nil
}

// workshops returns the requested workshops in unit order
func (r *Request) workshops() []models.Workshop {
	var out []models.Workshop
	for _, w := range r.Unit.Workshops {
		if _, ok := r.Files[w.Name]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Service runs verification and aggregation
type Service struct {
	config *Config
	logger logger.Logger
}

// NewService creates a new reconciliation service
func NewService(config *Config, log logger.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", config, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Service{config: config, logger: log.WithComponent("reconciler")}, nil
}

// Verify inspects every assigned movement file. Records come back in unit
// order; an unreadable file yields an invalid record, not an error.
func (s *Service) Verify(ctx context.Context, req *Request) ([]models.VerificationRecord, error) {
	if err := req.Validate(false); err != nil {
		return nil, err
	}

	workshops := req.workshops()
	records := make([]models.VerificationRecord, len(workshops))

	p := pool.New().WithMaxGoroutines(s.config.Workers)
	for i, ws := range workshops {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			records[i] = s.inspect(ws, req.Files[ws.Name], req.Unit.Movement, req.Overrides[ws.Name])
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.ReconciliationError(apperrors.CodeRequestFailed, "verification", err)
	}

	invalid := 0
	for _, r := range records {
		if !r.Valid {
			invalid++
		}
	}
	s.logger.WithFields(logger.Fields{"files": len(records), "invalid": invalid}).Info("Verification completed")
	return records, nil
}

func (s *Service) inspect(ws models.Workshop, file models.FileRef, cands models.ColumnCandidates, ov models.Override) models.VerificationRecord {
	wb, err := parsers.Open(file.Path, s.logger)
	if err != nil {
		s.logger.WithError(err).WithField("workshop", ws.Name).Warn("Cannot open movement file")
		return models.VerificationRecord{
			Workshop:      ws.Name,
			Filename:      file.Filename,
			ExpectedSheet: firstOf(ws.Layout.SheetNames),
			Errors:        []string{describe(err)},
		}
	}
	defer wb.Close()
	return parsers.Inspect(wb, ws, cands, ov)
}

// Process aggregates every requested workshop. Per-workshop failures land in
// the workshop's slot; only request-level failures are returned.
func (s *Service) Process(ctx context.Context, req *Request) (*models.ReconciliationResult, error) {
	if err := req.Validate(true); err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logger.Fields{"unit": req.Unit.ID, "stock": req.Stock.Filename})
	workshops := req.workshops()

	stock, err := openStock(req.Stock, req.Unit, workshops, s.logger)
	if err != nil {
		log.WithError(err).Error("Cannot load stock snapshot")
		return nil, apperrors.ReconciliationError(apperrors.CodeRequestFailed, "stock loading", err)
	}
	defer stock.Close()

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "aggregation",
		Total:       int64(len(workshops)),
		LogInterval: s.config.ProgressInterval,
		Logger:      log,
		OnUpdate:    req.OnProgress,
	})

	slots := make([]*models.WorkshopResult, len(workshops))
	p := pool.New().WithMaxGoroutines(s.config.Workers)
	for i, ws := range workshops {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			res, err := s.aggregate(stock, ws, req)
			if err != nil {
				log.WithError(err).WithField("workshop", ws.Name).Warn("Workshop aggregation failed")
				slots[i] = models.FailedResult(describe(err))
				tracker.Fail()
				return
			}
			slots[i] = res
			tracker.Increment()
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		tracker.CompleteWithError(err)
		return nil, apperrors.ReconciliationError(apperrors.CodeRequestFailed, "processing", err)
	}
	tracker.Complete()

	result := models.NewReconciliationResult()
	for i, ws := range workshops {
		result.Set(ws.Name, slots[i])
	}
	return result, nil
}

func (s *Service) aggregate(stock *stockSource, ws models.Workshop, req *Request) (*models.WorkshopResult, error) {
	fail := func(err error) error {
		return apperrors.ReconciliationError(apperrors.CodeAggregationFailed, ws.Name, err)
	}

	stockTotals, err := stock.totals(ws)
	if err != nil {
		return nil, fail(err)
	}

	file := req.Files[ws.Name]
	wb, err := parsers.Open(file.Path, s.logger)
	if err != nil {
		return nil, fail(err)
	}
	defer wb.Close()

	var period *models.Period
	if req.Unit.FilterByPeriod {
		period = &req.Period
	}
	movTotals, err := movementTotals(wb, ws, req.Unit.Movement, req.Overrides[ws.Name], period, s.logger)
	if err != nil {
		return nil, fail(err)
	}

	res := join(stockTotals, movTotals, req.Unit.MatchTolerance)
	s.logger.WithFields(logger.Fields{
		"workshop":      ws.Name,
		"matches":       len(res.Matches),
		"discrepancies": len(res.Discrepancies),
	}).Debug("Workshop aggregated")
	return res, nil
}

// describe renders err with its cause, for result slots and notices.
func describe(err error) string {
	if rerr, ok := apperrors.AsReconcilerError(err); ok {
		if rerr.Cause != nil {
			return fmt.Sprintf("%s: %s", rerr.Message, describe(rerr.Cause))
		}
		return rerr.Message
	}
	return err.Error()
}

func firstOf(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
