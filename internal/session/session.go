// Package session owns the state of one reconciliation session and exposes
// the commands a front end drives it with.
//
// A session walks through three steps: files are added and matched to
// workshops, the assigned files are verified and their layout adjudicated,
// then the result of a processing run is refined and staged for the report.
// Calls to the aggregation service are the only asynchronous boundary. They
// are split into Begin and Complete halves so a front end can run them in
// the background; navigating away in between makes the pending result stale
// and it is discarded on arrival.
//
// Example usage:
//
//	s, err := session.New(session.DefaultConfig(), units.Builtin(), svc, log)
//	s.AddFiles(files...)
//	if _, err := s.Verify(ctx); err != nil { ... }
//	if _, err := s.Process(ctx); err != nil { ... }
//	fmt.Println(s.Summary())
package session

import (
	"context"
	"fmt"
	"time"

	"stock-reconciler/internal/adjudicator"
	"stock-reconciler/internal/classifier"
	"stock-reconciler/internal/matcher"
	"stock-reconciler/internal/models"
	"stock-reconciler/internal/pairs"
	"stock-reconciler/internal/reconciler"
	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/review"
	"stock-reconciler/internal/store"
	"stock-reconciler/internal/units"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// Aggregator is the external parsing and aggregation collaborator
type Aggregator interface {
	Verify(ctx context.Context, req *reconciler.Request) ([]models.VerificationRecord, error)
	Process(ctx context.Context, req *reconciler.Request) (*models.ReconciliationResult, error)
}

// Step is the page the operator is on
type Step int

const (
	StepFiles Step = iota
	StepVerify
	StepResults
)

func (s Step) String() string {
	switch s {
	case StepFiles:
		return "files"
	case StepVerify:
		return "verify"
	case StepResults:
		return "results"
	default:
		return "unknown"
	}
}

// Config holds the session settings
type Config struct {
	// Unit is the initially selected unit; empty selects the table's first.
	Unit string
	// Period is used until a stock filename or SetPeriod provides one. A
	// zero value means December of the current year.
	Period models.Period
	Pairs  *pairs.Config
	// Overrides seed the adjudicator after every verification.
	Overrides map[string]models.Override
	// Skip lists workshops skipped whenever a unit is selected.
	Skip []string
}

// DefaultConfig returns a default session configuration
func DefaultConfig() *Config {
	return &Config{Pairs: pairs.DefaultConfig()}
}

// Session is the explicit owner of all reconciliation state
type Session struct {
	config     *Config
	units      *units.Table
	aggregator Aggregator
	logger     logger.Logger

	unit   models.Unit
	board  *matcher.Board
	stock  *models.FileRef
	period models.Period

	adjudicator *adjudicator.Adjudicator
	store       *store.Store
	review      *review.Workflow
	staging     *reporter.Staging
	exporter    *reporter.Exporter

	step    Step
	active  string
	view    models.View
	pending *pending
	gen     uint64
}

// New creates a session over a unit table. The aggregator may be nil when
// only the Begin/Complete halves are used.
func New(config *Config, table *units.Table, agg Aggregator, log logger.Logger) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if table == nil {
		table = units.Builtin()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	det, err := pairs.NewDetector(config.Pairs)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "pairs", config.Pairs, err)
	}
	period := config.Period
	if period == (models.Period{}) {
		period = models.DefaultPeriod(time.Now().Year())
	}
	if err := period.Validate(); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidPeriod, "period", period.String(), err)
	}

	s := &Session{
		config:     config,
		units:      table,
		aggregator: agg,
		logger:     log.WithComponent("session"),
		period:     period,
		store:      store.New(),
		staging:    reporter.NewStaging(),
		exporter:   reporter.NewExporter(log),
		view:       models.ViewDiscrepancies,
	}
	s.review = review.New(s.store, det, log)

	id := config.Unit
	if id == "" {
		id = table.Default().ID
	}
	if _, err := s.SelectUnit(id); err != nil {
		return nil, err
	}
	return s, nil
}

// Units returns the IDs of the configured units
func (s *Session) Units() []string { return s.units.IDs() }

// Unit returns the active unit
func (s *Session) Unit() models.Unit { return s.unit }

// Step returns the current step
func (s *Session) Step() Step { return s.step }

// SelectUnit switches to another unit. Files, results and the staged report
// of the previous unit are dropped and any pending request goes stale.
func (s *Session) SelectUnit(id string) ([]string, error) {
	unit, err := s.units.Get(id)
	if err != nil {
		return nil, err
	}
	s.Navigate()
	s.unit = unit
	s.board = matcher.NewBoard(unit.Workshops, s.logger)
	s.stock = nil
	s.adjudicator = nil
	s.store.Replace(nil)
	s.staging.Clear()
	s.active = ""
	s.step = StepFiles

	var notices []string
	for _, name := range s.config.Skip {
		if _, ok := unit.Workshop(name); !ok {
			continue
		}
		if err := s.board.Skip(name); err == nil {
			notices = append(notices, fmt.Sprintf("%s skipped", name))
		}
	}
	s.logger.WithFields(logger.Fields{"unit": id, "workshops": len(unit.Workshops)}).Info("Unit selected")
	return append([]string{fmt.Sprintf("Unit %s selected", id)}, notices...), nil
}

// AddFiles classifies files and adds them to the session. A stock file
// replaces the previous one and sets the period when its name carries one.
// Movement files are matched to workshops.
func (s *Session) AddFiles(files ...models.FileRef) []string {
	var notices []string
	stock, movements := classifier.Partition(files)
	if stock != nil {
		s.stock = stock
		notice := fmt.Sprintf("Stock file: %s", stock.Filename)
		if p := classifier.ParseStockMonthYear(stock.Filename); p != nil {
			s.period = *p
			notice += fmt.Sprintf(" (period %s)", p)
		}
		notices = append(notices, notice)
	}
	if added := s.board.AddFiles(movements...); added > 0 {
		notices = append(notices, fmt.Sprintf("%d movement files added", added))
		s.filesChanged()
	}
	for _, f := range s.board.Assignment().Unmatched {
		notices = append(notices, fmt.Sprintf("%s matches no workshop", f.Filename))
	}
	return notices
}

// RemoveFile removes a stock or movement file
func (s *Session) RemoveFile(path string) error {
	if s.stock != nil && s.stock.Path == path {
		s.stock = nil
		return nil
	}
	if !s.board.RemoveFile(path) {
		return apperrors.FileError(apperrors.CodeFileNotFound, path, nil)
	}
	s.filesChanged()
	return nil
}

// AssignFile pins file to workshop
func (s *Session) AssignFile(workshop string, file models.FileRef) error {
	if classifier.IsStock(file.Filename) {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "file", file.Filename, nil).
			WithSuggestion("stock files cannot be assigned to a workshop")
	}
	if err := s.board.Assign(workshop, file); err != nil {
		return err
	}
	s.filesChanged()
	return nil
}

// UnassignFile returns the workshop's file to the unmatched files
func (s *Session) UnassignFile(workshop string) error {
	if err := s.board.Unassign(workshop); err != nil {
		return err
	}
	s.filesChanged()
	return nil
}

// ToggleSkip includes or excludes a workshop from verification and processing
func (s *Session) ToggleSkip(workshop string) (bool, error) {
	skipped, err := s.board.ToggleSkip(workshop)
	if err != nil {
		return false, err
	}
	s.filesChanged()
	return skipped, nil
}

// IsSkipped reports whether a workshop is skipped
func (s *Session) IsSkipped(workshop string) bool { return s.board.IsSkipped(workshop) }

// SetPeriod sets the reporting month and year
func (s *Session) SetPeriod(month, year int) error {
	p, err := models.NewPeriod(month, year)
	if err != nil {
		return apperrors.ValidationError(apperrors.CodeInvalidPeriod, "period", fmt.Sprintf("%d/%d", month, year), err)
	}
	s.period = p
	return nil
}

// Period returns the reporting period
func (s *Session) Period() models.Period { return s.period }

// Stock returns the stock file, if one was added
func (s *Session) Stock() (models.FileRef, bool) {
	if s.stock == nil {
		return models.FileRef{}, false
	}
	return *s.stock, true
}

// Files returns the movement files in arrival order
func (s *Session) Files() []models.FileRef { return s.board.Files() }

// Assignment returns the current file assignment
func (s *Session) Assignment() matcher.Assignment { return s.board.Assignment() }

// Ready reports why processing cannot start yet, or nil
func (s *Session) Ready() error {
	if s.stock == nil {
		return apperrors.ReconciliationError(apperrors.CodeNotReady, "processing", nil).
			WithSuggestion("add a stock snapshot file")
	}
	if len(s.board.Active()) == 0 {
		return apperrors.ReconciliationError(apperrors.CodeNotReady, "processing", nil).
			WithSuggestion("assign at least one movement file to a workshop that is not skipped")
	}
	return nil
}

// Adjudicator returns the adjudicator of the last verification
func (s *Session) Adjudicator() (*adjudicator.Adjudicator, error) {
	if s.adjudicator == nil {
		return nil, apperrors.ReconciliationError(apperrors.CodeNotReady, "adjudication", nil).
			WithSuggestion("verify the assigned files first")
	}
	return s.adjudicator, nil
}

// filesChanged drops verification made for a previous file set
func (s *Session) filesChanged() {
	if s.adjudicator != nil {
		s.logger.Debug("File set changed, verification dropped")
	}
	s.adjudicator = nil
	if s.step == StepVerify {
		s.step = StepFiles
	}
}

// Summary returns the counts over the current result
func (s *Session) Summary() store.Summary { return s.store.Summary() }

// Result returns the current reconciliation result
func (s *Session) Result() *models.ReconciliationResult { return s.store.Result() }

// Labels returns "name (matches / discrepancies)" for every workshop of the
// result, in result order.
func (s *Session) Labels() []string {
	res := s.store.Result()
	out := make([]string, 0, len(res.Names()))
	for _, name := range res.Names() {
		w, _ := res.Get(name)
		if w == nil {
			w = models.FailedResult("no result")
		}
		out = append(out, w.Label(name))
	}
	return out
}
