package session

import (
	"context"
	"fmt"

	"stock-reconciler/internal/adjudicator"
	"stock-reconciler/internal/models"
	"stock-reconciler/internal/reconciler"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// RequestKind names a call to the aggregation service
type RequestKind int

const (
	RequestVerify RequestKind = iota
	RequestProcess
)

func (k RequestKind) String() string {
	if k == RequestProcess {
		return "process"
	}
	return "verify"
}

// Token identifies one request. A token is stale once the session has
// moved on: a newer request started, or the operator navigated away.
type Token struct {
	Kind       RequestKind
	Generation uint64
}

// Request is a started call. Run it with Ctx, then hand the outcome back
// with the matching Complete method or FailRequest.
type Request struct {
	Ctx     context.Context
	Token   Token
	Payload *reconciler.Request

	cancel context.CancelFunc
}

type pending struct {
	token  Token
	cancel context.CancelFunc
}

// BeginVerify starts a verification of the active workshops
func (s *Session) BeginVerify() (*Request, error) {
	if len(s.board.Active()) == 0 {
		return nil, apperrors.ReconciliationError(apperrors.CodeNotReady, "verification", nil).
			WithSuggestion("assign at least one movement file to a workshop that is not skipped")
	}
	return s.begin(RequestVerify, s.payload(nil)), nil
}

// CompleteVerify applies verification records. Overrides from the
// configuration are seeded into the new adjudicator.
func (s *Session) CompleteVerify(token Token, records []models.VerificationRecord) ([]string, error) {
	if err := s.finish(token, RequestVerify); err != nil {
		return nil, err
	}
	adj := adjudicator.New(records)
	adj.Seed(s.config.Overrides)
	s.adjudicator = adj
	s.step = StepVerify

	if adj.AllValid() {
		return []string{fmt.Sprintf("All %d files verified", len(records))}, nil
	}
	open := adj.Pending()
	s.logger.WithField("pending", open).Info("Files need layout choices")
	return []string{fmt.Sprintf("%d of %d files need attention", len(open), len(records))}, nil
}

// BeginProcess starts a processing run. Overrides come from the
// adjudicator, or from the configuration when nothing was verified.
func (s *Session) BeginProcess() (*Request, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	overrides := s.config.Overrides
	if s.adjudicator != nil {
		overrides = s.adjudicator.Apply()
	}
	payload := s.payload(overrides)
	payload.Stock = *s.stock
	return s.begin(RequestProcess, payload), nil
}

// CompleteProcess replaces the result and moves to the results step. The
// first workshop becomes the active one.
func (s *Session) CompleteProcess(token Token, result *models.ReconciliationResult) ([]string, error) {
	if err := s.finish(token, RequestProcess); err != nil {
		return nil, err
	}
	s.review.Navigate()
	s.store.Replace(result)
	s.step = StepResults
	s.view = models.ViewDiscrepancies
	s.active = ""
	if names := s.store.Result().Names(); len(names) > 0 {
		s.active = names[0]
	}

	sum := s.store.Summary()
	notices := []string{fmt.Sprintf("%d workshops processed: %d matches, %d discrepancies",
		sum.TotalWorkshops, sum.TotalMatches, sum.TotalDiscrepancies)}
	if sum.FailedWorkshops > 0 {
		notices = append(notices, fmt.Sprintf("%d workshops failed", sum.FailedWorkshops))
	}
	s.logger.WithFields(logger.Fields{
		"workshops":     sum.TotalWorkshops,
		"failed":        sum.FailedWorkshops,
		"matches":       sum.TotalMatches,
		"discrepancies": sum.TotalDiscrepancies,
	}).Info("Result received")
	return notices, nil
}

// FailRequest records that a request failed. Nothing is applied and the
// session stays on the step the request was started from.
func (s *Session) FailRequest(token Token, cause error) ([]string, error) {
	if err := s.finish(token, token.Kind); err != nil {
		return nil, err
	}
	cause = requestError(token.Kind, cause)
	s.logger.WithError(cause).WithField("request", token.Kind.String()).Error("Request failed")
	return []string{describe(cause)}, nil
}

// Verify runs a verification through the aggregator and applies it
func (s *Session) Verify(ctx context.Context) ([]string, error) {
	req, err := s.BeginVerify()
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, req.cancel)
	defer stop()
	records, err := s.aggregatorOrFail().Verify(req.Ctx, req.Payload)
	if err != nil {
		return s.fail(req.Token, err)
	}
	return s.CompleteVerify(req.Token, records)
}

// Process runs a processing request through the aggregator and applies it
func (s *Session) Process(ctx context.Context) ([]string, error) {
	req, err := s.BeginProcess()
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, req.cancel)
	defer stop()
	result, err := s.aggregatorOrFail().Process(req.Ctx, req.Payload)
	if err != nil {
		return s.fail(req.Token, err)
	}
	return s.CompleteProcess(req.Token, result)
}

// Pending reports whether a request is in flight
func (s *Session) Pending() bool { return s.pending != nil }

// Navigate leaves the current context: a pending request goes stale and an
// open review is abandoned.
func (s *Session) Navigate() []string {
	s.cancelPending()
	return s.review.Navigate().Notices
}

// Back navigates to the previous step
func (s *Session) Back() []string {
	notices := s.Navigate()
	if s.step > StepFiles {
		s.step--
	}
	return notices
}

func (s *Session) begin(kind RequestKind, payload *reconciler.Request) *Request {
	s.cancelPending()
	ctx, cancel := context.WithCancel(context.Background())
	s.gen++
	token := Token{Kind: kind, Generation: s.gen}
	s.pending = &pending{token: token, cancel: cancel}
	s.logger.WithFields(logger.Fields{"request": kind.String(), "generation": s.gen}).Debug("Request started")
	return &Request{Ctx: ctx, Token: token, Payload: payload, cancel: cancel}
}

func (s *Session) finish(token Token, kind RequestKind) error {
	if s.pending == nil || s.pending.token != token || token.Kind != kind {
		s.logger.WithFields(logger.Fields{"request": kind.String(), "generation": token.Generation}).
			Debug("Stale result discarded")
		return apperrors.ReconciliationError(apperrors.CodeStaleRequest, kind.String(), nil)
	}
	s.pending.cancel()
	s.pending = nil
	return nil
}

func (s *Session) fail(token Token, cause error) ([]string, error) {
	notices, err := s.FailRequest(token, cause)
	if err != nil {
		return nil, err
	}
	return notices, requestError(token.Kind, cause)
}

func requestError(kind RequestKind, cause error) error {
	if _, ok := apperrors.AsReconcilerError(cause); ok {
		return cause
	}
	return apperrors.ReconciliationError(apperrors.CodeRequestFailed, kind.String(), cause)
}

// describe renders err with its chain of causes, so a notice says what
// actually failed and not only which step.
func describe(err error) string {
	if rerr, ok := apperrors.AsReconcilerError(err); ok {
		if rerr.Cause != nil {
			return fmt.Sprintf("%s: %s", rerr.Message, describe(rerr.Cause))
		}
		return rerr.Error()
	}
	return err.Error()
}

func (s *Session) cancelPending() {
	if s.pending == nil {
		return
	}
	s.pending.cancel()
	s.pending = nil
	s.gen++
}

func (s *Session) payload(overrides map[string]models.Override) *reconciler.Request {
	return &reconciler.Request{
		Unit:      s.unit,
		Files:     s.board.ActiveFiles(),
		Period:    s.period,
		Overrides: overrides,
	}
}

func (s *Session) aggregatorOrFail() Aggregator {
	if s.aggregator == nil {
		return missingAggregator{}
	}
	return s.aggregator
}

type missingAggregator struct{}

func (missingAggregator) Verify(context.Context, *reconciler.Request) ([]models.VerificationRecord, error) {
	return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "verification", fmt.Errorf("no aggregator configured"))
}

func (missingAggregator) Process(context.Context, *reconciler.Request) (*models.ReconciliationResult, error) {
	return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "processing", fmt.Errorf("no aggregator configured"))
}
