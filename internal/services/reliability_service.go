package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-rcm/internal/api"
	"github.com/miradorstack/mirador-rcm/internal/cache"
	"github.com/miradorstack/mirador-rcm/internal/engine"
	"github.com/miradorstack/mirador-rcm/internal/hierarchy"
	"github.com/miradorstack/mirador-rcm/internal/history"
	"github.com/miradorstack/mirador-rcm/internal/metrics"
	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/policy"
	"github.com/miradorstack/mirador-rcm/internal/repo"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

const (
	opScore     = "score_criticality"
	opDecide    = "decide_strategy"
	opEvaluate  = "evaluate_reliability"
	opFit       = "fit_weibull"
	opCompose   = "compose_system"
	opUpsert    = "upsert_criticality"
	opHierarchy = "compose_hierarchy"
)

// ReloadCounter is implemented by policy sources that hot-reload, such as policy.Watcher.
type ReloadCounter interface {
	Reloads() int64
}

// Options holds the optional collaborators of a ReliabilityService.
type Options struct {
	// Library adds extra tasks to matching decisions.
	Library *engine.TaskLibrary
	// Memo caches evaluate, fit and compose results. Nil disables memoization.
	Memo *cache.Memo
	// Records persists criticality ratings. Nil disables UpsertCriticality.
	Records repo.CriticalityRepo
	// RecordStore names the record backend in health responses.
	RecordStore string
}

// ReliabilityService implements the gRPC ReliabilityEngine service.
type ReliabilityService struct {
	logger    *slog.Logger
	policies  policy.Source
	opts      Options
	latencies *utils.LatencySet
}

// NewReliabilityService constructs the service facade. A nil source serves the default policy.
func NewReliabilityService(logger *slog.Logger, policies policy.Source, opts Options) *ReliabilityService {
	if logger == nil {
		logger = slog.Default()
	}
	if policies == nil {
		policies = policy.Static{}
	}
	return &ReliabilityService{
		logger:    logger,
		policies:  policies,
		opts:      opts,
		latencies: utils.NewLatencySet(1024),
	}
}

// statusCode maps engine error kinds onto gRPC codes.
func statusCode(err error) codes.Code {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s.Code()
	}
	switch utils.KindOf(err) {
	case utils.ErrValidation, utils.ErrDomain:
		return codes.InvalidArgument
	case utils.ErrInsufficientData:
		return codes.FailedPrecondition
	case utils.ErrInvariantViolation:
		return codes.AlreadyExists
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// finish records metrics and latency for op and converts err into a status error.
func (s *ReliabilityService) finish(op string, start time.Time, err error) error {
	duration := time.Since(start)
	tracker := s.latencies.For(op)
	tracker.Observe(duration)
	if count := tracker.Count(); count >= 100 && count%100 == 0 {
		s.logger.Info("computation latency", slog.String("operation", op), slog.Duration("p95", tracker.Percentile(95)), slog.Int("samples", count))
	}

	if err == nil {
		metrics.ObserveComputation(op, duration, metrics.OutcomeSuccess)
		return nil
	}

	code := statusCode(err)
	if code == codes.Internal {
		metrics.ObserveComputation(op, duration, metrics.OutcomeError)
		s.logger.Error("computation failed", slog.String("operation", op), slog.Any("error", err))
		return status.Error(code, "internal error")
	}
	metrics.ObserveComputation(op, duration, metrics.OutcomeRejected)
	s.logger.Debug("request rejected", slog.String("operation", op), slog.String("code", code.String()), slog.Any("error", err))
	return status.Error(code, err.Error())
}

// memoInput ties a cached result to the policy snapshot it was computed under.
type memoInput struct {
	Policy *policy.Policy `json:"policy"`
	Input  any            `json:"input"`
}

func memoized[T any](ctx context.Context, s *ReliabilityService, op string, p *policy.Policy, input any, compute func() (T, error)) (T, error) {
	v, hit, err := cache.Do(ctx, s.opts.Memo, op, memoInput{Policy: p, Input: input}, compute)
	if s.opts.Memo != nil && err == nil {
		metrics.ObserveMemo(op, hit)
	}
	return v, err
}

func nilRequest() error {
	return status.Error(codes.InvalidArgument, "request cannot be nil")
}

// ScoreCriticality rates a failure mode from its severity, occurrence and detection.
func (s *ReliabilityService) ScoreCriticality(ctx context.Context, req *api.ScoreCriticalityRequest) (*models.Criticality, error) {
	if req == nil {
		return nil, nilRequest()
	}
	start := time.Now()
	p := s.policies.Current()

	crit, err := engine.NewScorer(p.Criticality).Score(req.Severity, req.Occurrence, req.Detection)
	if err := s.finish(opScore, start, err); err != nil {
		return nil, err
	}
	crit.FailureModeID = req.FailureModeID
	return &crit, nil
}

// DecideStrategy runs the RCM decision tree.
func (s *ReliabilityService) DecideStrategy(ctx context.Context, req *api.DecideStrategyRequest) (*models.Decision, error) {
	if req == nil {
		return nil, nilRequest()
	}
	start := time.Now()
	p := s.policies.Current()

	decisions := engine.NewDecisionEngine(p.Decision, s.opts.Library, s.logger)
	decision := decisions.DecideWith(models.DecisionInput{
		Flags:       req.Flags,
		Criticality: req.Criticality,
		Reliability: req.Reliability,
		MTBF:        req.MTBF,
	})
	_ = s.finish(opDecide, start, nil)
	return &decision, nil
}

// EvaluateReliability samples the Weibull functions over the horizon.
func (s *ReliabilityService) EvaluateReliability(ctx context.Context, req *api.EvaluateReliabilityRequest) (*api.EvaluateReliabilityResponse, error) {
	if req == nil {
		return nil, nilRequest()
	}
	start := time.Now()
	p := s.policies.Current()
	model := engine.NewReliabilityModel(p.Reliability)

	curve, err := memoized(ctx, s, opEvaluate, p, req, func() (models.Curve, error) {
		return model.Evaluate(req.Parameters, req.Resolution)
	})
	if err := s.finish(opEvaluate, start, err); err != nil {
		return nil, err
	}
	return api.ToCurveResponse(curve), nil
}

// FitWeibull estimates Weibull parameters from observations or from failure events.
func (s *ReliabilityService) FitWeibull(ctx context.Context, req *api.FitWeibullRequest) (*api.FitWeibullResponse, error) {
	if req == nil {
		return nil, nilRequest()
	}
	start := time.Now()
	p := s.policies.Current()
	model := engine.NewReliabilityModel(p.Reliability)

	resp, err := memoized(ctx, s, opFit, p, req, func() (api.FitWeibullResponse, error) {
		var out api.FitWeibullResponse
		observations := req.Observations
		if req.HasEvents() {
			events, windowStart, windowEnd, unit, err := req.HistoryInput()
			if err != nil {
				return out, err
			}
			histories, err := history.NewMiner(s.logger, nil).Mine(ctx, events, windowStart, windowEnd, unit)
			if err != nil {
				return out, err
			}
			mode, err := selectMode(histories, req.FailureModeID)
			if err != nil {
				return out, err
			}
			observations = mode.Observations
			out.FailureModeID = mode.FailureModeID
			out.Summary = &mode.Summary
		}
		fit, err := model.Fit(observations)
		if err != nil {
			return out, err
		}
		out.Fit = fit
		return out, nil
	})
	if err := s.finish(opFit, start, err); err != nil {
		return nil, err
	}
	return &resp, nil
}

// selectMode picks the history to fit: the requested failure mode, or the only one present.
func selectMode(histories []history.ModeHistory, failureModeID string) (history.ModeHistory, error) {
	if failureModeID != "" {
		for _, h := range histories {
			if h.FailureModeID == failureModeID {
				return h, nil
			}
		}
		return history.ModeHistory{}, utils.InsufficientData(opFit, 0, "no failures recorded for failure mode "+failureModeID)
	}
	switch len(histories) {
	case 0:
		return history.ModeHistory{}, utils.InsufficientData(opFit, 0, "no failures inside the window")
	case 1:
		return histories[0], nil
	}
	return history.ModeHistory{}, utils.Validation(opFit, "failureModeId", len(histories), "events span several failure modes; choose one")
}

// ComposeSystem aggregates component metrics under a redundancy topology.
func (s *ReliabilityService) ComposeSystem(ctx context.Context, req *api.ComposeSystemRequest) (*models.SystemRamResult, error) {
	if req == nil {
		return nil, nilRequest()
	}
	start := time.Now()
	p := s.policies.Current()
	model := engine.NewReliabilityModel(p.Reliability)

	res, err := memoized(ctx, s, opCompose, p, req, func() (models.SystemRamResult, error) {
		return model.Compose(req.Components, req.Topology)
	})
	if err := s.finish(opCompose, start, err); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpsertCriticality scores a failure mode and stores the rating, replacing any earlier one.
func (s *ReliabilityService) UpsertCriticality(ctx context.Context, req *api.UpsertCriticalityRequest) (*api.UpsertCriticalityResponse, error) {
	if req == nil {
		return nil, nilRequest()
	}
	if s.opts.Records == nil {
		return nil, status.Error(codes.FailedPrecondition, "criticality store not configured")
	}
	start := time.Now()
	p := s.policies.Current()

	resp, err := s.upsert(ctx, p, req)
	if err := s.finish(opUpsert, start, err); err != nil {
		return nil, err
	}
	s.logger.Debug("criticality stored",
		slog.String("failure_mode_id", resp.Criticality.FailureModeID),
		slog.Int("rpn", resp.Criticality.RPN),
		slog.Bool("created", resp.Created))
	return resp, nil
}

func (s *ReliabilityService) upsert(ctx context.Context, p *policy.Policy, req *api.UpsertCriticalityRequest) (*api.UpsertCriticalityResponse, error) {
	crit, err := engine.NewScorer(p.Criticality).Score(req.Severity, req.Occurrence, req.Detection)
	if err != nil {
		return nil, err
	}
	crit.FailureModeID = req.FailureModeID
	crit.ConsequenceType = req.ConsequenceType

	if _, err := s.opts.Records.Get(ctx, crit.FailureModeID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		created, err := s.opts.Records.Create(ctx, crit)
		if err != nil {
			return nil, err
		}
		return &api.UpsertCriticalityResponse{Criticality: created, Created: true}, nil
	}

	updated, err := s.opts.Records.Update(ctx, crit)
	if err != nil {
		return nil, err
	}
	return &api.UpsertCriticalityResponse{Criticality: updated}, nil
}

// ComposeHierarchy composes a component tree bottom-up.
func (s *ReliabilityService) ComposeHierarchy(ctx context.Context, req *api.ComposeHierarchyRequest) (*api.ComposeHierarchyResponse, error) {
	if req == nil {
		return nil, nilRequest()
	}
	start := time.Now()
	p := s.policies.Current()
	model := engine.NewReliabilityModel(p.Reliability)

	resp, err := memoized(ctx, s, opHierarchy, p, req, func() (api.ComposeHierarchyResponse, error) {
		tree, err := api.BuildHierarchy(req)
		if err != nil {
			return api.ComposeHierarchyResponse{}, err
		}
		results, err := hierarchy.Rollup(tree.Tree, tree.Root, tree.Leaves, tree.Topologies, model.Compose)
		if err != nil {
			return api.ComposeHierarchyResponse{}, err
		}
		root, _ := tree.Tree.Node(tree.Root)
		return api.ComposeHierarchyResponse{Root: root.Key, Results: results}, nil
	})
	if err := s.finish(opHierarchy, start, err); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthCheck returns the current health state.
func (s *ReliabilityService) HealthCheck(ctx context.Context, req *api.HealthRequest) (*api.HealthResponse, error) {
	resp := &api.HealthResponse{
		Status:      "SERVING",
		RecordStore: s.opts.RecordStore,
		Memoization: s.opts.Memo != nil,
	}
	if rc, ok := s.policies.(ReloadCounter); ok {
		resp.PolicyReloads = rc.Reloads()
	}
	if resp.RecordStore == "" && s.opts.Records == nil {
		resp.RecordStore = "none"
	}
	return resp, nil
}

// LatencyP95 returns the current p95 latency of op.
func (s *ReliabilityService) LatencyP95(op string) time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.For(op).Percentile(95)
}
