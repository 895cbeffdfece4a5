package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/szweimin/ai-ros/internal/diagnosis"
	"github.com/szweimin/ai-ros/internal/evidence"
	"github.com/szweimin/ai-ros/internal/fleet"
	"github.com/szweimin/ai-ros/internal/snapshot"
)

// Service is the engine facade the surrounding assistant calls. It owns
// no I/O of its own beyond the injected collaborators: evidence search
// and snapshot reads happen here, at the boundary, so the core stays
// pure.
type Service struct {
	engine     *diagnosis.Engine
	ranker     Ranker
	correlator *fleet.Correlator
	sweeper    *fleet.Sweeper

	search     SearchCollaborator
	store      snapshot.Store
	boostRules []evidence.BoostRule
	topK       int
	logger     *zap.Logger
}

type ServiceOption func(*Service)

// WithSearchCollaborator enables evidence attachment on diagnosed plans.
func WithSearchCollaborator(search SearchCollaborator) ServiceOption {
	return func(s *Service) { s.search = search }
}

// WithSnapshotStore enables fleet assessment and sweeps.
func WithSnapshotStore(store snapshot.Store) ServiceOption {
	return func(s *Service) { s.store = store }
}

func WithBoostRules(rules []evidence.BoostRule) ServiceOption {
	return func(s *Service) { s.boostRules = rules }
}

func WithEvidenceTopK(topK int) ServiceOption {
	return func(s *Service) { s.topK = topK }
}

func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func NewService(engine *diagnosis.Engine, ranker Ranker, correlator *fleet.Correlator, sweepWorkers int, opts ...ServiceOption) *Service {
	s := &Service{
		engine:     engine,
		ranker:     ranker,
		correlator: correlator,
		topK:       evidence.DefaultTopK,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store != nil {
		s.sweeper = fleet.NewSweeper(correlator, s.store, sweepWorkers, s.logger)
	}
	return s
}

// DiagnoseRequest carries one robot's reported errors and live state,
// plus the pre-computed query vector when evidence should be attached.
type DiagnoseRequest struct {
	ErrorCodes  []string
	State       snapshot.RuntimeState
	QueryVector []float32
}

// Diagnose produces a plan for the request. When a search collaborator
// and query vector are present, it runs a category-filtered primary
// search and an unfiltered secondary search, merges them through the
// ranker, and lets the engine apply the evidence bonus. Evidence fetch
// failures degrade the plan (no evidence), they never fail it.
func (s *Service) Diagnose(ctx context.Context, req DiagnoseRequest) (diagnosis.Plan, error) {
	codes := req.ErrorCodes
	if len(codes) == 0 {
		codes = req.State.ActiveErrors()
	}
	if len(codes) == 0 {
		return diagnosis.Plan{Status: diagnosis.StatusError}, fmt.Errorf("no error codes to diagnose")
	}

	plan := s.engine.Diagnose(codes, req.State)

	if s.search == nil || len(req.QueryVector) == 0 || plan.Status != diagnosis.StatusDiagnosed {
		return plan, nil
	}

	primary, err := s.search.SearchSimilar(ctx, req.QueryVector, s.topK, map[string]string{
		"category": string(plan.PrimaryCategory),
	})
	if err != nil {
		s.logger.Warn("primary evidence search failed", zap.String("primary_error", plan.PrimaryError), zap.Error(err))
		return plan, nil
	}
	secondary, err := s.search.SearchSimilar(ctx, req.QueryVector, s.topK, nil)
	if err != nil {
		s.logger.Warn("secondary evidence search failed", zap.String("primary_error", plan.PrimaryError), zap.Error(err))
		secondary = nil
	}

	merged := s.ranker.Merge(primary, secondary, s.boostRules)
	s.engine.ApplyEvidence(&plan, merged)
	return plan, nil
}

// AssessFleet classifies the spread of errorCode across robots sharing
// the target robot's model, looking back window from the robot's latest
// snapshot. A robot with no history yields insufficient_data, not an
// error.
func (s *Service) AssessFleet(ctx context.Context, robotID, errorCode string, window time.Duration) (fleet.Assessment, error) {
	if s.store == nil {
		return fleet.Assessment{}, fmt.Errorf("no snapshot store configured")
	}

	target, err := s.store.LatestSnapshot(ctx, robotID)
	if errors.Is(err, snapshot.ErrNotFound) {
		return fleet.Assessment{
			ErrorCode:      errorCode,
			Classification: fleet.ClassificationInsufficientData,
		}, nil
	}
	if err != nil {
		return fleet.Assessment{}, fmt.Errorf("latest snapshot for %s: %w", robotID, err)
	}

	since := target.Timestamp.Add(-window)
	snaps, err := s.store.RecentSnapshots(ctx, target.Model, since)
	if err != nil {
		return fleet.Assessment{}, fmt.Errorf("recent snapshots for model %s: %w", target.Model, err)
	}

	return s.correlator.Correlate(errorCode, snaps, target), nil
}

// DiagnoseWithFleet diagnoses and, when possible, attaches the fleet
// assessment for the plan's primary error.
func (s *Service) DiagnoseWithFleet(ctx context.Context, req DiagnoseRequest, window time.Duration) (diagnosis.Plan, error) {
	plan, err := s.Diagnose(ctx, req)
	if err != nil {
		return plan, err
	}
	if s.store == nil || plan.Status != diagnosis.StatusDiagnosed || req.State.RobotID == "" {
		return plan, nil
	}

	assessment, err := s.AssessFleet(ctx, req.State.RobotID, plan.PrimaryError, window)
	if err != nil {
		s.logger.Warn("fleet assessment failed", zap.String("robot_id", req.State.RobotID), zap.Error(err))
		return plan, nil
	}
	plan.Fleet = &assessment
	return plan, nil
}

// SweepFleet correlates errorCode for every robot id, concurrently but
// with results in input order.
func (s *Service) SweepFleet(ctx context.Context, errorCode string, robotIDs []string, since time.Time) ([]fleet.RobotAssessment, error) {
	if s.sweeper == nil {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	return s.sweeper.Sweep(ctx, errorCode, robotIDs, since)
}
