package fleet

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/szweimin/ai-ros/internal/snapshot"
)

// DefaultSweepWorkers bounds concurrent correlate calls during a sweep.
const DefaultSweepWorkers = 4

// RobotAssessment pairs a robot with its correlation result. Found is
// false when the robot has no snapshot history; the assessment is then
// insufficient_data.
type RobotAssessment struct {
	RobotID    string     `json:"robot_id"`
	Found      bool       `json:"found"`
	Assessment Assessment `json:"assessment"`
}

// Sweeper runs per-robot correlation across a fleet with a bounded
// worker pool. Results come back in the order robot ids were given,
// not completion order.
type Sweeper struct {
	correlator *Correlator
	store      snapshot.Store
	workers    int
	logger     *zap.Logger
}

func NewSweeper(correlator *Correlator, store snapshot.Store, workers int, logger *zap.Logger) *Sweeper {
	if workers <= 0 {
		workers = DefaultSweepWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{correlator: correlator, store: store, workers: workers, logger: logger}
}

// Sweep correlates errorCode for each robot id. Each robot is
// independent: workers run concurrently, results land in an
// index-addressed slice so input order is preserved.
func (s *Sweeper) Sweep(ctx context.Context, errorCode string, robotIDs []string, since time.Time) ([]RobotAssessment, error) {
	results := make([]RobotAssessment, len(robotIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, robotID := range robotIDs {
		i, robotID := i, robotID
		g.Go(func() error {
			target, err := s.store.LatestSnapshot(ctx, robotID)
			if errors.Is(err, snapshot.ErrNotFound) {
				s.logger.Debug("no snapshot history", zap.String("robot_id", robotID))
				results[i] = RobotAssessment{
					RobotID:    robotID,
					Assessment: Assessment{ErrorCode: errorCode, Classification: ClassificationInsufficientData},
				}
				return nil
			}
			if err != nil {
				return err
			}

			snaps, err := s.store.RecentSnapshots(ctx, target.Model, since)
			if err != nil {
				return err
			}

			results[i] = RobotAssessment{
				RobotID:    robotID,
				Found:      true,
				Assessment: s.correlator.Correlate(errorCode, snaps, target),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
