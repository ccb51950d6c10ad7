package schedsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
)

var nowFunc = time.Now // mockable

// Publisher is the part of the assessment service the scheduler drives.
type Publisher interface {
	DuePublications(ctx context.Context, now time.Time) ([]int64, error)
	Publish(ctx context.Context, usr user.User, testID int64, published bool) (assessment.Test, error)
}

var _ Publisher = (*assessment.Service)(nil) // interface compliance check

// RunReport summarizes one tick.
type RunReport struct {
	RunID     string
	Due       int
	Published int
	Failed    int
}

// Scheduler publishes tests whose publish time has come, on a cron schedule.
// A single instance is expected to run per deployment.
type Scheduler struct {
	publisher Publisher
	logger    core.Logger
	spec      string
	timeout   time.Duration
	cron      *cron.Cron
}

func New(publisher Publisher, logger core.Logger, conf core.SchedulerConfig) *Scheduler {
	vala.BeginValidation().Validate(
		vala.IsNotNil(publisher, "publisher"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	return &Scheduler{
		publisher: publisher,
		logger:    logger,
		spec:      conf.Spec,
		timeout:   timeout,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

// Start registers the publish job and starts cron in its own goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return errors.Wrapf(err, "scheduling publication job %q", s.spec)
	}
	s.cron.Start()
	s.logger.Info(fmt.Sprintf("scheduler started: spec=%q timeout=%s", s.spec, s.timeout))
	return nil
}

// Stop stops cron and waits for a running tick to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop: running tick abandoned", ctx.Err())
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("scheduler tick: %v", err), err)
	}
}

// RunOnce publishes every due test. A test that fails to publish is logged and skipped;
// the error return is only for failing to list due tests.
func (s *Scheduler) RunOnce(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: uuid.New().String()}

	ids, err := s.publisher.DuePublications(ctx, nowFunc())
	if err != nil {
		return report, errors.Wrapf(err, "run %s: listing due tests", report.RunID)
	}
	report.Due = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Warn(fmt.Sprintf("run %s: stopping early", report.RunID), err)
			report.Failed += report.Due - report.Published - report.Failed
			break
		}
		if _, err := s.publisher.Publish(ctx, user.System, id, true); err != nil {
			report.Failed++
			s.logger.Error(
				fmt.Sprintf("run %s: publishing test %d: %v", report.RunID, id, err),
				err,
				map[string]interface{}{"run_id": report.RunID, "test_id": id},
			)
			continue
		}
		report.Published++
	}

	if report.Due > 0 {
		s.logger.Info(fmt.Sprintf("run %s: published %d/%d due tests", report.RunID, report.Published, report.Due))
	}
	return report, nil
}
