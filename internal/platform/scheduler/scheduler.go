package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	JobMainDistribution = "main-distribution"
	JobCleanup          = "cleanup"
	JobRetry            = "retry"
	JobSearchPush       = "baidu-push"

	rulePrefix = "rule-"

	defaultTimezone       = "Asia/Shanghai"
	defaultSearchPushCron = "0 3 * * *"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Job is one runnable unit of scheduled work.
type Job interface {
	RunOnce(ctx context.Context) error
}

// Scheduler owns the process cron jobs. Each job id gets its own cron
// instance so stopping one never disturbs the others.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*cron.Cron
	location *time.Location
	logger   *slog.Logger
}

func New(timezone string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := strings.TrimSpace(timezone)
	if name == "" {
		name = defaultTimezone
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", name, err)
	}
	return &Scheduler{
		jobs:     make(map[string]*cron.Cron),
		location: location,
		logger:   logger,
	}, nil
}

// InitializeDeps names the recurring jobs the worker process runs.
type InitializeDeps struct {
	DistributionTick Job
	RetrySweep       Job
	Cleanup          Job
	SearchPush       Job
	SearchPushCron   string
	// Extra jobs keyed by id and expression, e.g. the outbox relay.
	Extra map[string]ExtraJob
}

type ExtraJob struct {
	Expression string
	Job        Job
}

// Initialize registers the standing jobs. The search push job is only
// registered when its dependency is present (credentials configured).
func (s *Scheduler) Initialize(deps InitializeDeps) error {
	if deps.DistributionTick != nil {
		if err := s.schedule(JobMainDistribution, "* * * * *", deps.DistributionTick); err != nil {
			return err
		}
	}
	if deps.Cleanup != nil {
		if err := s.schedule(JobCleanup, "0 2 * * *", deps.Cleanup); err != nil {
			return err
		}
	}
	if deps.RetrySweep != nil {
		if err := s.schedule(JobRetry, "0 * * * *", deps.RetrySweep); err != nil {
			return err
		}
	}
	if deps.SearchPush != nil {
		expression := strings.TrimSpace(deps.SearchPushCron)
		if expression == "" || !ValidateExpression(expression) {
			expression = defaultSearchPushCron
		}
		if err := s.schedule(JobSearchPush, expression, deps.SearchPush); err != nil {
			return err
		}
	}
	for id, extra := range deps.Extra {
		if extra.Job == nil {
			continue
		}
		if err := s.schedule(id, extra.Expression, extra.Job); err != nil {
			return err
		}
	}
	return nil
}

// ScheduleCustomRule replaces any existing job for the rule id.
func (s *Scheduler) ScheduleCustomRule(ruleID string, expression string, job Job) error {
	return s.schedule(rulePrefix+strings.TrimSpace(ruleID), expression, job)
}

// UnscheduleRule is a no-op when the rule has no job.
func (s *Scheduler) UnscheduleRule(ruleID string) {
	s.remove(rulePrefix + strings.TrimSpace(ruleID))
}

// UpdateRuleSchedule is unschedule followed by schedule; not atomic, a tick
// firing in between is absorbed by the engine's running guard.
func (s *Scheduler) UpdateRuleSchedule(ruleID string, expression string, job Job) error {
	s.UnscheduleRule(ruleID)
	return s.ScheduleCustomRule(ruleID, expression, job)
}

// Shutdown stops every job and clears the registry.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[string]*cron.Cron)
	s.mu.Unlock()

	for id, runner := range jobs {
		<-runner.Stop().Done()
		s.logger.Info("scheduled job stopped",
			"event", "scheduler_job_stopped",
			"module", "internal/platform/scheduler",
			"layer", "platform",
			"job_id", id,
		)
	}
}

// ActiveJobs lists registered job ids, sorted.
func (s *Scheduler) ActiveJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Scheduler) schedule(id string, expression string, job Job) error {
	schedule, err := cronParser.Parse(strings.TrimSpace(expression))
	if err != nil {
		return fmt.Errorf("parse cron expression %q for job %q: %w", expression, id, err)
	}

	runner := cron.New(cron.WithLocation(s.location))
	runner.Schedule(schedule, cron.FuncJob(func() {
		if err := job.RunOnce(context.Background()); err != nil {
			s.logger.Error("scheduled job run failed",
				"event", "scheduler_job_run_failed",
				"module", "internal/platform/scheduler",
				"layer", "platform",
				"job_id", id,
				"error", err.Error(),
			)
		}
	}))

	s.mu.Lock()
	previous := s.jobs[id]
	s.jobs[id] = runner
	s.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	runner.Start()

	s.logger.Info("scheduled job registered",
		"event", "scheduler_job_registered",
		"module", "internal/platform/scheduler",
		"layer", "platform",
		"job_id", id,
		"expression", strings.TrimSpace(expression),
	)
	return nil
}

func (s *Scheduler) remove(id string) {
	s.mu.Lock()
	runner, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()

	if ok {
		runner.Stop()
		s.logger.Info("scheduled job removed",
			"event", "scheduler_job_removed",
			"module", "internal/platform/scheduler",
			"layer", "platform",
			"job_id", id,
		)
	}
}

// RuleBinding adapts the scheduler to the engine's per-rule scheduling port
// by fixing the function a rule job runs.
type RuleBinding struct {
	Scheduler *Scheduler
	Run       func(ctx context.Context, ruleID string) error
}

func (b RuleBinding) ScheduleCustomRule(ruleID string, expression string) error {
	return b.Scheduler.ScheduleCustomRule(ruleID, expression, ruleJob{run: b.Run, ruleID: ruleID})
}

func (b RuleBinding) UnscheduleRule(ruleID string) {
	b.Scheduler.UnscheduleRule(ruleID)
}

type ruleJob struct {
	run    func(ctx context.Context, ruleID string) error
	ruleID string
}

func (j ruleJob) RunOnce(ctx context.Context) error {
	return j.run(ctx, j.ruleID)
}

// IntervalToCron buckets a seconds interval into the nearest cron grain.
func IntervalToCron(seconds int) string {
	switch {
	case seconds < 60:
		return "* * * * *"
	case seconds < 3600:
		return fmt.Sprintf("*/%d * * * *", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("0 */%d * * *", seconds/3600)
	default:
		return "0 0 * * *"
	}
}

// ValidateExpression reports whether expr parses as a five-field cron spec.
func ValidateExpression(expr string) bool {
	_, err := cronParser.Parse(strings.TrimSpace(expr))
	return err == nil
}
