package scheduler

import (
	"context"
	"testing"
)

type noopJob struct{}

func (noopJob) RunOnce(ctx context.Context) error { return nil }

func TestIntervalToCronBuckets(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{30, "* * * * *"},
		{59, "* * * * *"},
		{150, "*/2 * * * *"},
		{1800, "*/30 * * * *"},
		{3600, "0 */1 * * *"},
		{7200, "0 */2 * * *"},
		{86400, "0 0 * * *"},
		{90000, "0 0 * * *"},
	}
	for _, tc := range cases {
		if got := IntervalToCron(tc.seconds); got != tc.want {
			t.Fatalf("IntervalToCron(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestValidateExpression(t *testing.T) {
	if !ValidateExpression("0 3 * * *") {
		t.Fatalf("five-field expression must validate")
	}
	if !ValidateExpression("  */5 * * * *  ") {
		t.Fatalf("surrounding whitespace must be tolerated")
	}
	if ValidateExpression("0 3 * * * *") {
		t.Fatalf("six-field expression must be rejected")
	}
	if ValidateExpression("not-cron") {
		t.Fatalf("garbage must be rejected")
	}
}

func TestScheduleCustomRuleReplaceAndRemove(t *testing.T) {
	sched, err := New("UTC", nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	defer sched.Shutdown()

	if err := sched.ScheduleCustomRule("abc", "*/5 * * * *", noopJob{}); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	// Rescheduling the same rule replaces the job instead of stacking it.
	if err := sched.ScheduleCustomRule("abc", "*/10 * * * *", noopJob{}); err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}

	jobs := sched.ActiveJobs()
	if len(jobs) != 1 || jobs[0] != "rule-abc" {
		t.Fatalf("unexpected active jobs: %v", jobs)
	}

	sched.UnscheduleRule("abc")
	if jobs := sched.ActiveJobs(); len(jobs) != 0 {
		t.Fatalf("expected no jobs after unschedule, got %v", jobs)
	}

	// Unscheduling an unknown rule is a no-op.
	sched.UnscheduleRule("missing")
}

func TestScheduleCustomRuleRejectsBadExpression(t *testing.T) {
	sched, err := New("UTC", nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	defer sched.Shutdown()

	if err := sched.ScheduleCustomRule("abc", "every minute", noopJob{}); err == nil {
		t.Fatalf("expected parse error for invalid expression")
	}
}

func TestInitializeRegistersStandingJobs(t *testing.T) {
	sched, err := New("UTC", nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	defer sched.Shutdown()

	err = sched.Initialize(InitializeDeps{
		DistributionTick: noopJob{},
		RetrySweep:       noopJob{},
		Cleanup:          noopJob{},
		SearchPush:       noopJob{},
		SearchPushCron:   "bogus", // falls back to the default expression
		Extra: map[string]ExtraJob{
			"outbox-relay": {Expression: "* * * * *", Job: noopJob{}},
		},
	})
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	jobs := sched.ActiveJobs()
	want := []string{JobSearchPush, JobCleanup, JobMainDistribution, "outbox-relay", JobRetry}
	if len(jobs) != len(want) {
		t.Fatalf("unexpected job count: %v", jobs)
	}
	for i, id := range want {
		if jobs[i] != id {
			t.Fatalf("unexpected jobs: %v", jobs)
		}
	}

	sched.Shutdown()
	if jobs := sched.ActiveJobs(); len(jobs) != 0 {
		t.Fatalf("expected empty registry after shutdown, got %v", jobs)
	}
}

func TestInitializeSkipsAbsentSearchPush(t *testing.T) {
	sched, err := New("UTC", nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	defer sched.Shutdown()

	if err := sched.Initialize(InitializeDeps{DistributionTick: noopJob{}}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	jobs := sched.ActiveJobs()
	if len(jobs) != 1 || jobs[0] != JobMainDistribution {
		t.Fatalf("unexpected jobs: %v", jobs)
	}
}
