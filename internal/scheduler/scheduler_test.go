package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// countingJob succeeds after failing a configured number of times.
type countingJob struct {
	name     string
	schedule string
	failures int
	runs     atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := int(j.runs.Add(1))
	if n <= j.failures {
		return errors.New("transient failure")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond
	s.jobTimeout = time.Second
	return s
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "rebalance", schedule: "0 30 16 1 * *"}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.AddJob(job); err == nil {
		t.Fatal("expected duplicate job name to be rejected")
	}

	names := s.GetAllJobs()
	if len(names) != 1 || names[0] != "rebalance" {
		t.Fatalf("GetAllJobs = %v, want [rebalance]", names)
	}
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "broken", schedule: "not a cron expression"}
	if err := s.AddJob(job); err == nil {
		t.Fatal("expected invalid schedule to be rejected")
	}
	if len(s.GetAllJobs()) != 0 {
		t.Fatal("rejected job must not be registered")
	}
}

func TestRunJobRecordsSuccess(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "once", schedule: "0 0 2 * * SUN"}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.runJob(job)

	history, err := s.GetJobHistory("once")
	if err != nil {
		t.Fatalf("GetJobHistory: %v", err)
	}
	if len(history.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(history.Results))
	}
	res := history.Results[0]
	if !res.Success {
		t.Fatalf("job should have succeeded: %s", res.Error)
	}
	if res.JobName != "once" || res.Error != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := int(job.runs.Load()); got != 1 {
		t.Fatalf("job ran %d times, want 1", got)
	}
}

func TestRunJobRetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "flaky", schedule: "0 0 2 * * SUN", failures: 2}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.runJob(job)

	if got := int(job.runs.Load()); got != 3 {
		t.Fatalf("job ran %d times, want 3", got)
	}
	history, _ := s.GetJobHistory("flaky")
	if len(history.Results) != 1 || !history.Results[0].Success {
		t.Fatalf("retried job should record one successful result, got %+v", history.Results)
	}
}

func TestRunJobGivesUpAfterMaxRetries(t *testing.T) {
	s := newTestScheduler()
	s.maxRetries = 2

	job := &countingJob{name: "doomed", schedule: "0 0 2 * * SUN", failures: 100}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.runJob(job)

	if got := int(job.runs.Load()); got != 3 {
		t.Fatalf("job ran %d times, want 3 (1 try + 2 retries)", got)
	}
	history, _ := s.GetJobHistory("doomed")
	if len(history.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(history.Results))
	}
	res := history.Results[0]
	if res.Success || res.Error != "transient failure" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunJobUnknownName(t *testing.T) {
	s := newTestScheduler()
	if err := s.RunJob("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
	if err := s.RunJobWait("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestRunJobWaitReturnsFinalError(t *testing.T) {
	s := newTestScheduler()
	s.maxRetries = 1

	fail := &countingJob{name: "sync-fail", schedule: "0 0 2 * * SUN", failures: 100}
	ok := &countingJob{name: "sync-ok", schedule: "0 0 2 * * SUN"}
	if err := s.AddJob(fail); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.AddJob(ok); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if err := s.RunJobWait("sync-ok"); err != nil {
		t.Fatalf("RunJobWait on succeeding job: %v", err)
	}
	err := s.RunJobWait("sync-fail")
	if err == nil || err.Error() != "transient failure" {
		t.Fatalf("RunJobWait error = %v, want transient failure", err)
	}
	if got := int(fail.runs.Load()); got != 2 {
		t.Fatalf("failing job ran %d times, want 2", got)
	}
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "temp", schedule: "0 0 2 * * SUN"}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.RemoveJob("temp"); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if err := s.RemoveJob("temp"); err == nil {
		t.Fatal("expected error removing a job twice")
	}
	if err := s.RunJob("temp"); err == nil {
		t.Fatal("removed job must not be runnable")
	}
}

func TestGetJobStats(t *testing.T) {
	s := newTestScheduler()
	s.maxRetries = 0

	job := &countingJob{name: "mixed", schedule: "0 0 2 * * SUN", failures: 1}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.runJob(job) // fails, no retries
	s.runJob(job) // succeeds

	stats := s.GetJobStats()
	st, ok := stats["mixed"]
	if !ok {
		t.Fatal("missing stats for job")
	}
	if st.TotalRuns != 2 || st.SuccessCount != 1 || st.FailureCount != 1 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.SuccessRate != 0.5 {
		t.Fatalf("SuccessRate = %f, want 0.5", st.SuccessRate)
	}
	if st.Schedule != "0 0 2 * * SUN" {
		t.Fatalf("Schedule = %q", st.Schedule)
	}
	if st.LastRun == nil || st.LastSuccess == nil || st.LastFailure == nil {
		t.Fatalf("expected all last-run timestamps set: %+v", st)
	}
	if st.LastSuccess.Before(*st.LastFailure) {
		t.Fatal("last success should be the most recent run")
	}
}

func TestJobHistoryLimit(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+20; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	if len(h.Results) != historyLimit {
		t.Fatalf("history holds %d results, want %d", len(h.Results), historyLimit)
	}
}

func TestJobHistoryQueries(t *testing.T) {
	h := &JobHistory{}
	h.AddResult(JobResult{JobName: "x", Success: true})
	h.AddResult(JobResult{JobName: "x", Success: false, Error: "boom"})
	h.AddResult(JobResult{JobName: "x", Success: true})

	latest := h.GetLatestResults(2)
	if len(latest) != 2 || !latest[1].Success {
		t.Fatalf("unexpected latest results: %+v", latest)
	}
	if got := h.GetLatestResults(10); len(got) != 3 {
		t.Fatalf("GetLatestResults(10) returned %d, want 3", len(got))
	}

	failed := h.GetFailedResults()
	if len(failed) != 1 || failed[0].Error != "boom" {
		t.Fatalf("unexpected failed results: %+v", failed)
	}

	if rate := h.GetSuccessRate(); rate < 0.66 || rate > 0.67 {
		t.Fatalf("SuccessRate = %f, want 2/3", rate)
	}

	empty := &JobHistory{}
	if empty.GetSuccessRate() != 0 {
		t.Fatal("empty history should report zero success rate")
	}
}
