package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/clawinfra/clawguard/internal/config"
)

type fakeExecutor struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeExecutor) HandleMessage(_ context.Context, _, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return "ok", f.err
}

type fakeTrigger struct {
	mu        sync.Mutex
	triggered []string
	err       error
}

func (f *fakeTrigger) Trigger(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, name)
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestAddRejectsInvalidJobs(t *testing.T) {
	s := New(nil, &fakeExecutor{}, &fakeTrigger{}, testLogger())

	cases := []config.JobConfig{
		{Name: "", Expr: "* * * * *", Kind: "prompt", Prompt: "x"},
		{Name: "a", Expr: "", Kind: "prompt", Prompt: "x"},
		{Name: "b", Expr: "* * * * *", Kind: "prompt"},
		{Name: "c", Expr: "* * * * *", Kind: "skill"},
		{Name: "d", Expr: "* * * * *", Kind: "nope", Prompt: "x"},
		{Name: "e", Expr: "not a cron expr", Kind: "prompt", Prompt: "x", Enabled: true},
	}
	for _, job := range cases {
		if err := s.Add(job); err == nil {
			t.Errorf("job %q: expected error", job.Name)
		}
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	s := New(nil, &fakeExecutor{}, &fakeTrigger{}, testLogger())
	job := config.JobConfig{Name: "daily", Expr: "0 9 * * *", Kind: "prompt", Prompt: "standup"}

	if err := s.Add(job); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(job); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestRunNowPromptJob(t *testing.T) {
	exec := &fakeExecutor{}
	s := New([]config.JobConfig{
		{Name: "digest", Expr: "0 9 * * *", Kind: "prompt", Prompt: "write the digest", Enabled: true},
	}, exec, &fakeTrigger{}, testLogger())

	if err := s.RunNow("digest"); err != nil {
		t.Fatal(err)
	}
	if len(exec.messages) != 1 || exec.messages[0] != "write the digest" {
		t.Errorf("unexpected messages: %v", exec.messages)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].RunCount != 1 || jobs[0].ErrorCount != 0 {
		t.Errorf("unexpected status: %+v", jobs)
	}
}

func TestRunNowSkillJob(t *testing.T) {
	trig := &fakeTrigger{}
	s := New([]config.JobConfig{
		{Name: "backup", Expr: "0 3 * * *", Kind: "skill", Skill: "backup", Enabled: true},
	}, &fakeExecutor{}, trig, testLogger())

	if err := s.RunNow("backup"); err != nil {
		t.Fatal(err)
	}
	if len(trig.triggered) != 1 || trig.triggered[0] != "backup" {
		t.Errorf("unexpected triggers: %v", trig.triggered)
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(nil, &fakeExecutor{}, &fakeTrigger{}, testLogger())
	if err := s.RunNow("ghost"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestFailureRecordedInStatus(t *testing.T) {
	trig := &fakeTrigger{err: errors.New("skill is disabled")}
	s := New([]config.JobConfig{
		{Name: "backup", Expr: "0 3 * * *", Kind: "skill", Skill: "backup", Enabled: true},
	}, &fakeExecutor{}, trig, testLogger())

	if err := s.RunNow("backup"); err != nil {
		t.Fatal(err)
	}
	jobs := s.Jobs()
	if jobs[0].ErrorCount != 1 || !strings.Contains(jobs[0].LastError, "disabled") {
		t.Errorf("unexpected status: %+v", jobs[0])
	}
}

func TestDisabledJobIsTrackedButNotScheduled(t *testing.T) {
	s := New([]config.JobConfig{
		{Name: "off", Expr: "* * * * *", Kind: "prompt", Prompt: "x", Enabled: false},
	}, &fakeExecutor{}, &fakeTrigger{}, testLogger())

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Enabled || !jobs[0].NextRunAt.IsZero() {
		t.Errorf("disabled job should have no schedule: %+v", jobs[0])
	}
}

func TestRemove(t *testing.T) {
	s := New([]config.JobConfig{
		{Name: "daily", Expr: "0 9 * * *", Kind: "prompt", Prompt: "x", Enabled: true},
	}, &fakeExecutor{}, &fakeTrigger{}, testLogger())

	if err := s.Remove("daily"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("daily"); err == nil {
		t.Error("expected error removing twice")
	}
	if len(s.Jobs()) != 0 {
		t.Error("job still listed after removal")
	}
}
