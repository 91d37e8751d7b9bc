package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestExecutionStatus_IsTerminal(t *testing.T) {
	cases := []struct {
		status   ExecutionStatus
		terminal bool
	}{
		{ExecutionStatusPending, false},
		{ExecutionStatusRunning, false},
		{ExecutionStatusCompleted, true},
		{ExecutionStatusFailed, true},
	}
	for _, c := range cases {
		if got := c.status.IsTerminal(); got != c.terminal {
			t.Errorf("%s: expected IsTerminal=%v, got %v", c.status, c.terminal, got)
		}
	}
}

func TestStepStatus_IsTerminal(t *testing.T) {
	cases := []struct {
		status   StepStatus
		terminal bool
	}{
		{StepStatusPending, false},
		{StepStatusRunning, false},
		{StepStatusCompleted, true},
		{StepStatusFailed, true},
		{StepStatusSkipped, true},
	}
	for _, c := range cases {
		if got := c.status.IsTerminal(); got != c.terminal {
			t.Errorf("%s: expected IsTerminal=%v, got %v", c.status, c.terminal, got)
		}
	}
}

func TestExecution_Lifecycle(t *testing.T) {
	exec := NewExecution(uuid.New())
	if exec.Status != ExecutionStatusPending {
		t.Fatalf("new execution must be PENDING, got %s", exec.Status)
	}
	if exec.IsFinished() {
		t.Error("PENDING execution is not finished")
	}
	if exec.Duration() != 0 {
		t.Error("unfinished execution has zero duration")
	}

	exec.MarkRunning()
	if exec.Status != ExecutionStatusRunning || exec.StartedAt == nil {
		t.Error("MarkRunning must set status and started_at")
	}

	exec.MarkCompleted()
	if exec.Status != ExecutionStatusCompleted || exec.CompletedAt == nil {
		t.Error("MarkCompleted must set status and completed_at")
	}
	if !exec.IsFinished() {
		t.Error("COMPLETED execution is finished")
	}
	if exec.Duration() < 0 {
		t.Error("duration must be non-negative")
	}
}

func TestExecution_MarkFailed(t *testing.T) {
	exec := NewExecution(uuid.New())
	exec.MarkRunning()
	exec.MarkFailed("step ocr: service unavailable")

	if exec.Status != ExecutionStatusFailed {
		t.Errorf("expected FAILED, got %s", exec.Status)
	}
	if exec.Error != "step ocr: service unavailable" {
		t.Errorf("unexpected error text: %q", exec.Error)
	}
	if exec.CompletedAt == nil {
		t.Error("failed execution must have completed_at")
	}
}

func TestStepRecord_Lifecycle(t *testing.T) {
	executionID := uuid.New()
	record := NewStepRecord(executionID, "detect", 1)
	if record.Status != StepStatusPending {
		t.Fatalf("new step must be PENDING, got %s", record.Status)
	}
	if record.ExecutionID != executionID || record.Ord != 1 {
		t.Error("step must keep execution reference and order")
	}

	record.MarkRunning()
	if record.Status != StepStatusRunning || record.StartedAt == nil {
		t.Error("MarkRunning must set status and started_at")
	}

	record.MarkCompleted(map[string]any{"count": 1}, 250)
	if record.Status != StepStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", record.Status)
	}
	if record.Output["count"] != 1 || record.DurationMs != 250 {
		t.Error("MarkCompleted must persist output and duration")
	}
}

func TestStepRecord_MarkSkipped(t *testing.T) {
	record := NewStepRecord(uuid.New(), "grade", 3)
	record.MarkSkipped("abandoned: worker crashed mid-run")

	if record.Status != StepStatusSkipped {
		t.Errorf("expected SKIPPED, got %s", record.Status)
	}
	if record.Error == "" {
		t.Error("skip reason must be recorded")
	}
	if !record.IsFinished() {
		t.Error("SKIPPED step is finished")
	}
}

func TestNewExecution_MonotonicIDs(t *testing.T) {
	// При равном created_at последний execution определяется по id,
	// поэтому порядок идентификаторов должен совпадать с порядком создания
	artifactID := uuid.New()
	prev := NewExecution(artifactID)
	for i := 0; i < 1000; i++ {
		next := NewExecution(artifactID)
		if next.ID.String() <= prev.ID.String() {
			t.Fatalf("id out of order at %d: %s after %s", i, next.ID, prev.ID)
		}
		prev = next
	}
}
