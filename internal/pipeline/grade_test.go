package pipeline

import (
	"context"
	"testing"
)

func gradeWith(t *testing.T, detectConf float64, ocrConf float64) map[string]any {
	t.Helper()
	pctx := Context{
		StepDetect: {"confidence": detectConf},
		StepOCR:    {"confidence": ocrConf},
	}
	step := NewGradeStep()
	resp, err := step.Execute(context.Background(), NewRequest(nil, "image/png", pctx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp.Outputs
}

func TestGradeStep_Good(t *testing.T) {
	// 0.6*0.92 + 0.4*0.95 = 0.932
	out := gradeWith(t, 0.92, 95.0)
	if out["grade"] != "good" {
		t.Errorf("expected good, got %v (score %v)", out["grade"], out["score"])
	}
}

func TestGradeStep_Fair(t *testing.T) {
	// 0.6*0.6 + 0.4*0.4 = 0.52
	out := gradeWith(t, 0.6, 40.0)
	if out["grade"] != "fair" {
		t.Errorf("expected fair, got %v (score %v)", out["grade"], out["score"])
	}
}

func TestGradeStep_Poor(t *testing.T) {
	// 0.6*0.3 + 0.4*0.2 = 0.26
	out := gradeWith(t, 0.3, 20.0)
	if out["grade"] != "poor" {
		t.Errorf("expected poor, got %v (score %v)", out["grade"], out["score"])
	}
}

func TestGradeStep_EmptyContext(t *testing.T) {
	// Без результатов предыдущих шагов оценка честно деградирует до poor
	step := NewGradeStep()
	resp, err := step.Execute(context.Background(), NewRequest(nil, "image/png", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Outputs["grade"] != "poor" {
		t.Errorf("expected poor, got %v", resp.Outputs["grade"])
	}
	if resp.Outputs["score"].(float64) != 0 {
		t.Errorf("expected zero score, got %v", resp.Outputs["score"])
	}
}
