package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// encodePNG создаёт валидный PNG заданного размера.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 150, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDetectStep_ValidImage(t *testing.T) {
	step := NewDetectStep()
	resp, err := step.Execute(context.Background(), NewRequest(encodePNG(t, 800, 1200), "image/png", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count, ok := resp.Outputs["count"].(int); !ok || count != 1 {
		t.Errorf("expected count 1, got %v", resp.Outputs["count"])
	}

	// Рамка с отступом 5% от каждого края
	box, ok := resp.Outputs["box"].(map[string]any)
	if !ok {
		t.Fatalf("expected box output, got %T", resp.Outputs["box"])
	}
	if box["x"].(int) != 40 || box["y"].(int) != 60 {
		t.Errorf("unexpected box origin: x=%v y=%v", box["x"], box["y"])
	}
	if box["w"].(int) != 720 || box["h"].(int) != 1080 {
		t.Errorf("unexpected box size: w=%v h=%v", box["w"], box["h"])
	}

	if resp.Outputs["width"].(int) != 800 || resp.Outputs["height"].(int) != 1200 {
		t.Error("outputs must carry source dimensions")
	}
}

func TestDetectStep_GarbageBytes(t *testing.T) {
	step := NewDetectStep()
	_, err := step.Execute(context.Background(), NewRequest([]byte("not an image"), "image/png", nil))
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestDetectStep_TooSmall(t *testing.T) {
	step := NewDetectStep()
	_, err := step.Execute(context.Background(), NewRequest(encodePNG(t, 32, 32), "image/png", nil))

	var noSubject *NoSubjectError
	if !errors.As(err, &noSubject) {
		t.Fatalf("expected NoSubjectError, got %v", err)
	}
	if noSubject.Reason == "" {
		t.Error("reason must be set")
	}
	if !IsDomainError(err) {
		t.Error("NoSubjectError must classify as domain error")
	}
}

func TestDetectStep_ShelfAspect(t *testing.T) {
	step := NewDetectStep()
	_, err := step.Execute(context.Background(), NewRequest(encodePNG(t, 1600, 400), "image/png", nil))

	var multiple *MultipleSubjectsError
	if !errors.As(err, &multiple) {
		t.Fatalf("expected MultipleSubjectsError, got %v", err)
	}
	if multiple.Count < 2 {
		t.Errorf("expected count >= 2, got %d", multiple.Count)
	}
	if multiple.Suggestion == "" {
		t.Error("suggestion must be set")
	}
	if !IsDomainError(err) {
		t.Error("MultipleSubjectsError must classify as domain error")
	}
}
