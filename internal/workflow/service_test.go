package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRun_UnknownWorkflow(t *testing.T) {
	// Валидация имени до любых обращений к БД и хранилищу:
	// сервис с нулевыми зависимостями не должен паниковать
	s := New(Config{})

	_, err := s.Run(context.Background(), uuid.New(), "translate")

	var unknown *UnknownWorkflowError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownWorkflowError, got %v", err)
	}
	if unknown.Name != "translate" {
		t.Errorf("expected name translate, got %q", unknown.Name)
	}

	// Ошибка перечисляет допустимые workflows
	for _, name := range ValidWorkflows {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error must list %q, got %q", name, err.Error())
		}
	}
}

func TestValidWorkflows(t *testing.T) {
	want := []string{"detect", "ocr", "grade", "crop", "full"}
	if len(ValidWorkflows) != len(want) {
		t.Fatalf("expected %d workflows, got %d", len(want), len(ValidWorkflows))
	}
	for i, name := range want {
		if ValidWorkflows[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, ValidWorkflows[i])
		}
	}
}

func TestBoxFromOutputs(t *testing.T) {
	// Числа как int (прямой вызов шага)
	box, err := boxFromOutputs(map[string]any{
		"box": map[string]any{"x": 10, "y": 20, "w": 100, "h": 200},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if box != image.Rect(10, 20, 110, 220) {
		t.Errorf("unexpected box: %v", box)
	}

	// Числа как float64 (после JSON round-trip)
	box, err = boxFromOutputs(map[string]any{
		"box": map[string]any{"x": 10.0, "y": 20.0, "w": 100.0, "h": 200.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if box != image.Rect(10, 20, 110, 220) {
		t.Errorf("unexpected box: %v", box)
	}
}

func TestBoxFromOutputs_Missing(t *testing.T) {
	if _, err := boxFromOutputs(map[string]any{}); err == nil {
		t.Fatal("expected error for missing box")
	}
	if _, err := boxFromOutputs(map[string]any{
		"box": map[string]any{"x": "ten", "y": 0, "w": 10, "h": 10},
	}); err == nil {
		t.Fatal("expected error for non-numeric field")
	}
}

func TestCropImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	cropped, format, err := cropImage(buf.Bytes(), image.Rect(10, 15, 190, 285))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != "png" {
		t.Errorf("png must stay png, got %s", format)
	}

	// Результат декодируется и имеет размеры рамки
	out, _, err := image.Decode(bytes.NewReader(cropped))
	if err != nil {
		t.Fatalf("decode cropped: %v", err)
	}
	bounds := out.Bounds()
	if bounds.Dx() != 180 || bounds.Dy() != 270 {
		t.Errorf("expected 180x270, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestCropImage_BoxOutsideBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 50, 50))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, _, err := cropImage(buf.Bytes(), image.Rect(100, 100, 200, 200)); err == nil {
		t.Fatal("expected error for box outside bounds")
	}
}

func TestCropImage_Garbage(t *testing.T) {
	if _, _, err := cropImage([]byte("junk"), image.Rect(0, 0, 10, 10)); err == nil {
		t.Fatal("expected error for undecodable bytes")
	}
}
