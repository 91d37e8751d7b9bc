package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	_ "image/jpeg"
	_ "image/png"
)

const (
	detectTimeout = 15 * time.Second

	// minSubjectSide — минимальная сторона изображения, на котором
	// детектор вообще ищет объект.
	minSubjectSide = 64

	// shelfAspectRatio — соотношение сторон, начиная с которого кадр
	// считается полкой с несколькими книгами, а не одной книгой.
	shelfAspectRatio = 3.0
)

// DetectStep — первый шаг пайплайна: поиск книги на изображении.
//
// Реализация — детерминированная заглушка до подключения внешнего
// детектора: рамка строится отступом от краёв кадра, количество
// объектов оценивается по соотношению сторон. Контракт (outputs и
// доменные ошибки) при замене алгоритма не меняется.
//
// Outputs:
//   - count — количество найденных объектов (всегда 1 при успехе)
//   - box — {x, y, w, h} рамка объекта
//   - width, height — размеры исходного изображения
//   - confidence — уверенность детектора (0..1)
type DetectStep struct{}

// NewDetectStep создаёт DetectStep.
func NewDetectStep() *DetectStep {
	return &DetectStep{}
}

func (s *DetectStep) Name() string           { return StepDetect }
func (s *DetectStep) Order() int             { return 1 }
func (s *DetectStep) Timeout() time.Duration { return detectTimeout }

// Execute ищет книгу на изображении.
//
// Возвращает NoSubjectError, если изображение не декодируется или
// слишком мало, и MultipleSubjectsError для широких кадров-полок.
func (s *DetectStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(req.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if cfg.Width < minSubjectSide || cfg.Height < minSubjectSide {
		return nil, &NoSubjectError{
			Reason: fmt.Sprintf("image %dx%d below minimum %dpx side", cfg.Width, cfg.Height, minSubjectSide),
		}
	}

	ratio := float64(cfg.Width) / float64(cfg.Height)
	if ratio > shelfAspectRatio || 1/ratio > shelfAspectRatio {
		// Оценка количества по тому, сколько "книжных" кадров помещается.
		count := int(max(ratio, 1/ratio))
		return nil, &MultipleSubjectsError{
			Count:      count,
			Suggestion: "crop the photo to a single book and retry",
		}
	}

	// Рамка с отступом 5% от каждого края.
	insetX := cfg.Width / 20
	insetY := cfg.Height / 20

	return &Response{
		Outputs: map[string]any{
			"count": 1,
			"box": map[string]any{
				"x": insetX,
				"y": insetY,
				"w": cfg.Width - 2*insetX,
				"h": cfg.Height - 2*insetY,
			},
			"width":      cfg.Width,
			"height":     cfg.Height,
			"confidence": 0.92,
		},
	}, nil
}
