package pipeline

import (
	"context"
	"time"
)

const gradeTimeout = 10 * time.Second

// Пороговые значения оценки состояния.
const (
	gradeGoodScore = 0.75
	gradeFairScore = 0.45
)

// GradeStep — третий шаг пайплайна: оценка состояния книги.
//
// Детерминированная заглушка до подключения модели: сводит уверенность
// детектора и OCR в единый балл. Читает накопленный контекст — это
// единственный шаг, зависящий от результатов обоих предшественников;
// при их отсутствии честно оценивает с нулевым вкладом.
//
// Outputs:
//   - grade — good | fair | poor
//   - score — итоговый балл (0..1)
//   - detect_confidence, ocr_confidence — использованные входы
type GradeStep struct{}

// NewGradeStep создаёт GradeStep.
func NewGradeStep() *GradeStep {
	return &GradeStep{}
}

func (s *GradeStep) Name() string           { return StepGrade }
func (s *GradeStep) Order() int             { return 3 }
func (s *GradeStep) Timeout() time.Duration { return gradeTimeout }

// Execute оценивает состояние книги по результатам предыдущих шагов.
func (s *GradeStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	detectConf, _ := req.Context.Float(StepDetect, "confidence")
	ocrConf, _ := req.Context.Float(StepOCR, "confidence")

	// OCR отдаёт проценты, детектор — доли.
	score := 0.6*detectConf + 0.4*(ocrConf/100)

	grade := "poor"
	switch {
	case score >= gradeGoodScore:
		grade = "good"
	case score >= gradeFairScore:
		grade = "fair"
	}

	return &Response{
		Outputs: map[string]any{
			"grade":             grade,
			"score":             score,
			"detect_confidence": detectConf,
			"ocr_confidence":    ocrConf,
		},
	}, nil
}
