package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Bindery/internal/ocrclient"
)

const ocrTimeout = 30 * time.Second

// OCRStep — второй шаг пайплайна: распознавание текста обложки.
//
// Единственный шаг с сетевым вызовом: ходит в OCR-сервис через
// ocrclient. Классифицированные отказы клиента пробрасываются как
// есть, чтобы Executor зафиксировал различимую причину.
//
// Outputs:
//   - text — распознанный текст
//   - confidence — средняя уверенность по блокам (0..100)
//   - blocks — количество блоков текста
//   - engine — имя и версия OCR-движка
//   - ocr_ms — время распознавания на стороне сервиса
type OCRStep struct {
	client *ocrclient.Client
	params ocrclient.Params
}

// NewOCRStep создаёт OCRStep с клиентом коллаборатора.
func NewOCRStep(client *ocrclient.Client) *OCRStep {
	return &OCRStep{
		client: client,
		params: ocrclient.Params{Lang: "eng", PSM: 3, OEM: 1},
	}
}

func (s *OCRStep) Name() string           { return StepOCR }
func (s *OCRStep) Order() int             { return 2 }
func (s *OCRStep) Timeout() time.Duration { return ocrTimeout }

// Execute распознаёт текст на изображении.
func (s *OCRStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	result, err := s.client.Recognize(ctx, req.Image, req.ContentType, s.params)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	return &Response{
		Outputs: map[string]any{
			"text":       result.Text,
			"confidence": result.Confidence(),
			"blocks":     len(result.Chunks.Blocks),
			"engine":     fmt.Sprintf("%s %s", result.Engine.Name, result.Engine.Version),
			"ocr_ms":     result.TimingMs.Total,
		},
	}, nil
}
