package workflow

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/pipeline"
)

// jpegQuality — качество перекодирования после обрезки.
const jpegQuality = 90

// runCrop обрезает изображение по рамке детектора и перезаписывает
// артефакт исправленной версией.
//
// Последовательность: детекция → обрезка по box → перекодирование в
// исходный формат → запись в хранилище → обновление checksum и размера
// в метаданных. Доменные ошибки детекции (нет объекта, несколько
// объектов) проходят насквозь: обрезать нечего или непонятно что.
func (s *Service) runCrop(ctx context.Context, artifact *domain.Artifact) (*Result, error) {
	detect, err := s.registry.Get(pipeline.StepDetect)
	if err != nil {
		return nil, err
	}

	data, contentType, err := s.loadImage(ctx, artifact)
	if err != nil {
		return nil, err
	}

	resp, err := detect.Execute(ctx, pipeline.NewRequest(data, contentType, nil))
	if err != nil {
		return nil, err
	}

	box, err := boxFromOutputs(resp.Outputs)
	if err != nil {
		return nil, err
	}

	cropped, format, err := cropImage(data, box)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(cropped)
	checksum := hex.EncodeToString(sum[:])

	if err := s.store.Put(ctx, artifact.ObjectKey, cropped, formatContentType(format)); err != nil {
		return nil, fmt.Errorf("store cropped image: %w", err)
	}

	if err := s.artifacts.UpdateContent(ctx, artifact.ID, int64(len(cropped)), checksum); err != nil {
		return nil, fmt.Errorf("update artifact metadata: %w", err)
	}

	s.logger.Info("artifact cropped",
		"artifact_id", artifact.ID,
		"object_key", artifact.ObjectKey,
		"size_bytes", len(cropped),
		"box", fmt.Sprintf("%dx%d+%d+%d", box.Dx(), box.Dy(), box.Min.X, box.Min.Y),
	)

	return &Result{
		Workflow:   WorkflowCrop,
		ArtifactID: artifact.ID,
		Outputs: map[string]any{
			"checksum":   checksum,
			"size_bytes": len(cropped),
			"width":      box.Dx(),
			"height":     box.Dy(),
		},
	}, nil
}

// boxFromOutputs извлекает рамку из outputs детектора.
func boxFromOutputs(outputs map[string]any) (image.Rectangle, error) {
	raw, ok := outputs["box"].(map[string]any)
	if !ok {
		return image.Rectangle{}, fmt.Errorf("detect outputs missing box")
	}

	x, err := intValue(raw, "x")
	if err != nil {
		return image.Rectangle{}, err
	}
	y, err := intValue(raw, "y")
	if err != nil {
		return image.Rectangle{}, err
	}
	w, err := intValue(raw, "w")
	if err != nil {
		return image.Rectangle{}, err
	}
	h, err := intValue(raw, "h")
	if err != nil {
		return image.Rectangle{}, err
	}

	return image.Rect(x, y, x+w, y+h), nil
}

// intValue читает числовое поле рамки. Числа приходят как int из шага
// или как float64 после JSON round-trip.
func intValue(m map[string]any, key string) (int, error) {
	switch v := m[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("box field %q has unexpected type %T", key, m[key])
	}
}

// subImager — реализуется всеми стандартными форматами image.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropImage декодирует изображение, вырезает рамку и перекодирует
// в исходный формат.
func cropImage(data []byte, box image.Rectangle) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", pipeline.ErrInvalidImage, err)
	}

	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return nil, "", fmt.Errorf("crop box outside image bounds")
	}

	si, ok := img.(subImager)
	if !ok {
		return nil, "", fmt.Errorf("image format %s does not support cropping", format)
	}
	cropped := si.SubImage(box)

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, cropped); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		format = "jpeg"
	}

	return buf.Bytes(), format, nil
}

// formatContentType переводит имя формата в MIME-тип.
func formatContentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
