package ocrclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// Client — HTTP-клиент OCR-сервиса.
//
// OCR-сервис — внешний коллаборатор: принимает изображение в base64
// и возвращает распознанный текст с иерархией блоков. Клиент
// классифицирует отказы, чтобы пайплайн и observability различали
// таймаут, недоступность, ошибку сервиса и битый ответ.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Params — параметры распознавания.
type Params struct {
	// Lang — код языка tesseract (например, "eng").
	Lang string `json:"lang,omitempty"`

	// PSM — page segmentation mode (0-13).
	PSM int `json:"psm,omitempty"`

	// OEM — OCR engine mode (0-3).
	OEM int `json:"oem,omitempty"`
}

// request — тело запроса к /v1/ocr.
type request struct {
	ImageB64    string `json:"image_b64"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Lang        string `json:"lang,omitempty"`
	PSM         int    `json:"psm,omitempty"`
	OEM         int    `json:"oem,omitempty"`
}

// Result — разобранный ответ OCR-сервиса.
type Result struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	Engine    struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"engine"`
	Chunks struct {
		Blocks []Block `json:"blocks"`
	} `json:"chunks"`
	TimingMs struct {
		Total float64 `json:"total"`
	} `json:"timing_ms"`
	Warnings []string `json:"warnings,omitempty"`
}

// Block — блок распознанного текста с уверенностью.
type Block struct {
	BlockNum   int      `json:"block_num"`
	BBox       []int    `json:"bbox"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Confidence возвращает среднюю уверенность по блокам (0..100).
// Возвращает 0, если блоков с уверенностью нет.
func (r *Result) Confidence() float64 {
	var sum float64
	var n int
	for _, b := range r.Chunks.Blocks {
		if b.Confidence != nil {
			sum += *b.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// New создаёт клиента OCR-сервиса.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// Recognize отправляет изображение на распознавание.
//
// Классификация отказов: ErrTimeout, ErrConnection, *RemoteError
// (HTTP >= 400 с кодом сервиса), ErrMalformedResponse.
func (c *Client) Recognize(ctx context.Context, image []byte, contentType string, params Params) (*Result, error) {
	body, err := json.Marshal(request{
		ImageB64:    base64.StdEncoding.EncodeToString(image),
		ContentType: contentType,
		Lang:        params.Lang,
		PSM:         params.PSM,
		OEM:         params.OEM,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseRemoteError(resp.StatusCode, respBody)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

// Healthz проверяет доступность OCR-сервиса.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Status: resp.StatusCode, Message: "unhealthy"}
	}
	return nil
}

// classifyTransportError разделяет таймаут и сетевую недоступность.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// parseRemoteError разбирает конверт ошибки OCR-сервиса.
// Формат: {"request_id": ..., "error": {"code": ..., "message": ...}}
func parseRemoteError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	remote := &RemoteError{Status: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		remote.Code = envelope.Error.Code
		remote.Message = envelope.Error.Message
	} else {
		remote.Message = truncate(string(body), 200)
	}
	return remote
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
