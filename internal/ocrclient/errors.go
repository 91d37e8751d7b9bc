package ocrclient

import (
	"errors"
	"fmt"
)

// Классифицированные отказы OCR-сервиса.
var (
	// ErrTimeout — запрос не уложился в таймаут.
	ErrTimeout = errors.New("ocr request timeout")

	// ErrConnection — сервис недоступен (сетевая ошибка).
	ErrConnection = errors.New("ocr connection error")

	// ErrMalformedResponse — ответ сервиса не разбирается.
	ErrMalformedResponse = errors.New("ocr malformed response")
)

// RemoteError — сервис ответил HTTP >= 400.
type RemoteError struct {
	// Status — HTTP-код ответа.
	Status int

	// Code — машинный код ошибки сервиса (IMAGE_DECODE_ERROR и т.п.).
	Code string

	// Message — сообщение сервиса.
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ocr remote error: HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ocr remote error: HTTP %d: %s", e.Status, e.Message)
}
