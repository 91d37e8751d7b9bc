package ocrclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Recognize(t *testing.T) {
	conf1, conf2 := 90.0, 80.0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ocr" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		// Изображение приходит в base64
		var req struct {
			ImageB64 string `json:"image_b64"`
			Lang     string `json:"lang"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.ImageB64)
		if err != nil || string(decoded) != "fake image bytes" {
			t.Errorf("image not round-tripped: %v %q", err, decoded)
		}
		if req.Lang != "eng" {
			t.Errorf("expected lang eng, got %q", req.Lang)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req-1",
			"text":       "WAR AND PEACE",
			"engine":     map[string]string{"name": "tesseract", "version": "5.3.0"},
			"chunks": map[string]any{
				"blocks": []map[string]any{
					{"block_num": 1, "bbox": []int{0, 0, 100, 40}, "confidence": conf1},
					{"block_num": 2, "bbox": []int{0, 50, 100, 90}, "confidence": conf2},
					{"block_num": 3, "bbox": []int{0, 100, 100, 140}},
				},
			},
			"timing_ms": map[string]float64{"total": 812.5},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	result, err := client.Recognize(context.Background(), []byte("fake image bytes"), "image/png", Params{Lang: "eng"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Text != "WAR AND PEACE" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if len(result.Chunks.Blocks) != 3 {
		t.Errorf("expected 3 blocks, got %d", len(result.Chunks.Blocks))
	}

	// Средняя уверенность по блокам, блок без confidence не учитывается
	if conf := result.Confidence(); conf != 85.0 {
		t.Errorf("expected confidence 85, got %v", conf)
	}
}

func TestClient_RemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req-2",
			"error": map[string]string{
				"code":    "IMAGE_DECODE_ERROR",
				"message": "cannot decode image",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Recognize(context.Background(), []byte("junk"), "image/png", Params{})

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Status != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", remote.Status)
	}
	if remote.Code != "IMAGE_DECODE_ERROR" {
		t.Errorf("expected code IMAGE_DECODE_ERROR, got %q", remote.Code)
	}
}

func TestClient_RemoteErrorWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Recognize(context.Background(), []byte("img"), "image/png", Params{})

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Code != "" {
		t.Errorf("no envelope means no code, got %q", remote.Code)
	}
	if remote.Message == "" {
		t.Error("raw body must be kept as message")
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Recognize(context.Background(), []byte("img"), "image/png", Params{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := New(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Recognize(ctx, []byte("img"), "image/png", Params{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	// Порт закрыт: сервер поднят и сразу остановлен
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(url)
	_, err := client.Recognize(context.Background(), []byte("img"), "image/png", Params{})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestClient_Healthz(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.Healthz(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
