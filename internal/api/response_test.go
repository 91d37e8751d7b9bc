package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Bindery/internal/ocrclient"
	"github.com/shaiso/Bindery/internal/pipeline"
	"github.com/shaiso/Bindery/internal/repo"
	"github.com/shaiso/Bindery/internal/workflow"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestHandleWorkflowError_Unknown(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &workflow.UnknownWorkflowError{Name: "translate", Valid: workflow.ValidWorkflows}

	if !HandleWorkflowError(rec, discardLogger(), err) {
		t.Fatal("error must be handled")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error.Code != ErrCodeUnknownWorkflow {
		t.Errorf("expected UNKNOWN_WORKFLOW, got %s", resp.Error.Code)
	}
	if _, ok := resp.Error.Details["valid"]; !ok {
		t.Error("details must list valid workflows")
	}
}

func TestHandleWorkflowError_NoSubject(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("run workflow: %w", &pipeline.NoSubjectError{Reason: "image too small"})

	HandleWorkflowError(rec, discardLogger(), err)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error.Code != ErrCodeNoSubject {
		t.Errorf("expected NO_SUBJECT, got %s", resp.Error.Code)
	}
	if resp.Error.Details["reason"] != "image too small" {
		t.Errorf("details must carry reason, got %v", resp.Error.Details)
	}
}

func TestHandleWorkflowError_MultipleSubjects(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &pipeline.MultipleSubjectsError{Count: 4, Suggestion: "crop the photo to a single book and retry"}

	HandleWorkflowError(rec, discardLogger(), err)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error.Code != ErrCodeMultipleSubjects {
		t.Errorf("expected MULTIPLE_SUBJECTS, got %s", resp.Error.Code)
	}
	// JSON-числа приходят как float64
	if count, _ := resp.Error.Details["count"].(float64); count != 4 {
		t.Errorf("details must carry count, got %v", resp.Error.Details)
	}
	if resp.Error.Details["suggestion"] == "" {
		t.Error("details must carry suggestion")
	}
}

func TestHandleWorkflowError_Collaborator(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code ErrorCode
		http int
	}{
		{"timeout", fmt.Errorf("%w: deadline", ocrclient.ErrTimeout), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"remote", &ocrclient.RemoteError{Status: 500, Code: "OCR_FAILURE", Message: "boom"}, ErrCodeCollaborator, http.StatusBadGateway},
		{"connection", fmt.Errorf("%w: refused", ocrclient.ErrConnection), ErrCodeCollaborator, http.StatusBadGateway},
		{"malformed", fmt.Errorf("%w: bad json", ocrclient.ErrMalformedResponse), ErrCodeCollaborator, http.StatusBadGateway},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		HandleWorkflowError(rec, discardLogger(), c.err)
		if rec.Code != c.http {
			t.Errorf("%s: expected %d, got %d", c.name, c.http, rec.Code)
		}
		if resp := decodeError(t, rec); resp.Error.Code != c.code {
			t.Errorf("%s: expected %s, got %s", c.name, c.code, resp.Error.Code)
		}
	}
}

func TestHandleWorkflowError_InvalidImage(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleWorkflowError(rec, discardLogger(), fmt.Errorf("%w: unknown format", pipeline.ErrInvalidImage))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeInvalidImage {
		t.Errorf("expected INVALID_IMAGE, got %s", resp.Error.Code)
	}
}

func TestHandleWorkflowError_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleWorkflowError(rec, discardLogger(), fmt.Errorf("get artifact: %w", repo.ErrNotFound))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandleWorkflowError_Nil(t *testing.T) {
	rec := httptest.NewRecorder()
	if HandleWorkflowError(rec, discardLogger(), nil) {
		t.Fatal("nil error must not be handled")
	}
}

func TestHandleRepoError(t *testing.T) {
	rec := httptest.NewRecorder()
	if !HandleRepoError(rec, discardLogger(), repo.ErrNotFound, "artifact not found") {
		t.Fatal("error must be handled")
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	HandleRepoError(rec, discardLogger(), errors.New("connection reset"), "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("unexpected errors must map to 500, got %d", rec.Code)
	}
}
