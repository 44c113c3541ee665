package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		status    int
		retryable bool
	}{
		{"validation", NewFieldError("title", "title is required"), CodeValidation, http.StatusBadRequest, false},
		{"forbidden", NewForbidden("not authorized for this action"), CodeForbidden, http.StatusForbidden, false},
		{"not found", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound, false},
		{"conflict", NewConflict("version mismatch", nil), CodeConflict, http.StatusConflict, true},
		{"no rows", fmt.Errorf("load: %w", pgx.ErrNoRows), CodeNotFound, http.StatusNotFound, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), CodeTransport, http.StatusServiceUnavailable, true},
		{"plain", errors.New("boom"), CodeInternal, http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			if de.Code != tt.code {
				t.Errorf("Code = %q, want %q", de.Code, tt.code)
			}
			if de.HTTPStatus != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", de.HTTPStatus, tt.status)
			}
			if IsRetryable(tt.err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", !tt.retryable, tt.retryable)
			}
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	de := ToDomainError(errors.New("pq: relation tickets does not exist"))
	if de.Message != "internal server error" {
		t.Fatalf("Message = %q", de.Message)
	}
	if !errors.Is(de, de.Err) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
}

func TestFieldErrorDetails(t *testing.T) {
	de := ToDomainError(NewFieldError("reason", "reason is required"))
	if de.Details["field"] != "reason" {
		t.Fatalf("Details = %v", de.Details)
	}
	if CodeOf(nil) != "" {
		t.Fatalf("CodeOf(nil) should be empty")
	}
}
