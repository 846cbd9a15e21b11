package portal_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"quill/internal/portal"
)

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "deadline exceeded" }
func (timeoutError) Timeout() bool { return true }

func TestSubmitSuccessParsesRecordID(t *testing.T) {
	var captured *http.Request
	client := portal.NewHTTPClientWithDoer("https://portal.example.test/api/", "token-1", doerFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusCreated, `{"record_id":"rec-42"}`), nil
	}))

	result, err := client.Submit(context.Background(), portal.SubmitRequest{
		SessionID:      "sess-1",
		IdempotencyKey: "attempt-1",
		Payload:        []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.PortalRecordID != "rec-42" {
		t.Fatalf("unexpected record id %q", result.PortalRecordID)
	}

	if captured.URL.String() != "https://portal.example.test/api/submissions" {
		t.Fatalf("unexpected URL %s", captured.URL)
	}
	if captured.Header.Get("Idempotency-Key") != "attempt-1" {
		t.Fatalf("missing idempotency key header")
	}
	if captured.Header.Get("Authorization") != "Bearer token-1" {
		t.Fatalf("missing bearer token")
	}
}

func TestSubmitSuccessWithoutRecordIDIsTransient(t *testing.T) {
	client := portal.NewHTTPClientWithDoer("https://portal.example.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}))
	_, err := client.Submit(context.Background(), portal.SubmitRequest{})
	if !portal.IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestSubmitServerErrorsAreTransient(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
		client := portal.NewHTTPClientWithDoer("https://portal.example.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(status, ``), nil
		}))
		_, err := client.Submit(context.Background(), portal.SubmitRequest{})
		if !portal.IsTransient(err) {
			t.Fatalf("status %d: expected transient, got %v", status, err)
		}
		if portal.IsUnreachable(err) {
			t.Fatalf("status %d: server error is not unreachable", status)
		}
	}
}

func TestSubmitClientErrorIsRejection(t *testing.T) {
	client := portal.NewHTTPClientWithDoer("https://portal.example.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, `{"detail":"missing demographics"}`), nil
	}))
	_, err := client.Submit(context.Background(), portal.SubmitRequest{})
	if !errors.Is(err, portal.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	var rejection *portal.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rejection.StatusCode != http.StatusUnprocessableEntity || rejection.Detail != "missing demographics" {
		t.Fatalf("unexpected rejection %+v", rejection)
	}
	if portal.IsTransient(err) {
		t.Fatal("rejection must not be retryable")
	}
}

func TestSubmitNetworkErrorIsUnreachable(t *testing.T) {
	client := portal.NewHTTPClientWithDoer("https://portal.example.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	}))
	_, err := client.Submit(context.Background(), portal.SubmitRequest{})
	if !portal.IsUnreachable(err) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if !portal.IsTransient(err) {
		t.Fatal("unreachable implies transient")
	}
}

func TestSubmitTimeoutIsTransientNotUnreachable(t *testing.T) {
	client := portal.NewHTTPClientWithDoer("https://portal.example.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, timeoutError{}
	}))
	_, err := client.Submit(context.Background(), portal.SubmitRequest{})
	if !portal.IsTransient(err) {
		t.Fatalf("expected transient, got %v", err)
	}
	if portal.IsUnreachable(err) {
		t.Fatal("a timeout reached the network; it must not route to the offline queue")
	}
}
