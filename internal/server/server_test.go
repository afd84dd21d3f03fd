package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/inkfill/inkfill/internal/pipeline"
)

// stubRunner records requests and serves canned results without
// touching a real document or oracle.
type stubRunner struct {
	result *pipeline.Result
	err    error
	output []byte

	requests []pipeline.Request
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if s.output != nil {
		if err := os.WriteFile(req.OutputPath, s.output, 0o644); err != nil {
			return nil, err
		}
	}
	res := *s.result
	res.InputPath = req.InputPath
	res.OutputPath = req.OutputPath
	return &res, nil
}

func newTestServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	srv, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// fillBody builds a multipart body with a document part and the given
// extra record/flag fields.
func fillBody(t *testing.T, record string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("document", "form.pdf")
	if err != nil {
		t.Fatalf("create document part: %v", err)
	}
	fmt.Fprint(fw, "%PDF-1.7 fake")

	if record != "" {
		rw, err := mw.CreateFormFile("record", "record.json")
		if err != nil {
			t.Fatalf("create record part: %v", err)
		}
		fmt.Fprint(rw, record)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubRunner{result: &pipeline.Result{}})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want %q", health.Status, "ok")
	}
}

func TestFillReturnsDocument(t *testing.T) {
	runner := &stubRunner{
		result: &pipeline.Result{Success: true, FilledCount: 2},
		output: []byte("%PDF-1.7 filled"),
	}
	ts := newTestServer(t, runner)

	body, ctype := fillBody(t, `{"name":"Acme LLC"}`, nil)
	resp, err := http.Post(ts.URL+"/api/fill", ctype, body)
	if err != nil {
		t.Fatalf("fill request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", got)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "%PDF-1.7 filled" {
		t.Errorf("body = %q, want filled document bytes", data)
	}

	if len(runner.requests) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.requests))
	}
	req := runner.requests[0]
	if string(req.RecordJSON) != `{"name":"Acme LLC"}` {
		t.Errorf("RecordJSON = %q", req.RecordJSON)
	}
	if req.ForceOCR {
		t.Error("ForceOCR = true without force_ocr flag")
	}
}

func TestFillReturnJSONAndFlags(t *testing.T) {
	runner := &stubRunner{
		result: &pipeline.Result{Success: true, FilledCount: 3, UsedOCR: true},
		output: []byte("%PDF-1.7 filled"),
	}
	ts := newTestServer(t, runner)

	body, ctype := fillBody(t, "", map[string]string{
		"record":      `{"name":"Acme LLC"}`,
		"force_ocr":   "true",
		"return_json": "true",
	})
	resp, err := http.Post(ts.URL+"/api/fill", ctype, body)
	if err != nil {
		t.Fatalf("fill request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var res pipeline.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.FilledCount != 3 {
		t.Errorf("FilledCount = %d, want 3", res.FilledCount)
	}

	if len(runner.requests) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.requests))
	}
	if !runner.requests[0].ForceOCR {
		t.Error("ForceOCR flag not propagated")
	}
}

func TestFillMissingParts(t *testing.T) {
	ts := newTestServer(t, &stubRunner{result: &pipeline.Result{}})

	t.Run("no document", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("record", `{"a":1}`)
		mw.Close()

		resp, err := http.Post(ts.URL+"/api/fill", mw.FormDataContentType(), &buf)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("no record", func(t *testing.T) {
		body, ctype := fillBody(t, "", nil)
		resp, err := http.Post(ts.URL+"/api/fill", ctype, body)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("record not JSON", func(t *testing.T) {
		body, ctype := fillBody(t, "definitely not json", nil)
		resp, err := http.Post(ts.URL+"/api/fill", ctype, body)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestFillRunnerFailureIsJSONError(t *testing.T) {
	runner := &stubRunner{err: errors.New("oracle unreachable")}
	ts := newTestServer(t, runner)

	body, ctype := fillBody(t, `{"name":"x"}`, nil)
	resp, err := http.Post(ts.URL+"/api/fill", ctype, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if errResp.Error == "" {
		t.Error("error payload is empty")
	}
}

func TestFillVerificationFailureIsJSONError(t *testing.T) {
	runner := &stubRunner{
		result: &pipeline.Result{Success: false, Message: "no filled fields or annotations detected in output"},
		output: []byte("%PDF-1.7 untouched"),
	}
	ts := newTestServer(t, runner)

	body, ctype := fillBody(t, `{"name":"x"}`, nil)
	resp, err := http.Post(ts.URL+"/api/fill", ctype, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with no runner should error")
	}
}
