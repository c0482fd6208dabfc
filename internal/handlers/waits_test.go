package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"set_and_wait/internal/models"
	"set_and_wait/internal/service"
)

func doRequest(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header = authHeader("valid")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(statusOK)) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestAPIRequiresToken(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		mon := &mockMonitoring{status: service.Status{
			Heaters: []models.HeaterReading{{Class: models.HeaterBed, ActualC: 59.5, TargetC: 60}},
			Holding: true,
		}}
		r := newTestRouter(&service.Service{Authorization: operatorAuth(), Monitoring: mon})

		w := doRequest(r, http.MethodGet, "/api/v1/status", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		var out struct {
			Heaters []struct {
				Class   string  `json:"class"`
				ActualC float64 `json:"actual_c"`
			} `json:"heaters"`
			Holding bool `json:"holding"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		if len(out.Heaters) != 1 || out.Heaters[0].Class != "bed" || !out.Holding {
			t.Fatalf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("error", func(t *testing.T) {
		mon := &mockMonitoring{err: errors.New("boom")}
		r := newTestRouter(&service.Service{Authorization: operatorAuth(), Monitoring: mon})

		w := doRequest(r, http.MethodGet, "/api/v1/status", nil)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})
}

func TestWaitHandlers(t *testing.T) {
	waiter := &mockWaiter{
		sessions: []models.SessionSnapshot{{Identifier: "M190", Class: models.HeaterBed, TargetC: 60, Active: true}},
		waiting:  true,
	}
	cmds := &mockCommands{}
	r := newTestRouter(&service.Service{Authorization: operatorAuth(), Waiter: waiter, Commands: cmds})

	w := doRequest(r, http.MethodGet, "/api/v1/waits", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	var list struct {
		Waiting bool `json:"waiting"`
		Count   int  `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if !list.Waiting || list.Count != 1 {
		t.Fatalf("unexpected list: %s", w.Body.String())
	}

	cases := []struct {
		name   string
		result bool
		want   string
	}{
		{"active wait", true, statusAborted},
		{"no such wait", false, statusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			waiter.abortResult = tc.result
			w := doRequest(r, http.MethodPost, "/api/v1/waits/m190/abort", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("abort status=%d", w.Code)
			}
			var out map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out["status"] != tc.want || out["identifier"] != "M190" {
				t.Fatalf("unexpected body: %v", out)
			}
			if waiter.lastAbort != "M190" {
				t.Fatalf("identifier not normalized: %q", waiter.lastAbort)
			}
		})
	}

	w = doRequest(r, http.MethodPost, "/api/v1/waits/abort", nil)
	if w.Code != http.StatusOK || waiter.abortAllCalls != 1 {
		t.Fatalf("abort all: %d calls=%d", w.Code, waiter.abortAllCalls)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/waits/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status=%d", w.Code)
	}
	if len(cmds.lines) != 1 || cmds.lines[0] != "M108" {
		t.Fatalf("cancel must send M108 through the pipeline, got %v", cmds.lines)
	}

	op := models.UserActor(models.User{ID: 1, Username: "op"})
	for i, by := range append(waiter.actors, cmds.actors...) {
		if by != op {
			t.Fatalf("call %d attributed to %q, want %q", i, by, op)
		}
	}
	if len(waiter.actors) != 3 || len(cmds.actors) != 1 {
		t.Fatalf("expected 3 waiter and 1 command attributions, got %v %v", waiter.actors, cmds.actors)
	}
}

func TestGcodeHandler(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		cmds     *mockCommands
		wantCode int
		wantSent bool
	}{
		{"forwarded", `{"line":"G28"}`, &mockCommands{}, http.StatusOK, true},
		{"bad json", `{"line":`, &mockCommands{}, http.StatusBadRequest, false},
		{"missing line", `{}`, &mockCommands{}, http.StatusBadRequest, false},
		{"comment only", `{"line":"; hi"}`, &mockCommands{}, http.StatusBadRequest, false},
		{"blocking rejected", `{"line":"M109 S200"}`, &mockCommands{}, http.StatusBadRequest, false},
		{"printer error", `{"line":"G28"}`, &mockCommands{err: errors.New("port gone")}, http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: operatorAuth(), Commands: tc.cmds})
			w := doRequest(r, http.MethodPost, "/api/v1/gcode", []byte(tc.body))
			if w.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if sent := len(tc.cmds.lines) > 0; sent != tc.wantSent {
				t.Fatalf("sent=%v, want %v", sent, tc.wantSent)
			}
		})
	}
}
