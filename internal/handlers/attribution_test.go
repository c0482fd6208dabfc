package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"set_and_wait/internal/models"
	"set_and_wait/internal/printer"
	"set_and_wait/internal/repository"
	"set_and_wait/internal/service"
)

// memUsers is an in-memory repository.Authorization.
type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memUsers) Create(username, hash string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := len(m.users) + 1
	m.users[username] = models.User{ID: id, Username: username, PasswordHash: hash}
	return id, nil
}

func (m *memUsers) GetByUsername(username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// memEvents captures appended wait events.
type memEvents struct {
	mu     sync.Mutex
	events []models.WaitEvent
}

func (m *memEvents) Append(ctx context.Context, e models.WaitEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) List(ctx context.Context, from, to time.Time, typ string) ([]models.WaitEvent, error) {
	return nil, nil
}

func (m *memEvents) actorOf(typ string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Type != typ {
			continue
		}
		meta, _ := m.events[i].Metadata.(map[string]any)
		actor, _ := meta["actor"].(string)
		return actor, true
	}
	return "", false
}

// signIn registers username and returns a bearer token for it.
func signIn(t *testing.T, r http.Handler, username string) string {
	t.Helper()
	body := []byte(`{"username":"` + username + `","password":"pw"}`)
	for _, path := range []string{"/auth/sign-up", "/auth/sign-in"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, w.Code, w.Body.String())
		}
		if path == "/auth/sign-in" {
			var out struct {
				Token string `json:"token"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			return out.Token
		}
	}
	return ""
}

func TestWaitControl_AttributesOperator(t *testing.T) {
	cases := []struct {
		name      string
		path      string
		eventType string
	}{
		{"abort one", "/api/v1/waits/M190/abort", models.EventWaitAborted},
		{"abort all", "/api/v1/waits/abort", models.EventAbortAll},
		{"cancel", "/api/v1/waits/cancel", models.EventCancelWait},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := &memEvents{}
			svc := service.NewService(
				&repository.Repository{EventRepo: events, Auth: &memUsers{users: map[string]models.User{}}},
				service.Deps{Printer: printer.NewSimulator(1, false, nil, nil), PollInterval: 5 * time.Millisecond, SigningKey: "k"},
			)
			r := NewHandler(svc, nil).InitRoutes()
			token := signIn(t, r, "alice")

			done := make(chan service.SendResult, 1)
			go func() {
				// the simulator never ticks, so the bed stays cold and the wait holds
				res, _ := svc.Commands.Send(context.Background(), "M190 S60")
				done <- res
			}()
			deadline := time.Now().Add(2 * time.Second)
			for len(svc.Waiter.Sessions()) == 0 {
				if time.Now().After(deadline) {
					t.Fatal("wait never started")
				}
				time.Sleep(5 * time.Millisecond)
			}

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			req.Header = authHeader(token)
			r.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			var out map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out["by"] != "user:alice" {
				t.Fatalf("response not attributed: %v", out)
			}

			select {
			case res := <-done:
				if !res.Waited || res.Outcome != models.OutcomeAborted {
					t.Fatalf("unexpected result %+v", res)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("wait did not end")
			}

			for _, typ := range []string{tc.eventType, models.EventWaitAborted} {
				actor, ok := events.actorOf(typ)
				if !ok || actor != "user:alice" {
					t.Fatalf("%s actor=%q recorded=%v", typ, actor, ok)
				}
			}
		})
	}
}
