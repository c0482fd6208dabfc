package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"set_and_wait/internal/service"
)

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandlers_SignUpAndSignIn(t *testing.T) {
	auth := &mockAuth{signUpID: 42, genTokenToken: "tok123"}
	r := newTestRouter(&service.Service{Authorization: auth})

	w := postJSON(r, "/auth/sign-up", `{"username":"u","password":"p"}`)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if w.Code != http.StatusOK || out["id"] != float64(42) {
		t.Fatalf("sign-up: %d %s", w.Code, w.Body.String())
	}
	if auth.lastSignUpUsername != "u" || auth.lastSignUpPassword != "p" {
		t.Fatalf("credentials not forwarded: %+v", auth)
	}

	w = postJSON(r, "/auth/sign-in", `{"username":"u","password":"p"}`)
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if w.Code != http.StatusOK || out["token"] != "tok123" {
		t.Fatalf("sign-in: %d %s", w.Code, w.Body.String())
	}
}

func TestAuthHandlers_Failures(t *testing.T) {
	cases := []struct {
		name string
		auth *mockAuth
		path string
		body string
		want int
	}{
		{"bad body", &mockAuth{}, "/auth/sign-in", `{"username":1}`, http.StatusBadRequest},
		{"missing password", &mockAuth{}, "/auth/sign-up", `{"username":"u"}`, http.StatusBadRequest},
		{"rejected password", &mockAuth{signUpErr: errors.New("password is empty")}, "/auth/sign-up", `{"username":"u","password":" "}`, http.StatusBadRequest},
		{"taken username", &mockAuth{signUpErr: fmt.Errorf("%w: %q", service.ErrOperatorExists, "u")}, "/auth/sign-up", `{"username":"u","password":"p"}`, http.StatusConflict},
		{"wrong credentials", &mockAuth{genTokenErr: service.ErrInvalidPassword}, "/auth/sign-in", `{"username":"u","password":"x"}`, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: tc.auth})
			if w := postJSON(r, tc.path, tc.body); w.Code != tc.want {
				t.Fatalf("want %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
		})
	}
}
