package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"set_and_wait/internal/models"
	"set_and_wait/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	user          models.User
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (models.User, error) {
	m.lastParseToken = token
	return m.user, m.parseErr
}

// operatorAuth accepts any token as the operator "op".
func operatorAuth() *mockAuth {
	return &mockAuth{user: models.User{ID: 1, Username: "op"}}
}

type mockWaiter struct {
	sessions    []models.SessionSnapshot
	waiting     bool
	abortResult bool

	lastAbort     string
	abortAllCalls int
	actors        []models.Actor
}

func (m *mockWaiter) Arm() {}
func (m *mockWaiter) RunWait(ctx context.Context, req service.WaitRequest) (models.WaitOutcome, error) {
	return models.OutcomeReached, nil
}
func (m *mockWaiter) Abort(identifier string, by models.Actor) bool {
	m.lastAbort = identifier
	m.actors = append(m.actors, by)
	return m.abortResult
}
func (m *mockWaiter) AbortAll(by models.Actor) {
	m.abortAllCalls++
	m.actors = append(m.actors, by)
}
func (m *mockWaiter) CancelWait(by models.Actor)         { m.actors = append(m.actors, by) }
func (m *mockWaiter) Waiting() bool                      { return m.waiting }
func (m *mockWaiter) Sessions() []models.SessionSnapshot { return m.sessions }

type mockCommands struct {
	result service.SendResult
	err    error
	lines  []string
	actors []models.Actor
}

func (m *mockCommands) Send(ctx context.Context, line string) (service.SendResult, error) {
	m.lines = append(m.lines, line)
	m.actors = append(m.actors, service.ActorFrom(ctx))
	if m.err != nil {
		return service.SendResult{}, m.err
	}
	if m.result.Forwarded == "" && !m.result.Waited {
		return service.SendResult{Forwarded: line}, nil
	}
	return m.result, nil
}
func (m *mockCommands) Holding() bool { return false }

type mockJobs struct {
	mu       sync.Mutex
	startErr error
	cancelEr error
	status   service.JobStatus

	lastName string
	lastBody string
}

func (m *mockJobs) Start(ctx context.Context, name string, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	b, _ := io.ReadAll(r)
	m.lastName = name
	m.lastBody = string(b)
	m.status = service.JobStatus{Name: name, State: service.JobPrinting}
	return nil
}
func (m *mockJobs) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelEr != nil {
		return m.cancelEr
	}
	m.status.State = service.JobCancelling
	return nil
}
func (m *mockJobs) Status() service.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

type mockMonitoring struct {
	status service.Status
	err    error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (service.Status, error) {
	return m.status, m.err
}

type mockEventLog struct {
	resp     []models.WaitEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.WaitEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
