package service

import (
	"context"
	"io"
	"time"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/models"
	"set_and_wait/internal/repository"
)

// TemperatureSource supplies actual temperatures and the link state of the printer.
type TemperatureSource interface {
	// Actual returns the current reading of one heater channel.
	Actual(class models.HeaterClass, channel int) (float64, error)
	// SendProbe requests a fresh temperature report. Fire and forget.
	SendProbe() error
	TransportStatus() models.TransportStatus
}

// Dispatcher forwards command lines to the printer.
type Dispatcher interface {
	Send(ctx context.Context, line string) error
	CurrentTool() int
}

// Printer is a temperature source that also accepts commands.
type Printer interface {
	TemperatureSource
	Dispatcher
	Readings() []models.HeaterReading
}

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (models.User, error)
}

// Waiter exposes the wait/stabilization state machine.
type Waiter interface {
	Arm()
	RunWait(ctx context.Context, req WaitRequest) (models.WaitOutcome, error)
	Abort(identifier string, by models.Actor) bool
	AbortAll(by models.Actor)
	CancelWait(by models.Actor)
	Waiting() bool
	Sessions() []models.SessionSnapshot
}

// Commands is the outbound command pipeline.
type Commands interface {
	Send(ctx context.Context, line string) (SendResult, error)
	Holding() bool
}

// Jobs streams command files through the pipeline.
type Jobs interface {
	Start(ctx context.Context, name string, r io.Reader) error
	Cancel() error
	Status() JobStatus
}

// Events delivers host signals (disconnect, cancel, error).
type Events interface {
	Publish(ev HostEvent)
}

// Monitoring exposes read-only heater, transport and wait state.
type Monitoring interface {
	GetStatus(ctx context.Context) (Status, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.WaitEvent, error)
}

// Simulator runs the background loop that moves simulated heaters toward their targets.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Waiter
	Commands
	Jobs
	Events
	Monitoring
	EventLog
	Authorization
}

// Deps carries what NewService needs beyond the repositories.
type Deps struct {
	Printer      Printer
	Profiles     *ProfileRegistry
	Log          *logger.Logger
	PollInterval time.Duration
	SigningKey   string
}

// NewService wires the repository layer and the printer into concrete services.
func NewService(repos *repository.Repository, d Deps) *Service {
	waiter := NewWaitController(d.Printer, d.Profiles, repos.EventRepo, d.Log)
	if d.PollInterval > 0 {
		waiter.interval = d.PollInterval
	}
	bridge := NewEventBridge(waiter, repos.EventRepo, d.Log)
	pipeline := NewPipeline(waiter, d.Printer, d.Log)
	jobs := NewJobService(pipeline, bridge, d.Log)
	pipeline.cancelling = jobs.Cancelling

	return &Service{
		Waiter:        waiter,
		Commands:      pipeline,
		Jobs:          jobs,
		Events:        bridge,
		Monitoring:    NewMonitoringService(d.Printer, waiter, pipeline, jobs),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, d.SigningKey),
	}
}
