package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"set_and_wait/internal/handlers"
	"set_and_wait/internal/logger"
	"set_and_wait/internal/printer"
	"set_and_wait/internal/repository"
	"set_and_wait/internal/repository/db"
	"set_and_wait/internal/server"
	"set_and_wait/internal/service"

	"github.com/spf13/viper"
)

const (
	handshakeTimeout = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// printerLink is the printer connection main owns: a service.Printer that can be closed.
type printerLink interface {
	service.Printer
	Close() error
}

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}
	logger.SetLevel(viper.GetString("log.level"))

	// open DB
	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	profiles, err := heaterProfiles(viper.GetViper())
	if err != nil {
		log.Fatalw("invalid heater profiles", "err", err)
	}

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// link events reach the bridge once services exist
	relay := &linkEvents{log: log}
	link, err := openPrinter(ctx, log, relay.publish)
	if err != nil {
		log.Fatalw("failed to open printer", "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.Deps{
		Printer:      link,
		Profiles:     profiles,
		Log:          log.Named("wait"),
		PollInterval: viper.GetDuration("wait.poll_interval"),
		SigningKey:   viper.GetString("auth.signing_key"),
	})
	relay.attach(services.Events)
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	if sim, ok := link.(*printer.Simulator); ok {
		go sim.Run(ctx, viper.GetDuration("printer.sim_tick"))
	}

	startJobFile(ctx, services, viper.GetString("job.file"), log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, link, log)
}

func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "set_and_wait.db")
		dbPath = "set_and_wait.db"
	}
	return db.InitDB(dbPath)
}

// openPrinter connects to the serial printer, or starts the simulator when no port is configured.
func openPrinter(ctx context.Context, log *logger.Logger, onEvent func(printer.LinkEvent)) (printerLink, error) {
	cfg := printerConfig(viper.GetViper())
	if cfg.Port == "" {
		log.Infow("printer.port not set; using simulator", "tools", cfg.Tools, "chamber", cfg.Chamber)
		return printer.NewSimulator(cfg.Tools, cfg.Chamber, log.Named("sim"), onEvent), nil
	}
	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	l, err := printer.Open(hctx, cfg, log.Named("printer"), onEvent)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// startJobFile streams job.file at startup when configured.
func startJobFile(ctx context.Context, services *service.Service, path string, log *logger.Logger) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		log.Errorw("job_file_open_failed", "path", path, "err", err)
		return
	}
	// the job reads f on its own goroutine; closed at process exit
	if err := services.Jobs.Start(ctx, filepath.Base(path), f); err != nil {
		_ = f.Close()
		log.Errorw("job_file_start_failed", "path", path, "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, link printerLink, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// abort every wait before the link goes away
	services.Events.Publish(service.HostDisconnecting)

	// stop background goroutines
	cancel()

	if err := link.Close(); err != nil {
		log.Errorw("printer_close_failed", "err", err)
	}

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}

// linkEvents forwards printer link events to the event bridge.
type linkEvents struct {
	log    *logger.Logger
	target atomic.Value // service.Events
}

func (r *linkEvents) attach(events service.Events) {
	r.target.Store(events)
}

func (r *linkEvents) publish(ev printer.LinkEvent) {
	events, ok := r.target.Load().(service.Events)
	if !ok {
		r.log.Debugw("link_event_before_wiring", "event", string(ev))
		return
	}
	events.Publish(hostEvent(ev))
}

// hostEvent maps a link event to the host event the bridge understands.
func hostEvent(ev printer.LinkEvent) service.HostEvent {
	switch ev {
	case printer.LinkConnected:
		return service.HostConnected
	case printer.LinkDisconnected:
		return service.HostDisconnecting
	default:
		return service.HostError
	}
}
