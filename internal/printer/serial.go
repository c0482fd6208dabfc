package printer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/models"

	"go.bug.st/serial"
)

// LinkEvent is a connection-level signal raised by the serial link.
type LinkEvent string

const (
	LinkConnected    LinkEvent = "CONNECTED"
	LinkDisconnected LinkEvent = "DISCONNECTED"
	LinkError        LinkEvent = "ERROR"
)

var (
	ErrClosed     = errors.New("printer link closed")
	ErrAckTimeout = errors.New("timed out waiting for ok")
)

const (
	defaultBaud       = 115200
	defaultAckTimeout = 10 * time.Second
	ambientC          = 25.0
)

// Config describes the serial printer connection.
type Config struct {
	Port               string
	Baud               int
	Tools              int  // number of primary heater channels
	Chamber            bool // firmware reports a chamber heater
	AckTimeout         time.Duration
	AutoReportInterval int // seconds between firmware auto reports; 0 disables
}

// SerialLink talks a line-based, ok-acknowledged protocol to the printer firmware.
type SerialLink struct {
	cfg     Config
	rw      io.ReadWriteCloser
	log     *logger.Logger
	heaters *heaterTable
	onEvent func(LinkEvent)

	sendMu sync.Mutex // one acknowledged command in flight
	ioMu   sync.Mutex // whole lines only
	acks   chan struct{}
	done   chan struct{}

	pendingProbes atomic.Int32
	operational   atomic.Bool
	closing       atomic.Bool
	autoReporting atomic.Bool
	longRunning   atomic.Bool
	heating       atomic.Bool
	dwellUntil    atomic.Int64
	currentTool   atomic.Int32
}

// Open opens the serial port and performs the line-number handshake.
func Open(ctx context.Context, cfg Config, log *logger.Logger, onEvent func(LinkEvent)) (*SerialLink, error) {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", cfg.Port, err)
	}
	l := newLink(port, cfg, log, onEvent)
	if err := l.handshake(ctx); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func newLink(rw io.ReadWriteCloser, cfg Config, log *logger.Logger, onEvent func(LinkEvent)) *SerialLink {
	if log == nil {
		log = logger.Nop()
	}
	if onEvent == nil {
		onEvent = func(LinkEvent) {}
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	l := &SerialLink{
		cfg:     cfg,
		rw:      rw,
		log:     log,
		heaters: newHeaterTable(cfg.Tools, cfg.Chamber, ambientC),
		onEvent: onEvent,
		acks:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// handshake resets line numbering and turns on auto reporting when configured.
func (l *SerialLink) handshake(ctx context.Context) error {
	if err := l.Send(ctx, "M110 N0"); err != nil {
		return fmt.Errorf("printer handshake: %w", err)
	}
	l.operational.Store(true)
	if n := l.cfg.AutoReportInterval; n > 0 {
		if err := l.Send(ctx, fmt.Sprintf("M155 S%d", n)); err != nil {
			return fmt.Errorf("enable auto report: %w", err)
		}
		l.autoReporting.Store(true)
	}
	l.log.Infow("printer_connected", "port", l.cfg.Port, "baud", l.cfg.Baud, "auto_report", l.autoReporting.Load())
	l.onEvent(LinkConnected)
	return nil
}

// Send writes one command line and waits for its "ok".
func (l *SerialLink) Send(ctx context.Context, s string) error {
	if !l.open() {
		return ErrClosed
	}
	cmd := parseLine(s)

	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	l.beforeSend(cmd)
	defer l.afterAck(cmd)

	// drop a stale ok left by an unsolicited reply
	select {
	case <-l.acks:
	default:
	}

	if err := l.writeLine(s); err != nil {
		return err
	}

	// long-running commands are only bounded by ctx; the firmware keeps them alive with busy lines
	var timeout <-chan time.Time
	if !longRunningCommands[cmd.word] {
		t := time.NewTimer(l.cfg.AckTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-l.acks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	case <-timeout:
		// the firmware dropped lines; replies to earlier probes are not coming either
		l.pendingProbes.Store(0)
		return fmt.Errorf("%s: %w", cmd.word, ErrAckTimeout)
	}
}

// SendProbe writes M105 out of band. Its reply is not treated as an acknowledgement.
func (l *SerialLink) SendProbe() error {
	if !l.open() {
		return ErrClosed
	}
	l.pendingProbes.Add(1)
	if err := l.writeLine("M105"); err != nil {
		l.pendingProbes.Add(-1)
		return err
	}
	return nil
}

// open reports whether the link is neither closing nor lost.
func (l *SerialLink) open() bool {
	if l.closing.Load() {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *SerialLink) writeLine(s string) error {
	l.ioMu.Lock()
	defer l.ioMu.Unlock()
	if _, err := io.WriteString(l.rw, strings.TrimSpace(s)+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", s, err)
	}
	return nil
}

func (l *SerialLink) beforeSend(cmd line) {
	if longRunningCommands[cmd.word] {
		l.longRunning.Store(true)
	}
	if heatingCommands[cmd.word] {
		l.heating.Store(true)
	}
	if d, ok := cmd.dwell(); ok {
		l.dwellUntil.Store(time.Now().Add(d).UnixNano())
	}
	if n, ok := cmd.toolChange(); ok {
		l.currentTool.Store(int32(n))
	}
	if class, ok := setCommands[cmd.word]; ok {
		if s, ok := cmd.param('S'); ok {
			channel := 0
			if class.MultiChannel() {
				channel = l.CurrentTool()
				if t, ok := cmd.param('T'); ok {
					channel = int(t)
				}
			}
			if err := l.heaters.setTarget(class, channel, s); err != nil {
				l.log.Debugw("serial_target_untracked", "command", cmd.word, "err", err)
			}
		}
	}
}

func (l *SerialLink) afterAck(cmd line) {
	if longRunningCommands[cmd.word] {
		l.longRunning.Store(false)
	}
	if heatingCommands[cmd.word] {
		l.heating.Store(false)
	}
	if cmd.word == "G4" {
		l.dwellUntil.Store(0)
	}
}

func (l *SerialLink) readLoop() {
	sc := bufio.NewScanner(l.rw)
	for sc.Scan() {
		l.handleLine(strings.TrimSpace(sc.Text()))
	}
	l.operational.Store(false)
	close(l.done)
	if !l.closing.Load() {
		l.log.Errorw("printer_link_lost", "port", l.cfg.Port, "err", sc.Err())
		l.onEvent(LinkDisconnected)
	}
}

func (l *SerialLink) handleLine(s string) {
	if s == "" {
		return
	}
	readings, isReport := ParseReport(s, l.CurrentTool())
	if isReport {
		now := time.Now().UTC()
		for _, r := range readings {
			l.heaters.update(r, now)
		}
	}

	switch {
	case strings.HasPrefix(s, "ok"):
		if isReport && l.pendingProbes.Load() > 0 {
			l.pendingProbes.Add(-1)
			return
		}
		select {
		case l.acks <- struct{}{}:
		default:
		}
	case s == "start":
		l.pendingProbes.Store(0)
		l.log.Infow("printer_reset", "port", l.cfg.Port)
	case strings.HasPrefix(s, "echo:busy"):
		l.log.Debugw("printer_busy", "line", s)
	case strings.HasPrefix(s, "Error:"), strings.HasPrefix(s, "!!"):
		l.log.Errorw("printer_error", "line", s)
		l.onEvent(LinkError)
	}
}

// Actual returns the last reported temperature of one heater channel.
func (l *SerialLink) Actual(class models.HeaterClass, channel int) (float64, error) {
	return l.heaters.actual(class, channel)
}

// Readings returns the last report of every configured channel.
func (l *SerialLink) Readings() []models.HeaterReading {
	return l.heaters.all()
}

// CurrentTool returns the tool selected by the last T<n> line.
func (l *SerialLink) CurrentTool() int {
	return int(l.currentTool.Load())
}

// TransportStatus reports the link flags consulted before probing.
func (l *SerialLink) TransportStatus() models.TransportStatus {
	return models.TransportStatus{
		Operational:    l.operational.Load() && !l.closing.Load(),
		AutoReporting:  l.autoReporting.Load(),
		Closing:        l.closing.Load(),
		LongRunning:    l.longRunning.Load(),
		HeatingBlocked: l.heating.Load(),
		Dwelling:       time.Now().UnixNano() < l.dwellUntil.Load(),
		// no SD upload or manual streaming support
		Streaming:       false,
		ManualStreaming: false,
	}
}

// Close shuts the port and waits for the reader to exit.
func (l *SerialLink) Close() error {
	if l.closing.Swap(true) {
		return nil
	}
	err := l.rw.Close()
	<-l.done
	return err
}
