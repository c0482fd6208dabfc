package printer

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/models"
)

// ----------- Simulation constants -----------
const (
	AmbientC          = ambientC
	MaxSafeC          = 320.0 // overheat threshold °C, any heater
	StandbyCoolPerSec = 0.5   // °C per second drift to ambient when target is 0
)

// Ramp rates per heater class, °C per second.
var rampRates = map[models.HeaterClass]struct{ up, down float64 }{
	models.HeaterPrimary:   {up: 4.0, down: 2.0},
	models.HeaterBed:       {up: 1.0, down: 0.5},
	models.HeaterEnclosure: {up: 0.2, down: 0.1},
}

// Simulator is an in-memory printer: heaters move toward their targets over time and
// every command is acknowledged immediately.
type Simulator struct {
	heaters *heaterTable
	log     *logger.Logger
	onEvent func(LinkEvent)

	mu          sync.Mutex
	lastTick    time.Time
	overheated  bool
	currentTool atomic.Int32
	probes      atomic.Int64
	autoReport  bool
	closing     atomic.Bool
}

// NewSimulator returns a simulator with tools primary heaters, a bed, and optionally a chamber.
func NewSimulator(tools int, chamber bool, log *logger.Logger, onEvent func(LinkEvent)) *Simulator {
	if log == nil {
		log = logger.Nop()
	}
	if onEvent == nil {
		onEvent = func(LinkEvent) {}
	}
	return &Simulator{
		heaters: newHeaterTable(tools, chamber, AmbientC),
		log:     log,
		onEvent: onEvent,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	s.onEvent(LinkConnected)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.mu.Lock()
			if s.lastTick.IsZero() {
				s.lastTick = now
				s.mu.Unlock()
				continue
			}
			elapsed := now.Sub(s.lastTick).Seconds()
			s.lastTick = now
			s.mu.Unlock()

			s.step(elapsed, now.UTC())
		}
	}
}

// step advances every heater by elapsed seconds.
func (s *Simulator) step(elapsed float64, now time.Time) {
	hot := false
	s.heaters.each(func(r *models.HeaterReading) {
		rate := rampRates[r.Class]
		switch {
		case r.TargetC <= 0:
			r.ActualC = driftToAmbient(r.ActualC, StandbyCoolPerSec*elapsed)
		case r.ActualC < r.TargetC:
			r.ActualC = math.Min(r.ActualC+rate.up*elapsed, r.TargetC)
		case r.ActualC > r.TargetC:
			r.ActualC = math.Max(r.ActualC-rate.down*elapsed, r.TargetC)
		}
		r.UpdatedAt = now
		if r.ActualC > MaxSafeC {
			hot = true
		}
	})
	s.detectOverheat(hot)
}

// detectOverheat raises LinkError once per excursion above MaxSafeC.
func (s *Simulator) detectOverheat(hot bool) {
	s.mu.Lock()
	raise := hot && !s.overheated
	s.overheated = hot
	s.mu.Unlock()
	if raise {
		s.log.Errorw("simulated_overheat", "max_safe", MaxSafeC)
		s.onEvent(LinkError)
	}
}

// Send applies heater, tool-change and auto-report commands; everything else is a no-op.
func (s *Simulator) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closing.Load() {
		return ErrClosed
	}
	cmd := parseLine(text)
	if n, ok := cmd.toolChange(); ok {
		s.currentTool.Store(int32(n))
		return nil
	}
	if cmd.word == "M155" {
		sec, _ := cmd.param('S')
		s.mu.Lock()
		s.autoReport = sec > 0
		s.mu.Unlock()
		return nil
	}
	class, ok := setCommands[cmd.word]
	if !ok {
		return nil
	}
	target, ok := cmd.param('S')
	if !ok {
		target, ok = cmd.param('R')
	}
	if !ok {
		return nil
	}
	channel := 0
	if class.MultiChannel() {
		channel = s.CurrentTool()
		if t, ok := cmd.param('T'); ok {
			channel = int(t)
		}
	}
	if err := s.heaters.setTarget(class, channel, target); err != nil {
		s.log.Errorw("simulated_target_rejected", "command", cmd.word, "err", err)
		return err
	}
	s.log.Debugw("simulated_target", "heater", class.String(), "channel", channel, "target", target)
	return nil
}

// SendProbe counts the probe; readings are always current.
func (s *Simulator) SendProbe() error {
	if s.closing.Load() {
		return ErrClosed
	}
	s.probes.Add(1)
	return nil
}

// Probes returns how many probes were sent.
func (s *Simulator) Probes() int64 {
	return s.probes.Load()
}

func (s *Simulator) Actual(class models.HeaterClass, channel int) (float64, error) {
	return s.heaters.actual(class, channel)
}

func (s *Simulator) Readings() []models.HeaterReading {
	return s.heaters.all()
}

func (s *Simulator) CurrentTool() int {
	return int(s.currentTool.Load())
}

func (s *Simulator) TransportStatus() models.TransportStatus {
	s.mu.Lock()
	auto := s.autoReport
	s.mu.Unlock()
	closing := s.closing.Load()
	return models.TransportStatus{
		Operational:   !closing,
		AutoReporting: auto,
		Closing:       closing,
	}
}

// Close marks the simulator as disconnected.
func (s *Simulator) Close() error {
	if !s.closing.Swap(true) {
		s.onEvent(LinkDisconnected)
	}
	return nil
}

// helpers
func driftToAmbient(actual, delta float64) float64 {
	if actual > AmbientC {
		return math.Max(actual-delta, AmbientC)
	}
	return actual
}
