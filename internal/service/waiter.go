package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/models"
	"set_and_wait/internal/repository"

	"github.com/google/uuid"
)

const defaultPollInterval = 1 * time.Second

var ErrSessionActive = errors.New("a wait with this identifier is already active")

// waitSession is one outstanding wait. active is written by abort callers and read by the loop.
type waitSession struct {
	req    WaitRequest
	token  *CancelToken
	active atomic.Bool

	mu               sync.Mutex
	phase            models.WaitPhase
	lastActual       float64
	restarts         int
	startedAt        time.Time
	stabilizingSince time.Time
	abortedBy        models.Actor
}

func (s *waitSession) setPhase(p models.WaitPhase) {
	s.mu.Lock()
	s.phase = p
	if p != models.PhaseStabilizing {
		s.stabilizingSince = time.Time{}
	}
	s.mu.Unlock()
}

func (s *waitSession) snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := models.SessionSnapshot{
		Identifier:       s.req.Identifier,
		Class:            s.req.Class,
		Mode:             s.req.Mode,
		TargetC:          s.req.TargetC,
		Phase:            s.phase,
		Active:           s.active.Load(),
		LastActualC:      s.lastActual,
		Restarts:         s.restarts,
		StartedAt:        s.startedAt,
		StabilizingSince: s.stabilizingSince,
		AbortedBy:        s.abortedBy,
	}
	if s.req.Channel != nil {
		ch := *s.req.Channel
		snap.Channel = &ch
	}
	return snap
}

// deactivate ends the session on behalf of by. It reports false when it had already ended.
func (s *waitSession) deactivate(by models.Actor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Swap(false) {
		return false
	}
	s.abortedBy = by
	return true
}

// holdResult is how a stabilizing pass ended.
type holdResult int

const (
	holdReached holdResult = iota
	holdLost
	holdAborted
)

// WaitController owns the wait sessions and runs the reach-then-stabilize loop.
type WaitController struct {
	source   TemperatureSource
	profiles *ProfileRegistry
	events   repository.EventRepo
	log      *logger.Logger
	clock    Clock
	interval time.Duration

	mu       sync.Mutex
	token    *CancelToken
	sessions map[string]*waitSession
}

// NewWaitController returns a disarmed controller; call Arm before RunWait.
func NewWaitController(source TemperatureSource, profiles *ProfileRegistry, events repository.EventRepo, log *logger.Logger) *WaitController {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	if log == nil {
		log = logger.Nop()
	}
	token := &CancelToken{}
	token.cancel(models.ActorSystem)
	return &WaitController{
		source:   source,
		profiles: profiles,
		events:   events,
		log:      log,
		clock:    realClock{},
		interval: defaultPollInterval,
		token:    token,
		sessions: make(map[string]*waitSession),
	}
}

// Arm enables waiting for the next blocking command. A cancelled token is replaced,
// a live one is kept so running sessions stay attached to it.
func (c *WaitController) Arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Cancelled() {
		c.token = &CancelToken{}
	}
}

// Waiting reports whether waiting is currently enabled.
func (c *WaitController) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.token.Cancelled()
}

// RunWait blocks until the heater reached the target and held it for the residency
// duration, or until the wait is aborted.
func (c *WaitController) RunWait(ctx context.Context, req WaitRequest) (models.WaitOutcome, error) {
	profile := c.profiles.ProfileFor(req.Class)

	s, err := c.register(req)
	if err != nil {
		return models.OutcomeAborted, err
	}
	defer c.unregister(s)

	c.record(ctx, models.EventWaitStart, fmt.Sprintf("%s waiting for %s", req.Identifier, describeTarget(req)), s, nil)

	for {
		reached, err := c.reach(ctx, s, profile)
		if err != nil {
			return c.fail(ctx, s, err)
		}
		if !reached {
			return c.abortOutcome(ctx, s), nil
		}
		c.record(ctx, models.EventTargetReached, fmt.Sprintf("%s reached %s, stabilizing", req.Identifier, describeTarget(req)), s, nil)

		res, err := c.stabilize(ctx, s, profile)
		if err != nil {
			return c.fail(ctx, s, err)
		}
		switch res {
		case holdReached:
			s.setPhase(models.PhaseReached)
			c.record(ctx, models.EventWaitReached, fmt.Sprintf("%s stable at %s", req.Identifier, describeTarget(req)), s, nil)
			return models.OutcomeReached, nil
		case holdAborted:
			return c.abortOutcome(ctx, s), nil
		case holdLost:
			s.mu.Lock()
			s.restarts++
			s.mu.Unlock()
			c.record(ctx, models.EventStabilityLost, fmt.Sprintf("%s left the hysteresis band, reaching again", req.Identifier), s, nil)
		}
	}
}

// reach polls until the target predicate holds. It returns false when the wait was aborted.
func (c *WaitController) reach(ctx context.Context, s *waitSession, p models.HeaterProfile) (bool, error) {
	s.setPhase(models.PhaseReaching)
	for c.alive(ctx, s) {
		actual, err := c.sample(s)
		if err != nil {
			return false, err
		}
		if targetReached(s.req.Mode, s.req.TargetC, actual, p.Window) {
			return true, nil
		}
		c.probeIfIdle(ctx, s)
		c.clock.Sleep(ctx, c.interval)
	}
	return false, nil
}

// stabilize requires the reading to stay within the hysteresis band for the residency duration.
func (c *WaitController) stabilize(ctx context.Context, s *waitSession, p models.HeaterProfile) (holdResult, error) {
	start := c.clock.Now()
	s.mu.Lock()
	s.phase = models.PhaseStabilizing
	s.stabilizingSince = start
	s.mu.Unlock()

	for {
		if !c.alive(ctx, s) {
			return holdAborted, nil
		}
		if c.clock.Now().Sub(start) >= p.Residency {
			return holdReached, nil
		}
		actual, err := c.sample(s)
		if err != nil {
			return holdAborted, err
		}
		if math.Abs(s.req.TargetC-actual) > p.Hysteresis {
			return holdLost, nil
		}
		c.probeIfIdle(ctx, s)
		c.clock.Sleep(ctx, c.interval)
	}
}

// targetReached: AtLeast accepts any reading at or above target-window, WithinAbsolute
// needs the reading within window on either side.
func targetReached(mode models.ComparisonMode, target, actual, window float64) bool {
	if mode == models.ModeWithinAbsolute {
		return math.Abs(target-actual) <= window
	}
	return target-actual <= window
}

func (c *WaitController) alive(ctx context.Context, s *waitSession) bool {
	return s.active.Load() && !s.token.Cancelled() && ctx.Err() == nil
}

func (c *WaitController) sample(s *waitSession) (float64, error) {
	channel := 0
	if s.req.Channel != nil {
		channel = *s.req.Channel
	}
	actual, err := c.source.Actual(s.req.Class, channel)
	if err != nil {
		return 0, fmt.Errorf("read %s %d: %w", s.req.Class, channel, err)
	}
	s.mu.Lock()
	s.lastActual = actual
	s.mu.Unlock()

	c.log.Debugw("wait_sample",
		"heater", s.req.Class.String(),
		"mode", s.req.Mode.String(),
		"target", s.req.TargetC,
		"actual", actual,
	)
	return actual, nil
}

// probeIfIdle sends one probe when the transport is otherwise idle. An abort that
// landed during the sample suppresses it.
func (c *WaitController) probeIfIdle(ctx context.Context, s *waitSession) {
	if !c.alive(ctx, s) || !CanProbe(c.source.TransportStatus()) {
		return
	}
	if err := c.source.SendProbe(); err != nil {
		c.log.Debugw("probe_send_failed", "err", err)
	}
}

func (c *WaitController) abortOutcome(ctx context.Context, s *waitSession) models.WaitOutcome {
	by := abortActor(s)
	s.mu.Lock()
	s.abortedBy = by
	s.mu.Unlock()
	s.setPhase(models.PhaseAborted)
	c.log.Infow("wait_aborted", "identifier", s.req.Identifier, "by", by.String())
	c.record(ctx, models.EventWaitAborted, fmt.Sprintf("%s aborted by %s", s.req.Identifier, by), s, nil)
	return models.OutcomeAborted
}

// abortActor: an explicit session abort wins over a cancelled token; a cancelled
// context is a system abort.
func abortActor(s *waitSession) models.Actor {
	s.mu.Lock()
	by := s.abortedBy
	s.mu.Unlock()
	if by != "" {
		return by
	}
	if s.token.Cancelled() {
		return s.token.CancelledBy()
	}
	return models.ActorSystem
}

func (c *WaitController) fail(ctx context.Context, s *waitSession, err error) (models.WaitOutcome, error) {
	s.setPhase(models.PhaseAborted)
	c.log.Errorw("wait_failed", "identifier", s.req.Identifier, "err", err)
	c.record(ctx, models.EventWaitFailed, s.req.Identifier+" failed: "+err.Error(), s, nil)
	return models.OutcomeAborted, err
}

func (c *WaitController) register(req WaitRequest) (*waitSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[req.Identifier]; ok {
		return nil, fmt.Errorf("%s: %w", req.Identifier, ErrSessionActive)
	}
	s := &waitSession{
		req:       req,
		token:     c.token,
		phase:     models.PhaseIdle,
		startedAt: c.clock.Now().UTC(),
	}
	s.active.Store(true)
	c.sessions[req.Identifier] = s
	return s, nil
}

func (c *WaitController) unregister(s *waitSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[s.req.Identifier] == s {
		delete(c.sessions, s.req.Identifier)
	}
}

// Abort deactivates the session with the given identifier on behalf of by. It reports
// whether an active session was found; repeated calls are harmless.
func (c *WaitController) Abort(identifier string, by models.Actor) bool {
	c.mu.Lock()
	s, ok := c.sessions[identifier]
	c.mu.Unlock()
	if !ok || !s.deactivate(by) {
		return false
	}
	c.log.Debugw("aborting_wait", "identifier", identifier, "by", by.String())
	return true
}

// AbortAll stops waiting and deactivates every tracked session.
func (c *WaitController) AbortAll(by models.Actor) {
	c.mu.Lock()
	c.token.cancel(by)
	aborted := make([]string, 0, len(c.sessions))
	for id, s := range c.sessions {
		if s.deactivate(by) {
			aborted = append(aborted, id)
		}
	}
	c.mu.Unlock()

	if len(aborted) == 0 {
		return
	}
	sort.Strings(aborted)
	c.log.Infow("aborting_all_waits", "identifiers", aborted, "by", by.String())
	c.record(context.Background(), models.EventAbortAll, fmt.Sprintf("%s aborted %d wait(s)", by, len(aborted)), nil,
		map[string]any{"actor": by.String(), "identifiers": aborted})
}

// CancelWait stops waiting without deactivating sessions individually.
func (c *WaitController) CancelWait(by models.Actor) {
	c.mu.Lock()
	c.token.cancel(by)
	n := len(c.sessions)
	c.mu.Unlock()
	if n > 0 {
		c.log.Infow("wait_cancelled", "sessions", n, "by", by.String())
		c.record(context.Background(), models.EventCancelWait, fmt.Sprintf("wait cancelled by %s", by), nil,
			map[string]any{"actor": by.String(), "sessions": n})
	}
}

// Sessions returns snapshots of the tracked sessions.
func (c *WaitController) Sessions() []models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.SessionSnapshot, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s.snapshot())
	}
	return out
}

// record appends an audit event. Session fields and extra are merged into the metadata.
func (c *WaitController) record(ctx context.Context, typ, desc string, s *waitSession, extra map[string]any) {
	if c.events == nil {
		return
	}
	ev := models.WaitEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
	}
	meta := make(map[string]any, len(extra)+8)
	if s != nil {
		snap := s.snapshot()
		meta["identifier"] = snap.Identifier
		meta["heater"] = snap.Class.String()
		meta["mode"] = snap.Mode.String()
		meta["target_c"] = snap.TargetC
		meta["actual_c"] = snap.LastActualC
		meta["restarts"] = snap.Restarts
		if snap.Channel != nil {
			meta["channel"] = *snap.Channel
		}
		if snap.AbortedBy != "" {
			meta["actor"] = snap.AbortedBy.String()
		}
	}
	for k, v := range extra {
		meta[k] = v
	}
	if len(meta) > 0 {
		ev.Metadata = meta
	}
	if err := c.events.Append(context.WithoutCancel(ctx), ev); err != nil {
		c.log.Errorw("wait_event_append_failed", "type", typ, "err", err)
	}
}

func describeTarget(req WaitRequest) string {
	heater := req.Class.String()
	if req.Channel != nil {
		heater = fmt.Sprintf("%s %d", heater, *req.Channel)
	}
	return fmt.Sprintf("%s %s%.1f", heater, req.Mode, req.TargetC)
}
