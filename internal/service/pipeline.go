package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/models"
)

// Pipeline is the outbound command path. Blocking heater commands are replaced by
// their non-blocking twin and an out-of-band wait; everything else is forwarded.
type Pipeline struct {
	waiter  Waiter
	printer Dispatcher
	log     *logger.Logger

	holding    atomic.Bool
	cancelling func() bool
}

func NewPipeline(waiter Waiter, printer Dispatcher, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		waiter:     waiter,
		printer:    printer,
		log:        log,
		cancelling: func() bool { return false },
	}
}

// Holding reports whether command processing is held by a wait.
func (p *Pipeline) Holding() bool {
	return p.holding.Load()
}

// Send processes one command line. For blocking heater commands it returns only after
// the wait finished; an aborted wait is reported in the result, not as an error.
// An M108 is attributed to the actor attached with WithActor.
func (p *Pipeline) Send(ctx context.Context, line string) (SendResult, error) {
	cmd := CommandOf(line)

	if cmd == cmdCancelWait {
		p.waiter.CancelWait(ActorFrom(ctx))
		return p.forward(ctx, line)
	}
	if !IsBlocking(cmd) {
		return p.forward(ctx, line)
	}
	if p.cancelling() {
		p.log.Debugw("blocking_command_dropped", "command", cmd, "reason", "job cancelling")
		return SendResult{}, nil
	}

	p.waiter.Arm()
	p.holding.Store(true)
	defer p.holding.Store(false)

	tr, ok := Translate(line, p.printer.CurrentTool)
	if !ok {
		// no usable target: let the firmware handle it
		return p.forward(ctx, line)
	}

	if err := p.printer.Send(ctx, tr.Line); err != nil {
		return SendResult{}, fmt.Errorf("dispatch %s: %w", tr.To, err)
	}
	p.log.Infow("set_and_wait", "from", tr.From, "sent", tr.Line)

	outcome, err := p.waiter.RunWait(ctx, tr.Request)
	res := SendResult{Forwarded: tr.Line, Waited: true, Outcome: outcome}
	if err != nil {
		return res, fmt.Errorf("wait %s: %w", tr.From, err)
	}
	if outcome == models.OutcomeAborted {
		p.log.Infow("wait_aborted", "command", tr.From, "heater", describeTarget(tr.Request))
	}
	return res, nil
}

func (p *Pipeline) forward(ctx context.Context, line string) (SendResult, error) {
	if err := p.printer.Send(ctx, line); err != nil {
		return SendResult{}, fmt.Errorf("send %q: %w", line, err)
	}
	return SendResult{Forwarded: line}, nil
}
