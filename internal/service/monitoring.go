package service

import (
	"context"
	"sort"
	"time"

	"set_and_wait/internal/models"
)

// MonitoringService assembles the read-only status view.
type MonitoringService struct {
	printer  Printer
	waiter   Waiter
	commands Commands
	jobs     Jobs
}

func NewMonitoringService(printer Printer, waiter Waiter, commands Commands, jobs Jobs) *MonitoringService {
	return &MonitoringService{printer: printer, waiter: waiter, commands: commands, jobs: jobs}
}

// GetStatus returns heaters, active waits, transport flags and job state.
func (s *MonitoringService) GetStatus(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	st := Status{
		Heaters:   normalizeReadings(s.printer.Readings()),
		Waits:     sortedSessions(s.waiter.Sessions()),
		Waiting:   s.waiter.Waiting(),
		Holding:   s.commands.Holding(),
		Transport: s.printer.TransportStatus(),
		Job:       s.jobs.Status(),
		At:        time.Now().UTC(),
	}
	return st, nil
}

// normalizeReadings orders readings by class then channel and converts times to UTC.
func normalizeReadings(in []models.HeaterReading) []models.HeaterReading {
	out := make([]models.HeaterReading, len(in))
	copy(out, in)
	for i := range out {
		out[i].UpdatedAt = normalizeToUTC(out[i].UpdatedAt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

func sortedSessions(in []models.SessionSnapshot) []models.SessionSnapshot {
	sort.Slice(in, func(i, j int) bool { return in[i].Identifier < in[j].Identifier })
	return in
}
