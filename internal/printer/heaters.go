package printer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"set_and_wait/internal/models"
)

var ErrChannelOutOfRange = errors.New("heater channel out of range")

type heaterKey struct {
	class   models.HeaterClass
	channel int
}

// heaterTable holds the last reading of every configured heater channel.
type heaterTable struct {
	mu sync.RWMutex
	m  map[heaterKey]models.HeaterReading
}

// newHeaterTable registers tools primary channels, the bed, and optionally a chamber.
func newHeaterTable(tools int, chamber bool, initialC float64) *heaterTable {
	if tools < 1 {
		tools = 1
	}
	t := &heaterTable{m: make(map[heaterKey]models.HeaterReading)}
	for i := 0; i < tools; i++ {
		t.m[heaterKey{models.HeaterPrimary, i}] = models.HeaterReading{Class: models.HeaterPrimary, Channel: i, ActualC: initialC}
	}
	t.m[heaterKey{models.HeaterBed, 0}] = models.HeaterReading{Class: models.HeaterBed, ActualC: initialC}
	if chamber {
		t.m[heaterKey{models.HeaterEnclosure, 0}] = models.HeaterReading{Class: models.HeaterEnclosure, ActualC: initialC}
	}
	return t
}

// update stores r if its channel is configured; unknown channels are ignored.
func (t *heaterTable) update(r models.HeaterReading, at time.Time) bool {
	k := heaterKey{r.Class, r.Channel}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.m[k]; !ok {
		return false
	}
	r.UpdatedAt = at
	t.m[k] = r
	return true
}

// setTarget records a commanded target without touching the actual reading.
func (t *heaterTable) setTarget(class models.HeaterClass, channel int, target float64) error {
	k := heaterKey{class, channel}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.m[k]
	if !ok {
		return fmt.Errorf("%s %d: %w", class, channel, ErrChannelOutOfRange)
	}
	r.TargetC = target
	t.m[k] = r
	return nil
}

func (t *heaterTable) get(class models.HeaterClass, channel int) (models.HeaterReading, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.m[heaterKey{class, channel}]
	if !ok {
		return models.HeaterReading{}, fmt.Errorf("%s %d: %w", class, channel, ErrChannelOutOfRange)
	}
	return r, nil
}

func (t *heaterTable) actual(class models.HeaterClass, channel int) (float64, error) {
	r, err := t.get(class, channel)
	if err != nil {
		return 0, err
	}
	return r.ActualC, nil
}

func (t *heaterTable) all() []models.HeaterReading {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.HeaterReading, 0, len(t.m))
	for _, r := range t.m {
		out = append(out, r)
	}
	return out
}

// each applies fn to every reading under the write lock.
func (t *heaterTable) each(fn func(r *models.HeaterReading)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, r := range t.m {
		fn(&r)
		t.m[k] = r
	}
}
