package models

import (
	"fmt"
	"time"
)

// HeaterClass is a category of thermal channel.
type HeaterClass int

const (
	HeaterPrimary HeaterClass = iota
	HeaterBed
	HeaterEnclosure
)

// HeaterClasses lists every known class in a stable order.
var HeaterClasses = []HeaterClass{HeaterPrimary, HeaterBed, HeaterEnclosure}

func (c HeaterClass) String() string {
	switch c {
	case HeaterPrimary:
		return "tool"
	case HeaterBed:
		return "bed"
	case HeaterEnclosure:
		return "chamber"
	default:
		return fmt.Sprintf("heater(%d)", int(c))
	}
}

// MultiChannel reports whether the class addresses several physical heaters by index.
func (c HeaterClass) MultiChannel() bool {
	return c == HeaterPrimary
}

// MarshalText renders the class as tool | bed | chamber.
func (c HeaterClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseHeaterClass is the inverse of HeaterClass.String.
func ParseHeaterClass(s string) (HeaterClass, error) {
	switch s {
	case "tool":
		return HeaterPrimary, nil
	case "bed":
		return HeaterBed, nil
	case "chamber":
		return HeaterEnclosure, nil
	default:
		return 0, fmt.Errorf("unknown heater class %q", s)
	}
}

// HeaterProfile holds the stabilization tuning of one heater class.
type HeaterProfile struct {
	Residency  time.Duration `json:"residency"`  // time the reading must hold within Hysteresis
	Window     float64       `json:"window"`     // °C tolerance for "reached"
	Hysteresis float64       `json:"hysteresis"` // °C band tolerated while stabilizing
}

// HeaterReading is the last known actual/target pair of one heater channel.
type HeaterReading struct {
	Class     HeaterClass `json:"class"`
	Channel   int         `json:"channel"`
	ActualC   float64     `json:"actual_c"`
	TargetC   float64     `json:"target_c"`
	UpdatedAt time.Time   `json:"updated_at"`
}
