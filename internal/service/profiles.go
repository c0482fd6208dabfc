package service

import (
	"errors"
	"fmt"
	"time"

	"set_and_wait/internal/models"
)

// Default stabilization tuning per heater class.
var defaultProfiles = map[models.HeaterClass]models.HeaterProfile{
	models.HeaterPrimary: {
		Residency:  10 * time.Second,
		Window:     1,
		Hysteresis: 3,
	},
	models.HeaterBed: {
		Residency:  5 * time.Minute,
		Window:     1,
		Hysteresis: 3,
	},
	models.HeaterEnclosure: {
		Residency:  10 * time.Minute,
		Window:     3,
		Hysteresis: 5,
	},
}

var (
	errInvalidResidency  = errors.New("residency must be positive")
	errInvalidWindow     = errors.New("window must be non-negative")
	errInvalidHysteresis = errors.New("hysteresis must be non-negative")
)

// ProfileOverride replaces individual fields of a default profile. Nil fields keep the default.
type ProfileOverride struct {
	Residency  *time.Duration
	Window     *float64
	Hysteresis *float64
}

// ProfileRegistry maps heater classes to their profiles. It is immutable once built.
type ProfileRegistry struct {
	profiles map[models.HeaterClass]models.HeaterProfile
}

// NewProfileRegistry builds a registry from the defaults with optional overrides applied.
func NewProfileRegistry(overrides map[models.HeaterClass]ProfileOverride) (*ProfileRegistry, error) {
	profiles := make(map[models.HeaterClass]models.HeaterProfile, len(defaultProfiles))
	for class, p := range defaultProfiles {
		if o, ok := overrides[class]; ok {
			if o.Residency != nil {
				p.Residency = *o.Residency
			}
			if o.Window != nil {
				p.Window = *o.Window
			}
			if o.Hysteresis != nil {
				p.Hysteresis = *o.Hysteresis
			}
		}
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("heater %s: %w", class, err)
		}
		profiles[class] = p
	}
	return &ProfileRegistry{profiles: profiles}, nil
}

// DefaultProfiles returns a registry holding the built-in profiles.
func DefaultProfiles() *ProfileRegistry {
	r, _ := NewProfileRegistry(nil)
	return r
}

// ProfileFor returns the profile of class. Unknown classes are a programming error.
func (r *ProfileRegistry) ProfileFor(class models.HeaterClass) models.HeaterProfile {
	p, ok := r.profiles[class]
	if !ok {
		panic(fmt.Sprintf("no heater profile for %s", class))
	}
	return p
}

func validateProfile(p models.HeaterProfile) error {
	if p.Residency <= 0 {
		return errInvalidResidency
	}
	if p.Window < 0 {
		return errInvalidWindow
	}
	if p.Hysteresis < 0 {
		return errInvalidHysteresis
	}
	return nil
}
