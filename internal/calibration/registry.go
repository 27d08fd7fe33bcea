package calibration

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

type Constructor func() (Calibrator, error)

type Registration struct {
	ID      HardwareID
	Aliases []HardwareID
	New     Constructor
}

// Registry resolves hardware identifiers to calibrators. Every constructor
// runs once inside NewRegistry, so table or profile faults surface at startup
// and the registry is read-only afterwards.
type Registry struct {
	calibrators map[HardwareID]Calibrator
	aliases     map[HardwareID]HardwareID
}

func NewRegistry(registrations ...Registration) (*Registry, error) {
	registry := &Registry{
		calibrators: make(map[HardwareID]Calibrator, len(registrations)),
		aliases:     make(map[HardwareID]HardwareID),
	}

	for _, registration := range registrations {
		if registration.New == nil {
			return nil, fmt.Errorf("%w: %s has no constructor", ErrInvalidProfile, registration.ID)
		}
		if registry.taken(registration.ID) {
			return nil, fmt.Errorf("%w: hardware %s registered twice", ErrInvalidProfile, registration.ID)
		}

		calibrator, err := registration.New()
		if err != nil {
			return nil, fmt.Errorf("building calibrator %s: %w", registration.ID, err)
		}
		registry.calibrators[registration.ID] = calibrator

		for _, alias := range registration.Aliases {
			if registry.taken(alias) {
				return nil, fmt.Errorf("%w: alias %s of %s already registered", ErrInvalidProfile, alias, registration.ID)
			}
			registry.aliases[alias] = registration.ID
		}
	}

	return registry, nil
}

func (r *Registry) taken(id HardwareID) bool {
	_, isCalibrator := r.calibrators[id]
	_, isAlias := r.aliases[id]
	return isCalibrator || isAlias
}

func (r *Registry) Resolve(id HardwareID) (Calibrator, error) {
	if canonical, ok := r.aliases[id]; ok {
		id = canonical
	}

	calibrator, ok := r.calibrators[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHardware, id)
	}

	return calibrator, nil
}

func (r *Registry) HardwareIDs() []HardwareID {
	return slices.Sorted(maps.Keys(r.calibrators))
}

// BuiltinRegistrations lists the variants compiled into the server.
func BuiltinRegistrations() []Registration {
	return []Registration{
		{
			ID:      HardwareSCK11,
			Aliases: []HardwareID{KitSCK11},
			New: func() (Calibrator, error) {
				return NewSCK11()
			},
		},
	}
}

func ProfileRegistration(profile Profile) Registration {
	aliases := make([]HardwareID, 0, len(profile.Aliases))
	for _, alias := range profile.Aliases {
		aliases = append(aliases, HardwareID(strings.TrimSpace(alias)))
	}

	return Registration{
		ID:      HardwareID(strings.TrimSpace(profile.HardwareID)),
		Aliases: aliases,
		New: func() (Calibrator, error) {
			return NewProfileVariant(profile)
		},
	}
}
