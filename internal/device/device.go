// Package device provides simulated laboratory instruments and a registry
// that exposes their methods to experiment plans.
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"labflow/internal/logging"
)

var (
	ErrInvalidParameter = errors.New("invalid device parameter")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrUnknownMethod    = errors.New("unknown device method")
	ErrUnknownKind      = errors.New("unknown device kind")
	ErrDuplicateDevice  = errors.New("duplicate device name")
)

// Kind names a device type in plan files.
type Kind string

const (
	KindPump              Kind = "pump"
	KindSpectrophotometer Kind = "spectrophotometer"
)

// Device is an instrument whose methods can be scheduled as steps.
type Device interface {
	Name() string
	Kind() Kind
	// Methods maps method names to bound Go methods.
	Methods() map[string]any
}

// Registry holds the devices of one experiment setup. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Add registers d under its name.
func (r *Registry) Add(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.Name()]; ok {
		return fmt.Errorf("%s: %w", d.Name(), ErrDuplicateDevice)
	}
	r.devices[d.Name()] = d
	return nil
}

// Get returns the device registered under name.
func (r *Registry) Get(name string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownDevice)
	}
	return d, nil
}

// Method returns the Go method bound to device.method.
func (r *Registry) Method(device, method string) (any, error) {
	d, err := r.Get(device)
	if err != nil {
		return nil, err
	}
	fn, ok := d.Methods()[method]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", device, method, ErrUnknownMethod)
	}
	return fn, nil
}

// Names returns registered device names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a simulated device of the given kind attached to culture.
// Recognised params: pump "flow_rate", "time_scale"; spectrophotometer
// "temperature", "growth_rate".
func New(kind Kind, name string, params map[string]float64, culture *Culture, logger *log.Logger) (Device, error) {
	if name == "" {
		return nil, fmt.Errorf("empty device name: %w", ErrInvalidParameter)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithPrefix(name)

	switch kind {
	case KindPump:
		p := NewPump(name, culture, logger)
		if v, ok := params["flow_rate"]; ok {
			if err := p.SetDefaultFlowRate(v); err != nil {
				return nil, err
			}
		}
		if v, ok := params["time_scale"]; ok {
			if v < 0 {
				return nil, fmt.Errorf("%s: time_scale %v: %w", name, v, ErrInvalidParameter)
			}
			p.TimeScale = v
		}
		return p, nil
	case KindSpectrophotometer:
		s := NewSpectrophotometer(name, culture, logger)
		if v, ok := params["temperature"]; ok {
			s.BaseTemperature = v
		}
		if v, ok := params["growth_rate"]; ok {
			if v < 0 {
				return nil, fmt.Errorf("%s: growth_rate %v: %w", name, v, ErrInvalidParameter)
			}
			s.GrowthRate = v
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}
}
