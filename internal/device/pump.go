package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"labflow/internal/logging"
)

// Direction values accepted by the pump.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// Pump simulates a peristaltic pump. Pouring "left" adds medium to the
// culture, pouring "right" removes liquid from it.
type Pump struct {
	name    string
	culture *Culture
	logger  *log.Logger

	// TimeScale multiplies the physical pour duration
	// (volume / flow * 1min). Zero pours instantly.
	TimeScale float64

	mu          sync.Mutex
	defaultFlow float64
	dispensed   map[string]float64
	rotating    bool
}

func NewPump(name string, culture *Culture, logger *log.Logger) *Pump {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pump{
		name:      name,
		culture:   culture,
		logger:    logger,
		dispensed: make(map[string]float64),
	}
}

func (p *Pump) Name() string { return p.name }
func (p *Pump) Kind() Kind   { return KindPump }

func (p *Pump) Methods() map[string]any {
	return map[string]any{
		"set_default_flow_rate":     p.SetDefaultFlowRate,
		"pour_in_volume":            p.PourInVolume,
		"start_continuous_rotation": p.StartContinuousRotation,
		"stop_continuous_rotation":  p.StopContinuousRotation,
		"dispensed":                 p.Dispensed,
	}
}

// SetDefaultFlowRate sets the flow rate in mL/min used when a pour passes zero.
func (p *Pump) SetDefaultFlowRate(flowRate float64) error {
	if flowRate <= 0 {
		return fmt.Errorf("%s: flow rate must be positive, got %v: %w", p.name, flowRate, ErrInvalidParameter)
	}
	p.mu.Lock()
	p.defaultFlow = flowRate
	p.mu.Unlock()
	p.logger.Debug("default flow rate set", "flow_rate", flowRate)
	return nil
}

// PourInVolume pours volume mL at flowRate mL/min in direction. A zero
// flowRate uses the default flow rate.
func (p *Pump) PourInVolume(ctx context.Context, volume, flowRate float64, direction string) error {
	if volume < 0 {
		return fmt.Errorf("%s: volume must be non-negative, got %v: %w", p.name, volume, ErrInvalidParameter)
	}
	if err := validateDirection(direction); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	flow, err := p.flowRate(flowRate)
	if err != nil {
		return err
	}

	p.logger.Debug("pouring", "volume", volume, "flow_rate", flow, "direction", direction)

	if d := p.pourDuration(volume, flow); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	p.mu.Lock()
	p.dispensed[direction] += volume
	p.mu.Unlock()

	if p.culture != nil {
		if direction == DirectionLeft {
			p.culture.AddMedium(volume)
		} else {
			p.culture.Remove(volume)
		}
	}
	return nil
}

// StartContinuousRotation starts rotating until StopContinuousRotation.
func (p *Pump) StartContinuousRotation(flowRate float64, direction string) error {
	if err := validateDirection(direction); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	flow, err := p.flowRate(flowRate)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.rotating = true
	p.mu.Unlock()
	p.logger.Debug("continuous rotation started", "flow_rate", flow, "direction", direction)
	return nil
}

func (p *Pump) StopContinuousRotation() {
	p.mu.Lock()
	p.rotating = false
	p.mu.Unlock()
	p.logger.Debug("continuous rotation stopped")
}

// Rotating reports whether continuous rotation is active.
func (p *Pump) Rotating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotating
}

// Dispensed returns the total volume poured in direction.
func (p *Pump) Dispensed(direction string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispensed[direction]
}

func (p *Pump) flowRate(requested float64) (float64, error) {
	if requested < 0 {
		return 0, fmt.Errorf("%s: flow rate must be positive, got %v: %w", p.name, requested, ErrInvalidParameter)
	}
	if requested > 0 {
		return requested, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.defaultFlow == 0 {
		return 0, fmt.Errorf("%s: no flow rate given and no default set: %w", p.name, ErrInvalidParameter)
	}
	return p.defaultFlow, nil
}

func (p *Pump) pourDuration(volume, flow float64) time.Duration {
	if p.TimeScale == 0 || volume == 0 {
		return 0
	}
	minutes := volume / flow * p.TimeScale
	return time.Duration(minutes * float64(time.Minute))
}

func validateDirection(direction string) error {
	switch direction {
	case DirectionLeft, DirectionRight:
		return nil
	default:
		return fmt.Errorf("direction %q must be left or right: %w", direction, ErrInvalidParameter)
	}
}
