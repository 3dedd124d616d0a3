package device

import (
	"context"
	"math"
	"sync"

	"github.com/charmbracelet/log"

	"labflow/internal/logging"
)

// Default simulation parameters.
const (
	DefaultTemperature = 25.5
	DefaultGrowthRate  = 0.05
)

// Spectrophotometer simulates an optical density reader. Readings are
// deterministic: each one advances the culture by GrowthRate and the
// temperature oscillates slowly around BaseTemperature.
type Spectrophotometer struct {
	name    string
	culture *Culture
	logger  *log.Logger

	BaseTemperature float64
	GrowthRate      float64

	mu       sync.Mutex
	readings int
}

func NewSpectrophotometer(name string, culture *Culture, logger *log.Logger) *Spectrophotometer {
	if culture == nil {
		culture = NewCulture(0.1, 1)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Spectrophotometer{
		name:            name,
		culture:         culture,
		logger:          logger,
		BaseTemperature: DefaultTemperature,
		GrowthRate:      DefaultGrowthRate,
	}
}

func (s *Spectrophotometer) Name() string { return s.name }
func (s *Spectrophotometer) Kind() Kind   { return KindSpectrophotometer }

func (s *Spectrophotometer) Methods() map[string]any {
	return map[string]any{
		"get_temperature":         s.GetTemperature,
		"measure_optical_density": s.MeasureOpticalDensity,
	}
}

// GetTemperature returns the vessel temperature in degrees Celsius.
func (s *Spectrophotometer) GetTemperature(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	n := s.readings
	s.mu.Unlock()

	t := s.BaseTemperature + 0.25*math.Sin(float64(n)/10)
	t = math.Round(t*100) / 100
	s.logger.Debug("temperature reading", "celsius", t)
	return t, nil
}

// MeasureOpticalDensity returns the culture's optical density and then
// grows it by one tick.
func (s *Spectrophotometer) MeasureOpticalDensity(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	od := s.culture.OpticalDensity()
	s.culture.Grow(s.GrowthRate)

	s.mu.Lock()
	s.readings++
	s.mu.Unlock()

	od = math.Round(od*1e5) / 1e5
	s.logger.Debug("optical density reading", "od", od)
	return od, nil
}
