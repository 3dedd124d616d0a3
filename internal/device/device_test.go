package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPump_PourInVolume(t *testing.T) {
	culture := NewCulture(0.8, 10)
	p := NewPump("pump1", culture, nil)

	require.NoError(t, p.PourInVolume(context.Background(), 10, 5, DirectionLeft))

	assert.Equal(t, 10.0, p.Dispensed(DirectionLeft))
	assert.Equal(t, 0.0, p.Dispensed(DirectionRight))
	assert.InDelta(t, 0.4, culture.OpticalDensity(), 1e-9)
	assert.InDelta(t, 20.0, culture.Volume(), 1e-9)
}

func TestPump_PourRightRemovesVolume(t *testing.T) {
	culture := NewCulture(0.5, 10)
	p := NewPump("pump1", culture, nil)

	require.NoError(t, p.PourInVolume(context.Background(), 4, 1, DirectionRight))

	assert.InDelta(t, 6.0, culture.Volume(), 1e-9)
	assert.InDelta(t, 0.5, culture.OpticalDensity(), 1e-9)
}

func TestPump_Validation(t *testing.T) {
	p := NewPump("pump1", nil, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		volume    float64
		flow      float64
		direction string
	}{
		{"negative volume", -1, 1, DirectionLeft},
		{"negative flow", 1, -1, DirectionLeft},
		{"no flow and no default", 1, 0, DirectionLeft},
		{"bad direction", 1, 1, "up"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.PourInVolume(ctx, tt.volume, tt.flow, tt.direction)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}

	assert.ErrorIs(t, p.SetDefaultFlowRate(0), ErrInvalidParameter)
}

func TestPump_DefaultFlowRate(t *testing.T) {
	p := NewPump("pump1", nil, nil)
	require.NoError(t, p.SetDefaultFlowRate(3))
	assert.NoError(t, p.PourInVolume(context.Background(), 1, 0, DirectionLeft))
}

func TestPump_TimeScaleHonoursContext(t *testing.T) {
	p := NewPump("pump1", nil, nil)
	p.TimeScale = 1 // 10 mL at 1 mL/min is ten minutes

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PourInVolume(ctx, 10, 1, DirectionLeft)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, p.Dispensed(DirectionLeft))
}

func TestPump_ContinuousRotation(t *testing.T) {
	p := NewPump("pump1", nil, nil)
	require.NoError(t, p.StartContinuousRotation(2, DirectionRight))
	assert.True(t, p.Rotating())
	p.StopContinuousRotation()
	assert.False(t, p.Rotating())
}

func TestSpectrophotometer_DeterministicGrowth(t *testing.T) {
	culture := NewCulture(0.1, 10)
	s := NewSpectrophotometer("spec", culture, nil)
	s.GrowthRate = 0.5
	ctx := context.Background()

	var got []float64
	for i := 0; i < 3; i++ {
		od, err := s.MeasureOpticalDensity(ctx)
		require.NoError(t, err)
		got = append(got, od)
	}
	assert.InDeltaSlice(t, []float64{0.1, 0.15, 0.225}, got, 1e-9)
}

func TestSpectrophotometer_Temperature(t *testing.T) {
	s := NewSpectrophotometer("spec", nil, nil)
	temp, err := s.GetTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, temp)
}

func TestSpectrophotometer_CancelledContext(t *testing.T) {
	s := NewSpectrophotometer("spec", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.MeasureOpticalDensity(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_Method(t *testing.T) {
	culture := NewCulture(0.1, 10)
	r := NewRegistry()

	pump, err := New(KindPump, "pump1", map[string]float64{"flow_rate": 2}, culture, nil)
	require.NoError(t, err)
	require.NoError(t, r.Add(pump))

	spec, err := New(KindSpectrophotometer, "spec", nil, culture, nil)
	require.NoError(t, err)
	require.NoError(t, r.Add(spec))

	assert.Equal(t, []string{"pump1", "spec"}, r.Names())

	fn, err := r.Method("spec", "measure_optical_density")
	require.NoError(t, err)
	measure, ok := fn.(func(context.Context) (float64, error))
	require.True(t, ok)
	od, err := measure(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.1, od, 1e-9)

	_, err = r.Method("spec", "pour_in_volume")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = r.Method("missing", "x")
	assert.ErrorIs(t, err, ErrUnknownDevice)

	assert.ErrorIs(t, r.Add(pump), ErrDuplicateDevice)
}

func TestNew_Errors(t *testing.T) {
	_, err := New("centrifuge", "c1", nil, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(KindPump, "", nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(KindPump, "p", map[string]float64{"flow_rate": -1}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(KindSpectrophotometer, "s", map[string]float64{"growth_rate": -1}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
