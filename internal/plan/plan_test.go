package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labflow/internal/config"
	"labflow/internal/core"
	"labflow/internal/device"
	"labflow/internal/experiment"
	"labflow/internal/measurement"
)

const dilutionPlan = `
experiment:
  name: dilution
culture:
  od: 0.4
  volume: 10
devices:
  - name: pump1
    kind: pump
  - name: spec
    kind: spectrophotometer
    params:
      growth_rate: 0.5
steps:
  - repeat: 3
    steps:
      - measure: spec.measure_optical_density
        measurement: od
      - name: dilute
        action: pump1.pour_in_volume
        args: [10, 2, left]
        when: {metric: od, op: ">", value: 0.5}
      - wait: 1m
`

func parse(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(content))
	require.NoError(t, err)
	return cfg
}

func TestCompile_ExpandsRepeat(t *testing.T) {
	p, err := Compile(parse(t, dilutionPlan), nil)
	require.NoError(t, err)

	steps := p.Experiment.Steps()
	require.Len(t, steps, 9)

	assert.Equal(t, core.KindMeasurement, steps[0].Kind())
	assert.Equal(t, "spec.measure_optical_density", steps[0].Name())
	assert.Equal(t, core.KindConditional, steps[1].Kind())
	assert.Equal(t, "dilute if od last > 0.5", steps[1].Name())
	assert.Equal(t, core.KindWait, steps[2].Kind())
	assert.Equal(t, "dilution", p.Name)
	assert.Equal(t, []string{"pump1", "spec"}, p.Devices.Names())
}

func TestCompile_RunsDilutionLoop(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := core.NewFakeClock(start)

	p, err := Compile(parse(t, dilutionPlan), nil, experiment.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, p.Experiment.Start(context.Background(), false))

	values, err := p.Experiment.Measurements().Values("od")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4, 0.6, 0.45}, values, 1e-9)

	pumpDev, err := p.Devices.Get("pump1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, pumpDev.(*device.Pump).Dispensed(device.DirectionLeft))

	cursor, ok := p.Experiment.CurrentTime()
	require.True(t, ok)
	assert.Equal(t, start.Add(3*time.Minute), cursor)
}

func TestCompile_NegatedCondition(t *testing.T) {
	content := `
devices: [{name: spec, kind: spectrophotometer}]
steps:
  - measure: spec.get_temperature
    measurement: temp
  - measure: spec.get_temperature
    measurement: temp
    when: {metric: temp, statistic: count, op: ">=", value: 1, negate: true}
`
	p, err := Compile(parse(t, content), nil, experiment.WithClock(core.NewFakeClock(time.Now())))
	require.NoError(t, err)
	require.NoError(t, p.Experiment.Start(context.Background(), false))

	assert.Equal(t, 1, p.Experiment.Measurements().Len("temp"))
	assert.Equal(t, "spec.get_temperature if temp count not >= 1", p.Experiment.Steps()[1].Name())
}

func TestCompile_SharesMetrics(t *testing.T) {
	content := `
devices: [{name: spec, kind: spectrophotometer}]
steps:
  - wait: 1s
    when: {metric: od, statistic: mean, window: 2, op: ">", value: 1}
  - wait: 1s
    when: {metric: od, statistic: mean, window: 2, op: "<", value: 1}
`
	p, err := Compile(parse(t, content), nil)
	require.NoError(t, err)

	steps := p.Experiment.Steps()
	require.Len(t, steps, 2)
	m0 := steps[0].(*experiment.Conditional).Condition().Metric()
	m1 := steps[1].(*experiment.Conditional).Condition().Metric()
	assert.Same(t, m0, m1)
}

func TestCompile_BindErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{
			name: "wrong arity",
			content: `
devices: [{name: pump1, kind: pump}]
steps: [{action: pump1.pour_in_volume, args: [1]}]
`,
			want: experiment.ErrArity,
		},
		{
			name: "wrong type",
			content: `
devices: [{name: pump1, kind: pump}]
steps: [{action: pump1.pour_in_volume, args: [one, 2, left]}]
`,
			want: experiment.ErrTypeMismatch,
		},
		{
			name: "unknown method",
			content: `
devices: [{name: pump1, kind: pump}]
steps: [{action: pump1.centrifuge}]
`,
			want: device.ErrUnknownMethod,
		},
		{
			name: "measurement without value",
			content: `
devices: [{name: pump1, kind: pump}]
steps: [{measure: pump1.stop_continuous_rotation, measurement: x}]
`,
			want: experiment.ErrSignature,
		},
		{
			name: "invalid plan",
			content: `
steps: []
`,
			want: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(parse(t, tt.content), nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_OutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	content := `
experiment:
  output_dir: ` + dir + `
devices: [{name: spec, kind: spectrophotometer}]
steps:
  - measure: spec.get_temperature
    measurement: temp
`
	p, err := Compile(parse(t, content), nil, experiment.WithClock(core.NewFakeClock(time.Now())))
	require.NoError(t, err)
	require.NoError(t, p.Experiment.Start(context.Background(), false))

	records, err := measurement.ReadCSV(filepath.Join(dir, "temp.csv"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "25.5", records[0].Value)

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestDevices_DefaultCulture(t *testing.T) {
	_, culture, err := Devices(parse(t, "steps: [{wait: 1s}]\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCultureOD, culture.OpticalDensity())
	assert.Equal(t, DefaultCultureVolume, culture.Volume())
}
