// Package plan compiles a YAML experiment plan into a runnable experiment.
package plan

import (
	"fmt"

	"github.com/charmbracelet/log"

	"labflow/internal/config"
	"labflow/internal/device"
	"labflow/internal/experiment"
	"labflow/internal/logging"
	"labflow/internal/ratelimit"
	"labflow/internal/stats"
)

// Default culture used when the plan does not describe one.
const (
	DefaultCultureOD     = 0.1
	DefaultCultureVolume = 20.0
)

// Plan is a compiled experiment together with the devices it drives.
type Plan struct {
	Name       string
	Experiment *experiment.Experiment
	Devices    *device.Registry
	Culture    *device.Culture
}

// Devices builds the simulated instruments declared in cfg.
func Devices(cfg *config.Config, logger *log.Logger) (*device.Registry, *device.Culture, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	od, volume := cfg.Culture.OD, cfg.Culture.Volume
	if od == 0 {
		od = DefaultCultureOD
	}
	if volume == 0 {
		volume = DefaultCultureVolume
	}
	culture := device.NewCulture(od, volume)

	reg := device.NewRegistry()
	for _, dc := range cfg.Devices {
		d, err := device.New(device.Kind(dc.Kind), dc.Name, dc.Params, culture, logger.WithPrefix("device"))
		if err != nil {
			return nil, nil, fmt.Errorf("device %s: %w", dc.Name, err)
		}
		if err := reg.Add(d); err != nil {
			return nil, nil, err
		}
	}
	return reg, culture, nil
}

// Compile validates cfg and turns it into a Plan. opts are applied to the
// experiment after the settings taken from cfg, so callers can override them.
func Compile(cfg *config.Config, logger *log.Logger, opts ...experiment.Option) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	reg, culture, err := Devices(cfg, logger)
	if err != nil {
		return nil, err
	}

	base := []experiment.Option{experiment.WithLogger(logger)}
	if cfg.Experiment.PollInterval > 0 {
		base = append(base, experiment.WithPollInterval(cfg.Experiment.PollInterval))
	}
	if cfg.Experiment.CallRateLimit > 0 {
		base = append(base, experiment.WithCallLimiter(ratelimit.NewRateLimiter(cfg.Experiment.CallRateLimit)))
	}
	exp := experiment.New(append(base, opts...)...)

	if cfg.Experiment.OutputDir != "" {
		if err := exp.SpecifyOutputDir(cfg.Experiment.OutputDir); err != nil {
			return nil, fmt.Errorf("output dir: %w", err)
		}
	}

	c := &compiler{
		exp:     exp,
		devices: reg,
		metrics: make(map[metricKey]*experiment.Metric),
	}
	if err := c.steps(cfg.Steps, "steps"); err != nil {
		return nil, err
	}

	return &Plan{
		Name:       cfg.Experiment.Name,
		Experiment: exp,
		Devices:    reg,
		Culture:    culture,
	}, nil
}

type metricKey struct {
	name      string
	statistic stats.Statistic
}

type compiler struct {
	exp     *experiment.Experiment
	devices *device.Registry
	metrics map[metricKey]*experiment.Metric
}

func (c *compiler) steps(steps []config.StepConfig, path string) error {
	for i := range steps {
		s := &steps[i]
		at := fmt.Sprintf("%s[%d]", path, i)
		for n := 0; n < s.Times(); n++ {
			if err := c.step(s, at); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *compiler) step(s *config.StepConfig, at string) error {
	if s.Kind() == config.StepGroup {
		return c.steps(s.Steps, at+".steps")
	}

	cond, err := c.condition(s.When)
	if err != nil {
		return fmt.Errorf("%s: %w", at, err)
	}

	switch s.Kind() {
	case config.StepWait:
		err = c.exp.AddWait(*s.Wait, cond)
	case config.StepAction:
		err = c.bound(s, s.Action, func(b *experiment.Binding) error {
			return c.exp.AddAction(b.Name, b.Action(), cond)
		})
	case config.StepMeasure:
		err = c.bound(s, s.Measure, func(b *experiment.Binding) error {
			measure, err := b.Measure()
			if err != nil {
				return err
			}
			return c.exp.AddMeasurement(b.Name, measure, s.Measurement, cond)
		})
	}
	if err != nil {
		return fmt.Errorf("%s: %w", at, err)
	}
	return nil
}

func (c *compiler) bound(s *config.StepConfig, target string, add func(*experiment.Binding) error) error {
	dev, method, err := config.SplitTarget(target)
	if err != nil {
		return err
	}
	fn, err := c.devices.Method(dev, method)
	if err != nil {
		return err
	}
	b, err := experiment.Bind(fn, s.Args...)
	if err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	b.Name = target
	if s.Name != "" {
		b.Name = s.Name
	}
	return add(b)
}

func (c *compiler) condition(w *config.ConditionConfig) (*experiment.Condition, error) {
	if w == nil {
		return nil, nil
	}
	stat, err := stats.Parse(w.Statistic, w.Window)
	if err != nil {
		return nil, err
	}
	rel, err := experiment.ParseRelation(w.Op, w.Value)
	if err != nil {
		return nil, err
	}

	key := metricKey{name: w.Metric, statistic: stat}
	m, ok := c.metrics[key]
	if !ok {
		m = c.exp.CreateMetric(w.Metric, stat)
		c.metrics[key] = m
	}

	cond := experiment.NewCondition(m, rel)
	if w.Negate {
		cond = cond.Negation()
	}
	return cond, nil
}
