package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"labflow/internal/experiment"
	"labflow/internal/stats"
)

// structValidate checks the field-level `validate` tags. Field names in
// its errors are the YAML keys.
var structValidate *validator.Validate

func init() {
	structValidate = validator.New()
	structValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

var validKinds = map[string]bool{
	"pump":              true,
	"spectrophotometer": true,
}

// Validate checks field ranges, references and operator names. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if err := structValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			addf("%s", fieldError(fe))
		}
	}

	devices := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.Name == "" {
			continue
		}
		if devices[d.Name] {
			addf("devices[%d]: duplicate name %q", i, d.Name)
		}
		devices[d.Name] = true
		if !validKinds[d.Kind] {
			addf("devices[%d] %s: unknown kind %q", i, d.Name, d.Kind)
		}
	}

	if len(c.Steps) == 0 {
		addf("steps: at least one step is required")
	}
	validateSteps(c.Steps, "steps", devices, addf)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// fieldError renders a tag failure as "steps[0].when.window: must be gte=0".
func fieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if fe.Tag() == "required" {
		return field + ": is required"
	}
	return fmt.Sprintf("%s: must be %s=%s", field, fe.Tag(), fe.Param())
}

func validateSteps(steps []StepConfig, path string, devices map[string]bool, addf func(string, ...any)) {
	for i := range steps {
		s := &steps[i]
		at := fmt.Sprintf("%s[%d]", path, i)

		switch s.Kind() {
		case StepAction:
			validateTarget(at, s.Action, devices, addf)
		case StepMeasure:
			validateTarget(at, s.Measure, devices, addf)
			if s.Measurement == "" {
				addf("%s: measurement name is required", at)
			}
		case StepWait:
			if *s.Wait < 0 {
				addf("%s: wait must not be negative", at)
			}
		case StepGroup:
			if s.When != nil {
				addf("%s: conditions are not supported on step groups", at)
			}
			validateSteps(s.Steps, at+".steps", devices, addf)
		default:
			addf("%s: exactly one of action, measure, wait or steps is required", at)
		}

		if s.Kind() != StepMeasure && s.Measurement != "" {
			addf("%s: measurement is only valid on measure steps", at)
		}
		if s.When != nil {
			validateCondition(at+".when", s.When, addf)
		}
	}
}

func validateTarget(at, target string, devices map[string]bool, addf func(string, ...any)) {
	device, _, err := SplitTarget(target)
	if err != nil {
		addf("%s: %v", at, err)
		return
	}
	if !devices[device] {
		addf("%s: unknown device %q", at, device)
	}
}

func validateCondition(at string, w *ConditionConfig, addf func(string, ...any)) {
	if _, err := experiment.ParseRelation(w.Op, w.Value); err != nil {
		addf("%s: %v", at, err)
	}
	if _, err := stats.Parse(w.Statistic, w.Window); err != nil && w.Window >= 0 {
		addf("%s: %v", at, err)
	}
}
