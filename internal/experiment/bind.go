package experiment

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"runtime"
	"strings"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Binding is a function together with validated arguments, ready to be
// scheduled as an action or measurement.
type Binding struct {
	Name string

	fn       reflect.Value
	args     []reflect.Value
	takesCtx bool
	hasValue bool
	hasError bool
}

// Bind validates args against fn's declared parameter types and captures
// them. It runs when a step is added, so a malformed plan fails before any
// instrument is touched.
//
// fn may take a leading context.Context, which the engine supplies. It may
// return nothing, an error, a value, or a value and an error. Integer
// arguments are accepted for floating-point parameters, integral floats for
// integer parameters (YAML decodes "2" as an int), and float64 for float32
// when the value fits. Conversions that would overflow are rejected. Every
// other argument must be assignable to its parameter type.
func Bind(fn any, args ...any) (*Binding, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%T: %w", fn, ErrNotFunc)
	}
	t := v.Type()

	b := &Binding{Name: funcName(v), fn: v}

	offset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		b.takesCtx = true
		offset = 1
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			b.hasError = true
		} else {
			b.hasValue = true
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("%s: second result must be error: %w", b.Name, ErrSignature)
		}
		b.hasValue, b.hasError = true, true
	default:
		return nil, fmt.Errorf("%s: %d results: %w", b.Name, t.NumOut(), ErrSignature)
	}

	fixed := t.NumIn() - offset
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("%s: want at least %d, got %d: %w", b.Name, fixed, len(args), ErrArity)
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("%s: want %d, got %d: %w", b.Name, fixed, len(args), ErrArity)
	}

	b.args = make([]reflect.Value, len(args))
	for i, arg := range args {
		var param reflect.Type
		if i < fixed {
			param = t.In(offset + i)
		} else {
			param = t.In(t.NumIn() - 1).Elem()
		}
		av, err := coerce(arg, param)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", b.Name, i+1, err)
		}
		b.args[i] = av
	}

	return b, nil
}

func (b *Binding) call(ctx context.Context) (any, error) {
	in := b.args
	if b.takesCtx {
		in = append([]reflect.Value{reflect.ValueOf(&ctx).Elem()}, b.args...)
	}
	out := b.fn.Call(in)

	var value any
	var err error
	if b.hasValue {
		value = out[0].Interface()
	}
	if b.hasError {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	return value, err
}

// Action adapts the binding to an ActionFunc; any return value is discarded.
func (b *Binding) Action() ActionFunc {
	return func(ctx context.Context) error {
		_, err := b.call(ctx)
		return err
	}
}

// Measure adapts the binding to a MeasureFunc. The function must return a value.
func (b *Binding) Measure() (MeasureFunc, error) {
	if !b.hasValue {
		return nil, fmt.Errorf("%s: measurement must return a value: %w", b.Name, ErrSignature)
	}
	return b.call, nil
}

func coerce(arg any, param reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch param.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %s: %w", param, ErrTypeMismatch)
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(param) {
		return v, nil
	}

	switch {
	case isInt(v.Kind()) && isFloat(param.Kind()):
		return v.Convert(param), nil
	case isInt(v.Kind()) && isInt(param.Kind()):
		if fitsInt(v, param) {
			return v.Convert(param), nil
		}
	case isFloat(v.Kind()) && isFloat(param.Kind()):
		if f := v.Float(); math.IsInf(f, 0) || math.IsNaN(f) || !reflect.Zero(param).OverflowFloat(f) {
			return v.Convert(param), nil
		}
	case isFloat(v.Kind()) && isInt(param.Kind()):
		if iv, ok := floatToInt(v.Float()); ok && fitsInt(iv, param) {
			return iv.Convert(param), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("expected %s, got %s: %w", param, v.Type(), ErrTypeMismatch)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uint64
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

// fitsInt reports whether integer v can be converted to param without overflow.
func fitsInt(v reflect.Value, param reflect.Type) bool {
	zero := reflect.Zero(param)
	if isUnsigned(v.Kind()) {
		u := v.Uint()
		if isUnsigned(param.Kind()) {
			return !zero.OverflowUint(u)
		}
		return u <= math.MaxInt64 && !zero.OverflowInt(int64(u))
	}
	i := v.Int()
	if isUnsigned(param.Kind()) {
		return i >= 0 && !zero.OverflowUint(uint64(i))
	}
	return !zero.OverflowInt(i)
}

// floatToInt converts an integral, finite f to an int64 or uint64 value
// without wrapping. It reports false when f has no exact integer form.
func floatToInt(f float64) (reflect.Value, bool) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return reflect.Value{}, false
	}
	switch {
	case f >= -(1<<63) && f < 1<<63:
		return reflect.ValueOf(int64(f)), true
	case f >= 0 && f < 1<<64:
		return reflect.ValueOf(uint64(f)), true
	}
	return reflect.Value{}, false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// funcName returns a short name like "(*Pump).PourInVolume" for logs.
func funcName(v reflect.Value) string {
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return v.Type().String()
	}
	name := strings.TrimSuffix(f.Name(), "-fm")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
