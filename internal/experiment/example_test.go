package experiment_test

import (
	"context"
	"fmt"
	"time"

	"labflow/internal/core"
	"labflow/internal/experiment"
	"labflow/internal/stats"
)

func ExampleExperiment() {
	clock := core.NewFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	exp := experiment.New(experiment.WithClock(clock))

	readings := []float64{0.21, 0.34, 0.52, 0.61}
	next := 0
	readOD := func(context.Context) (any, error) {
		v := readings[next]
		next++
		return v, nil
	}
	dilute := func(context.Context) error {
		fmt.Printf("diluting at %s\n", clock.Now().Format("15:04"))
		return nil
	}

	turbid := experiment.NewCondition(exp.CreateMetric("od", stats.Last()), experiment.GreaterThan(0.5))
	for range readings {
		_ = exp.AddMeasurement("read od", readOD, "od", nil)
		_ = exp.AddAction("dilute", dilute, turbid)
		_ = exp.AddWait(15*time.Minute, nil)
	}

	if err := exp.Start(context.Background(), false); err != nil {
		fmt.Println("error:", err)
	}
	fmt.Println("measurements:", exp.Measurements().Len("od"))
	// Output:
	// diluting at 09:30
	// diluting at 09:45
	// measurements: 4
}
