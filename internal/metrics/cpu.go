package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SampleCPU returns total CPU utilization since the previous call as a
// fraction, rounded to two decimals. It does not block.
func SampleCPU(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(percents) == 0 {
		return 0, errors.New("failed to get CPU usage: no values reported")
	}
	return round2(percents[0] / 100.0), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
