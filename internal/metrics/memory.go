package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// SampleMemory returns used virtual memory as a fraction, rounded to two decimals.
func SampleMemory(ctx context.Context) (float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get memory info: %w", err)
	}
	return round2(v.UsedPercent / 100.0), nil
}
