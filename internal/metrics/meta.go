package metrics

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// GetHostname falls back to "unknown" when the OS does not answer.
func GetHostname(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil || strings.TrimSpace(info.Hostname) == "" {
		return "unknown"
	}
	return info.Hostname
}
