package platform

import (
	"context"

	"github.com/shirou/gopsutil/v4/host"
)

// Detect reports the running host. The architecture is read from the
// kernel when gopsutil can get it, and falls back to the one huber was
// built for.
func Detect(ctx context.Context) Host {
	h := Current()

	arch, err := host.KernelArch()
	if err == nil && arch != "" {
		h.Arch = arch
	}
	return Normalize(h)
}
