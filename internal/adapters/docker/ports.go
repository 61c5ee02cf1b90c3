package docker

import (
	"sort"

	"harborview/internal/core/domain"
)

// groupPorts collapses runs of consecutive host ports into single range
// entries when the run length reaches threshold. enabled reflects the global
// default already combined with any per-item override label. Ports are
// returned sorted by host port; runs never cross protocol or source
// boundaries.
func groupPorts(ports []domain.PortMapping, enabled bool, threshold int) []domain.PortMapping {
	sorted := make([]domain.PortMapping, len(ports))
	copy(sorted, ports)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].HostPort != sorted[j].HostPort {
			return sorted[i].HostPort < sorted[j].HostPort
		}
		return sorted[i].Protocol < sorted[j].Protocol
	})
	if !enabled || threshold < 2 {
		return sorted
	}

	out := make([]domain.PortMapping, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && consecutive(sorted[j-1], sorted[j]) {
			j++
		}
		if run := j - i; run >= threshold {
			head := sorted[i]
			head.HostPortEnd = sorted[j-1].HostPort
			head.ContainerPort = 0
			out = append(out, head)
		} else {
			out = append(out, sorted[i:j]...)
		}
		i = j
	}
	return out
}

func consecutive(a, b domain.PortMapping) bool {
	return b.HostPort == a.HostPort+1 &&
		a.Protocol == b.Protocol &&
		a.Source == b.Source &&
		a.Scheme == b.Scheme
}
