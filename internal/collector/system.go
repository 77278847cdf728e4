package collector

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"monitord/internal/docker"
	"monitord/internal/models"
)

const gb = 1024 * 1024 * 1024

// ContainerLister is the part of the docker client the system collector needs.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]docker.ContainerSummary, error)
}

type SystemCollector struct {
	log         *slog.Logger
	diskPath    string
	processName string
	containers  ContainerLister

	mu      sync.Mutex
	prevCPU *cpu.TimesStat
}

// NewSystemCollector reports host metrics for the filesystem at diskPath.
// processName selects which processes count towards service_process_count;
// containers may be nil when no docker daemon is available.
func NewSystemCollector(logger *slog.Logger, diskPath, processName string, containers ContainerLister) *SystemCollector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemCollector{log: logger, diskPath: diskPath, processName: processName, containers: containers}
}

func (s *SystemCollector) Domain() string { return models.ComponentSystem }

// Collect serializes callers so the CPU delta is taken between consecutive
// samples.
func (s *SystemCollector) Collect(ctx context.Context) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := map[string]float64{}

	guard(s.log, "cpu", func() error {
		times, err := cpu.TimesWithContext(ctx, false)
		if err != nil || len(times) == 0 {
			return err
		}
		cur := times[0]
		if s.prevCPU != nil {
			m["cpu_percent"] = busyPercent(*s.prevCPU, cur)
		} else {
			// First sample has no delta; fall back to a short blocking measurement.
			pct, err := cpu.PercentWithContext(ctx, 0, false)
			if err == nil && len(pct) > 0 {
				m["cpu_percent"] = pct[0]
			}
		}
		s.prevCPU = &cur
		n, err := cpu.CountsWithContext(ctx, true)
		m["cpu_count"] = float64(n)
		return err
	})
	guard(s.log, "load", func() error {
		avg, err := load.AvgWithContext(ctx)
		if err != nil {
			return err
		}
		m["load_avg_1m"] = avg.Load1
		m["load_avg_5m"] = avg.Load5
		m["load_avg_15m"] = avg.Load15
		return nil
	})
	guard(s.log, "memory", func() error {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return err
		}
		m["memory_percent"] = vm.UsedPercent
		m["memory_available_gb"] = float64(vm.Available) / gb
		m["memory_used_gb"] = float64(vm.Used) / gb
		m["memory_total_gb"] = float64(vm.Total) / gb
		return nil
	})
	guard(s.log, "swap", func() error {
		sw, err := mem.SwapMemoryWithContext(ctx)
		if err != nil {
			return err
		}
		m["swap_percent"] = sw.UsedPercent
		m["swap_used_gb"] = float64(sw.Used) / gb
		return nil
	})
	guard(s.log, "disk usage", func() error {
		u, err := disk.UsageWithContext(ctx, s.diskPath)
		if err != nil {
			return err
		}
		m["disk_percent"] = u.UsedPercent
		m["disk_used_gb"] = float64(u.Used) / gb
		m["disk_free_gb"] = float64(u.Free) / gb
		m["disk_total_gb"] = float64(u.Total) / gb
		return nil
	})
	guard(s.log, "disk io", func() error {
		counters, err := disk.IOCountersWithContext(ctx)
		if err != nil {
			return err
		}
		var rb, wb, rc, wc uint64
		for _, c := range counters {
			rb += c.ReadBytes
			wb += c.WriteBytes
			rc += c.ReadCount
			wc += c.WriteCount
		}
		m["disk_read_bytes"] = float64(rb)
		m["disk_write_bytes"] = float64(wb)
		m["disk_read_count"] = float64(rc)
		m["disk_write_count"] = float64(wc)
		return nil
	})
	guard(s.log, "network", func() error {
		counters, err := net.IOCountersWithContext(ctx, false)
		if err != nil || len(counters) == 0 {
			return err
		}
		total := counters[0]
		m["network_bytes_sent"] = float64(total.BytesSent)
		m["network_bytes_recv"] = float64(total.BytesRecv)
		m["network_packets_sent"] = float64(total.PacketsSent)
		m["network_packets_recv"] = float64(total.PacketsRecv)
		conns, err := net.ConnectionsWithContext(ctx, "inet")
		m["network_connections"] = float64(len(conns))
		return err
	})
	guard(s.log, "processes", func() error {
		procs, err := process.ProcessesWithContext(ctx)
		if err != nil {
			return err
		}
		var service, zombies int
		for _, p := range procs {
			if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 && st[0] == process.Zombie {
				zombies++
			}
			if s.processName == "" {
				continue
			}
			if name, err := p.NameWithContext(ctx); err == nil && strings.EqualFold(name, s.processName) {
				service++
			}
		}
		m["process_count"] = float64(len(procs))
		m["service_process_count"] = float64(service)
		m["zombie_processes"] = float64(zombies)
		return nil
	})
	if s.containers != nil {
		guard(s.log, "containers", func() error {
			list, err := s.containers.ListContainers(ctx)
			if err != nil {
				return err
			}
			running := 0
			for _, c := range list {
				if c.State == "running" {
					running++
				}
			}
			m["docker_containers_running"] = float64(running)
			m["docker_containers_total"] = float64(len(list))
			return nil
		})
	}
	return m
}

func busyPercent(prev, cur cpu.TimesStat) float64 {
	idle := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	total := cur.Total() - prev.Total()
	if total <= 0 {
		return 0
	}
	pct := (total - idle) / total * 100
	if pct < 0 {
		return 0
	}
	return pct
}
