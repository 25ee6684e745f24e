package info

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"convox-bot/internal/chat"
)

// snapshot is one reading of host resources. Fields the probe could not
// read stay zero.
type snapshot struct {
	CPUCores    int
	CPUPercent  float64
	MemTotal    uint64
	MemUsed     uint64
	MemPercent  float64
	Platform    string
	PlatformVer string
	Kernel      string
	HostUptime  time.Duration
}

type hostProbe interface {
	Read(ctx context.Context) (snapshot, []error)
}

type gopsutilProbe struct{}

func (gopsutilProbe) Read(ctx context.Context) (snapshot, []error) {
	var s snapshot
	var errs []error

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		s.CPUCores = n
	} else {
		errs = append(errs, fmt.Errorf("cpu counts: %w", err))
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else if err != nil {
		errs = append(errs, fmt.Errorf("cpu percent: %w", err))
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemTotal = vm.Total
		s.MemUsed = vm.Used
		s.MemPercent = vm.UsedPercent
	} else {
		errs = append(errs, fmt.Errorf("virtual memory: %w", err))
	}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		s.Platform = hi.Platform
		s.PlatformVer = hi.PlatformVersion
		s.Kernel = hi.KernelVersion
		s.HostUptime = time.Duration(hi.Uptime) * time.Second
	} else {
		errs = append(errs, fmt.Errorf("host info: %w", err))
	}
	return s, errs
}

func (p *Plugin) handleSysInfo(ctx context.Context, ev *chat.Event, _ []string) error {
	s, errs := p.probe.Read(ctx)
	for _, err := range errs {
		p.host.Logger.Warn("system probe failed", "request_id", ev.RequestID, "error", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var b strings.Builder
	b.WriteString("🖥️ System status\n\n")
	fmt.Fprintf(&b, "💻 CPU: %d cores, %.1f%% used\n", s.CPUCores, s.CPUPercent)
	fmt.Fprintf(&b, "🧠 Memory: %.1f%% used (%d / %d MB)\n", s.MemPercent, s.MemUsed/1024/1024, s.MemTotal/1024/1024)
	if s.Platform != "" {
		fmt.Fprintf(&b, "🐧 OS: %s %s (kernel %s)\n", s.Platform, s.PlatformVer, s.Kernel)
	}
	if s.HostUptime > 0 {
		fmt.Fprintf(&b, "⏳ Host uptime: %s\n", formatUptime(s.HostUptime))
	}
	b.WriteString("\n🤖 Process\n")
	fmt.Fprintf(&b, "• Go: %s\n", runtime.Version())
	fmt.Fprintf(&b, "• Goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&b, "• Heap: %d MB", ms.HeapAlloc/1024/1024)
	if started := p.host.Info.StartedAt; !started.IsZero() {
		fmt.Fprintf(&b, "\n• Uptime: %s", formatUptime(p.now().Sub(started)))
	}

	p.reply(ctx, ev, b.String())
	return nil
}
