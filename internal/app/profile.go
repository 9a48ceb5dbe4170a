package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// profiler writes per-section frame timings as CSV and logs averages when
// closed. A nil profiler is a no-op.
type profiler struct {
	mu     sync.Mutex
	file   *os.File
	out    *bufio.Writer
	logger *log.Logger
	frame  int
	start  time.Time
	last   time.Time
	totals map[string]time.Duration
}

func newProfiler(path string, logger *log.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return nil
	}
	p := &profiler{
		file:   f,
		out:    bufio.NewWriter(f),
		logger: logger,
		totals: make(map[string]time.Duration),
	}
	fmt.Fprintln(p.out, "frame,section,ms")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame++
	p.start = time.Now()
	p.last = p.start
}

func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.record(name, now.Sub(p.last))
	p.last = now
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("total", time.Since(p.start))
}

func (p *profiler) record(section string, d time.Duration) {
	p.totals[section] += d
	fmt.Fprintf(p.out, "%d,%s,%.3f\n", p.frame, section, float64(d)/float64(time.Millisecond))
}

// summary returns the mean time per section, sorted by name.
func (p *profiler) summary() string {
	if p.frame == 0 {
		return "no frames"
	}
	names := make([]string, 0, len(p.totals))
	for name := range p.totals {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		mean := p.totals[name] / time.Duration(p.frame)
		parts[i] = fmt.Sprintf("%s=%.2fms", name, float64(mean)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%d frames: %s", p.frame, strings.Join(parts, " "))
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.logger != nil {
		p.logger.Printf("profile %s", p.summary())
	}
	if err := p.out.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
