package rtaccel

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler accumulates wall time per named scope and free-form counters. It
// is safe for concurrent use.
type Profiler struct {
	mu     sync.Mutex
	scopes map[string]*scopeStats
	counts map[string]int64
	order  []string
}

type scopeStats struct {
	total time.Duration
	last  time.Duration
	calls int
}

type ScopeTiming struct {
	Name  string
	Total time.Duration
	Last  time.Duration
	Calls int
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]*scopeStats),
		counts: make(map[string]int64),
	}
}

// Begin starts timing name and returns the func that stops it.
func (p *Profiler) Begin(name string) func() {
	start := time.Now()
	return func() { p.Record(name, time.Since(start)) }
}

func (p *Profiler) Record(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scopes[name]
	if !ok {
		s = &scopeStats{}
		p.scopes[name] = s
		p.order = append(p.order, name)
	}
	s.total += d
	s.last = d
	s.calls++
}

func (p *Profiler) Add(name string, n int64) {
	p.mu.Lock()
	p.counts[name] += n
	p.mu.Unlock()
}

func (p *Profiler) Count(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

// Timings returns the scopes in first-seen order.
func (p *Profiler) Timings() []ScopeTiming {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScopeTiming, 0, len(p.order))
	for _, name := range p.order {
		s := p.scopes[name]
		out = append(out, ScopeTiming{Name: name, Total: s.total, Last: s.last, Calls: s.calls})
	}
	return out
}

func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.scopes {
		*s = scopeStats{}
	}
	for k := range p.counts {
		p.counts[k] = 0
	}
}

func (p *Profiler) String() string {
	var sb strings.Builder

	sb.WriteString("Timings:\n")
	for _, t := range p.Timings() {
		ms := float64(t.Total.Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms over %d calls\n", t.Name, ms, t.Calls))
	}

	p.mu.Lock()
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("\nCounters:\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.counts[k]))
	}
	p.mu.Unlock()

	return sb.String()
}
