package swarmpolicy

import (
	"fmt"
	"time"

	"github.com/ensemble-maestro/swarm/pkg/config"
)

// Throttle implements spec.md §4.5's dual sliding-window rate limit (one
// second and one minute) plus a minimum inter-spawn interval. Grounded on
// the bus package's own priority/enqueued-at bookkeeping style: a small
// ring of timestamps trimmed on each check rather than a background timer.
type Throttle struct {
	cfg config.ThrottlingConfig

	lastSpawn time.Time
	window1s  []time.Time
	window60s []time.Time
}

// NewThrottle builds a Throttle over cfg.
func NewThrottle(cfg config.ThrottlingConfig) *Throttle {
	return &Throttle{cfg: cfg}
}

// Allow reports whether a spawn at now would respect the configured rate
// windows and minimum interval. It does not itself record the spawn;
// callers that proceed must call RecordSpawn.
func (t *Throttle) Allow(now time.Time) (bool, string) {
	if !t.cfg.Enabled {
		return true, ""
	}

	if t.cfg.MinSpawnIntervalMs > 0 && !t.lastSpawn.IsZero() {
		minGap := time.Duration(t.cfg.MinSpawnIntervalMs) * time.Millisecond
		if now.Sub(t.lastSpawn) < minGap {
			return false, fmt.Sprintf("min_spawn_interval_ms (%dms) not yet elapsed", t.cfg.MinSpawnIntervalMs)
		}
	}

	count1s := countSince(t.window1s, now.Add(-1*time.Second))
	if t.cfg.MaxAgentsPerSecond > 0 && count1s >= t.cfg.MaxAgentsPerSecond {
		return false, fmt.Sprintf("max_agents_per_second (%d) reached", t.cfg.MaxAgentsPerSecond)
	}

	count60s := countSince(t.window60s, now.Add(-60*time.Second))
	if t.cfg.MaxAgentsPerMinute > 0 && count60s >= t.cfg.MaxAgentsPerMinute {
		return false, fmt.Sprintf("max_agents_per_minute (%d) reached", t.cfg.MaxAgentsPerMinute)
	}

	return true, ""
}

// RecordSpawn appends now to both windows and trims entries that have
// aged out, bounding the slices' growth.
func (t *Throttle) RecordSpawn(now time.Time) {
	t.lastSpawn = now
	t.window1s = append(trim(t.window1s, now.Add(-1*time.Second)), now)
	t.window60s = append(trim(t.window60s, now.Add(-60*time.Second)), now)
}

func countSince(window []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range window {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func trim(window []time.Time, cutoff time.Time) []time.Time {
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
