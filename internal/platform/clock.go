package platform

import (
	"math"
	"strconv"
	"strings"

	"chessmate/internal/core"
)

// clockSample is a remaining-time reading after a ply
type clockSample struct {
	seconds float64
	ok      bool
}

// timeSpent derives per-ply thinking time from remaining-clock samples. The
// time a ply took is the drop of the mover's clock since their previous move,
// plus the increment credited for it. A color's first ply has no earlier
// sample and stays unknown, as does a ply without a sample. A missing sample
// leaves the color's last known clock in place.
func timeSpent(clocks []clockSample, increment float64) []core.TimeSpent {
	out := make([]core.TimeSpent, len(clocks))
	var prev [2]clockSample

	for i, c := range clocks {
		side := i % 2
		if c.ok && prev[side].ok {
			spent := prev[side].seconds - c.seconds + increment
			out[i] = core.Spent(math.Max(spent, 0))
		}
		if c.ok {
			prev[side] = c
		}
	}
	return out
}

// parseClock reads "h:mm:ss.s", "m:ss" or plain seconds
func parseClock(s string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	if len(parts) > 3 {
		return 0, false
	}
	return total, true
}

// parseIncrement reads the increment of a "base+inc" time control; daily
// controls like "1/86400" have none.
func parseIncrement(timeControl string) float64 {
	_, inc, found := strings.Cut(timeControl, "+")
	if !found {
		return 0
	}
	v, err := strconv.ParseFloat(inc, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
