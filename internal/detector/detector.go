// Package detector flags plies where a coarse evaluation sequence worsens sharply.
package detector

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"chessmate/internal/core"
)

const (
	DefaultThreshold = 100
	// MateValue is what a mate marker counts as while scanning for drops
	MateValue = 1000
)

var (
	mateFor     = regexp.MustCompile(`^(?:\+?M|#)\d+$|^mate in \d+$`)
	mateAgainst = regexp.MustCompile(`^(?:-M|#-)\d+$|^mated in \d+$`)
)

// Candidate is a ply whose evaluation fell by at least the threshold
type Candidate struct {
	Index      int
	EvalBefore int
	EvalAfter  int
	Position   string
}

// Detector scans evaluation sequences. The zero value uses DefaultThreshold.
type Detector struct {
	Threshold int
}

func New(threshold int) *Detector {
	return &Detector{Threshold: threshold}
}

func (d *Detector) threshold() int {
	if d == nil || d.Threshold <= 0 {
		return DefaultThreshold
	}
	return d.Threshold
}

// FindDrops compares each evaluation with the one before it. A pair with an
// unparseable side is skipped.
func (d *Detector) FindDrops(evaluations, positions []string) ([]Candidate, error) {
	if len(evaluations) != len(positions) {
		return nil, core.Errorf(core.KindInvalidArgument, "find drops",
			"evaluations and positions differ in length: %d != %d", len(evaluations), len(positions))
	}

	threshold := d.threshold()
	var drops []Candidate

	for i := 1; i < len(evaluations); i++ {
		prev, ok := Normalize(evaluations[i-1])
		if !ok {
			continue
		}
		curr, ok := Normalize(evaluations[i])
		if !ok {
			continue
		}

		if prev-curr >= threshold {
			drops = append(drops, Candidate{
				Index:      i,
				EvalBefore: prev,
				EvalAfter:  curr,
				Position:   positions[i],
			})
		}
	}

	return drops, nil
}

// FindDrops runs a default detector
func FindDrops(evaluations, positions []string) ([]Candidate, error) {
	return (*Detector)(nil).FindDrops(evaluations, positions)
}

// Normalize converts "+0.53", "-1.20", "+M2", "#-3", "mated in 4" and the like to
// centipawns, with mates at ±MateValue.
func Normalize(eval string) (int, bool) {
	s := strings.TrimSpace(eval)
	if s == "" {
		return 0, false
	}

	lower := strings.ToLower(s)
	switch {
	case mateAgainst.MatchString(s) || mateAgainst.MatchString(lower):
		return -MateValue, true
	case mateFor.MatchString(s) || mateFor.MatchString(lower):
		return MateValue, true
	}

	pawns, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(pawns) || math.IsInf(pawns, 0) {
		return 0, false
	}
	return int(math.Round(pawns * 100)), true
}
