package core

import (
	"fmt"
	"math"
)

// MateCentipawns is the saturated magnitude a forced mate counts as in loss arithmetic.
const MateCentipawns = 3000

type ScoreKind byte

const (
	ScoreUnknown ScoreKind = iota
	ScoreCentipawns
	ScoreMate
)

// Score is either a centipawn value or a mate distance. The zero value is unknown.
// A positive mate distance means the side the score is relative to delivers mate;
// a mate distance of 0 means that side is already mated.
type Score struct {
	Kind  ScoreKind
	Value int
}

func CP(v int) Score   { return Score{Kind: ScoreCentipawns, Value: v} }
func Mate(n int) Score { return Score{Kind: ScoreMate, Value: n} }

func (s Score) Known() bool { return s.Kind != ScoreUnknown }

// Centipawns converts the score for arithmetic, saturating mates at ±MateCentipawns.
func (s Score) Centipawns() int {
	switch s.Kind {
	case ScoreCentipawns:
		return s.Value
	case ScoreMate:
		if s.Value > 0 {
			return MateCentipawns
		}
		return -MateCentipawns
	}
	return 0
}

// Negate flips the point of view.
func (s Score) Negate() Score {
	switch s.Kind {
	case ScoreCentipawns:
		return CP(-s.Value)
	case ScoreMate:
		if s.Value == 0 {
			// mated side flips to the mating side, which has already delivered mate
			return Mate(1)
		}
		return Mate(-s.Value)
	}
	return s
}

// String renders the coarse pawn notation used by evaluation sequences:
// "+0.53", "-1.20", "+M2", "-M3". Unknown renders as "".
func (s Score) String() string {
	switch s.Kind {
	case ScoreCentipawns:
		return fmt.Sprintf("%+.2f", float64(s.Value)/100)
	case ScoreMate:
		if s.Value > 0 {
			return fmt.Sprintf("+M%d", s.Value)
		}
		return fmt.Sprintf("-M%d", int(math.Abs(float64(s.Value))))
	}
	return ""
}

// TimeSpent is the clock time used on one ply
type TimeSpent struct {
	Seconds float64
	Valid   bool
}

func Spent(seconds float64) TimeSpent { return TimeSpent{Seconds: seconds, Valid: true} }

func (t TimeSpent) String() string {
	if !t.Valid {
		return ""
	}
	return fmt.Sprintf("%.1f", t.Seconds)
}
