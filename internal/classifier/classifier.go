// Package classifier measures how much a played move lost against the
// engine's choice and names the severity.
package classifier

import (
	"context"
	"log/slog"

	"chessmate/internal/board"
	"chessmate/internal/cluster"
	"chessmate/internal/core"
	"chessmate/internal/engine"
	"chessmate/internal/metrics"
)

const (
	DefaultDepth = 18

	blunderLoss     = 300
	mistakeLoss     = 150
	inaccuracyLoss  = 50
	timeTroubleSecs = 2.0
)

// Unit is one candidate ply waiting for full-depth evaluation
type Unit struct {
	GameID   string
	Ply      int
	FEN      string // before the move
	Move     string // UCI
	MoveSAN  string
	TimeUsed core.TimeSpent
}

// Label names the severity of a loss. Rules are checked in order; a quick
// move that loses more than a mistake's worth is put down to the clock even
// when the loss would also count as a blunder.
func Label(loss int, timeUsed core.TimeSpent) core.Label {
	if loss < 0 {
		loss = 0
	}
	switch {
	case timeUsed.Valid && timeUsed.Seconds < timeTroubleSecs && loss > mistakeLoss:
		return core.LabelTimeTrouble
	case loss > blunderLoss:
		return core.LabelBlunder
	case loss > mistakeLoss:
		return core.LabelMistake
	case loss > inaccuracyLoss:
		return core.LabelInaccuracy
	default:
		return core.LabelMinor
	}
}

// Classifier evaluates candidate units at full depth
type Classifier struct {
	Depth   int
	Logger  *slog.Logger
	Metrics *metrics.Manager
}

func New(depth int, logger *slog.Logger, m *metrics.Manager) *Classifier {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{Depth: depth, Logger: logger, Metrics: m}
}

// Classify produces one record for u. Both evaluations are taken from the
// mover's point of view.
func (c *Classifier) Classify(ctx context.Context, ev engine.Evaluator, u Unit) (core.MistakeRecord, error) {
	rec := core.MistakeRecord{
		GameID:   u.GameID,
		Ply:      u.Ply,
		FEN:      u.FEN,
		Move:     u.Move,
		MoveSAN:  u.MoveSAN,
		TimeUsed: u.TimeUsed,
	}

	after, err := board.Apply(u.FEN, u.Move)
	if err != nil {
		return rec, core.Wrap(core.KindDataIntegrity, "classify", err)
	}

	best, err := ev.Evaluate(ctx, u.FEN, c.Depth)
	if err != nil {
		return rec, err
	}
	rec.BestMove = best.BestMove
	rec.BestEval = best.Score.Centipawns()

	reply, err := ev.Evaluate(ctx, after, c.Depth)
	if err != nil {
		return rec, err
	}
	// the reply is scored for the opponent, who moves next
	rec.ActualEval = reply.Score.Negate().Centipawns()

	rec.CPLoss = rec.BestEval - rec.ActualEval
	rec.Label = Label(rec.CPLoss, rec.TimeUsed)

	rec, err = cluster.ExtractRecord(rec)
	if err != nil {
		return rec, err
	}

	c.Metrics.RecordMistake(string(rec.Label))
	c.Logger.Debug("classified move",
		"game", rec.GameID,
		"ply", rec.Ply,
		"move", rec.MoveSAN,
		"best", rec.BestMove,
		"loss", rec.CPLoss,
		"label", rec.Label)

	return rec, nil
}
