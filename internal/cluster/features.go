package cluster

import (
	"fmt"

	"chessmate/internal/board"
	"chessmate/internal/core"
)

// Extract builds the feature vector of a position in which a move of the
// given quality was played. Unknown time counts as zero.
func Extract(fen string, timeUsed core.TimeSpent, actualEval, loss int) (core.Features, error) {
	var f core.Features

	b, err := board.ParseFEN(fen)
	if err != nil {
		return f, core.Wrap(core.KindDataIntegrity, "extract features", err)
	}
	mobility, err := board.Mobility(fen)
	if err != nil {
		return f, core.Wrap(core.KindDataIntegrity, "extract features", err)
	}

	if loss < 0 {
		loss = 0
	}

	f[core.FeatureMaterial] = float64(b.Material())
	f[core.FeatureKingSafety] = float64(b.KingSafety())
	f[core.FeatureMobility] = float64(mobility)
	if timeUsed.Valid {
		f[core.FeatureTimeUsed] = timeUsed.Seconds
	}
	f[core.FeatureActualEval] = float64(actualEval)
	f[core.FeatureCPLoss] = float64(loss)
	return f, nil
}

// ExtractRecord fills rec's feature vector
func ExtractRecord(rec core.MistakeRecord) (core.MistakeRecord, error) {
	f, err := Extract(rec.FEN, rec.TimeUsed, rec.ActualEval, rec.CPLoss)
	if err != nil {
		return rec, fmt.Errorf("game %s ply %d: %w", rec.GameID, rec.Ply, err)
	}
	rec.Features = f
	return rec, nil
}
