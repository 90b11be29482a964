package engine

import (
	"fmt"
	"strconv"
	"strings"

	"chessmate/internal/core"
)

// searchInfo accumulates the deepest "info" line that carried a score
type searchInfo struct {
	depth int
	score core.Score
	pv    []string
}

// parseInfo reads depth, score and pv from one UCI info line. Bound scores
// (lowerbound/upperbound) are ignored since they are not final for the depth.
func parseInfo(line string) searchInfo {
	var info searchInfo
	fields := strings.Fields(line)

	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				info.depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "score":
			if i+2 >= len(fields) {
				continue
			}
			v, err := strconv.Atoi(fields[i+2])
			if err != nil {
				continue
			}
			bound := i+3 < len(fields) && (fields[i+3] == "lowerbound" || fields[i+3] == "upperbound")
			if !bound {
				switch fields[i+1] {
				case "cp":
					info.score = core.CP(v)
				case "mate":
					info.score = core.Mate(v)
				}
			}
			i += 2
		case "pv":
			info.pv = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}

	return info
}

func (s *searchInfo) merge(next searchInfo) {
	if !next.score.Known() {
		return
	}
	if next.depth < s.depth {
		return
	}
	s.depth = next.depth
	s.score = next.score
	if len(next.pv) > 0 {
		s.pv = next.pv
	}
}

func (s *searchInfo) evaluation(best string) (Evaluation, error) {
	if !s.score.Known() {
		return Evaluation{}, core.Errorf(core.KindEngine, "evaluate", "search finished without a score")
	}
	return Evaluation{
		BestMove: best,
		Score:    s.score,
		Depth:    s.depth,
		PV:       s.pv,
	}, nil
}

// parseBestMove returns the move of a "bestmove" line, "" when the
// position has no legal moves.
func parseBestMove(line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "bestmove" {
		return "", fmt.Errorf("malformed bestmove line %q", line)
	}
	if parts[1] == "(none)" || parts[1] == "0000" {
		return "", nil
	}
	return parts[1], nil
}
