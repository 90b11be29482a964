package board

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/notnil/chess"
)

// fenPattern rejects anything that could smuggle extra UCI commands
var fenPattern = regexp.MustCompile(`^[rnbqkpRNBQKP1-8/]+ [wb] [KQkq-]+ [a-h1-8-]+ \d+ \d+$`)

// IsFENSafe checks for control characters and the FEN shape
func IsFENSafe(fen string) bool {
	for _, r := range fen {
		if unicode.IsControl(r) && r != ' ' {
			return false
		}
	}
	return fenPattern.MatchString(fen)
}

// IsMoveSafe accepts UCI long algebraic moves: e2e4, e7e8q
func IsMoveSafe(move string) bool {
	if len(move) < 4 || len(move) > 5 {
		return false
	}
	if move[0] < 'a' || move[0] > 'h' ||
		move[1] < '1' || move[1] > '8' ||
		move[2] < 'a' || move[2] > 'h' ||
		move[3] < '1' || move[3] > '8' {
		return false
	}
	if len(move) == 5 {
		switch move[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return false
		}
	}
	return true
}

// Ply is one half-move of a replayed game
type Ply struct {
	Index     int
	FENBefore string
	FENAfter  string
	SAN       string
	UCI       string
}

// Replay plays SAN moves from the initial position and returns one Ply per move.
// It stops at the first illegal move.
func Replay(moves []string) ([]Ply, error) {
	game := chess.NewGame()
	plies := make([]Ply, 0, len(moves))

	for i, san := range moves {
		pos := game.Position()
		clean := strings.TrimSpace(san)
		mv, err := chess.AlgebraicNotation{}.Decode(pos, clean)
		if err != nil {
			return plies, fmt.Errorf("ply %d: illegal move %q: %w", i, san, err)
		}
		uci := chess.UCINotation{}.Encode(pos, mv)
		if err := game.Move(mv); err != nil {
			return plies, fmt.Errorf("ply %d: apply %q: %w", i, san, err)
		}
		plies = append(plies, Ply{
			Index:     i,
			FENBefore: pos.String(),
			FENAfter:  game.Position().String(),
			SAN:       clean,
			UCI:       uci,
		})
	}
	return plies, nil
}

func positionFromFEN(fen string) (*chess.Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	return chess.NewGame(opt).Position(), nil
}

// Apply plays a UCI move on fen and returns the resulting FEN
func Apply(fen, uci string) (string, error) {
	if !IsMoveSafe(uci) {
		return "", fmt.Errorf("invalid move format %q", uci)
	}
	pos, err := positionFromFEN(fen)
	if err != nil {
		return "", err
	}
	mv, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return "", fmt.Errorf("illegal move %q: %w", uci, err)
	}
	for _, legal := range pos.ValidMoves() {
		if legal.S1() == mv.S1() && legal.S2() == mv.S2() && legal.Promo() == mv.Promo() {
			return pos.Update(legal).String(), nil
		}
	}
	return "", fmt.Errorf("illegal move %q in %s", uci, fen)
}

// Mobility counts the legal moves of the side to move
func Mobility(fen string) (int, error) {
	pos, err := positionFromFEN(fen)
	if err != nil {
		return 0, err
	}
	return len(pos.ValidMoves()), nil
}
