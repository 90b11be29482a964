package board

import (
	"fmt"
	"strings"

	"chessmate/internal/core"
)

const (
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

var pieceValues = map[byte]int{
	'p': 1,
	'n': 3,
	'b': 3,
	'r': 5,
	'q': 9,
}

// Board is the placement and side to move of a FEN. squares[0] is rank 8,
// squares[7] is rank 1.
type Board struct {
	squares [8][8]byte
	turn    core.Color
}

func ParseFEN(fen string) (*Board, error) {
	parts := strings.Fields(fen)
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid FEN: expected 6 parts, got %d", len(parts))
	}

	b := &Board{}

	// Parse board
	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("invalid FEN: expected 8 ranks")
	}

	for r := 0; r < 8; r++ {
		file := 0
		for _, ch := range ranks[r] {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
			} else {
				if file >= 8 {
					return nil, fmt.Errorf("invalid FEN: too many pieces in rank %d", 8-r)
				}
				if !strings.ContainsRune("pnbrqkPNBRQK", ch) {
					return nil, fmt.Errorf("invalid FEN: unknown piece %q", ch)
				}
				b.squares[r][file] = byte(ch)
				file++
			}
		}
		if file != 8 {
			return nil, fmt.Errorf("invalid FEN: rank %d has %d files", 8-r, file)
		}
	}

	switch parts[1] {
	case "w":
		b.turn = core.ColorWhite
	case "b":
		b.turn = core.ColorBlack
	default:
		return nil, fmt.Errorf("invalid FEN: turn must be 'w' or 'b'")
	}

	var counter int
	if _, err := fmt.Sscanf(parts[4], "%d", &counter); err != nil {
		return nil, fmt.Errorf("invalid FEN: halfmove counter")
	}
	if _, err := fmt.Sscanf(parts[5], "%d", &counter); err != nil {
		return nil, fmt.Errorf("invalid FEN: fullmove counter")
	}

	return b, nil
}

// Diagram draws the position with from's side at the bottom. White pieces are
// upper case and empty squares are dots.
func (b *Board) Diagram(from core.Color) string {
	order := [8]int{0, 1, 2, 3, 4, 5, 6, 7}
	files := "a b c d e f g h"
	if from == core.ColorBlack {
		order = [8]int{7, 6, 5, 4, 3, 2, 1, 0}
		files = "h g f e d c b a"
	}

	var sb strings.Builder
	for _, r := range order {
		fmt.Fprintf(&sb, "%d", 8-r)
		for _, f := range order {
			cell := byte('.')
			if piece := b.squares[r][f]; piece != 0 {
				cell = piece
			}
			sb.WriteByte(' ')
			sb.WriteByte(cell)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  " + files)
	return sb.String()
}

// Turn is the side to move
func (b *Board) Turn() core.Color {
	return b.turn
}

// pieceAt uses 0-based file and rank (rank 0 is the first rank)
func (b *Board) pieceAt(file, rank int) byte {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0
	}
	return b.squares[7-rank][file]
}

// Material is the white-minus-black sum of piece values (P1 N3 B3 R5 Q9)
func (b *Board) Material() int {
	material := 0
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			piece := b.squares[r][f]
			if piece == 0 {
				continue
			}
			value := pieceValues[lower(piece)]
			if isWhite(piece) {
				material += value
			} else {
				material -= value
			}
		}
	}
	return material
}

// KingShield counts color's own pawns on the king's file and its neighbours,
// on the two ranks in front of the home rank (2-3 for white, 7-6 for black).
func (b *Board) KingShield(color core.Color) int {
	king, pawn := byte('K'), byte('P')
	ranks := [2]int{1, 2}
	if color == core.ColorBlack {
		king, pawn = 'k', 'p'
		ranks = [2]int{6, 5}
	}

	kingFile := -1
	for r := 0; r < 8 && kingFile < 0; r++ {
		for f := 0; f < 8; f++ {
			if b.squares[r][f] == king {
				kingFile = f
				break
			}
		}
	}
	if kingFile < 0 {
		return 0
	}

	count := 0
	for _, rank := range ranks {
		for f := kingFile - 1; f <= kingFile+1; f++ {
			if b.pieceAt(f, rank) == pawn {
				count++
			}
		}
	}
	return count
}

// KingSafety is the white-minus-black pawn shield differential
func (b *Board) KingSafety() int {
	return b.KingShield(core.ColorWhite) - b.KingShield(core.ColorBlack)
}

func isWhite(piece byte) bool {
	return piece >= 'A' && piece <= 'Z'
}

func lower(piece byte) byte {
	if isWhite(piece) {
		return piece + ('a' - 'A')
	}
	return piece
}
