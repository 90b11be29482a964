package core

import (
	"fmt"
	"strings"
	"time"
)

// GameParams is everything an adapter knows about a game before it is sealed into a Game
type GameParams struct {
	ID          string
	StartedAt   time.Time
	Platform    string
	Speed       Speed
	Opening     string
	Status      string
	Winner      Winner
	PlayerColor Color
	Moves       []string
	Evaluations []Score
	TimeSpent   []TimeSpent
}

// Game is an immutable, platform-neutral game record. Evaluations and time
// samples are ply-aligned with moves and never longer than them.
type Game struct {
	id          string
	startedAt   time.Time
	platform    string
	speed       Speed
	opening     string
	status      string
	winner      Winner
	playerColor Color
	moves       []string
	evaluations []Score
	timeSpent   []TimeSpent
}

// NewGame validates p and seals it. Over-long evaluation or time sequences are
// truncated to the move count; short ones stay short.
func NewGame(p GameParams) (*Game, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, Errorf(KindDataIntegrity, "new game", "missing game id")
	}
	if !p.Speed.Valid() {
		return nil, Errorf(KindDataIntegrity, "new game", "game %s: invalid speed %q", p.ID, p.Speed)
	}
	winner := p.Winner
	switch winner {
	case WinnerWhite, WinnerBlack, WinnerDraw, WinnerUnknown:
	case "":
		winner = WinnerUnknown
	default:
		return nil, Errorf(KindDataIntegrity, "new game", "game %s: invalid winner %q", p.ID, p.Winner)
	}

	n := len(p.Moves)
	evals := p.Evaluations
	if len(evals) > n {
		evals = evals[:n]
	}
	spent := p.TimeSpent
	if len(spent) > n {
		spent = spent[:n]
	}

	opening := strings.TrimSpace(p.Opening)
	if opening == "" {
		opening = "Unknown"
	}

	return &Game{
		id:          p.ID,
		startedAt:   p.StartedAt.UTC(),
		platform:    p.Platform,
		speed:       p.Speed,
		opening:     opening,
		status:      p.Status,
		winner:      winner,
		playerColor: p.PlayerColor,
		moves:       append([]string(nil), p.Moves...),
		evaluations: append([]Score(nil), evals...),
		timeSpent:   append([]TimeSpent(nil), spent...),
	}, nil
}

func (g *Game) ID() string           { return g.id }
func (g *Game) StartedAt() time.Time { return g.startedAt }
func (g *Game) Platform() string     { return g.platform }
func (g *Game) Speed() Speed         { return g.speed }
func (g *Game) Opening() string      { return g.opening }
func (g *Game) Status() string       { return g.status }
func (g *Game) Winner() Winner       { return g.winner }
func (g *Game) PlayerColor() Color   { return g.playerColor }
func (g *Game) MoveCount() int       { return len(g.moves) }

func (g *Game) Moves() []string {
	return append([]string(nil), g.moves...)
}

func (g *Game) Evaluations() []Score {
	return append([]Score(nil), g.evaluations...)
}

func (g *Game) TimeSpent() []TimeSpent {
	return append([]TimeSpent(nil), g.timeSpent...)
}

// EvalAt returns the white-relative evaluation after ply i
func (g *Game) EvalAt(i int) Score {
	if i < 0 || i >= len(g.evaluations) {
		return Score{}
	}
	return g.evaluations[i]
}

// TimeAt returns the time spent on ply i
func (g *Game) TimeAt(i int) TimeSpent {
	if i < 0 || i >= len(g.timeSpent) {
		return TimeSpent{}
	}
	return g.timeSpent[i]
}

// HasEvaluations reports whether any ply carries a known evaluation.
func (g *Game) HasEvaluations() bool {
	for _, s := range g.evaluations {
		if s.Known() {
			return true
		}
	}
	return false
}

func (g *Game) String() string {
	return fmt.Sprintf("<Game %s [%s] %s on %s>", g.id, g.speed, g.startedAt.Format(time.DateOnly), g.platform)
}

// Row is one move of the flat per-move analysis table
type Row struct {
	GameID      string    `json:"game_id"`
	MoveNumber  int       `json:"move_number"`
	Move        string    `json:"move"`
	Evaluation  string    `json:"evaluation"`
	TimeSpent   *float64  `json:"time_spent"`
	Speed       Speed     `json:"speed"`
	Platform    string    `json:"platform"`
	Opening     string    `json:"opening"`
	Status      string    `json:"status"`
	Winner      Winner    `json:"winner"`
	StartedAt   time.Time `json:"start_dt_utc"`
	CPLoss      *int      `json:"cp_loss,omitempty"`
	MistakeType string    `json:"mistake_type,omitempty"`
	Cluster     *int      `json:"cluster,omitempty"`
}

// Rows flattens the game into one row per ply. Move numbers are 1-based plies.
func (g *Game) Rows() []Row {
	rows := make([]Row, len(g.moves))
	for i, mv := range g.moves {
		row := Row{
			GameID:     g.id,
			MoveNumber: i + 1,
			Move:       mv,
			Evaluation: g.EvalAt(i).String(),
			Speed:      g.speed,
			Platform:   g.platform,
			Opening:    g.opening,
			Status:     g.status,
			Winner:     g.winner,
			StartedAt:  g.startedAt,
		}
		if t := g.TimeAt(i); t.Valid {
			secs := t.Seconds
			row.TimeSpent = &secs
		}
		rows[i] = row
	}
	return rows
}
