package platform

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chessmate/internal/core"
)

// lichessRecord is one game of the lichess ndjson export. The offline source
// reads the same layout.
type lichessRecord struct {
	ID        string `json:"id"`
	Variant   string `json:"variant"`
	Speed     string `json:"speed"`
	Status    string `json:"status"`
	Winner    string `json:"winner"`
	CreatedAt int64  `json:"createdAt"`
	Moves     string `json:"moves"`
	Opening   *struct {
		ECO  string `json:"eco"`
		Name string `json:"name"`
	} `json:"opening"`
	Players *struct {
		White lichessSide `json:"white"`
		Black lichessSide `json:"black"`
	} `json:"players"`
	Analysis []struct {
		Eval *int `json:"eval"`
		Mate *int `json:"mate"`
	} `json:"analysis"`
	Clocks []int `json:"clocks"`
	Clock  *struct {
		Initial   int `json:"initial"`
		Increment int `json:"increment"`
	} `json:"clock"`
}

type lichessSide struct {
	User *struct {
		Name string `json:"name"`
	} `json:"user"`
	AILevel int `json:"aiLevel"`
}

func (s lichessSide) name() string {
	if s.User != nil {
		return s.User.Name
	}
	if s.AILevel > 0 {
		return fmt.Sprintf("stockfish level %d", s.AILevel)
	}
	return ""
}

// statuses of games that never reached a result
var unfinished = map[string]bool{
	"created":       true,
	"started":       true,
	"aborted":       true,
	"noStart":       true,
	"unknownFinish": true,
}

// errSkip marks a record that is well formed but out of scope
type errSkip struct{ reason string }

func (e errSkip) Error() string { return "skipped: " + e.reason }

func decodeLichess(line []byte) (*lichessRecord, error) {
	var rec lichessRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, core.Wrap(core.KindDataIntegrity, "decode game", err)
	}
	return &rec, nil
}

// toGame maps a record onto the canonical model. Records of other variants
// come back as errSkip.
func (r *lichessRecord) toGame(platform, username string) (*core.Game, error) {
	if r.Variant != "" && r.Variant != "standard" {
		return nil, errSkip{reason: "variant"}
	}

	speed, err := core.ParseSpeed(r.Speed)
	if err != nil {
		return nil, err
	}

	color := core.ColorUnknown
	if r.Players != nil {
		var ok bool
		color, ok = colorOf(username, r.Players.White.name(), r.Players.Black.name())
		if !ok {
			return nil, core.Errorf(core.KindDataIntegrity, "map game",
				"game %s: %s played neither white nor black", r.ID, username)
		}
	}

	moves := strings.Fields(r.Moves)

	var winner core.Winner
	switch {
	case r.Winner == "white":
		winner = core.WinnerWhite
	case r.Winner == "black":
		winner = core.WinnerBlack
	case r.Winner != "":
		return nil, core.Errorf(core.KindDataIntegrity, "map game", "game %s: unknown winner %q", r.ID, r.Winner)
	case unfinished[r.Status]:
		winner = core.WinnerUnknown
	default:
		winner = core.WinnerDraw
	}

	opening := ""
	if r.Opening != nil {
		opening = r.Opening.Name
	}

	return core.NewGame(core.GameParams{
		ID:          r.ID,
		StartedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		Platform:    platform,
		Speed:       speed,
		Opening:     opening,
		Status:      r.Status,
		Winner:      winner,
		PlayerColor: color,
		Moves:       moves,
		Evaluations: r.evaluations(),
		TimeSpent:   r.timeSpent(),
	})
}

// evaluations are white-relative; an entry with neither field stays unknown
// so later plies keep their alignment.
func (r *lichessRecord) evaluations() []core.Score {
	if len(r.Analysis) == 0 {
		return nil
	}
	out := make([]core.Score, len(r.Analysis))
	for i, a := range r.Analysis {
		switch {
		case a.Eval != nil:
			out[i] = core.CP(*a.Eval)
		case a.Mate != nil:
			out[i] = core.Mate(*a.Mate)
		}
	}
	return out
}

// clocks are centiseconds remaining after each ply
func (r *lichessRecord) timeSpent() []core.TimeSpent {
	if len(r.Clocks) == 0 {
		return nil
	}
	samples := make([]clockSample, len(r.Clocks))
	for i, cs := range r.Clocks {
		samples[i] = clockSample{seconds: float64(cs) / 100, ok: cs >= 0}
	}
	var inc float64
	if r.Clock != nil {
		inc = float64(r.Clock.Increment)
	}
	return timeSpent(samples, inc)
}
