package processor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"chessmate/internal/core"
	"chessmate/internal/platform"
)

// Unclustered is the cluster id of a mistake that could not be grouped
const Unclustered = -1

// Request names a player, a platform and which of their games to analyse.
// Count and the Since/Until range are mutually exclusive; neither means all games.
type Request struct {
	Username string     `json:"username" validate:"required,max=64"`
	Platform string     `json:"platform_name" validate:"required,max=32"`
	Count    int        `json:"number_of_games,omitempty" validate:"gte=0"`
	Since    *time.Time `json:"since,omitempty"`
	Until    *time.Time `json:"until,omitempty"`

	// Progress, when set, is called after each game with the games handled so far
	Progress func(done, total int) `json:"-"`
}

// Skipped is a game left out of a report
type Skipped struct {
	GameID string `json:"game_id"`
	Reason string `json:"reason"`
}

// Report is the result of one analysis run
type Report struct {
	ID        string               `json:"id"`
	Username  string               `json:"username"`
	Platform  string               `json:"platform_name"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration_ns"`
	Games     int                  `json:"games"`
	Rows      []core.Row           `json:"rows"`
	Mistakes  []core.MistakeRecord `json:"mistakes"`
	Clusters  []core.ClusterResult `json:"clusters"`
	Skipped   []Skipped            `json:"skipped,omitempty"`
}

// Counts tallies mistakes per label
func (r *Report) Counts() map[core.Label]int {
	out := make(map[core.Label]int)
	for _, m := range r.Mistakes {
		out[m.Label]++
	}
	return out
}

// selector trims and validates the request and converts it for the adapters
func (r *Request) selector(v *validator.Validate) (platform.Selector, error) {
	r.Username = strings.TrimSpace(r.Username)
	if err := v.Struct(r); err != nil {
		return platform.Selector{}, core.Wrap(core.KindInvalidArgument, "analyse", describe(err))
	}

	sel := platform.Selector{Count: r.Count}
	if r.Since != nil {
		sel.Since = r.Since.UTC()
	}
	if r.Until != nil {
		sel.Until = r.Until.UTC()
	}
	if err := sel.Validate(); err != nil {
		return platform.Selector{}, err
	}
	return sel, nil
}

// describe flattens validator errors into one readable message
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
