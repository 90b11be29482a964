// Package platform turns a player's game history on an online platform, or in
// a local export, into the canonical model.
package platform

import (
	"context"
	"strings"
	"time"

	"chessmate/internal/core"
)

// Name identifies an adapter implementation
type Name string

const (
	Lichess  Name = "lichess"
	ChessCom Name = "chesscom"
	Offline  Name = "offline"
)

// Adapter fetches one player's games
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, username string, sel Selector) (*core.Player, error)
}

// Settings is one platform entry of the configuration
type Settings struct {
	Name          string  `koanf:"name" json:"name" validate:"required,oneof=lichess chesscom offline"`
	URL           string  `koanf:"url" json:"url"`
	Token         string  `koanf:"token" json:"-"`
	Enabled       bool    `koanf:"enabled" json:"enabled"`
	RatePerSecond float64 `koanf:"rate_per_second" json:"rate_per_second" validate:"gte=0"`
	Path          string  `koanf:"path" json:"path,omitempty"`
}

// Selector picks either the latest Count games or the games started within
// [Since, Until]. A zero selector means every game.
type Selector struct {
	Count int
	Since time.Time
	Until time.Time
}

// ByCount selects the n most recent games
func ByCount(n int) Selector { return Selector{Count: n} }

// ByRange selects games started in [since, until]; either bound may be zero.
func ByRange(since, until time.Time) Selector { return Selector{Since: since, Until: until} }

func (s Selector) Validate() error {
	if s.Count < 0 {
		return core.Errorf(core.KindInvalidArgument, "selector", "negative game count %d", s.Count)
	}
	if s.Count > 0 && (!s.Since.IsZero() || !s.Until.IsZero()) {
		return core.Errorf(core.KindInvalidArgument, "selector", "game count and time range are mutually exclusive")
	}
	if !s.Since.IsZero() && !s.Until.IsZero() && s.Since.After(s.Until) {
		return core.Errorf(core.KindInvalidArgument, "selector", "range start %s is after its end %s",
			s.Since.Format(time.RFC3339), s.Until.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether a game started at t falls in the range
func (s Selector) Contains(t time.Time) bool {
	if !s.Since.IsZero() && t.Before(s.Since) {
		return false
	}
	if !s.Until.IsZero() && t.After(s.Until) {
		return false
	}
	return true
}

// Full reports whether n collected games satisfy a count selector
func (s Selector) Full(n int) bool {
	return s.Count > 0 && n >= s.Count
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return core.Errorf(core.KindInvalidArgument, "fetch", "username is required")
	}
	if strings.ContainsAny(username, "/?#% ") {
		return core.Errorf(core.KindInvalidArgument, "fetch", "invalid username %q", username)
	}
	return nil
}

// colorOf matches username against the two participants, ignoring case
func colorOf(username, white, black string) (core.Color, bool) {
	switch {
	case strings.EqualFold(username, white):
		return core.ColorWhite, true
	case strings.EqualFold(username, black):
		return core.ColorBlack, true
	}
	return core.ColorUnknown, false
}
