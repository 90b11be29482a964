// Package core holds the canonical chess model shared by every platform adapter
// and analysis stage.
package core

import "strings"

type Color byte

const (
	ColorUnknown Color = iota
	ColorWhite
	ColorBlack
)

func (c Color) String() string {
	switch c {
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	default:
		return "unknown"
	}
}

// MoverAt returns the side making ply i of a game started from the initial position.
func MoverAt(ply int) Color {
	if ply%2 == 0 {
		return ColorWhite
	}
	return ColorBlack
}

// Winner is the outcome of a finished game
type Winner string

const (
	WinnerWhite   Winner = "white"
	WinnerBlack   Winner = "black"
	WinnerDraw    Winner = "draw"
	WinnerUnknown Winner = "unknown"
)

// Speed is the time-control class a platform assigns to a game
type Speed string

const (
	SpeedUltraBullet    Speed = "ultraBullet"
	SpeedBullet         Speed = "bullet"
	SpeedBlitz          Speed = "blitz"
	SpeedRapid          Speed = "rapid"
	SpeedClassical      Speed = "classical"
	SpeedCorrespondence Speed = "correspondence"
)

// Speeds lists every category in display order.
var Speeds = []Speed{
	SpeedUltraBullet,
	SpeedBullet,
	SpeedBlitz,
	SpeedRapid,
	SpeedClassical,
	SpeedCorrespondence,
}

// ParseSpeed maps a platform speed label onto a category. Chess.com's "daily"
// games are correspondence games.
func ParseSpeed(s string) (Speed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ultrabullet":
		return SpeedUltraBullet, nil
	case "bullet":
		return SpeedBullet, nil
	case "blitz":
		return SpeedBlitz, nil
	case "rapid":
		return SpeedRapid, nil
	case "classical", "standard":
		return SpeedClassical, nil
	case "correspondence", "daily":
		return SpeedCorrespondence, nil
	}
	return "", Errorf(KindDataIntegrity, "parse speed", "unknown speed %q", s)
}

func (s Speed) Valid() bool {
	for _, v := range Speeds {
		if v == s {
			return true
		}
	}
	return false
}
