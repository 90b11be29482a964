package core

import "fmt"

// Player groups one user's games by speed category. A game lives under the
// category named by its own speed and nowhere else.
type Player struct {
	Username string

	games map[Speed]map[string]*Game
	order []string
	index map[string]Speed
}

func NewPlayer(username string) *Player {
	return &Player{
		Username: username,
		games:    make(map[Speed]map[string]*Game),
		index:    make(map[string]Speed),
	}
}

// AddGame files g under its speed. Re-adding an id replaces the stored game
// and keeps its original position in iteration order.
func (p *Player) AddGame(g *Game) error {
	if g == nil {
		return Errorf(KindInvalidArgument, "add game", "nil game")
	}
	if !g.Speed().Valid() {
		return Errorf(KindDataIntegrity, "add game", "game %s: unknown speed %q", g.ID(), g.Speed())
	}

	if prev, ok := p.index[g.ID()]; ok {
		delete(p.games[prev], g.ID())
	} else {
		p.order = append(p.order, g.ID())
	}

	bucket, ok := p.games[g.Speed()]
	if !ok {
		bucket = make(map[string]*Game)
		p.games[g.Speed()] = bucket
	}
	bucket[g.ID()] = g
	p.index[g.ID()] = g.Speed()
	return nil
}

// Game looks up a game by id across all categories
func (p *Player) Game(id string) (*Game, error) {
	speed, ok := p.index[id]
	if !ok {
		return nil, Errorf(KindNotFound, "get game", "game %q not found", id)
	}
	return p.games[speed][id], nil
}

// Games returns every game in insertion order
func (p *Player) Games() []*Game {
	out := make([]*Game, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.games[p.index[id]][id])
	}
	return out
}

// GamesBySpeed returns the games filed under speed, in insertion order
func (p *Player) GamesBySpeed(speed Speed) []*Game {
	var out []*Game
	for _, id := range p.order {
		if p.index[id] == speed {
			out = append(out, p.games[speed][id])
		}
	}
	return out
}

// Category exposes the id → game mapping for one speed. The map is a copy.
func (p *Player) Category(speed Speed) map[string]*Game {
	out := make(map[string]*Game, len(p.games[speed]))
	for id, g := range p.games[speed] {
		out[id] = g
	}
	return out
}

func (p *Player) Len() int {
	return len(p.order)
}

// Rows flattens every game into the per-move table
func (p *Player) Rows() []Row {
	var rows []Row
	for _, g := range p.Games() {
		rows = append(rows, g.Rows()...)
	}
	return rows
}

func (p *Player) String() string {
	return fmt.Sprintf("Player(username=%s, ultraBullet=%d, bullet=%d, blitz=%d, rapid=%d, classical=%d, correspondence=%d)",
		p.Username,
		len(p.games[SpeedUltraBullet]),
		len(p.games[SpeedBullet]),
		len(p.games[SpeedBlitz]),
		len(p.games[SpeedRapid]),
		len(p.games[SpeedClassical]),
		len(p.games[SpeedCorrespondence]),
	)
}
