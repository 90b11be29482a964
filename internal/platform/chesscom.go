package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"chessmate/internal/core"
)

const chessComURL = "https://api.chess.com/pub"

var (
	pgnHeader  = regexp.MustCompile(`(?m)^\[(\w+)\s+"([^"]*)"\]\s*$`)
	moveNumber = regexp.MustCompile(`^\d+\.+`)
	pgnComment = regexp.MustCompile(`\{[^}]*\}`)
	clockTag   = regexp.MustCompile(`\[%clk\s+([^\]]+)\]`)
	archiveURL = regexp.MustCompile(`/(\d{4})/(\d{2})/?$`)
)

// result codes that end a game without a winner
var drawResults = map[string]bool{
	"agreed":             true,
	"repetition":         true,
	"stalemate":          true,
	"insufficient":       true,
	"50move":             true,
	"timevsinsufficient": true,
}

type chessComMonth struct {
	Games []chessComGame `json:"games"`
}

type chessComGame struct {
	URL         string       `json:"url"`
	UUID        string       `json:"uuid"`
	PGN         string       `json:"pgn"`
	TimeControl string       `json:"time_control"`
	TimeClass   string       `json:"time_class"`
	Rules       string       `json:"rules"`
	EndTime     int64        `json:"end_time"`
	ECO         string       `json:"eco"`
	White       chessComSide `json:"white"`
	Black       chessComSide `json:"black"`
}

type chessComSide struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

type month struct {
	year  int
	month time.Month
}

func (m month) start() time.Time {
	return time.Date(m.year, m.month, 1, 0, 0, 0, 0, time.UTC)
}

func (m month) end() time.Time {
	return m.start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// ChessComAdapter walks the monthly game archives of chess.com's public API
type ChessComAdapter struct {
	name    string
	baseURL string
	http    *fetcher
	ingest  ingester
	now     func() time.Time
}

func NewChessCom(s Settings, deps Deps) (*ChessComAdapter, error) {
	deps = deps.withDefaults()
	base := strings.TrimRight(s.URL, "/")
	if base == "" {
		base = chessComURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, core.Wrap(core.KindInvalidArgument, "chesscom", err)
	}

	return &ChessComAdapter{
		name:    s.Name,
		baseURL: base,
		http:    newFetcher(s.Name, s, deps),
		ingest:  ingester{platform: s.Name, log: deps.Logger.With("platform", s.Name), metrics: deps.Metrics},
		now:     time.Now,
	}, nil
}

func (a *ChessComAdapter) Name() string { return a.name }

// Fetch walks months backward from the end of the range, newest game first,
// until the range start is passed or enough games are collected.
func (a *ChessComAdapter) Fetch(ctx context.Context, username string, sel Selector) (*core.Player, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	months, err := a.archives(ctx, username)
	if err != nil {
		return nil, err
	}

	until := sel.Until
	if until.IsZero() {
		until = a.now().UTC()
	}

	player := core.NewPlayer(username)
	for _, m := range months {
		if m.start().After(until) {
			continue
		}
		if !sel.Since.IsZero() && m.end().Before(sel.Since) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		games, err := a.month(ctx, username, m)
		if err != nil {
			return nil, err
		}

		for _, g := range games {
			if a.addGame(player, g, username, sel) && sel.Full(player.Len()) {
				return player, nil
			}
		}
	}

	return player, nil
}

// archives lists the months with games, newest first
func (a *ChessComAdapter) archives(ctx context.Context, username string) ([]month, error) {
	u := fmt.Sprintf("%s/player/%s/games/archives", a.baseURL, url.PathEscape(strings.ToLower(username)))
	body, err := a.http.getBody(ctx, u, "application/json")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, core.Errorf(core.KindIO, a.name, "archive list for %s is not valid JSON", username)
	}

	var months []month
	for _, entry := range gjson.GetBytes(body, "archives").Array() {
		m := archiveURL.FindStringSubmatch(entry.String())
		if m == nil {
			a.ingest.log.Warn("unrecognised archive entry", "entry", entry.String())
			continue
		}
		year, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		if mon < 1 || mon > 12 {
			continue
		}
		months = append(months, month{year: year, month: time.Month(mon)})
	}

	sort.Slice(months, func(i, j int) bool {
		return months[i].start().After(months[j].start())
	})
	return months, nil
}

// month returns one archive month's games, newest first
func (a *ChessComAdapter) month(ctx context.Context, username string, m month) ([]chessComGame, error) {
	u := fmt.Sprintf("%s/player/%s/games/%04d/%02d", a.baseURL, url.PathEscape(strings.ToLower(username)), m.year, int(m.month))
	body, err := a.http.getBody(ctx, u, "application/json")
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			// listed months can still vanish, e.g. after a fair-play closure
			a.ingest.log.Warn("archive month missing", "month", m.start().Format("2006-01"))
			return nil, nil
		}
		return nil, err
	}

	var payload chessComMonth
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, core.Wrap(core.KindIO, a.name, fmt.Errorf("decode %s: %w", u, err))
	}

	sort.SliceStable(payload.Games, func(i, j int) bool {
		return payload.Games[i].EndTime > payload.Games[j].EndTime
	})
	return payload.Games, nil
}

func (a *ChessComAdapter) addGame(player *core.Player, g chessComGame, username string, sel Selector) bool {
	if g.Rules != "chess" {
		a.ingest.metrics.RecordGameSkipped(a.name, "variant")
		return false
	}

	game, err := g.toGame(a.name, username)
	if err != nil {
		a.ingest.skip(0, g.URL, "malformed", err)
		return false
	}
	if !sel.Contains(game.StartedAt()) {
		return false
	}
	if err := player.AddGame(game); err != nil {
		a.ingest.skip(0, g.URL, "malformed", err)
		return false
	}
	a.ingest.metrics.RecordGameFetched(a.name)
	return true
}

func (g chessComGame) toGame(platform, username string) (*core.Game, error) {
	id := path.Base(strings.TrimRight(g.URL, "/"))
	if id == "" || id == "." || id == "/" {
		id = g.UUID
	}

	color, ok := colorOf(username, g.White.Username, g.Black.Username)
	if !ok {
		return nil, core.Errorf(core.KindDataIntegrity, "map game",
			"game %s: %s played neither white nor black", id, username)
	}

	speed, err := core.ParseSpeed(g.TimeClass)
	if err != nil {
		return nil, err
	}

	headers, movetext, err := splitPGN(g.PGN)
	if err != nil {
		return nil, core.Wrap(core.KindDataIntegrity, "map game", fmt.Errorf("game %s: %w", id, err))
	}

	moves, clocks := readMovetext(movetext)

	winner, status := g.result()

	return core.NewGame(core.GameParams{
		ID:          id,
		StartedAt:   g.startedAt(headers),
		Platform:    platform,
		Speed:       speed,
		Opening:     openingName(headers, g.ECO),
		Status:      status,
		Winner:      winner,
		PlayerColor: color,
		Moves:       moves,
		TimeSpent:   timeSpent(clocks, parseIncrement(g.TimeControl)),
	})
}

// result folds the two per-side result codes into a winner and the code
// that decided the game
func (g chessComGame) result() (core.Winner, string) {
	switch {
	case g.White.Result == "win":
		return core.WinnerWhite, g.Black.Result
	case g.Black.Result == "win":
		return core.WinnerBlack, g.White.Result
	case drawResults[g.White.Result] || drawResults[g.Black.Result]:
		return core.WinnerDraw, g.White.Result
	}
	return core.WinnerUnknown, g.White.Result
}

func (g chessComGame) startedAt(headers map[string]string) time.Time {
	date, clock := headers["UTCDate"], headers["UTCTime"]
	if date != "" && clock != "" {
		if t, err := time.Parse("2006.01.02 15:04:05", date+" "+clock); err == nil {
			return t
		}
	}
	return time.Unix(g.EndTime, 0).UTC()
}

func openingName(headers map[string]string, ecoURL string) string {
	if name := headers["Opening"]; name != "" {
		return name
	}
	link := headers["ECOUrl"]
	if link == "" {
		link = ecoURL
	}
	if link == "" {
		return "Unknown"
	}
	slug := path.Base(strings.TrimRight(link, "/"))
	if slug == "" || slug == "." || slug == "/" {
		return "Unknown"
	}
	return strings.ReplaceAll(slug, "-", " ")
}

// splitPGN separates the tag pairs from the movetext
func splitPGN(pgn string) (map[string]string, string, error) {
	pgn = strings.ReplaceAll(pgn, "\r\n", "\n")
	head, body, found := strings.Cut(pgn, "\n\n")
	if !found {
		return nil, "", fmt.Errorf("PGN has no movetext")
	}

	headers := make(map[string]string)
	for _, m := range pgnHeader.FindAllStringSubmatch(head, -1) {
		headers[m[1]] = m[2]
	}
	body = strings.ReplaceAll(body, "\n", " ")
	// comments other than the clock would otherwise read as moves
	body = pgnComment.ReplaceAllStringFunc(body, func(c string) string {
		if m := clockTag.FindStringSubmatch(c); m != nil {
			return " {clk=" + strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "") + "} "
		}
		return " "
	})
	return headers, body, nil
}

// readMovetext returns the SAN moves and, aligned with them, the clock
// reading annotated after each one
func readMovetext(movetext string) ([]string, []clockSample) {
	var moves []string
	var clocks []clockSample

	for _, tok := range strings.Fields(movetext) {
		if clk, ok := strings.CutPrefix(tok, "{clk="); ok {
			if len(clocks) > 0 {
				secs, ok := parseClock(strings.TrimSuffix(clk, "}"))
				clocks[len(clocks)-1] = clockSample{seconds: secs, ok: ok}
			}
			continue
		}

		tok = moveNumber.ReplaceAllString(tok, "")
		switch {
		case tok == "", strings.HasPrefix(tok, "$"):
			continue
		case tok == "1-0", tok == "0-1", tok == "1/2-1/2", tok == "*":
			continue
		}

		moves = append(moves, tok)
		clocks = append(clocks, clockSample{})
	}
	return moves, clocks
}
