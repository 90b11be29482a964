package platform

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"chessmate/internal/core"
)

const lichessURL = "https://lichess.org/api"

// LichessAdapter streams a user's games from the lichess export API
type LichessAdapter struct {
	name    string
	baseURL string
	http    *fetcher
	ingest  ingester
}

func NewLichess(s Settings, deps Deps) (*LichessAdapter, error) {
	deps = deps.withDefaults()
	base := strings.TrimRight(s.URL, "/")
	if base == "" {
		base = lichessURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, core.Wrap(core.KindInvalidArgument, "lichess", err)
	}

	return &LichessAdapter{
		name:    s.Name,
		baseURL: base,
		http:    newFetcher(s.Name, s, deps),
		ingest:  ingester{platform: s.Name, log: deps.Logger.With("platform", s.Name), metrics: deps.Metrics},
	}, nil
}

func (a *LichessAdapter) Name() string { return a.name }

// Fetch asks the API for the selection and keeps standard-variant games in
// the order the stream delivers them, newest first.
func (a *LichessAdapter) Fetch(ctx context.Context, username string, sel Selector) (*core.Player, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	resp, err := a.http.get(ctx, a.gamesURL(username, sel), "application/x-ndjson")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return a.ingest.read(ctx, resp.Body, username, sel)
}

func (a *LichessAdapter) gamesURL(username string, sel Selector) string {
	q := url.Values{}
	q.Set("moves", "true")
	q.Set("clocks", "true")
	q.Set("evals", "true")
	q.Set("opening", "true")
	q.Set("pgnInJson", "false")

	if sel.Count > 0 {
		q.Set("max", strconv.Itoa(sel.Count))
	}
	if !sel.Since.IsZero() {
		q.Set("since", strconv.FormatInt(sel.Since.UnixMilli(), 10))
	}
	if !sel.Until.IsZero() {
		q.Set("until", strconv.FormatInt(sel.Until.UnixMilli(), 10))
	}

	return a.baseURL + "/games/user/" + url.PathEscape(username) + "?" + q.Encode()
}
