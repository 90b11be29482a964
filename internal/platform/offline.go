package platform

import (
	"context"
	"fmt"
	"os"

	"chessmate/internal/core"
)

// OfflineAdapter reads a local ndjson export in the lichess layout. Games
// come back in file order.
type OfflineAdapter struct {
	name   string
	path   string
	ingest ingester
}

func NewOffline(s Settings, deps Deps) (*OfflineAdapter, error) {
	deps = deps.withDefaults()
	path := s.Path
	if path == "" {
		path = s.URL
	}
	if path == "" {
		return nil, core.Errorf(core.KindInvalidArgument, "offline", "platform %s: no file path configured", s.Name)
	}

	return &OfflineAdapter{
		name:   s.Name,
		path:   path,
		ingest: ingester{platform: s.Name, log: deps.Logger.With("platform", s.Name), metrics: deps.Metrics},
	}, nil
}

func (a *OfflineAdapter) Name() string { return a.name }

func (a *OfflineAdapter) Fetch(ctx context.Context, username string, sel Selector) (*core.Player, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.Errorf(core.KindNotFound, a.name, "game file %s does not exist", a.path)
		}
		return nil, core.Wrap(core.KindIO, a.name, fmt.Errorf("open %s: %w", a.path, err))
	}
	defer f.Close()

	return a.ingest.read(ctx, f, username, sel)
}
