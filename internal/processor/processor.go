// Package processor runs one analysis request end to end: fetch, replay,
// detect, classify on the engine pool, cluster and flatten.
package processor

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"chessmate/internal/board"
	"chessmate/internal/classifier"
	"chessmate/internal/cluster"
	"chessmate/internal/core"
	"chessmate/internal/detector"
	"chessmate/internal/engine"
	"chessmate/internal/metrics"
	"chessmate/internal/platform"
)

// Runner lends engine evaluators; *engine.Pool satisfies it
type Runner interface {
	Run(ctx context.Context, fn func(engine.Evaluator) error) error
	NewGame()
	Size() int
}

// Resolver finds the adapter for a platform name; *platform.Registry satisfies it
type Resolver interface {
	Get(name string) (platform.Adapter, error)
}

// Recorder receives finished reports
type Recorder interface {
	RecordAnalysis(r *Report)
}

// Config holds the analysis tunables
type Config struct {
	Depth       int    `koanf:"depth" json:"depth" validate:"gte=1,lte=60"`
	CoarseDepth int    `koanf:"coarse_depth" json:"coarse_depth" validate:"gte=0,lte=30"`
	Threshold   int    `koanf:"threshold" json:"threshold" validate:"gte=1"`
	Clusters    int    `koanf:"clusters" json:"clusters" validate:"gte=1,lte=50"`
	Seed        uint64 `koanf:"seed" json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Depth:       classifier.DefaultDepth,
		CoarseDepth: 0,
		Threshold:   detector.DefaultThreshold,
		Clusters:    cluster.DefaultClusters,
		Seed:        cluster.DefaultSeed,
	}
}

// Processor is safe for concurrent requests; each request builds its own state.
type Processor struct {
	cfg        Config
	resolver   Resolver
	pool       Runner
	detector   *detector.Detector
	classifier *classifier.Classifier
	analyser   cluster.Analyser
	validate   *validator.Validate
	recorder   Recorder
	log        *slog.Logger
	metrics    *metrics.Manager
}

// Option configures a Processor
type Option func(*Processor)

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithRecorder hands every successful report to r
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

func New(cfg Config, resolver Resolver, pool Runner, opts ...Option) *Processor {
	p := &Processor{
		cfg:      cfg,
		resolver: resolver,
		pool:     pool,
		validate: validator.New(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.detector = detector.New(cfg.Threshold)
	p.classifier = classifier.New(cfg.Depth, p.log.With("component", "classifier"), p.metrics)
	p.analyser = cluster.Analyser{Clusters: cfg.Clusters, Seed: cfg.Seed}
	return p
}

// Analyse fetches the requested games and returns the classified, clustered
// per-move table.
func (p *Processor) Analyse(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()

	report, err := p.analyse(ctx, req, start)

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	p.metrics.RecordAnalysis(req.Platform, outcome, time.Since(start))

	if err != nil {
		p.log.Error("analysis failed",
			"username", req.Username,
			"platform", req.Platform,
			"kind", core.KindOf(err),
			"error", err)
		return nil, err
	}

	if p.recorder != nil {
		p.recorder.RecordAnalysis(report)
	}
	return report, nil
}

func (p *Processor) analyse(ctx context.Context, req Request, start time.Time) (*Report, error) {
	sel, err := req.selector(p.validate)
	if err != nil {
		return nil, err
	}

	adapter, err := p.resolver.Get(req.Platform)
	if err != nil {
		return nil, err
	}

	player, err := adapter.Fetch(ctx, req.Username, sel)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.NewString(),
		Username:  player.Username,
		Platform:  req.Platform,
		StartedAt: start.UTC(),
	}
	log := p.log.With("analysis", report.ID, "username", req.Username, "platform", req.Platform)
	log.Info("analysis started", "games", player.Len())

	var (
		analysed []analysedGame
		records  []core.MistakeRecord
	)
	games := player.Games()
	for i, g := range games {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		recs, evals, err := p.analyseGame(ctx, g)
		switch {
		case err == nil:
			analysed = append(analysed, analysedGame{game: g, evals: evals})
			records = append(records, recs...)
		case unavailable(err):
			return nil, err
		default:
			log.Warn("game skipped", "game", g.ID(), "kind", core.KindOf(err), "error", err)
			report.Skipped = append(report.Skipped, Skipped{GameID: g.ID(), Reason: err.Error()})
		}

		if req.Progress != nil {
			req.Progress(i+1, len(games))
		}
	}

	slices.SortStableFunc(records, func(a, b core.MistakeRecord) int {
		return cmp.Or(cmp.Compare(a.GameID, b.GameID), cmp.Compare(a.Ply, b.Ply))
	})

	labels, clusters, err := p.cluster(records, log)
	if err != nil {
		return nil, err
	}

	report.Games = len(analysed)
	report.Mistakes = records
	report.Clusters = clusters
	report.Rows = joinRows(analysed, records, labels)
	report.Duration = time.Since(start)

	log.Info("analysis finished",
		"games", report.Games,
		"skipped", len(report.Skipped),
		"mistakes", len(records),
		"clusters", len(clusters),
		"duration", report.Duration)

	return report, nil
}

// analysedGame pairs a game with the white-relative evaluations it was analysed on
type analysedGame struct {
	game  *core.Game
	evals []core.Score
}

// analyseGame returns the classified candidates of one game, sorted by ply,
// and the evaluations the detector saw.
func (p *Processor) analyseGame(ctx context.Context, g *core.Game) ([]core.MistakeRecord, []core.Score, error) {
	plies, err := board.Replay(g.Moves())
	if err != nil {
		return nil, nil, core.Wrap(core.KindDataIntegrity, "replay", err)
	}
	p.pool.NewGame()

	evals := g.Evaluations()
	if !g.HasEvaluations() && p.cfg.CoarseDepth > 0 {
		if evals, err = p.coarse(ctx, plies); err != nil {
			return nil, nil, err
		}
	}

	candidates, err := p.candidates(g.PlayerColor(), plies, evals)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return nil, evals, nil
	}

	units := lo.Map(candidates, func(c detector.Candidate, _ int) classifier.Unit {
		pl := plies[c.Index]
		return classifier.Unit{
			GameID:   g.ID(),
			Ply:      c.Index,
			FEN:      pl.FENBefore,
			Move:     pl.UCI,
			MoveSAN:  pl.SAN,
			TimeUsed: g.TimeAt(c.Index),
		}
	})

	records, err := p.classify(ctx, units)
	if err != nil {
		return nil, nil, err
	}
	return records, evals, nil
}

// candidates runs the detector from each analysed side's point of view and
// keeps the drops that side caused with its own move. Evaluations are
// white-relative. An unknown color analyses both sides.
func (p *Processor) candidates(color core.Color, plies []board.Ply, evals []core.Score) ([]detector.Candidate, error) {
	sides := []core.Color{color}
	if color != core.ColorWhite && color != core.ColorBlack {
		sides = []core.Color{core.ColorWhite, core.ColorBlack}
	}

	positions := lo.Map(plies, func(pl board.Ply, _ int) string { return pl.FENBefore })

	var out []detector.Candidate
	for _, side := range sides {
		oriented := make([]string, len(plies))
		for i := range plies {
			var s core.Score
			if i < len(evals) {
				s = evals[i]
			}
			if side == core.ColorBlack {
				s = s.Negate()
			}
			oriented[i] = s.String()
		}

		drops, err := p.detector.FindDrops(oriented, positions)
		if err != nil {
			return nil, err
		}
		out = append(out, lo.Filter(drops, func(c detector.Candidate, _ int) bool {
			return core.MoverAt(c.Index) == side
		})...)
	}

	slices.SortFunc(out, func(a, b detector.Candidate) int { return cmp.Compare(a.Index, b.Index) })
	return out, nil
}

// coarse scores the position after every ply at the shallow depth. Failed
// positions stay unknown.
func (p *Processor) coarse(ctx context.Context, plies []board.Ply) ([]core.Score, error) {
	detached := context.WithoutCancel(ctx)
	scores := make([]core.Score, len(plies))

	var g errgroup.Group
	g.SetLimit(max(p.pool.Size(), 1))

	for i, pl := range plies {
		g.Go(func() error {
			var ev engine.Evaluation
			err := p.pool.Run(detached, func(e engine.Evaluator) error {
				var err error
				ev, err = e.Evaluate(detached, pl.FENAfter, p.cfg.CoarseDepth)
				return err
			})
			if err != nil {
				if unavailable(err) {
					return err
				}
				p.log.Debug("coarse evaluation failed", "ply", i, "error", err)
				return nil
			}

			// scored for the side to move next
			s := ev.Score
			if core.MoverAt(i) == core.ColorWhite {
				s = s.Negate()
			}
			scores[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// classify spreads units over the pool. A failed unit is logged and dropped;
// losing every engine aborts.
func (p *Processor) classify(ctx context.Context, units []classifier.Unit) ([]core.MistakeRecord, error) {
	detached := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		records = make([]core.MistakeRecord, 0, len(units))
		g       errgroup.Group
	)
	g.SetLimit(max(p.pool.Size(), 1))

	for _, u := range units {
		g.Go(func() error {
			var rec core.MistakeRecord
			err := p.pool.Run(detached, func(ev engine.Evaluator) error {
				var err error
				rec, err = p.classifier.Classify(detached, ev, u)
				return err
			})
			if err != nil {
				if unavailable(err) {
					return err
				}
				p.log.Warn("move not classified",
					"game", u.GameID,
					"ply", u.Ply,
					"move", u.MoveSAN,
					"error", err)
				return nil
			}

			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b core.MistakeRecord) int { return cmp.Compare(a.Ply, b.Ply) })
	return records, nil
}

// cluster labels records in order. Too few records leave every label at -1.
func (p *Processor) cluster(records []core.MistakeRecord, log *slog.Logger) ([]int, []core.ClusterResult, error) {
	labels := make([]int, len(records))
	for i := range labels {
		labels[i] = Unclustered
	}
	if len(records) == 0 {
		return labels, nil, nil
	}

	res, err := p.analyser.Fit(records)
	if err != nil {
		if core.IsKind(err, core.KindInsufficientData) {
			log.Info("mistakes left unclustered", "records", len(records), "reason", err)
			return labels, nil, nil
		}
		return nil, nil, err
	}
	return res.Labels, res.Clusters, nil
}

// joinRows flattens games into the per-move table and fills the mistake
// columns for classified plies. Evaluations computed during the run fill
// rows the platform left blank.
func joinRows(games []analysedGame, records []core.MistakeRecord, labels []int) []core.Row {
	type key struct {
		game string
		ply  int
	}
	index := make(map[key]int, len(records))
	for i, r := range records {
		index[key{r.GameID, r.Ply}] = i
	}

	var rows []core.Row
	for _, ag := range games {
		g := ag.game
		for ply, row := range g.Rows() {
			if row.Evaluation == "" && ply < len(ag.evals) {
				row.Evaluation = ag.evals[ply].String()
			}
			if i, ok := index[key{g.ID(), ply}]; ok {
				loss := records[i].CPLoss
				label := labels[i]
				row.CPLoss = &loss
				row.MistakeType = string(records[i].Label)
				row.Cluster = &label
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// unavailable reports errors that make the rest of the request pointless
func unavailable(err error) bool {
	return errors.Is(err, engine.ErrNoEngine) || errors.Is(err, engine.ErrClosed)
}
