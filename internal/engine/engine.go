package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"chessmate/internal/board"
	"chessmate/internal/core"
)

const (
	DefaultPath    = "stockfish"
	handshakeWait  = 5 * time.Second
	shutdownWait   = time.Second
	defaultTimeout = 30 * time.Second
)

// Evaluator scores one position. Implementations are not safe for concurrent use.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error)
}

// Evaluation is the engine's verdict on a position. Score is relative to the side to move.
type Evaluation struct {
	BestMove string
	Score    core.Score
	Depth    int
	PV       []string
}

// Options configures a UCI process
type Options struct {
	Path    string
	Threads int
	HashMB  int
	Timeout time.Duration // per evaluation
	Logger  *slog.Logger
}

// UCI is one long-lived engine process speaking the UCI line protocol
type UCI struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan string
	done    chan struct{}
	timeout time.Duration
	log     *slog.Logger

	mu        sync.Mutex
	broken    error
	closeOnce sync.Once
}

// New starts the engine binary and completes the uci/isready handshake.
func New(ctx context.Context, opts Options) (*UCI, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	cmd := exec.Command(path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, core.Wrap(core.KindEngine, "engine start", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, core.Wrap(core.KindEngine, "engine start", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, core.Wrap(core.KindEngine, "engine start", fmt.Errorf("failed to start %s: %w", path, err))
	}

	u := newUCI(stdin, stdout, opts)
	u.cmd = cmd

	if err := u.initialize(ctx, opts); err != nil {
		u.Close()
		return nil, err
	}

	return u, nil
}

// newUCI wires a handle over arbitrary pipes; the process, if any, is attached by the caller.
func newUCI(stdin io.WriteCloser, stdout io.Reader, opts Options) *UCI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u := &UCI{
		stdin:   stdin,
		lines:   make(chan string, 64),
		done:    make(chan struct{}),
		timeout: timeout,
		log:     logger,
	}
	go u.readLoop(stdout)
	return u
}

// readLoop is the only reader of stdout. The channel closes on EOF or once
// the handle is closed, whichever comes first.
func (u *UCI) readLoop(stdout io.Reader) {
	defer close(u.lines)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case u.lines <- strings.TrimSpace(scanner.Text()):
		case <-u.done:
			return
		}
	}
}

func (u *UCI) initialize(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeWait)
	defer cancel()

	if err := u.send("uci"); err != nil {
		return err
	}
	if _, err := u.waitFor(ctx, "uciok"); err != nil {
		return err
	}

	if opts.Threads > 0 {
		if err := u.send(fmt.Sprintf("setoption name Threads value %d", opts.Threads)); err != nil {
			return err
		}
	}
	if opts.HashMB > 0 {
		if err := u.send(fmt.Sprintf("setoption name Hash value %d", opts.HashMB)); err != nil {
			return err
		}
	}

	return u.ready(ctx)
}

func (u *UCI) ready(ctx context.Context) error {
	if err := u.send("isready"); err != nil {
		return err
	}
	_, err := u.waitFor(ctx, "readyok")
	return err
}

func (u *UCI) send(cmd string) error {
	if _, err := fmt.Fprintln(u.stdin, cmd); err != nil {
		return u.fail(fmt.Errorf("write %q: %w", cmd, err))
	}
	return nil
}

// waitFor consumes lines until one starts with prefix
func (u *UCI) waitFor(ctx context.Context, prefix string) (string, error) {
	for {
		select {
		case line, ok := <-u.lines:
			if !ok {
				return "", u.fail(fmt.Errorf("engine closed unexpectedly"))
			}
			if strings.HasPrefix(line, prefix) {
				return line, nil
			}
		case <-ctx.Done():
			return "", u.fail(fmt.Errorf("timeout waiting for %s: %w", prefix, ctx.Err()))
		}
	}
}

// fail marks the handle unusable; the stream position is no longer known.
func (u *UCI) fail(err error) error {
	if u.broken == nil {
		u.broken = err
	}
	return core.Wrap(core.KindEngine, "engine", err)
}

// Healthy reports whether the handle can serve further evaluations
func (u *UCI) Healthy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.broken == nil
}

// NewGame clears engine hash state between unrelated games
func (u *UCI) NewGame(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.broken != nil {
		return core.Wrap(core.KindEngine, "engine", u.broken)
	}
	if err := u.send("ucinewgame"); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, handshakeWait)
	defer cancel()
	return u.ready(ctx)
}

// Evaluate searches fen to the given depth.
func (u *UCI) Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error) {
	if !board.IsFENSafe(fen) {
		return Evaluation{}, core.Errorf(core.KindInvalidArgument, "evaluate", "invalid FEN %q", fen)
	}
	if depth < 1 {
		return Evaluation{}, core.Errorf(core.KindInvalidArgument, "evaluate", "depth must be positive, got %d", depth)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.broken != nil {
		return Evaluation{}, core.Wrap(core.KindEngine, "evaluate", u.broken)
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	if err := u.send("position fen " + fen); err != nil {
		return Evaluation{}, err
	}
	if err := u.send(fmt.Sprintf("go depth %d", depth)); err != nil {
		return Evaluation{}, err
	}

	var info searchInfo
	for {
		select {
		case line, ok := <-u.lines:
			if !ok {
				return Evaluation{}, u.fail(fmt.Errorf("engine closed unexpectedly"))
			}
			switch {
			case strings.HasPrefix(line, "info "):
				info.merge(parseInfo(line))
			case strings.HasPrefix(line, "bestmove"):
				best, err := parseBestMove(line)
				if err != nil {
					return Evaluation{}, u.fail(err)
				}
				return info.evaluation(best)
			}
		case <-ctx.Done():
			// the search may still be running; the stream can't be trusted after this
			u.send("stop")
			return Evaluation{}, u.fail(fmt.Errorf("timeout waiting for bestmove: %w", ctx.Err()))
		}
	}
}

// Close asks the engine to quit and kills it if it lingers
func (u *UCI) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.closeOnce.Do(func() { close(u.done) })
	fmt.Fprintln(u.stdin, "quit")
	u.stdin.Close()
	if u.broken == nil {
		u.broken = fmt.Errorf("engine closed")
	}

	if u.cmd == nil || u.cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- u.cmd.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(shutdownWait):
		u.log.Warn("engine did not exit, killing", "pid", u.cmd.Process.Pid)
		return u.cmd.Process.Kill()
	}
}
