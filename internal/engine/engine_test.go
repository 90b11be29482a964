package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"chessmate/internal/core"

	. "github.com/smartystreets/goconvey/convey"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// fakeEngine answers UCI commands through reply; it sees every line written to stdin.
type fakeEngine struct {
	mu       sync.Mutex
	commands []string
	stdout   *io.PipeWriter
}

func (f *fakeEngine) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func startFake(timeout time.Duration, reply func(cmd string, out io.Writer) bool) (*UCI, *fakeEngine) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	f := &fakeEngine{stdout: outW}

	go func() {
		scanner := bufio.NewScanner(inR)
		for scanner.Scan() {
			cmd := scanner.Text()
			f.mu.Lock()
			f.commands = append(f.commands, cmd)
			f.mu.Unlock()
			if !reply(cmd, outW) {
				outW.Close()
			}
		}
		outW.Close()
	}()

	return newUCI(inW, outR, Options{Timeout: timeout}), f
}

// stockfishLike replies the way a real engine does, with search output chosen per test.
func stockfishLike(search string) func(string, io.Writer) bool {
	return func(cmd string, out io.Writer) bool {
		switch {
		case cmd == "uci":
			fmt.Fprint(out, "id name Fake\nid author Test\nuciok\n")
		case cmd == "isready":
			fmt.Fprint(out, "readyok\n")
		case strings.HasPrefix(cmd, "go "):
			fmt.Fprint(out, search)
		}
		return true
	}
}

func TestUCIHandle(t *testing.T) {
	Convey("Given an engine that completes the handshake", t, func() {
		search := "info depth 1 score cp 12 pv d2d4\n" +
			"info depth 12 seldepth 18 score cp 35 nodes 1000 pv e2e4 e7e5 g1f3\n" +
			"bestmove e2e4 ponder e7e5\n"
		u, fake := startFake(time.Second, stockfishLike(search))
		defer u.Close()

		err := u.initialize(context.Background(), Options{Threads: 2, HashMB: 64})
		So(err, ShouldBeNil)

		Convey("Then options are sent before readiness is confirmed", func() {
			cmds := fake.seen()
			So(cmds, ShouldContain, "uci")
			So(cmds, ShouldContain, "setoption name Threads value 2")
			So(cmds, ShouldContain, "setoption name Hash value 64")
			So(cmds[len(cmds)-1], ShouldEqual, "isready")
		})

		Convey("When a position is evaluated", func() {
			ev, err := u.Evaluate(context.Background(), startFEN, 12)

			Convey("Then the deepest scored line wins", func() {
				So(err, ShouldBeNil)
				So(ev.BestMove, ShouldEqual, "e2e4")
				So(ev.Score, ShouldResemble, core.CP(35))
				So(ev.Depth, ShouldEqual, 12)
				So(ev.PV, ShouldResemble, []string{"e2e4", "e7e5", "g1f3"})
				So(fake.seen(), ShouldContain, "position fen "+startFEN)
				So(fake.seen(), ShouldContain, "go depth 12")
				So(u.Healthy(), ShouldBeTrue)
			})
		})

		Convey("When the FEN is not safe to send", func() {
			_, err := u.Evaluate(context.Background(), "8/8/8\nquit", 10)

			Convey("Then the call is rejected and the handle stays usable", func() {
				So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
				So(u.Healthy(), ShouldBeTrue)
			})
		})

		Convey("When depth is not positive", func() {
			_, err := u.Evaluate(context.Background(), startFEN, 0)
			So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
		})
	})

	Convey("Given a mated position", t, func() {
		u, _ := startFake(time.Second, stockfishLike("info depth 0 score mate 0\nbestmove (none)\n"))
		defer u.Close()

		ev, err := u.Evaluate(context.Background(), "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", 10)

		Convey("Then there is no best move and the mover is mated", func() {
			So(err, ShouldBeNil)
			So(ev.BestMove, ShouldEqual, "")
			So(ev.Score, ShouldResemble, core.Mate(0))
			So(ev.Score.Centipawns(), ShouldEqual, -core.MateCentipawns)
		})
	})

	Convey("Given an engine that never finishes its search", t, func() {
		u, _ := startFake(50*time.Millisecond, stockfishLike("info depth 1 score cp 5\n"))
		defer u.Close()

		_, err := u.Evaluate(context.Background(), startFEN, 10)

		Convey("Then the call fails as an engine error and the handle is broken", func() {
			So(core.IsKind(err, core.KindEngine), ShouldBeTrue)
			So(u.Healthy(), ShouldBeFalse)

			_, err = u.Evaluate(context.Background(), startFEN, 10)
			So(core.IsKind(err, core.KindEngine), ShouldBeTrue)
		})
	})

	Convey("Given an engine that exits mid-search", t, func() {
		u, _ := startFake(time.Second, func(cmd string, out io.Writer) bool {
			return !strings.HasPrefix(cmd, "go ")
		})
		defer u.Close()

		_, err := u.Evaluate(context.Background(), startFEN, 10)

		Convey("Then the call fails as an engine error", func() {
			So(core.IsKind(err, core.KindEngine), ShouldBeTrue)
			So(u.Healthy(), ShouldBeFalse)
		})
	})

	Convey("Given a handle between games", t, func() {
		u, fake := startFake(time.Second, stockfishLike(""))
		defer u.Close()

		err := u.NewGame(context.Background())

		Convey("Then the engine is told a new game starts and is synced", func() {
			So(err, ShouldBeNil)
			So(fake.seen(), ShouldResemble, []string{"ucinewgame", "isready"})
		})
	})

	Convey("Given an engine that keeps writing after its handle is closed", t, func() {
		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		defer outR.Close()
		go io.Copy(io.Discard, inR)
		go func() {
			for i := 0; i < 1000; i++ {
				if _, err := fmt.Fprintf(outW, "info string line %d\n", i); err != nil {
					return
				}
			}
		}()

		u := newUCI(inW, outR, Options{})
		deadline := time.Now().Add(time.Second)
		for len(u.lines) < cap(u.lines) && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		u.Close()

		Convey("Then the reader stops instead of blocking on the full buffer", func() {
			drained, closed := 0, false
			timeout := time.After(time.Second)
		loop:
			for {
				select {
				case _, ok := <-u.lines:
					if !ok {
						closed = true
						break loop
					}
					drained++
				case <-timeout:
					break loop
				}
			}
			So(closed, ShouldBeTrue)
			So(drained, ShouldBeLessThan, 1000)
		})
	})
}

func TestParseInfo(t *testing.T) {
	Convey("Given info lines", t, func() {
		Convey("Then centipawn and mate scores are read", func() {
			So(parseInfo("info depth 20 score cp -45 pv e7e5").score, ShouldResemble, core.CP(-45))
			So(parseInfo("info depth 20 score mate 3 pv h5f7").score, ShouldResemble, core.Mate(3))
			So(parseInfo("info depth 20 score mate -2").score, ShouldResemble, core.Mate(-2))
		})

		Convey("Then bound scores are not taken as final", func() {
			So(parseInfo("info depth 20 score cp 80 lowerbound").score.Known(), ShouldBeFalse)
		})

		Convey("Then lines without a score leave it unknown", func() {
			So(parseInfo("info string NNUE enabled").score.Known(), ShouldBeFalse)
			So(parseInfo("info depth 5 currmove e2e4 currmovenumber 1").depth, ShouldEqual, 5)
		})

		Convey("Then a shallower line does not override a deeper one", func() {
			var s searchInfo
			s.merge(parseInfo("info depth 10 score cp 30 pv e2e4"))
			s.merge(parseInfo("info depth 9 score cp -400 pv a2a3"))
			So(s.score, ShouldResemble, core.CP(30))
			So(s.pv, ShouldResemble, []string{"e2e4"})
		})
	})

	Convey("Given bestmove lines", t, func() {
		best, err := parseBestMove("bestmove g1f3 ponder d7d5")
		So(err, ShouldBeNil)
		So(best, ShouldEqual, "g1f3")

		best, err = parseBestMove("bestmove (none)")
		So(err, ShouldBeNil)
		So(best, ShouldEqual, "")

		_, err = parseBestMove("bestmove")
		So(err, ShouldNotBeNil)
	})
}
