package board

import (
	"strings"
	"testing"

	"chessmate/internal/core"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseFEN(t *testing.T) {
	Convey("Given the starting position", t, func() {
		b, err := ParseFEN(StartingFEN)
		So(err, ShouldBeNil)

		Convey("Then material is balanced and both kings are shielded", func() {
			So(b.Turn(), ShouldEqual, core.ColorWhite)
			So(b.Material(), ShouldEqual, 0)
			So(b.KingShield(core.ColorWhite), ShouldEqual, 3)
			So(b.KingShield(core.ColorBlack), ShouldEqual, 3)
			So(b.KingSafety(), ShouldEqual, 0)
		})

		Convey("Then it is drawn from either side", func() {
			white := strings.Split(b.Diagram(core.ColorWhite), "\n")
			So(white, ShouldHaveLength, 9)
			So(white[0], ShouldEqual, "8 r n b q k b n r")
			So(white[7], ShouldEqual, "1 R N B Q K B N R")
			So(white[8], ShouldEqual, "  a b c d e f g h")

			black := strings.Split(b.Diagram(core.ColorBlack), "\n")
			So(black[0], ShouldEqual, "1 R N B K Q B N R")
			So(black[4], ShouldEqual, "5 . . . . . . . .")
			So(black[8], ShouldEqual, "  h g f e d c b a")
		})
	})

	Convey("Given a position where black has lost a queen and white's shield is broken", t, func() {
		b, err := ParseFEN("rnb1kbnr/pppppppp/8/8/8/8/PPPP3P/RNBQKBNR b KQkq - 0 1")
		So(err, ShouldBeNil)

		Convey("Then material and king safety reflect it", func() {
			So(b.Material(), ShouldEqual, 9-3)
			So(b.KingShield(core.ColorWhite), ShouldEqual, 1)
			So(b.KingSafety(), ShouldEqual, 1-3)
		})
	})

	Convey("Malformed FENs are rejected", t, func() {
		_, err := ParseFEN("8/8/8 w - - 0 1")
		So(err, ShouldNotBeNil)
		_, err = ParseFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1")
		So(err, ShouldNotBeNil)
		_, err = ParseFEN("rnbqkbnr/ppppXppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
		So(err, ShouldNotBeNil)
	})
}

func TestReplay(t *testing.T) {
	Convey("Given a short opening in SAN", t, func() {
		plies, err := Replay([]string{"e4", "e5", "Nf3", "Nc6", "Bb5"})

		Convey("Then every ply carries its UCI move and surrounding positions", func() {
			So(err, ShouldBeNil)
			So(len(plies), ShouldEqual, 5)
			So(plies[0].FENBefore, ShouldEqual, StartingFEN)
			So(plies[0].UCI, ShouldEqual, "e2e4")
			So(plies[2].UCI, ShouldEqual, "g1f3")
			So(plies[1].FENBefore, ShouldEqual, plies[0].FENAfter)
			So(plies[4].SAN, ShouldEqual, "Bb5")
		})
	})

	Convey("Given an illegal move", t, func() {
		plies, err := Replay([]string{"e4", "e4", "Nf3"})

		Convey("Then replay stops there and keeps the legal prefix", func() {
			So(err, ShouldNotBeNil)
			So(len(plies), ShouldEqual, 1)
		})
	})
}

func TestApplyAndMobility(t *testing.T) {
	Convey("Applying a UCI move yields the next position", t, func() {
		fen, err := Apply(StartingFEN, "e2e4")
		So(err, ShouldBeNil)
		So(fen, ShouldStartWith, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq")

		_, err = Apply(StartingFEN, "e2e5")
		So(err, ShouldNotBeNil)
		_, err = Apply(StartingFEN, "e2e4\nquit")
		So(err, ShouldNotBeNil)
	})

	Convey("The starting position has twenty legal moves", t, func() {
		n, err := Mobility(StartingFEN)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 20)
	})

	Convey("FEN safety rejects injected commands", t, func() {
		So(IsFENSafe(StartingFEN), ShouldBeTrue)
		So(IsFENSafe(StartingFEN+"\nquit"), ShouldBeFalse)
		So(IsMoveSafe("e7e8q"), ShouldBeTrue)
		So(IsMoveSafe("e7e8k"), ShouldBeFalse)
	})
}
