package core_test

import (
	"errors"
	"fmt"
	"testing"

	"chessmate/internal/core"

	. "github.com/smartystreets/goconvey/convey"
)

func TestScore(t *testing.T) {
	Convey("Mate scores saturate for arithmetic", t, func() {
		So(core.Mate(4).Centipawns(), ShouldEqual, core.MateCentipawns)
		So(core.Mate(-2).Centipawns(), ShouldEqual, -core.MateCentipawns)
		So(core.Mate(0).Centipawns(), ShouldEqual, -core.MateCentipawns)
		So(core.CP(-45).Centipawns(), ShouldEqual, -45)
		So(core.Score{}.Centipawns(), ShouldEqual, 0)
	})

	Convey("Negation flips the point of view", t, func() {
		So(core.CP(120).Negate(), ShouldResemble, core.CP(-120))
		So(core.Mate(3).Negate(), ShouldResemble, core.Mate(-3))
		So(core.Mate(0).Negate().Centipawns(), ShouldEqual, core.MateCentipawns)
	})

	Convey("Scores render in pawn notation", t, func() {
		So(core.CP(53).String(), ShouldEqual, "+0.53")
		So(core.CP(-120).String(), ShouldEqual, "-1.20")
		So(core.Mate(2).String(), ShouldEqual, "+M2")
		So(core.Mate(-3).String(), ShouldEqual, "-M3")
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Kinds survive wrapping", t, func() {
		base := core.Errorf(core.KindNotFound, "registry", "platform %q", "foo")
		wrapped := fmt.Errorf("analyse: %w", base)

		So(core.KindOf(wrapped), ShouldEqual, core.KindNotFound)
		So(core.IsKind(wrapped, core.KindNotFound), ShouldBeTrue)
		So(core.KindOf(errors.New("plain")), ShouldEqual, core.KindUnknown)
		So(core.Wrap(core.KindIO, "fetch", nil), ShouldBeNil)
		So(base.Error(), ShouldEqual, `registry: platform "foo"`)
	})
}
