package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithRegistry(registry), WithNamespace("test"))

		Convey("When games are fetched and skipped", func() {
			m.RecordGameFetched("lichess")
			m.RecordGameFetched("lichess")
			m.RecordGameSkipped("lichess", "variant")

			Convey("Then the counters reflect it", func() {
				So(testutil.ToFloat64(m.gamesFetched.WithLabelValues("lichess")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.gamesSkipped.WithLabelValues("lichess", "variant")), ShouldEqual, 1)
			})
		})

		Convey("When evaluations and mistakes are recorded", func() {
			m.RecordEvaluation(20 * time.Millisecond)
			m.RecordMistake("Blunder")
			m.RecordAnalysis("offline", OutcomeOK, time.Second)

			Convey("Then they are gathered from the registry", func() {
				So(testutil.ToFloat64(m.evaluations), ShouldEqual, 1)
				So(testutil.ToFloat64(m.mistakes.WithLabelValues("Blunder")), ShouldEqual, 1)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the engine gauge moves", func() {
			m.AddEnginesAlive(3)
			m.AddEnginesAlive(-1)

			Convey("Then it tracks the net count", func() {
				So(testutil.ToFloat64(m.enginesAlive), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a nil manager", t, func() {
		var m *Manager

		Convey("Then recording is a no-op", func() {
			So(func() {
				m.RecordGameFetched("x")
				m.RecordEvaluation(time.Millisecond)
				m.RecordMistake("Mistake")
				m.RecordAnalysis("x", OutcomeFailed, 0)
			}, ShouldNotPanic)
		})
	})
}
