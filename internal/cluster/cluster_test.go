package cluster

import (
	"fmt"
	"math"
	"testing"

	"chessmate/internal/core"

	. "github.com/smartystreets/goconvey/convey"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func record(id string, f core.Features) core.MistakeRecord {
	return core.MistakeRecord{GameID: id, Features: f}
}

// twoGroups returns quick low-loss moves and slow blunders
func twoGroups() []core.MistakeRecord {
	var out []core.MistakeRecord
	for i := 0; i < 6; i++ {
		out = append(out, record(fmt.Sprintf("fast%d", i), core.Features{0, 1, 30, 1 + float64(i%2), 20, 60 + float64(i)}))
		out = append(out, record(fmt.Sprintf("slow%d", i), core.Features{-3, -2, 12, 40 + float64(i%3), -400, 600 + float64(i)}))
	}
	return out
}

func TestAnalyserFit(t *testing.T) {
	Convey("Given fewer records than clusters", t, func() {
		_, err := Analyser{Clusters: 5}.Fit(twoGroups()[:4])

		Convey("Then fitting fails for lack of data", func() {
			So(core.IsKind(err, core.KindInsufficientData), ShouldBeTrue)
		})
	})

	Convey("Given two well separated groups", t, func() {
		records := twoGroups()
		res, err := Analyser{Clusters: 2}.Fit(records)
		So(err, ShouldBeNil)

		Convey("Then every record gets a label in range", func() {
			So(len(res.Labels), ShouldEqual, len(records))
			for _, l := range res.Labels {
				So(l, ShouldBeBetweenOrEqual, 0, 1)
			}
		})

		Convey("Then each group shares one label", func() {
			fast, slow := res.Labels[0], res.Labels[1]
			So(fast, ShouldNotEqual, slow)
			for i := range records {
				if i%2 == 0 {
					So(res.Labels[i], ShouldEqual, fast)
				} else {
					So(res.Labels[i], ShouldEqual, slow)
				}
			}
		})

		Convey("Then centroids are reported in original units", func() {
			slow := res.Centroids[res.Labels[1]]
			So(slow[core.FeatureActualEval], ShouldAlmostEqual, -400, 1e-6)
			So(slow[core.FeatureCPLoss], ShouldAlmostEqual, 602.5, 1e-6)
			So(slow[core.FeatureMaterial], ShouldAlmostEqual, -3, 1e-6)
		})

		Convey("Then cluster results partition the records", func() {
			total := 0
			for k, c := range res.Clusters {
				So(c.ID, ShouldEqual, k)
				total += len(c.Members)
			}
			So(total, ShouldEqual, len(records))
		})
	})

	Convey("Given the same input twice", t, func() {
		a, err := Analyser{Clusters: 3}.Fit(twoGroups())
		So(err, ShouldBeNil)
		b, err := Analyser{Clusters: 3}.Fit(twoGroups())
		So(err, ShouldBeNil)

		Convey("Then the fixed seed makes the result repeatable", func() {
			So(a.Labels, ShouldResemble, b.Labels)
			So(a.Inertia, ShouldEqual, b.Inertia)
		})
	})

	Convey("Given identical records", t, func() {
		var records []core.MistakeRecord
		for i := 0; i < 4; i++ {
			records = append(records, record("same", core.Features{1, 1, 1, 1, 1, 1}))
		}
		res, err := Analyser{Clusters: 3}.Fit(records)

		Convey("Then zero variance is tolerated and no cluster is left empty", func() {
			So(err, ShouldBeNil)
			for _, c := range res.Clusters {
				So(len(c.Members), ShouldBeGreaterThan, 0)
				So(math.IsNaN(c.Centroid[0]), ShouldBeFalse)
				So(c.Centroid[0], ShouldEqual, 1)
			}
		})
	})
}

func TestExtract(t *testing.T) {
	Convey("Given the starting position", t, func() {
		f, err := Extract(startFEN, core.Spent(3), -50, -20)

		Convey("Then the board features are balanced and a negative loss floors at zero", func() {
			So(err, ShouldBeNil)
			So(f, ShouldResemble, core.Features{0, 0, 20, 3, -50, 0})
		})
	})

	Convey("Given unknown time", t, func() {
		f, err := Extract(startFEN, core.TimeSpent{}, 0, 120)

		Convey("Then time counts as zero", func() {
			So(err, ShouldBeNil)
			So(f[core.FeatureTimeUsed], ShouldEqual, 0)
			So(f[core.FeatureCPLoss], ShouldEqual, 120)
		})
	})

	Convey("Given a broken FEN", t, func() {
		_, err := ExtractRecord(core.MistakeRecord{GameID: "g", FEN: "not a fen"})

		Convey("Then extraction fails as a data problem", func() {
			So(core.IsKind(err, core.KindDataIntegrity), ShouldBeTrue)
		})
	})
}
