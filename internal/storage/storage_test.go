package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chessmate/internal/core"
	"chessmate/internal/logger"
	"chessmate/internal/processor"

	. "github.com/smartystreets/goconvey/convey"
)

func openStore(t *testing.T) (*Store, string) {
	path := filepath.Join(t.TempDir(), "archive.db")
	s, err := NewStore(path, true, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.InitDB(); err != nil {
		t.Fatal(err)
	}
	return s, path
}

func report(id, username string, started time.Time) *processor.Report {
	cluster := 1
	loss := 420
	return &processor.Report{
		ID:        id,
		Username:  username,
		Platform:  "lichess",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Games:     2,
		Mistakes: []core.MistakeRecord{
			{GameID: "g1", Ply: 5, MoveSAN: "Nf6", Move: "g8f6", BestMove: "g7g6", BestEval: -40, ActualEval: -460, CPLoss: loss, Label: core.LabelBlunder, TimeUsed: core.Spent(4.5)},
			{GameID: "g2", Ply: 2, MoveSAN: "g4", Move: "g2g4", BestEval: 0, ActualEval: -80, CPLoss: 80, Label: core.LabelInaccuracy},
		},
		Rows: []core.Row{
			{GameID: "g1", MoveNumber: 6, Move: "Nf6", CPLoss: &loss, Cluster: &cluster},
		},
		Skipped: []processor.Skipped{{GameID: "g3", Reason: "replay"}},
	}
}

func TestStore(t *testing.T) {
	Convey("Given an initialised archive", t, func() {
		s, path := openStore(t)
		defer s.Close()

		started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		s.RecordAnalysis(report("a1", "tester", started))
		s.RecordAnalysis(report("a2", "tester", started.Add(time.Hour)))
		s.RecordAnalysis(report("a3", "someone", started))
		So(s.Flush(context.Background()), ShouldBeNil)

		Convey("When analyses are queried by user", func() {
			got, err := s.QueryAnalyses("TESTER", "*")

			Convey("Then matches come back newest first with their counts", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].AnalysisID, ShouldEqual, "a2")
				So(got[1].AnalysisID, ShouldEqual, "a1")
				So(got[0].Games, ShouldEqual, 2)
				So(got[0].Mistakes, ShouldEqual, 2)
				So(got[0].Skipped, ShouldEqual, 1)
				So(got[0].DurationMS, ShouldEqual, 1500)
				So(got[1].StartedAt.Equal(started), ShouldBeTrue)
			})
		})

		Convey("When the moves of one analysis are read", func() {
			got, err := s.QueryMistakes("a1")

			Convey("Then each carries its label and cluster", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].GameID, ShouldEqual, "g1")
				So(got[0].Label, ShouldEqual, string(core.LabelBlunder))
				So(got[0].Cluster, ShouldEqual, 1)
				So(*got[0].TimeSpent, ShouldEqual, 4.5)
				So(got[1].Cluster, ShouldEqual, processor.Unclustered)
				So(got[1].TimeSpent, ShouldBeNil)
			})
		})

		Convey("When an unknown analysis is read", func() {
			_, err := s.QueryMistakes("nope")
			So(core.IsKind(err, core.KindNotFound), ShouldBeTrue)
		})

		Convey("When an analysis is deleted", func() {
			So(s.DeleteAnalysis("a1"), ShouldBeNil)

			Convey("Then its moves go with it", func() {
				_, err := s.QueryMistakes("a1")
				So(core.IsKind(err, core.KindNotFound), ShouldBeTrue)
				So(core.IsKind(s.DeleteAnalysis("a1"), core.KindNotFound), ShouldBeTrue)
			})
		})

		Convey("When the same analysis is written twice", func() {
			s.RecordAnalysis(report("a1", "tester", started))
			err := s.Flush(context.Background())

			Convey("Then the store degrades and drops later writes", func() {
				So(err, ShouldNotBeNil)
				So(s.IsHealthy(), ShouldBeFalse)
			})
		})

		Convey("When the database is deleted", func() {
			So(s.DeleteDB(), ShouldBeNil)

			Convey("Then the file is gone", func() {
				_, err := os.Stat(path)
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})
	})
}
