package platform

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chessmate/internal/core"

	. "github.com/smartystreets/goconvey/convey"
)

// lichessGame builds one export record; players are omitted when white and black are empty.
func lichessGame(id, white, black string, created time.Time, extra map[string]any) map[string]any {
	g := map[string]any{
		"id":        id,
		"variant":   "standard",
		"speed":     "blitz",
		"status":    "resign",
		"winner":    "white",
		"createdAt": created.UnixMilli(),
		"moves":     "e4 e5 Nf3 Nc6",
		"opening":   map[string]any{"eco": "C44", "name": "King's Knight Opening: Normal Variation"},
		"clock":     map[string]any{"initial": 180, "increment": 2},
	}
	if white != "" || black != "" {
		g["players"] = map[string]any{
			"white": map[string]any{"user": map[string]any{"name": white}},
			"black": map[string]any{"user": map[string]any{"name": black}},
		}
	}
	for k, v := range extra {
		g[k] = v
	}
	return g
}

func ndjson(records ...any) string {
	var b strings.Builder
	for _, r := range records {
		if s, ok := r.(string); ok {
			b.WriteString(s)
		} else {
			line, _ := json.Marshal(r)
			b.Write(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func writeExport(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "games.ndjson")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSelector(t *testing.T) {
	Convey("Given selectors", t, func() {
		jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

		Convey("Then count and range are accepted on their own", func() {
			So(ByCount(10).Validate(), ShouldBeNil)
			So(ByRange(jan, feb).Validate(), ShouldBeNil)
			So(ByRange(jan, time.Time{}).Validate(), ShouldBeNil)
			So(Selector{}.Validate(), ShouldBeNil)
		})

		Convey("Then combining them is rejected", func() {
			err := Selector{Count: 5, Since: jan}.Validate()
			So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
		})

		Convey("Then a negative count or an inverted range is rejected", func() {
			So(core.IsKind(ByCount(-1).Validate(), core.KindInvalidArgument), ShouldBeTrue)
			So(core.IsKind(ByRange(feb, jan).Validate(), core.KindInvalidArgument), ShouldBeTrue)
		})

		Convey("Then range membership is inclusive", func() {
			sel := ByRange(jan, feb)
			So(sel.Contains(jan), ShouldBeTrue)
			So(sel.Contains(feb), ShouldBeTrue)
			So(sel.Contains(feb.Add(time.Second)), ShouldBeFalse)
			So(sel.Full(100), ShouldBeFalse)
			So(ByCount(2).Full(2), ShouldBeTrue)
		})
	})
}

func TestClocks(t *testing.T) {
	Convey("Given remaining-clock samples", t, func() {
		samples := []clockSample{
			{seconds: 180, ok: true},
			{seconds: 180, ok: true},
			{seconds: 178, ok: true},
			{seconds: 175, ok: true},
			{ok: false},
			{seconds: 176, ok: true},
			{seconds: 175, ok: true},
		}
		spent := timeSpent(samples, 2)

		Convey("Then each ply is the mover's clock drop plus the increment", func() {
			So(spent[0].Valid, ShouldBeFalse)
			So(spent[1].Valid, ShouldBeFalse)
			So(spent[2], ShouldResemble, core.Spent(4))
			So(spent[3], ShouldResemble, core.Spent(7))
			So(spent[4].Valid, ShouldBeFalse)
			So(spent[5], ShouldResemble, core.Spent(1))
		})

		Convey("Then a missing sample only blanks its own ply", func() {
			So(spent[6], ShouldResemble, core.Spent(5))

			gap := timeSpent([]clockSample{
				{seconds: 60, ok: true},
				{seconds: 60, ok: true},
				{ok: false},
				{seconds: 58, ok: true},
				{seconds: 50, ok: true},
				{seconds: 57, ok: true},
			}, 0)
			So(gap[2].Valid, ShouldBeFalse)
			So(gap[3], ShouldResemble, core.Spent(2))
			So(gap[4], ShouldResemble, core.Spent(10))
			So(gap[5], ShouldResemble, core.Spent(1))
		})

		Convey("Then a clock that rose by more than the increment counts as zero", func() {
			s := timeSpent([]clockSample{{seconds: 10, ok: true}, {seconds: 10, ok: true}, {seconds: 40, ok: true}}, 0)
			So(s[2], ShouldResemble, core.Spent(0))
		})
	})

	Convey("Given clock annotations", t, func() {
		v, ok := parseClock("0:02:59.9")
		So(ok, ShouldBeTrue)
		So(v, ShouldAlmostEqual, 179.9, 1e-9)

		v, ok = parseClock("1:05")
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 65)

		_, ok = parseClock("soon")
		So(ok, ShouldBeFalse)

		So(parseIncrement("180+2"), ShouldEqual, 2)
		So(parseIncrement("600"), ShouldEqual, 0)
		So(parseIncrement("1/86400"), ShouldEqual, 0)
	})
}

func TestOfflineAdapter(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given an export with three games for X", t, func() {
		path := writeExport(t, ndjson(
			lichessGame("g1", "X", "Y", base, nil),
			lichessGame("g2", "Y", "x", base.Add(time.Hour), nil),
			lichessGame("g3", "X", "Z", base.Add(2*time.Hour), nil),
		))
		adapter, err := NewOffline(Settings{Name: "offline", Path: path, Enabled: true}, Deps{})
		So(err, ShouldBeNil)

		Convey("When two games are requested", func() {
			player, err := adapter.Fetch(t.Context(), "X", ByCount(2))

			Convey("Then exactly the first two come back in file order", func() {
				So(err, ShouldBeNil)
				So(player.Len(), ShouldEqual, 2)
				games := player.Games()
				So(games[0].ID(), ShouldEqual, "g1")
				So(games[1].ID(), ShouldEqual, "g2")
			})

			Convey("Then the player's color is matched without regard to case", func() {
				So(player.Games()[0].PlayerColor(), ShouldEqual, core.ColorWhite)
				So(player.Games()[1].PlayerColor(), ShouldEqual, core.ColorBlack)
			})
		})

		Convey("When a time range is requested", func() {
			player, err := adapter.Fetch(t.Context(), "X", ByRange(base.Add(30*time.Minute), base.Add(3*time.Hour)))

			Convey("Then only games started inside it are kept", func() {
				So(err, ShouldBeNil)
				So(player.Len(), ShouldEqual, 2)
				So(player.Games()[0].ID(), ShouldEqual, "g2")
			})
		})

		Convey("When both a count and a range are given", func() {
			_, err := adapter.Fetch(t.Context(), "X", Selector{Count: 1, Until: base})
			So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
		})
	})

	Convey("Given a hand-written record without a variant", t, func() {
		rec := lichessGame("plain", "X", "Y", base, nil)
		delete(rec, "variant")
		path := writeExport(t, ndjson(rec))
		adapter, _ := NewOffline(Settings{Name: "offline", Path: path, Enabled: true}, Deps{})
		player, err := adapter.Fetch(t.Context(), "X", Selector{})

		Convey("Then it is taken as standard chess", func() {
			So(err, ShouldBeNil)
			So(player.Len(), ShouldEqual, 1)
		})
	})

	Convey("Given an export with a record too long to buffer", t, func() {
		huge := `{"id": "huge", "moves": "` + strings.Repeat("e4 ", maxRecordBytes/3+1) + `"}`
		path := writeExport(t, ndjson(
			lichessGame("g1", "X", "Y", base, nil),
			huge,
			lichessGame("g2", "X", "Y", base.Add(time.Hour), nil),
		))
		adapter, _ := NewOffline(Settings{Name: "offline", Path: path, Enabled: true}, Deps{})
		player, err := adapter.Fetch(t.Context(), "X", Selector{})

		Convey("Then the long record is skipped and the games around it survive", func() {
			So(err, ShouldBeNil)
			So(player.Len(), ShouldEqual, 2)
			So(player.Games()[0].ID(), ShouldEqual, "g1")
			So(player.Games()[1].ID(), ShouldEqual, "g2")
		})
	})

	Convey("Given an export with records that cannot be used", t, func() {
		path := writeExport(t, ndjson(
			`{"id": "broken",`,
			lichessGame("g960", "X", "Y", base, map[string]any{"variant": "chess960"}),
			lichessGame("other", "A", "B", base, nil),
			lichessGame("badspeed", "X", "Y", base, map[string]any{"speed": "hyper"}),
			lichessGame("anon", "", "", base, nil),
			lichessGame("good", "X", "Y", base, nil),
		))
		adapter, _ := NewOffline(Settings{Name: "offline", Path: path, Enabled: true}, Deps{})
		player, err := adapter.Fetch(t.Context(), "X", Selector{})

		Convey("Then they are skipped and the rest survive", func() {
			So(err, ShouldBeNil)
			So(player.Len(), ShouldEqual, 2)
			So(player.Games()[0].ID(), ShouldEqual, "anon")
			So(player.Games()[0].PlayerColor(), ShouldEqual, core.ColorUnknown)
			So(player.Games()[1].ID(), ShouldEqual, "good")
		})
	})

	Convey("Given a record with analysis and clocks", t, func() {
		path := writeExport(t, ndjson(lichessGame("g1", "X", "Y", base, map[string]any{
			"analysis": []any{
				map[string]any{"eval": 20},
				map[string]any{"eval": 31},
				map[string]any{"mate": -3},
				map[string]any{},
				map[string]any{"eval": 900},
			},
			"clocks": []int{18000, 18000, 17800, 17500},
			"winner": nil,
			"status": "draw",
		})))
		adapter, _ := NewOffline(Settings{Name: "offline", Path: path, Enabled: true}, Deps{})
		player, err := adapter.Fetch(t.Context(), "X", Selector{})
		So(err, ShouldBeNil)
		game := player.Games()[0]

		Convey("Then evaluations are truncated to the move count", func() {
			So(game.Evaluations(), ShouldResemble, []core.Score{core.CP(20), core.CP(31), core.Mate(-3), {}})
		})

		Convey("Then clocks become time spent per ply", func() {
			spent := game.TimeSpent()
			So(len(spent), ShouldEqual, 4)
			So(spent[0].Valid, ShouldBeFalse)
			So(spent[2].Seconds, ShouldAlmostEqual, 4, 1e-9)
			So(spent[3].Seconds, ShouldAlmostEqual, 7, 1e-9)
		})

		Convey("Then a finished game without a winner is a draw", func() {
			So(game.Winner(), ShouldEqual, core.WinnerDraw)
			So(game.Opening(), ShouldEqual, "King's Knight Opening: Normal Variation")
			So(game.Speed(), ShouldEqual, core.SpeedBlitz)
			So(game.StartedAt().Equal(base), ShouldBeTrue)
		})
	})

	Convey("Given a missing export file", t, func() {
		adapter, _ := NewOffline(Settings{Name: "offline", Path: filepath.Join(t.TempDir(), "nope.ndjson")}, Deps{})
		_, err := adapter.Fetch(t.Context(), "X", Selector{})
		So(core.IsKind(err, core.KindNotFound), ShouldBeTrue)
	})

	Convey("Given no configured path", t, func() {
		_, err := NewOffline(Settings{Name: "offline"}, Deps{})
		So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a configuration with one disabled platform", t, func() {
		path := writeExport(t, "")
		reg, err := NewRegistry([]Settings{
			{Name: "lichess", Enabled: false},
			{Name: "offline", Path: path, Enabled: true},
		}, Deps{})
		So(err, ShouldBeNil)

		Convey("Then enabled platforms resolve", func() {
			a, err := reg.Get("offline")
			So(err, ShouldBeNil)
			So(a.Name(), ShouldEqual, "offline")
		})

		Convey("Then disabled and unknown ones are not found", func() {
			_, err := reg.Get("lichess")
			So(core.IsKind(err, core.KindNotFound), ShouldBeTrue)
			_, err = reg.Get("fics")
			So(core.IsKind(err, core.KindNotFound), ShouldBeTrue)
		})

		Convey("Then every configured platform is listed", func() {
			So(reg.Platforms(), ShouldResemble, []Info{{Name: "lichess"}, {Name: "offline", Enabled: true}})
		})
	})

	Convey("Given an unknown platform name", t, func() {
		_, err := NewRegistry([]Settings{{Name: "fics", Enabled: true}}, Deps{})
		So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
	})

	Convey("Given a platform configured twice", t, func() {
		_, err := NewRegistry([]Settings{{Name: "lichess"}, {Name: "lichess"}}, Deps{})
		So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
	})
}
