package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chessmate/internal/core"

	. "github.com/smartystreets/goconvey/convey"
)

func writeYAML(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "chessmate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given no file and no environment", t, func() {
		t.Setenv(EnvFile, "")
		cfg, err := Load("")

		Convey("Then the defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Server.Addr, ShouldEqual, ":8080")
			So(cfg.Engine.Path, ShouldEqual, "stockfish")
			So(cfg.Analysis.Threshold, ShouldEqual, 100)
			So(cfg.Analysis.Clusters, ShouldEqual, 5)
			So(cfg.Analysis.Depth, ShouldEqual, 18)
			So(cfg.Platforms, ShouldHaveLength, 3)
		})
	})

	Convey("Given a YAML file", t, func() {
		path := writeYAML(t, `
log:
  level: debug
engine:
  path: /usr/games/stockfish
  workers: 2
  timeout: 10s
analysis:
  depth: 12
  clusters: 3
platforms:
  - name: offline
    enabled: true
    path: /data/games.ndjson
`)

		Convey("When it is loaded without overrides", func() {
			cfg, err := Load(path)
			So(err, ShouldBeNil)

			Convey("Then file values replace defaults and untouched keys keep theirs", func() {
				So(cfg.Log.Level, ShouldEqual, "debug")
				So(cfg.Engine.Path, ShouldEqual, "/usr/games/stockfish")
				So(cfg.Engine.Workers, ShouldEqual, 2)
				So(cfg.Engine.Timeout, ShouldEqual, 10*time.Second)
				So(cfg.Engine.HashMB, ShouldEqual, 64)
				So(cfg.Analysis.Depth, ShouldEqual, 12)
				So(cfg.Analysis.Threshold, ShouldEqual, 100)
				So(cfg.Platforms, ShouldHaveLength, 1)
				So(cfg.Platforms[0].Path, ShouldEqual, "/data/games.ndjson")
			})
		})
	})

	Convey("Given invalid values", t, func() {
		cases := map[string]string{
			"zero workers":      "engine:\n  workers: 0\n",
			"unknown platform":  "platforms:\n  - name: fics\n    enabled: true\n",
			"repeated platform": "platforms:\n  - name: lichess\n  - name: lichess\n",
			"bad log level":     "log:\n  level: loud\n",
			"storage sans path": "storage:\n  enabled: true\n  path: \"\"\n",
		}
		for name, body := range cases {
			Convey("Then "+name+" is rejected", func() {
				_, err := Load(writeYAML(t, body))
				So(core.IsKind(err, core.KindInvalidArgument), ShouldBeTrue)
			})
		}
	})

	Convey("Given a missing file", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestLoadEnvironment(t *testing.T) {
	Convey("Given a YAML file named by the environment and overriding variables", t, func() {
		path := writeYAML(t, "engine:\n  workers: 2\nanalysis:\n  depth: 12\n")
		t.Setenv(EnvFile, path)
		t.Setenv("CHESSMATE_ENGINE__WORKERS", "6")
		t.Setenv("CHESSMATE_SERVER__RATE_LIMIT", "5")

		cfg, err := Load("")
		So(err, ShouldBeNil)

		Convey("Then the environment wins over the file", func() {
			So(cfg.Engine.Workers, ShouldEqual, 6)
			So(cfg.Server.RateLimit, ShouldEqual, 5)
			So(cfg.Analysis.Depth, ShouldEqual, 12)
		})
	})
}
