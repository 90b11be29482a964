package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given level names", t, func() {
		lvl, err := ParseLevel("DEBUG")
		So(err, ShouldBeNil)
		So(lvl, ShouldEqual, slog.LevelDebug)

		lvl, err = ParseLevel("")
		So(err, ShouldBeNil)
		So(lvl, ShouldEqual, slog.LevelInfo)

		_, err = ParseLevel("verbose")
		So(err, ShouldNotBeNil)
	})

	Convey("Given a JSON logger at warn level", t, func() {
		var buf bytes.Buffer
		log, err := New(Options{Level: "warn", Format: "json", Output: &buf})
		So(err, ShouldBeNil)

		Component(log, "engine").Info("hidden")
		Component(log, "engine").Warn("engine restarted", "worker", 2)

		Convey("Then only records at or above the level are written, with the component", func() {
			var rec map[string]any
			So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
			So(rec["msg"], ShouldEqual, "engine restarted")
			So(rec["component"], ShouldEqual, "engine")
			So(rec["worker"], ShouldEqual, float64(2))
		})
	})

	Convey("Given an unknown format", t, func() {
		_, err := New(Options{Format: "xml"})
		So(err, ShouldNotBeNil)
	})
}
