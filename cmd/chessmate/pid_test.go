package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestManagePIDFile(t *testing.T) {
	Convey("Given a PID file path", t, func() {
		path := filepath.Join(t.TempDir(), "chessmate.pid")

		Convey("When it is locked", func() {
			cleanup, err := managePIDFile(path, true)
			So(err, ShouldBeNil)

			Convey("Then it holds our PID", func() {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.TrimSpace(string(data)), ShouldEqual, strconv.Itoa(os.Getpid()))
				cleanup()
			})

			Convey("Then a second locked instance is refused", func() {
				_, err := managePIDFile(path, true)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "another instance is running")
				cleanup()
			})

			Convey("Then cleanup removes the file", func() {
				cleanup()
				_, err := os.Stat(path)
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("When a stale file names a dead process", func() {
			So(os.WriteFile(path, []byte("999999999\n"), 0644), ShouldBeNil)
			cleanup, err := managePIDFile(path, false)

			Convey("Then it is overwritten", func() {
				So(err, ShouldBeNil)
				data, _ := os.ReadFile(path)
				So(string(data), ShouldEqual, fmt.Sprintf("%d\n", os.Getpid()))
				cleanup()
			})
		})

		Convey("When the file names a running process", func() {
			So(os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getppid())), 0644), ShouldBeNil)
			_, err := managePIDFile(path, false)

			Convey("Then it is refused", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "running process")
			})
		})
	})
}
