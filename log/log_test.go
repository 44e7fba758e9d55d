package log

import (
	"path/filepath"
	"testing"

	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/key"
	"github.com/kitsune-cli/kitsune/where"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("Given logging is disabled", t, func() {
		viper.Set(key.LogsWrite, false)
		So(Setup(), ShouldBeNil)

		Convey("Session entries are usable and silent", func() {
			entry := WithSession("abc")
			So(entry, ShouldNotBeNil)
			So(entry.Data["session"], ShouldEqual, "abc")
			So(func() { entry.Warn("ignored") }, ShouldNotPanic)
		})
	})

	Convey("Given logging is enabled", t, func() {
		viper.Set(key.LogsWrite, true)
		viper.Set(key.LogsLevel, "debug")
		defer viper.Set(key.LogsWrite, false)

		So(Setup(), ShouldBeNil)

		Convey("A dated log file is created", func() {
			files, err := filesystem.API().ReadDir(where.Logs())
			So(err, ShouldBeNil)
			So(len(files), ShouldBeGreaterThan, 0)
		})

		Convey("Session entries land in the file with their fields", func() {
			WithSession("s-42").Warn("stream stalled")

			files, err := filesystem.API().ReadDir(where.Logs())
			So(err, ShouldBeNil)
			So(files, ShouldNotBeEmpty)

			data, err := filesystem.API().ReadFile(filepath.Join(where.Logs(), files[0].Name()))
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "stream stalled")
			So(string(data), ShouldContainSubstring, "session=s-42")
		})

		Convey("Entries below the configured level are dropped", func() {
			Trace("too chatty")

			files, _ := filesystem.API().ReadDir(where.Logs())
			data, _ := filesystem.API().ReadFile(filepath.Join(where.Logs(), files[0].Name()))
			So(string(data), ShouldNotContainSubstring, "too chatty")
		})
	})
}
