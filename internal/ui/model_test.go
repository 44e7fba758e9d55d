package ui

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNotifier(t *testing.T) {
	Convey("Given a notifier", t, func() {
		n := &Notifier{}

		Convey("When a notice arrives", func() {
			cmd := n.Update(Notice("Stream error. Try another server."))

			Convey("Then it is shown and scheduled to clear", func() {
				So(cmd, ShouldNotBeNil)
				So(n.Current(), ShouldEqual, "Stream error. Try another server.")
			})

			Convey("Then an expiry for it clears it", func() {
				n.Update(clearNoticeMsg{seq: 1})
				So(n.Current(), ShouldBeEmpty)
			})

			Convey("Then a stale expiry keeps a newer notice", func() {
				n.Update(Notice("second"))
				n.Update(clearNoticeMsg{seq: 1})
				So(n.Current(), ShouldEqual, "second")
			})
		})

		Convey("When the width is narrow", func() {
			n.SetWidth(10)
			n.Update(Notice("one two three four"))

			Convey("Then the notice is wrapped", func() {
				view := n.View(func(s string) string { return s })
				So(strings.Count(view, "\n"), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When there is no notice", func() {
			Convey("Then nothing renders", func() {
				So(n.View(strings.ToUpper), ShouldBeEmpty)
			})
		})
	})
}
