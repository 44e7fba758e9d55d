package icon

import (
	"testing"

	"github.com/kitsune-cli/kitsune/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func TestGet(t *testing.T) {
	Convey("Given the playback icons", t, func() {
		defer viper.Set(key.IconsVariant, "plain")

		Convey("Every icon renders in every variant", func() {
			for _, variant := range AvailableVariants() {
				viper.Set(key.IconsVariant, variant)
				for i := Play; i <= Subtitles; i++ {
					So(Get(i), ShouldNotBeEmpty)
				}
			}
		})

		Convey("Plain icons are ASCII", func() {
			viper.Set(key.IconsVariant, "plain")
			So(Get(Skip), ShouldEqual, ">>")
			So(Get(Subtitles), ShouldEqual, "cc")
		})

		Convey("An unknown variant falls back to plain", func() {
			viper.Set(key.IconsVariant, "kaomoji")
			So(Get(Play), ShouldEqual, ">")
		})

		Convey("An unregistered icon renders nothing", func() {
			So(Get(Icon(99)), ShouldBeEmpty)
		})
	})
}
