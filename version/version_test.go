package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCompare(t *testing.T) {
	Convey("Compare orders semantic versions", t, func() {
		cases := []struct {
			a, b string
			want int
		}{
			{"0.3.0", "0.3.0", 0},
			{"v1.0.0", "0.9.9", 1},
			{"0.3.1", "0.4.0", -1},
			{"1.10.0", "1.9.0", 1},
			{"0.4.0-rc.1", "0.4.0", 0},
			{"0.4", "0.4.0", 0},
			{"v2.0.0+build.7", "1.99.99", 1},
		}
		for _, c := range cases {
			got, err := Compare(c.a, c.b)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, c.want)
		}

		_, err := Compare("latest", "0.1.0")
		So(err, ShouldNotBeNil)

		_, err = Compare("0.1.0", "1")
		So(err, ShouldNotBeNil)
	})
}

func TestFetch(t *testing.T) {
	Convey("Given a releases endpoint", t, func() {
		status := http.StatusOK
		body := `{"tag_name":"v0.4.1"}`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		Reset(srv.Close)

		Convey("Then the tag is returned without its prefix", func() {
			v, err := fetch(context.Background(), srv.Client(), srv.URL)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "0.4.1")
		})

		Convey("Then an empty tag is an error", func() {
			body = `{}`
			_, err := fetch(context.Background(), srv.Client(), srv.URL)
			So(err, ShouldNotBeNil)
		})

		Convey("Then a failed request is an error", func() {
			status = http.StatusForbidden
			_, err := fetch(context.Background(), srv.Client(), srv.URL)
			So(err, ShouldNotBeNil)
		})
	})
}
