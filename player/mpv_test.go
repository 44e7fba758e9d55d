package player

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kitsune-cli/kitsune/skip"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeMPV speaks just enough JSON-IPC to drive the surface in tests.
type fakeMPV struct {
	listener net.Listener
	path     string

	mu       sync.Mutex
	commands [][]any
	events   []net.Conn
}

func newFakeMPV(t *testing.T) *fakeMPV {
	dir, err := os.MkdirTemp("", "mpv")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	path := filepath.Join(dir, "ipc.sock")
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeMPV{listener: l, path: path}
	go f.serve()
	return f
}

func (f *fakeMPV) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeMPV) handle(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd ipcCommand
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, cmd.Command)
		f.mu.Unlock()

		reply := map[string]any{"error": "success", "data": nil}
		switch cmd.Command[0] {
		case "observe_property":
			f.mu.Lock()
			if len(f.events) == 0 || f.events[len(f.events)-1] != conn {
				f.events = append(f.events, conn)
			}
			f.mu.Unlock()
		case "get_property":
			switch cmd.Command[1] {
			case "time-pos":
				reply["data"] = 42.5
			case "duration":
				reply["data"] = 1400.0
			default:
				reply["error"] = "property unavailable"
			}
		}
		// an unrelated broadcast ahead of the reply
		_, _ = conn.Write([]byte(`{"event":"audio-reconfig"}` + "\n"))
		payload, _ := json.Marshal(reply)
		_, _ = conn.Write(append(payload, '\n'))
	}
}

func (f *fakeMPV) push(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.events {
		_, _ = c.Write([]byte(line + "\n"))
	}
}

func (f *fakeMPV) observing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events) > 0
}

func (f *fakeMPV) sent(name string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]any
	for _, c := range f.commands {
		if c[0] == name {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeMPV) close() {
	_ = f.listener.Close()
	_ = os.RemoveAll(filepath.Dir(f.path))
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func next(ch <-chan Event) (Event, bool) {
	select {
	case e, ok := <-ch:
		return e, ok
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}

func TestMPV(t *testing.T) {
	Convey("Given an mpv surface on a fake IPC socket", t, func() {
		server := newFakeMPV(t)
		m, err := Dial(server.path)
		So(err, ShouldBeNil)
		So(waitFor(server.observing), ShouldBeTrue)

		Reset(func() {
			_ = m.Close()
			server.close()
		})

		Convey("Properties are read over IPC", func() {
			pos, err := m.Position()
			So(err, ShouldBeNil)
			So(pos, ShouldEqual, 42.5)

			dur, err := m.Duration()
			So(err, ShouldBeNil)
			So(dur, ShouldEqual, 1400)
		})

		Convey("mpv errors are not retried", func() {
			_, err := m.getFloatProperty("bogus")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "property unavailable")
			So(len(server.sent("get_property")), ShouldEqual, 1)
		})

		Convey("Load sets the title and headers before loading", func() {
			err := m.Load(context.Background(), "http://127.0.0.1:1/master.m3u8", LoadOptions{
				Title:   "Episode\n1",
				Headers: map[string]string{"Referer": "https://example.com/", "Origin": "https://example.com"},
				Start:   42.5,
			})
			So(err, ShouldBeNil)

			sets := server.sent("set_property")
			So(len(sets), ShouldEqual, 3)
			So(sets[0][1], ShouldEqual, "force-media-title")
			So(sets[0][2], ShouldEqual, "Episode 1")
			So(sets[1][1], ShouldEqual, "http-header-fields")
			So(sets[2][1], ShouldEqual, "start")
			So(sets[2][2], ShouldEqual, "42.500")

			loads := server.sent("loadfile")
			So(len(loads), ShouldEqual, 1)
			So(loads[0][1], ShouldEqual, "http://127.0.0.1:1/master.m3u8")
			So(loads[0][2], ShouldEqual, "replace")
		})

		Convey("Load applies buffer limits as demuxer cache options", func() {
			err := m.Load(context.Background(), "http://127.0.0.1:1/master.m3u8", LoadOptions{
				Buffer: Buffer{
					Ahead:    10 * time.Second,
					MaxAhead: 30 * time.Second,
					MaxBytes: 20 * 1000 * 1000,
					Behind:   15 * time.Second,
				},
			})
			So(err, ShouldBeNil)

			values := map[any]any{}
			for _, c := range server.sent("set_property") {
				values[c[1]] = c[2]
			}
			So(values["demuxer-readahead-secs"], ShouldEqual, 10.0)
			So(values["cache-secs"], ShouldEqual, 30.0)
			So(values["demuxer-max-bytes"], ShouldEqual, "20000000")
			So(values["demuxer-max-back-bytes"], ShouldEqual, "10000000")
		})

		Convey("Load leaves mpv's cache defaults alone without limits", func() {
			So(m.Load(context.Background(), "http://127.0.0.1:1/master.m3u8", LoadOptions{}), ShouldBeNil)
			for _, c := range server.sent("set_property") {
				So(c[1], ShouldNotBeIn, "demuxer-readahead-secs", "cache-secs", "demuxer-max-bytes", "demuxer-max-back-bytes")
			}
		})

		Convey("Load refuses flag-like targets", func() {
			So(m.Load(context.Background(), "--script=evil.lua", LoadOptions{}), ShouldNotBeNil)
			So(len(server.sent("loadfile")), ShouldEqual, 0)
		})

		Convey("Seek, pause and reset map to mpv commands", func() {
			So(m.Seek(100), ShouldBeNil)
			So(m.Pause(), ShouldBeNil)
			So(m.Reset(), ShouldBeNil)

			seeks := server.sent("seek")
			So(len(seeks), ShouldEqual, 1)
			So(seeks[0][1], ShouldEqual, 100.0)
			So(seeks[0][2], ShouldEqual, "absolute")
			So(len(server.sent("stop")), ShouldEqual, 1)
		})

		Convey("Chapters and subtitles are forwarded", func() {
			So(m.SetChapters([]skip.Chapter{{Title: "Part A", Time: 0}, {Title: "Opening", Time: 60}}), ShouldBeNil)
			So(m.AddSubtitle(Subtitle{Lang: "English", URL: "http://127.0.0.1:1/sub.vtt", Default: true}), ShouldBeNil)

			subs := server.sent("sub-add")
			So(len(subs), ShouldEqual, 1)
			So(subs[0][2], ShouldEqual, "select")
			So(subs[0][4], ShouldEqual, "English")
		})

		Convey("Events reach subscribers", func() {
			ch, unsubscribe := m.Subscribe()

			server.push(`{"event":"property-change","id":2,"name":"duration","data":1400}`)
			server.push(`{"event":"property-change","id":1,"name":"time-pos","data":12.5}`)

			e, ok := next(ch)
			So(ok, ShouldBeTrue)
			So(e.Kind, ShouldEqual, EventTimeUpdate)
			So(e.Position, ShouldEqual, 12.5)
			So(e.Duration, ShouldEqual, 1400)

			server.push(`{"event":"property-change","id":3,"name":"pause","data":true}`)
			e, _ = next(ch)
			So(e.Kind, ShouldEqual, EventPaused)

			server.push(`{"event":"playback-restart"}`)
			e, _ = next(ch)
			So(e.Kind, ShouldEqual, EventSeeked)

			server.push(`{"event":"end-file","reason":"error","file_error":"loading failed"}`)
			e, _ = next(ch)
			So(e.Kind, ShouldEqual, EventError)
			So(e.Detail, ShouldEqual, "loading failed")

			Convey("Unsubscribing closes the channel", func() {
				unsubscribe()
				unsubscribe()
				for range ch {
				}
				_, ok := <-ch
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestSanitize(t *testing.T) {
	Convey("sanitizeMediaTarget", t, func() {
		for _, bad := range []string{"", "  ", "-flag", "file:///etc/passwd", "http://a\nb", "ftp://host/x"} {
			_, err := sanitizeMediaTarget(bad)
			So(err, ShouldNotBeNil)
		}

		got, err := sanitizeMediaTarget(" https://cdn.example.com/master.m3u8 ")
		So(err, ShouldBeNil)
		So(got, ShouldEqual, "https://cdn.example.com/master.m3u8")

		got, err = sanitizeMediaTarget("./videos/../ep1.mkv")
		So(err, ShouldBeNil)
		So(got, ShouldEqual, "ep1.mkv")
	})

	Convey("headerFields", t, func() {
		fields := headerFields(map[string]string{"Referer": "https://a.b/", "Origin": "https://a.b", "X-Empty": ""})
		So(fields, ShouldResemble, []string{"Origin: https://a.b", "Referer: https://a.b/"})
	})

	Convey("sanitizeTitle", t, func() {
		So(sanitizeTitle(" a\tb\x00\n"), ShouldEqual, "a b")
	})
}
