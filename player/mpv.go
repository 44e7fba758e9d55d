package player

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/kitsune-cli/kitsune/where"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
)

// MPV is a Surface backed by an idle mpv process.
// The process outlives sessions; each session loads into it and resets it on teardown.
type MPV struct {
	binary     string
	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	mu         sync.Mutex // serializes IPC writes
	listener   *eventListener
}

// NewMPV returns an unstarted surface using the given mpv executable.
func NewMPV(binary string) *MPV {
	if binary == "" {
		binary = "mpv"
	}
	return &MPV{
		binary:   binary,
		exited:   make(chan struct{}),
		listener: newEventListener(),
	}
}

// Dial attaches to an mpv instance already serving socketPath.
func Dial(socketPath string) (*MPV, error) {
	m := &MPV{
		socketPath: socketPath,
		exited:     make(chan struct{}),
		listener:   newEventListener(),
	}
	if err := m.listener.start(socketPath); err != nil {
		return nil, err
	}
	return m, nil
}

// Start launches mpv in idle mode and waits for its IPC socket.
func (m *MPV) Start(ctx context.Context) error {
	if m.socketPath == "" {
		randomBytes := make([]byte, 4)
		if _, err := rand.Read(randomBytes); err != nil {
			return fmt.Errorf("generate socket name: %w", err)
		}
		m.socketPath = filepath.Join(where.Temp(), fmt.Sprintf("mpv-%x.sock", randomBytes))
	}

	// Only the socket and window flags; the user's mpv.conf stays in charge of everything else.
	args := []string{
		"--no-terminal",
		"--really-quiet",
		fmt.Sprintf("--input-ipc-server=%s", m.socketPath),
		"--force-window=yes",
		"--idle=yes",
		"--keep-open=yes",
	}

	m.cmd = exec.Command(m.binary, args...)
	m.cmd.SysProcAttr = ownGroup()
	m.cmd.Stdout = nil
	m.cmd.Stderr = nil
	m.cmd.Stdin = nil

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}

	m.exited = make(chan struct{})
	go func() {
		_ = m.cmd.Wait()
		close(m.exited)
	}()

	if err := m.waitForSocket(ctx); err != nil {
		select {
		case <-m.exited:
		default:
			log.Warnf("killing mpv: socket never became ready")
			_ = kill(m.cmd.Process)
		}
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	return m.listener.start(m.socketPath)
}

func (m *MPV) waitForSocket(ctx context.Context) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.exited:
			return fmt.Errorf("mpv exited before socket was ready")
		case <-time.After(socketWaitDelay):
		}

		conn, err := net.Dial("unix", m.socketPath)
		if err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", m.socketPath, socketWaitRetries)
}

// ID returns the IPC socket identity.
func (m *MPV) ID() string {
	return "mpv:" + filepath.Base(m.socketPath)
}

// Load replaces the current file.
func (m *MPV) Load(ctx context.Context, rawURL string, opts LoadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := sanitizeMediaTarget(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}

	if title := sanitizeTitle(opts.Title); title != "" {
		if err := m.set("force-media-title", title); err != nil {
			return err
		}
	}
	if err := m.set("http-header-fields", headerFields(opts.Headers)); err != nil {
		return err
	}

	for _, prop := range bufferProperties(opts.Buffer) {
		if err := m.set(prop.name, prop.value); err != nil {
			return err
		}
	}

	start := "none"
	if opts.Start > 0 {
		start = strconv.FormatFloat(opts.Start, 'f', 3, 64)
	}
	if err := m.set("start", start); err != nil {
		return err
	}

	m.listener.resetPosition()
	_, err = m.sendCommand("loadfile", target, "replace")
	return err
}

func (m *MPV) Pause() error {
	return m.set("pause", true)
}

func (m *MPV) Resume() error {
	return m.set("pause", false)
}

func (m *MPV) Seek(seconds float64) error {
	_, err := m.sendCommand("seek", seconds, "absolute")
	return err
}

func (m *MPV) Position() (float64, error) {
	return m.getFloatProperty("time-pos")
}

func (m *MPV) Duration() (float64, error) {
	return m.getFloatProperty("duration")
}

// Reset stops playback and unloads the file; the idle process stays up.
func (m *MPV) Reset() error {
	_, err := m.sendCommand("stop")
	m.listener.resetPosition()
	return err
}

func (m *MPV) AddSubtitle(sub Subtitle) error {
	target, err := sanitizeMediaTarget(sub.URL)
	if err != nil {
		return fmt.Errorf("invalid subtitle target: %w", err)
	}
	flag := "auto"
	if sub.Default {
		flag = "select"
	}
	_, err = m.sendCommand("sub-add", target, flag, sanitizeTitle(sub.Lang), sanitizeTitle(sub.Lang))
	return err
}

// SetChapters publishes timeline markers so the mpv OSC shows the skip windows.
func (m *MPV) SetChapters(chapters []skip.Chapter) error {
	list := make([]map[string]any, 0, len(chapters))
	for _, c := range chapters {
		list = append(list, map[string]any{"title": c.Title, "time": c.Time})
	}
	return m.set("chapter-list", list)
}

func (m *MPV) Subscribe() (<-chan Event, func()) {
	return m.listener.subscribe()
}

// Wait returns a channel closed when the mpv process exits.
func (m *MPV) Wait() <-chan struct{} {
	return m.exited
}

// Close quits a spawned mpv, killing it if it does not exit in time.
// A dialed instance is only disconnected.
func (m *MPV) Close() error {
	if m.socketPath == "" {
		return nil
	}

	if m.cmd != nil {
		_, _ = m.sendCommand("quit")
		select {
		case <-m.exited:
		case <-time.After(3 * time.Second):
			_ = kill(m.cmd.Process)
		}
		_ = os.Remove(m.socketPath)
	}

	m.listener.stop()
	return nil
}

func (m *MPV) set(property string, value any) error {
	_, err := m.sendCommand("set_property", property, value)
	return err
}

func (m *MPV) getFloatProperty(name string) (float64, error) {
	data, err := m.sendCommand("get_property", name)
	if err != nil {
		return 0, err
	}

	if data == nil {
		return 0, fmt.Errorf("property %s: nil response", name)
	}

	val, ok := data.(float64)
	if !ok {
		return 0, fmt.Errorf("property %s: expected float64, got %T", name, data)
	}

	return val, nil
}

// headerFields renders headers in the form mpv expects, sorted for stable output.
func headerFields(headers map[string]string) []string {
	fields := make([]string, 0, len(headers))
	for k, v := range headers {
		if k == "" || v == "" {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s: %s", k, strings.ReplaceAll(v, ",", "%2C")))
	}
	sort.Strings(fields)
	return fields
}

type property struct {
	name  string
	value any
}

// bufferProperties maps buffer limits onto mpv's demuxer cache options.
// mpv bounds the back buffer in bytes, so Behind is converted at the rate MaxBytes per MaxAhead.
func bufferProperties(b Buffer) []property {
	var props []property
	if b.Ahead > 0 {
		props = append(props, property{"demuxer-readahead-secs", b.Ahead.Seconds()})
	}
	if b.MaxAhead > 0 {
		props = append(props, property{"cache-secs", b.MaxAhead.Seconds()})
	}
	if b.MaxBytes > 0 {
		props = append(props, property{"demuxer-max-bytes", strconv.FormatInt(b.MaxBytes, 10)})
		if b.Behind > 0 && b.MaxAhead > 0 {
			back := int64(float64(b.MaxBytes) * b.Behind.Seconds() / b.MaxAhead.Seconds())
			props = append(props, property{"demuxer-max-back-bytes", strconv.FormatInt(back, 10)})
		}
	}
	return props
}

// sanitizeMediaTarget rejects anything mpv could read as a flag or an unexpected protocol.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", fmt.Errorf("empty URL")
	}

	if strings.ContainsAny(l, "\x00\n\r") {
		return "", fmt.Errorf("invalid control characters in URL")
	}

	if strings.HasPrefix(l, "-") {
		return "", fmt.Errorf("url must not start with '-' (looks like a flag)")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	return filepath.Clean(l), nil
}

func sanitizeTitle(title string) string {
	t := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title)
	return strings.TrimSpace(t)
}
