package player

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/kitsune-cli/kitsune/log"
)

// observed lists the properties mpv reports changes for, by observer id.
var observed = []struct {
	id   int
	name string
}{
	{1, "time-pos"},
	{2, "duration"},
	{3, "pause"},
	{4, "eof-reached"},
}

type mpvEvent struct {
	Event  string `json:"event"`
	Name   string `json:"name"`
	Data   any    `json:"data"`
	Reason string `json:"reason"`
	Error  string `json:"file_error"`
}

// eventListener reads mpv events off a persistent connection and fans them out to subscribers.
type eventListener struct {
	conn net.Conn
	done chan struct{}

	mu       sync.Mutex
	position float64
	duration float64
	subs     map[int]chan Event
	nextID   int
	closed   bool
}

func newEventListener() *eventListener {
	return &eventListener{
		done: make(chan struct{}),
		subs: make(map[int]chan Event),
	}
}

// start opens the connection and registers the observers on it.
// mpv ties observe_property to the client that issued it.
func (el *eventListener) start(socketPath string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("event listener connect: %w", err)
	}

	for _, prop := range observed {
		payload, err := json.Marshal(ipcCommand{Command: []any{"observe_property", prop.id, prop.name}})
		if err != nil {
			conn.Close()
			return err
		}
		if _, err := conn.Write(append(payload, '\n')); err != nil {
			conn.Close()
			return fmt.Errorf("observe %s: %w", prop.name, err)
		}
	}

	el.conn = conn
	go el.readLoop()

	log.Infof("mpv event listener started on %s", socketPath)
	return nil
}

func (el *eventListener) stop() {
	if el.conn == nil {
		return
	}
	_ = el.conn.Close()
	<-el.done
}

func (el *eventListener) readLoop() {
	defer close(el.done)
	defer el.closeAll()

	scanner := bufio.NewScanner(el.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event mpvEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil || event.Event == "" {
			continue
		}
		el.process(event)
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("event listener read error: %v", err)
	}
}

func (el *eventListener) process(event mpvEvent) {
	el.mu.Lock()
	var out *Event
	switch event.Event {
	case "property-change":
		switch event.Name {
		case "time-pos":
			if pos, ok := event.Data.(float64); ok {
				el.position = pos
				out = &Event{Kind: EventTimeUpdate}
			}
		case "duration":
			if dur, ok := event.Data.(float64); ok {
				el.duration = dur
			}
		case "pause":
			if paused, ok := event.Data.(bool); ok {
				kind := EventResumed
				if paused {
					kind = EventPaused
				}
				out = &Event{Kind: kind}
			}
		case "eof-reached":
			if eof, ok := event.Data.(bool); ok && eof {
				out = &Event{Kind: EventEnded}
			}
		}
	case "file-loaded":
		out = &Event{Kind: EventLoaded}
	case "playback-restart":
		out = &Event{Kind: EventSeeked}
	case "end-file":
		switch event.Reason {
		case "error":
			out = &Event{Kind: EventError, Detail: event.Error}
		case "eof":
			out = &Event{Kind: EventEnded}
		}
	case "shutdown":
		out = &Event{Kind: EventClosed}
	}

	if out != nil {
		out.Position = el.position
		out.Duration = el.duration
		el.broadcastLocked(*out)
	}
	el.mu.Unlock()
}

// broadcastLocked never blocks; a subscriber that falls behind loses events.
func (el *eventListener) broadcastLocked(event Event) {
	for _, ch := range el.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (el *eventListener) subscribe() (<-chan Event, func()) {
	el.mu.Lock()
	defer el.mu.Unlock()

	ch := make(chan Event, 128)
	if el.closed {
		close(ch)
		return ch, func() {}
	}

	id := el.nextID
	el.nextID++
	el.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			el.mu.Lock()
			defer el.mu.Unlock()
			if sub, ok := el.subs[id]; ok {
				delete(el.subs, id)
				close(sub)
			}
		})
	}
}

func (el *eventListener) closeAll() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.closed = true
	for id, ch := range el.subs {
		delete(el.subs, id)
		close(ch)
	}
}

func (el *eventListener) snapshot() (float64, float64) {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.position, el.duration
}

func (el *eventListener) resetPosition() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.position, el.duration = 0, 0
}
