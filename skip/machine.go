package skip

// Machine tracks which window has already been actioned so that repeated ticks inside
// the same window entry never reissue a seek or re-show the control.
// It is not safe for concurrent use; the session event loop owns it.
type Machine struct {
	windows Windows
	mode    Mode

	actioned Segment
	shown    Segment
}

// NewMachine returns a machine for the given windows.
func NewMachine(windows Windows, mode Mode) *Machine {
	return &Machine{windows: windows, mode: mode}
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// SetMode switches mode. Leaving manual mode while a control is visible yields HideControl.
func (m *Machine) SetMode(mode Mode) Action {
	if m.mode == mode {
		return Action{Kind: None}
	}
	m.mode = mode
	m.actioned = SegmentNone
	if m.shown != SegmentNone {
		m.shown = SegmentNone
		return Action{Kind: HideControl}
	}
	return Action{Kind: None}
}

// Next evaluates a tick and suppresses actions already taken for the current window entry.
func (m *Machine) Next(position, duration float64) Action {
	action := Evaluate(position, duration, m.windows, m.mode)

	segment := action.Segment
	if segment != m.actioned {
		m.actioned = SegmentNone
	}

	switch action.Kind {
	case AutoSeek:
		if m.actioned == segment {
			return Action{Kind: None}
		}
		m.actioned = segment
		return action
	case ShowControl:
		if m.shown == segment || m.actioned == segment {
			return Action{Kind: None}
		}
		m.shown = segment
		return action
	case HideControl:
		if m.shown == SegmentNone {
			return Action{Kind: None}
		}
		m.shown = SegmentNone
		return action
	}
	return action
}

// Press resolves the target for an explicit skip request at position.
// It returns false when position is not inside a window or the window was already skipped.
func (m *Machine) Press(position, duration float64) (float64, bool) {
	segment, end := Locate(position, duration, m.windows)
	if segment == SegmentNone || m.actioned == segment {
		return 0, false
	}
	m.actioned = segment
	m.shown = SegmentNone
	return Target(end, duration), true
}
