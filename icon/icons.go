package icon

// Icon identifies a symbol.
type Icon int

const (
	Play Icon = iota
	Pause
	Skip
	Progress
	Success
	Fail
	Warn
	Subtitles
)

// glyphs are indexed by variant.
var icons = map[Icon][3]string{
	Play:      {">", "▶️", ""},
	Pause:     {"||", "⏸️", ""},
	Skip:      {">>", "⏭️", ""},
	Progress:  {"~", "⏳", ""},
	Success:   {"+", "✅", ""},
	Fail:      {"x", "❌", ""},
	Warn:      {"!", "⚠️", ""},
	Subtitles: {"cc", "💬", ""},
}
