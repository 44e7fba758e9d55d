package skip

import "sort"

// Chapter is a named marker on the playback timeline.
type Chapter struct {
	Title string  `json:"title"`
	Time  float64 `json:"time"`
}

// Chapters builds timeline markers around the usable windows, sorted by time.
func Chapters(windows Windows, duration float64) []Chapter {
	chapters := []Chapter{{Title: "Part A", Time: 0}}

	if w, ok := windows.Intro.Get(); ok {
		if end, valid := resolveIntro(w); valid {
			chapters = append(chapters,
				Chapter{Title: "Intro", Time: w.Start},
				Chapter{Title: "Part B", Time: end},
			)
		}
	}

	if w, ok := windows.Outro.Get(); ok {
		if end, valid := ResolveOutroEnd(w, duration); valid {
			chapters = append(chapters, Chapter{Title: "Outro", Time: w.Start})
			if duration <= 0 || end < duration {
				chapters = append(chapters, Chapter{Title: "Preview", Time: end})
			}
		}
	}

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Time < chapters[j].Time
	})
	return chapters
}
