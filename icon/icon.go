// Package icon renders the symbols shown next to playback events.
//
// The variant is read from the icons.variant setting on every call so a
// config change applies without restarting the dashboard.
package icon

import (
	"github.com/kitsune-cli/kitsune/key"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type variant int

const (
	plain variant = iota
	emoji
	nerd
)

var variantNames = map[string]variant{
	"plain": plain,
	"emoji": emoji,
	"nerd":  nerd,
}

// AvailableVariants lists the accepted icons.variant values.
func AvailableVariants() []string {
	return []string{"emoji", "plain", "nerd"}
}

func current() variant {
	v, ok := variantNames[viper.GetString(key.IconsVariant)]
	return lo.Ternary(ok, v, plain)
}

// Get renders i in the configured variant. Unknown variants render plain.
func Get(i Icon) string {
	glyphs, ok := icons[i]
	if !ok {
		return ""
	}
	return glyphs[current()]
}
