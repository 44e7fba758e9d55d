package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/key"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field is one registered setting. Value is its default and fixes its type.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Env is the variable that overrides the field, e.g. KITSUNE_PLAYER_AUTO_SKIP.
func (f *Field) Env() string {
	return strings.ToUpper(constant.Kitsune + "_" + EnvKeyReplacer.Replace(f.Key))
}

// Pretty describes the field for config info.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// MarshalJSON emits the current value next to the default.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"key":         f.Key,
		"env":         f.Env(),
		"value":       viper.Get(f.Key),
		"default":     f.Value,
		"description": f.Description,
		"type":        fmt.Sprintf("%T", f.Value),
	})
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}

	register(key.PlayerBinary, "mpv", "Media player executable used as the media surface")
	register(key.PlayerAutoSkip, false, "Seek past intro and outro windows automatically.\nWhen disabled a skip button is shown instead")
	register(key.PlayerInitialSeekDelay, 100, "Delay in milliseconds before resuming at the stored position")
	register(key.PlayerSubtitleLanguage, "English", "Subtitle track selected by default")
	register(key.ProgressBackend, "file", "Watch progress backend.\nAvailable options are: file, sqlite, mongo")
	register(key.ProgressInterval, 10, "Minimum seconds between periodic progress saves")
	register(key.ProgressMinWatch, 10, "Seconds an episode must be watched before a progress record is created")
	register(key.ProgressMongoURI, "mongodb://localhost:27017", "MongoDB connection string for the mongo backend")
	register(key.ProgressMongoDatabase, constant.Kitsune, "MongoDB database for the mongo backend")
	register(key.ProgressOperationTimeout, 5000, "Timeout in milliseconds for a single progress store operation")
	register(key.EngineMaxBufferLength, 10, "Target seconds of media buffered ahead of the playhead")
	register(key.EngineMaxMaxBufferLength, 30, "Hard cap in seconds on buffered media")
	register(key.EngineMaxBufferSize, 20*1000*1000, "Hard cap in bytes on buffered media")
	register(key.EngineBackBufferLength, 30, "Seconds of already played media kept in the buffer")
	register(key.EngineFragmentMaxRetry, 3, "Retries for a failed fragment request")
	register(key.EngineLevelMaxRetry, 3, "Retries for a failed level playlist request")
	register(key.EngineManifestMaxRetry, 3, "Retries for a failed manifest request")
	register(key.EngineRetryDelay, 500, "Initial retry delay in milliseconds")
	register(key.EngineMaxRetryTimeout, 10000, "Upper bound in milliseconds on a retry delay")
	register(key.EngineMaxConsecutiveErrors, 10, "Consecutive fatal stream errors tolerated before recovery stops")
	register(key.EngineTLSFingerprint, false, "Use a browser TLS fingerprint for upstream stream requests")
	register(key.EngineProxyURL, "", "Optional m3u8 proxy base URL.\nManifests are requested as <proxy>/m3u8-proxy?url=...&referer=...")
	register(key.TeardownLoadSettle, 1000, "Milliseconds to wait for an in-flight load before releasing a session")
	register(key.AniskipEnable, true, "Look up intro and outro windows on AniSkip when none are given")
	register(key.MetricsAddress, "", "Serve prometheus metrics on this address while playing, e.g. 127.0.0.1:9091")
	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, plain, nerd (nerd-font required)")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.CliVersionCheck, true, "Check for a newer release when showing help or the version")
}

func highlight(v any) string {
	switch value := v.(type) {
	case bool:
		return style.Fg(lo.Ternary(value, color.Green, color.Red))(strconv.FormatBool(value))
	case string:
		if value == "" {
			return style.Faint(`""`)
		}
		return style.Fg(color.Yellow)(value)
	default:
		return style.Fg(color.Cyan)(fmt.Sprint(value))
	}
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":   style.Faint,
	"key":     style.Fg(color.Orange),
	"label":   style.Fg(color.Blue),
	"current": viper.Get,
	"hl":      highlight,
}).Parse(`{{ key .Key }}  {{ faint (printf "%T" .Value) }}
{{ faint .Description }}
  {{ label "env    " }} {{ .Env }}
  {{ label "value  " }} {{ hl (current .Key) }}
  {{ label "default" }} {{ hl .Value }}`))
