package constant

// Build metadata, set with -ldflags at release time.
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)

// AsciiArtLogo is printed above the root command help.
const AsciiArtLogo = `
 _    _ _
| | _(_) |_ ___ _   _ _ __   ___
| |/ / | __/ __| | | | '_ \ / _ \
|   <| | |_\__ \ |_| | | | |  __/
|_|\_\_|\__|___/\__,_|_| |_|\___|`
