// Package key defines the canonical set of configuration identifiers.
package key

// Playback - media surface and skip behaviour.
const (
	PlayerBinary           = "player.binary"
	PlayerAutoSkip         = "player.auto_skip"
	PlayerInitialSeekDelay = "player.initial_seek_delay_ms"
	PlayerSubtitleLanguage = "player.subtitle_language"
)

// Watch progress persistence.
const (
	ProgressBackend          = "progress.backend"
	ProgressInterval         = "progress.interval_seconds"
	ProgressMinWatch         = "progress.min_watch_seconds"
	ProgressMongoURI         = "progress.mongo_uri"
	ProgressMongoDatabase    = "progress.mongo_database"
	ProgressOperationTimeout = "progress.operation_timeout_ms"
)

// Adaptive stream engine buffering and retry budgets.
const (
	EngineMaxBufferLength      = "engine.max_buffer_length"
	EngineMaxMaxBufferLength   = "engine.max_max_buffer_length"
	EngineMaxBufferSize        = "engine.max_buffer_size"
	EngineBackBufferLength     = "engine.back_buffer_length"
	EngineFragmentMaxRetry     = "engine.fragment_max_retry"
	EngineLevelMaxRetry        = "engine.level_max_retry"
	EngineManifestMaxRetry     = "engine.manifest_max_retry"
	EngineRetryDelay           = "engine.retry_delay_ms"
	EngineMaxRetryTimeout      = "engine.max_retry_timeout_ms"
	EngineMaxConsecutiveErrors = "engine.max_consecutive_errors"
	EngineTLSFingerprint       = "engine.tls_fingerprint"
	EngineProxyURL             = "engine.proxy_url"
)

// Teardown sequencing.
const (
	TeardownLoadSettle = "teardown.load_settle_ms"
)

// Skip window lookup.
const (
	AniskipEnable = "aniskip.enable"
)

const (
	MetricsAddress = "metrics.address"
)

const (
	IconsVariant = "icons.variant"
)

// Logging.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
