// Package config loads the client's full option set (spec.md §6) through a
// priority cascade: defaults < config file (YAML or JSON) < environment
// variables < explicit in-process overrides, mirroring the teacher's
// cmd/gasoline-cmd/config/loader.go cascade shape.
package config

import "time"

// SessionConfig controls the connection/session layer (spec.md §4.2).
type SessionConfig struct {
	RemotePort                 int           `json:"remote_port" yaml:"remote_port" env:"BROWSERCTL_REMOTE_PORT" envDefault:"9222"`
	WSURL                      string        `json:"ws_url" yaml:"ws_url" env:"BROWSERCTL_WS_URL"`
	ConnectTimeoutMS           int           `json:"connect_timeout_ms" yaml:"connect_timeout_ms" env:"BROWSERCTL_CONNECT_TIMEOUT_MS" envDefault:"10000"`
	MaxConnectRetries          int           `json:"max_connect_retries" yaml:"max_connect_retries" env:"BROWSERCTL_MAX_CONNECT_RETRIES" envDefault:"3"`
	ConnectRetryDelayMS        int           `json:"connect_retry_delay_ms" yaml:"connect_retry_delay_ms" env:"BROWSERCTL_CONNECT_RETRY_DELAY_MS" envDefault:"500"`
	AutoReconnect              bool          `json:"auto_reconnect" yaml:"auto_reconnect" env:"BROWSERCTL_AUTO_RECONNECT" envDefault:"true"`
	MaxReconnectAttempts       int           `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts" env:"BROWSERCTL_MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelayMS           int           `json:"reconnect_delay_ms" yaml:"reconnect_delay_ms" env:"BROWSERCTL_RECONNECT_DELAY_MS" envDefault:"500"`
	ReconnectBackoffMultiplier float64       `json:"reconnect_backoff_multiplier" yaml:"reconnect_backoff_multiplier" env:"BROWSERCTL_RECONNECT_BACKOFF_MULTIPLIER" envDefault:"2.0"`
	MaxReconnectDelayMS        int           `json:"max_reconnect_delay_ms" yaml:"max_reconnect_delay_ms" env:"BROWSERCTL_MAX_RECONNECT_DELAY_MS" envDefault:"30000"`
	HeartbeatIntervalMS        int           `json:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms" env:"BROWSERCTL_HEARTBEAT_INTERVAL_MS" envDefault:"5000"`
	HeartbeatTimeoutMS         int           `json:"heartbeat_timeout_ms" yaml:"heartbeat_timeout_ms" env:"BROWSERCTL_HEARTBEAT_TIMEOUT_MS" envDefault:"2000"`
	MaxHeartbeatFailures       int           `json:"max_heartbeat_failures" yaml:"max_heartbeat_failures" env:"BROWSERCTL_MAX_HEARTBEAT_FAILURES" envDefault:"3"`
	MaxInFlightCommands        int           `json:"max_in_flight_commands" yaml:"max_in_flight_commands" env:"BROWSERCTL_MAX_IN_FLIGHT_COMMANDS" envDefault:"20"`
	CommandTimeoutMS           int           `json:"command_timeout_ms" yaml:"command_timeout_ms" env:"BROWSERCTL_COMMAND_TIMEOUT_MS" envDefault:"10000"`
	CommandQueueSize           int           `json:"command_queue_size" yaml:"command_queue_size" env:"BROWSERCTL_COMMAND_QUEUE_SIZE" envDefault:"100"`
	SubscribedDomains          []string      `json:"subscribed_domains" yaml:"subscribed_domains"`
}

func (c SessionConfig) ConnectTimeout() time.Duration  { return ms(c.ConnectTimeoutMS) }
func (c SessionConfig) ConnectRetryDelay() time.Duration { return ms(c.ConnectRetryDelayMS) }
func (c SessionConfig) ReconnectDelay() time.Duration  { return ms(c.ReconnectDelayMS) }
func (c SessionConfig) MaxReconnectDelay() time.Duration { return ms(c.MaxReconnectDelayMS) }
func (c SessionConfig) HeartbeatInterval() time.Duration { return ms(c.HeartbeatIntervalMS) }
func (c SessionConfig) HeartbeatTimeout() time.Duration  { return ms(c.HeartbeatTimeoutMS) }
func (c SessionConfig) CommandTimeout() time.Duration  { return ms(c.CommandTimeoutMS) }

// WaitConfig controls the wait engine (spec.md §4.4).
type WaitConfig struct {
	StepTimeoutMS      int `json:"step_timeout_ms" yaml:"step_timeout_ms" env:"BROWSERCTL_STEP_TIMEOUT_MS" envDefault:"10000"`
	StateTimeoutMS     int `json:"state_timeout_ms" yaml:"state_timeout_ms" env:"BROWSERCTL_STATE_TIMEOUT_MS" envDefault:"30000"`
	JobTimeoutMS       int `json:"job_timeout_ms" yaml:"job_timeout_ms" env:"BROWSERCTL_JOB_TIMEOUT_MS" envDefault:"300000"`
	StabilityWindowMS  int `json:"stability_window_ms" yaml:"stability_window_ms" env:"BROWSERCTL_STABILITY_WINDOW_MS" envDefault:"500"`
	PollIntervalMS     int `json:"poll_interval_ms" yaml:"poll_interval_ms" env:"BROWSERCTL_POLL_INTERVAL_MS" envDefault:"100"`
}

func (c WaitConfig) StepTimeout() time.Duration     { return ms(c.StepTimeoutMS) }
func (c WaitConfig) StateTimeout() time.Duration    { return ms(c.StateTimeoutMS) }
func (c WaitConfig) JobTimeout() time.Duration      { return ms(c.JobTimeoutMS) }
func (c WaitConfig) StabilityWindow() time.Duration { return ms(c.StabilityWindowMS) }
func (c WaitConfig) PollInterval() time.Duration    { return ms(c.PollIntervalMS) }

// RecoveryConfig controls the recovery manager (spec.md §4.9).
type RecoveryConfig struct {
	MaxStepRetries      int `json:"max_step_retries" yaml:"max_step_retries" env:"BROWSERCTL_MAX_STEP_RETRIES" envDefault:"3"`
	StepRetryDelayMS    int `json:"step_retry_delay_ms" yaml:"step_retry_delay_ms" env:"BROWSERCTL_STEP_RETRY_DELAY_MS" envDefault:"250"`
	StepRetryBackoff    float64 `json:"step_retry_backoff" yaml:"step_retry_backoff" env:"BROWSERCTL_STEP_RETRY_BACKOFF" envDefault:"2.0"`
	MaxStateRetries     int `json:"max_state_retries" yaml:"max_state_retries" env:"BROWSERCTL_MAX_STATE_RETRIES" envDefault:"2"`
	StateRetryDelayMS   int `json:"state_retry_delay_ms" yaml:"state_retry_delay_ms" env:"BROWSERCTL_STATE_RETRY_DELAY_MS" envDefault:"1000"`
	MaxRecreateAttempts int `json:"max_recreate_attempts" yaml:"max_recreate_attempts" env:"BROWSERCTL_MAX_RECREATE_ATTEMPTS" envDefault:"2"`
	RecreateDelayMS     int `json:"recreate_delay_ms" yaml:"recreate_delay_ms" env:"BROWSERCTL_RECREATE_DELAY_MS" envDefault:"1000"`
	MaxRestartAttempts  int `json:"max_restart_attempts" yaml:"max_restart_attempts" env:"BROWSERCTL_MAX_RESTART_ATTEMPTS" envDefault:"1"`
	RestartDelayMS      int `json:"restart_delay_ms" yaml:"restart_delay_ms" env:"BROWSERCTL_RESTART_DELAY_MS" envDefault:"2000"`
}

func (c RecoveryConfig) StepRetryDelay() time.Duration  { return ms(c.StepRetryDelayMS) }
func (c RecoveryConfig) StateRetryDelay() time.Duration { return ms(c.StateRetryDelayMS) }
func (c RecoveryConfig) RecreateDelay() time.Duration   { return ms(c.RecreateDelayMS) }
func (c RecoveryConfig) RestartDelay() time.Duration    { return ms(c.RestartDelayMS) }

// WatchdogConfig controls the watchdog (spec.md §4.10).
type WatchdogConfig struct {
	HeartbeatIntervalMS    int `json:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms" env:"BROWSERCTL_WD_HEARTBEAT_INTERVAL_MS" envDefault:"1000"`
	HeartbeatTimeoutMS     int `json:"heartbeat_timeout_ms" yaml:"heartbeat_timeout_ms" env:"BROWSERCTL_WD_HEARTBEAT_TIMEOUT_MS" envDefault:"5000"`
	ProgressTimeoutMS      int `json:"progress_timeout_ms" yaml:"progress_timeout_ms" env:"BROWSERCTL_WD_PROGRESS_TIMEOUT_MS" envDefault:"30000"`
	EventTimeoutMS         int `json:"event_timeout_ms" yaml:"event_timeout_ms" env:"BROWSERCTL_WD_EVENT_TIMEOUT_MS" envDefault:"15000"`
	JobHardTimeoutMS       int `json:"job_hard_timeout_ms" yaml:"job_hard_timeout_ms" env:"BROWSERCTL_WD_JOB_HARD_TIMEOUT_MS" envDefault:"600000"`
	MaxFailuresBeforePoison int `json:"max_failures_before_poison" yaml:"max_failures_before_poison" env:"BROWSERCTL_WD_MAX_FAILURES_BEFORE_POISON" envDefault:"3"`
	PoisonCooldownMS       int `json:"poison_cooldown_ms" yaml:"poison_cooldown_ms" env:"BROWSERCTL_WD_POISON_COOLDOWN_MS" envDefault:"300000"`
}

func (c WatchdogConfig) HeartbeatInterval() time.Duration { return ms(c.HeartbeatIntervalMS) }
func (c WatchdogConfig) HeartbeatTimeout() time.Duration  { return ms(c.HeartbeatTimeoutMS) }
func (c WatchdogConfig) ProgressTimeout() time.Duration   { return ms(c.ProgressTimeoutMS) }
func (c WatchdogConfig) EventTimeout() time.Duration      { return ms(c.EventTimeoutMS) }
func (c WatchdogConfig) JobHardTimeout() time.Duration    { return ms(c.JobHardTimeoutMS) }
func (c WatchdogConfig) PoisonCooldown() time.Duration    { return ms(c.PoisonCooldownMS) }

// ScreenshotPolicy controls the performance component's screenshot budget.
type ScreenshotPolicy struct {
	Enabled       bool `json:"enabled" yaml:"enabled" envDefault:"true"`
	OnError       bool `json:"on_error" yaml:"on_error" envDefault:"true"`
	OnStateChange bool `json:"on_state_change" yaml:"on_state_change" envDefault:"false"`
	MaxPerJob     int  `json:"max_per_job" yaml:"max_per_job" envDefault:"10"`
	Quality       int  `json:"quality" yaml:"quality" envDefault:"80"`
	MaxWidth      int  `json:"max_width" yaml:"max_width" envDefault:"1280"`
	MaxHeight     int  `json:"max_height" yaml:"max_height" envDefault:"800"`
}

// PerfConfig controls the performance component (spec.md §4.12).
type PerfConfig struct {
	LocatorCacheTTLMS   int              `json:"locator_cache_ttl_ms" yaml:"locator_cache_ttl_ms" env:"BROWSERCTL_LOCATOR_CACHE_TTL_MS" envDefault:"5000"`
	LocatorCacheMaxSize int              `json:"locator_cache_max_size" yaml:"locator_cache_max_size" env:"BROWSERCTL_LOCATOR_CACHE_MAX_SIZE" envDefault:"500"`
	BatchSize           int              `json:"batch_size" yaml:"batch_size" env:"BROWSERCTL_BATCH_SIZE" envDefault:"10"`
	BatchDebounceMS     int              `json:"batch_debounce_ms" yaml:"batch_debounce_ms" env:"BROWSERCTL_BATCH_DEBOUNCE_MS" envDefault:"15"`
	ScreenshotPolicy    ScreenshotPolicy `json:"screenshot_policy" yaml:"screenshot_policy"`
}

func (c PerfConfig) LocatorCacheTTL() time.Duration { return ms(c.LocatorCacheTTLMS) }
func (c PerfConfig) BatchDebounce() time.Duration   { return ms(c.BatchDebounceMS) }

// NavigationConfig controls the navigation manager (spec.md §4.7).
type NavigationConfig struct {
	DefaultTimeoutMS          int      `json:"default_timeout_ms" yaml:"default_timeout_ms" env:"BROWSERCTL_NAV_DEFAULT_TIMEOUT_MS" envDefault:"30000"`
	RedirectCeiling           int      `json:"redirect_ceiling" yaml:"redirect_ceiling" env:"BROWSERCTL_NAV_REDIRECT_CEILING" envDefault:"10"`
	SPAURLTimeoutMS           int      `json:"spa_url_timeout_ms" yaml:"spa_url_timeout_ms" env:"BROWSERCTL_NAV_SPA_URL_TIMEOUT_MS" envDefault:"5000"`
	SPADataFetchTimeoutMS     int      `json:"spa_data_fetch_timeout_ms" yaml:"spa_data_fetch_timeout_ms" env:"BROWSERCTL_NAV_SPA_DATA_FETCH_TIMEOUT_MS" envDefault:"10000"`
	SPALoadingIndicatorTimeoutMS int   `json:"spa_loading_indicator_timeout_ms" yaml:"spa_loading_indicator_timeout_ms" env:"BROWSERCTL_NAV_SPA_LOADING_INDICATOR_TIMEOUT_MS" envDefault:"5000"`
	SPARenderStabilityWindowMS int    `json:"spa_render_stability_window_ms" yaml:"spa_render_stability_window_ms" env:"BROWSERCTL_NAV_SPA_RENDER_STABILITY_WINDOW_MS" envDefault:"300"`
	SPALoadingIndicatorSelectors []string `json:"spa_loading_indicator_selectors" yaml:"spa_loading_indicator_selectors"`
}

func (c NavigationConfig) DefaultTimeout() time.Duration            { return ms(c.DefaultTimeoutMS) }
func (c NavigationConfig) SPAURLTimeout() time.Duration              { return ms(c.SPAURLTimeoutMS) }
func (c NavigationConfig) SPADataFetchTimeout() time.Duration        { return ms(c.SPADataFetchTimeoutMS) }
func (c NavigationConfig) SPALoadingIndicatorTimeout() time.Duration { return ms(c.SPALoadingIndicatorTimeoutMS) }
func (c NavigationConfig) SPARenderStabilityWindow() time.Duration   { return ms(c.SPARenderStabilityWindowMS) }

// ConcurrencyConfig controls the concurrency manager (spec.md §4.11).
type ConcurrencyConfig struct {
	WorkerPoolSize        int     `json:"worker_pool_size" yaml:"worker_pool_size" env:"BROWSERCTL_WORKER_POOL_SIZE" envDefault:"4"`
	ThrottleRatePerSecond float64 `json:"throttle_rate_per_second" yaml:"throttle_rate_per_second" env:"BROWSERCTL_THROTTLE_RATE" envDefault:"50"`
	ThrottleConcurrency   int     `json:"throttle_concurrency" yaml:"throttle_concurrency" env:"BROWSERCTL_THROTTLE_CONCURRENCY" envDefault:"10"`
}

// FileIOConfig controls the file I/O component (spec.md §4.8).
type FileIOConfig struct {
	UploadPreviewTimeoutMS int      `json:"upload_preview_timeout_ms" yaml:"upload_preview_timeout_ms" env:"BROWSERCTL_UPLOAD_PREVIEW_TIMEOUT_MS" envDefault:"5000"`
	PreviewSelectors       []string `json:"preview_selectors" yaml:"preview_selectors"`
	DownloadDir            string   `json:"download_dir" yaml:"download_dir" env:"BROWSERCTL_DOWNLOAD_DIR"`
	DownloadTimeoutMS      int      `json:"download_timeout_ms" yaml:"download_timeout_ms" env:"BROWSERCTL_DOWNLOAD_TIMEOUT_MS" envDefault:"60000"`
	StabilitySamples       int      `json:"stability_samples" yaml:"stability_samples" env:"BROWSERCTL_DOWNLOAD_STABILITY_SAMPLES" envDefault:"3"`
	StabilityIntervalMS    int      `json:"stability_interval_ms" yaml:"stability_interval_ms" env:"BROWSERCTL_DOWNLOAD_STABILITY_INTERVAL_MS" envDefault:"500"`
	FileChooserTimeoutMS   int      `json:"file_chooser_timeout_ms" yaml:"file_chooser_timeout_ms" env:"BROWSERCTL_FILE_CHOOSER_TIMEOUT_MS" envDefault:"5000"`
}

func (c FileIOConfig) UploadPreviewTimeout() time.Duration { return ms(c.UploadPreviewTimeoutMS) }
func (c FileIOConfig) DownloadTimeout() time.Duration       { return ms(c.DownloadTimeoutMS) }
func (c FileIOConfig) StabilityInterval() time.Duration     { return ms(c.StabilityIntervalMS) }
func (c FileIOConfig) FileChooserTimeout() time.Duration    { return ms(c.FileChooserTimeoutMS) }

// Config aggregates every subsystem's configuration plus ambient fields
// (log level, metrics listen address) not present in spec.md's option
// list but required to carry a non-stdlib logging/metrics stack
// regardless of the spec's non-goals (process instructions).
type Config struct {
	Session     SessionConfig     `json:"session" yaml:"session"`
	Wait        WaitConfig        `json:"wait" yaml:"wait"`
	Navigation  NavigationConfig  `json:"navigation" yaml:"navigation"`
	Recovery    RecoveryConfig    `json:"recovery" yaml:"recovery"`
	Watchdog    WatchdogConfig    `json:"watchdog" yaml:"watchdog"`
	Perf        PerfConfig        `json:"perf" yaml:"perf"`
	Concurrency ConcurrencyConfig `json:"concurrency" yaml:"concurrency"`
	FileIO      FileIOConfig      `json:"file_io" yaml:"file_io"`

	LogLevel      string `json:"log_level" yaml:"log_level" env:"BROWSERCTL_LOG_LEVEL" envDefault:"info"`
	MetricsAddr   string `json:"metrics_addr" yaml:"metrics_addr" env:"BROWSERCTL_METRICS_ADDR" envDefault:""`
	HistoryCapacity int  `json:"history_capacity" yaml:"history_capacity" env:"BROWSERCTL_HISTORY_CAPACITY" envDefault:"1000"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Defaults returns the base configuration before any file/env/override
// layer is applied.
func Defaults() Config {
	return Config{
		Session: SessionConfig{
			RemotePort: 9222, ConnectTimeoutMS: 10000, MaxConnectRetries: 3,
			ConnectRetryDelayMS: 500, AutoReconnect: true, MaxReconnectAttempts: 5,
			ReconnectDelayMS: 500, ReconnectBackoffMultiplier: 2.0, MaxReconnectDelayMS: 30000,
			HeartbeatIntervalMS: 5000, HeartbeatTimeoutMS: 2000, MaxHeartbeatFailures: 3,
			MaxInFlightCommands: 20, CommandTimeoutMS: 10000, CommandQueueSize: 100,
			SubscribedDomains: []string{"Page", "DOM", "Runtime", "Network", "Target", "Inspector"},
		},
		Wait: WaitConfig{
			StepTimeoutMS: 10000, StateTimeoutMS: 30000, JobTimeoutMS: 300000,
			StabilityWindowMS: 500, PollIntervalMS: 100,
		},
		Navigation: NavigationConfig{
			DefaultTimeoutMS: 30000, RedirectCeiling: 10,
			SPAURLTimeoutMS: 5000, SPADataFetchTimeoutMS: 10000,
			SPALoadingIndicatorTimeoutMS: 5000, SPARenderStabilityWindowMS: 300,
			SPALoadingIndicatorSelectors: []string{
				".spinner", ".loading", ".loading-indicator", "[aria-busy=\"true\"]", "[data-loading=\"true\"]",
			},
		},
		Recovery: RecoveryConfig{
			MaxStepRetries: 3, StepRetryDelayMS: 250, StepRetryBackoff: 2.0,
			MaxStateRetries: 2, StateRetryDelayMS: 1000,
			MaxRecreateAttempts: 2, RecreateDelayMS: 1000,
			MaxRestartAttempts: 1, RestartDelayMS: 2000,
		},
		Watchdog: WatchdogConfig{
			HeartbeatIntervalMS: 1000, HeartbeatTimeoutMS: 5000,
			ProgressTimeoutMS: 30000, EventTimeoutMS: 15000,
			JobHardTimeoutMS: 600000, MaxFailuresBeforePoison: 3, PoisonCooldownMS: 300000,
		},
		Perf: PerfConfig{
			LocatorCacheTTLMS: 5000, LocatorCacheMaxSize: 500,
			BatchSize: 10, BatchDebounceMS: 15,
			ScreenshotPolicy: ScreenshotPolicy{
				Enabled: true, OnError: true, OnStateChange: false,
				MaxPerJob: 10, Quality: 80, MaxWidth: 1280, MaxHeight: 800,
			},
		},
		Concurrency: ConcurrencyConfig{
			WorkerPoolSize: 4, ThrottleRatePerSecond: 50, ThrottleConcurrency: 10,
		},
		FileIO: FileIOConfig{
			UploadPreviewTimeoutMS: 5000,
			PreviewSelectors: []string{
				"img[src^=\"blob:\"]", "img[src^=\"data:\"]", ".preview", ".file-preview", ".upload-preview",
			},
			DownloadTimeoutMS: 60000, StabilitySamples: 3, StabilityIntervalMS: 500,
			FileChooserTimeoutMS: 5000,
		},
		LogLevel:        "info",
		HistoryCapacity: 1000,
	}
}
