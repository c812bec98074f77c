package types

import (
	"time"
)

// AppConfig is the root configuration for airkv
type AppConfig struct {
	DebugMode  bool   `key:"debugMode" json:"debug_mode" yaml:"debugMode"`
	PrettyLogs bool   `key:"prettyLogs" json:"pretty_logs" yaml:"prettyLogs"`
	DataDir    string `key:"dataDir" json:"data_dir" yaml:"dataDir"` // settings database directory

	Local  LocalConfig  `key:"local" json:"local" yaml:"local"`
	Remote RemoteConfig `key:"remote" json:"remote" yaml:"remote"`
	HTTP   HTTPConfig   `key:"http" json:"http" yaml:"http"`
}

// ----------------------------------------------------------------------------
// Local emulator state
// ----------------------------------------------------------------------------

type LocalConfig struct {
	StateRelativePath string `key:"stateRelativePath" json:"state_relative_path" yaml:"stateRelativePath"` // relative to a folder root, parent of kv/
	CatalogDir        string `key:"catalogDir" json:"catalog_dir" yaml:"catalogDir"`
	InternalPrefix    string `key:"internalPrefix" json:"internal_prefix" yaml:"internalPrefix"`
}

// ----------------------------------------------------------------------------
// Remote KV service
// ----------------------------------------------------------------------------

type RemoteConfig struct {
	BaseURL          string        `key:"baseURL" json:"base_url" yaml:"baseURL"`
	Timeout          time.Duration `key:"timeout" json:"timeout" yaml:"timeout"`
	PageSize         int           `key:"pageSize" json:"page_size" yaml:"pageSize"`
	CountCacheTTL    time.Duration `key:"countCacheTTL" json:"count_cache_ttl" yaml:"countCacheTTL"`
	CountCacheSize   int           `key:"countCacheSize" json:"count_cache_size" yaml:"countCacheSize"`
	CountConcurrency int           `key:"countConcurrency" json:"count_concurrency" yaml:"countConcurrency"`
}

// ----------------------------------------------------------------------------
// HTTP API
// ----------------------------------------------------------------------------

type HTTPConfig struct {
	Host            string        `key:"host" json:"host" yaml:"host"`
	Port            int           `key:"port" json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `key:"shutdownTimeout" json:"shutdown_timeout" yaml:"shutdownTimeout"`
	EnableMetrics   bool          `key:"enableMetrics" json:"enable_metrics" yaml:"enableMetrics"`
	CORS            CORSConfig    `key:"cors" json:"cors" yaml:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `key:"allowedOrigins" json:"allowed_origins" yaml:"allowedOrigins"`
	AllowedHeaders []string `key:"allowedHeaders" json:"allowed_headers" yaml:"allowedHeaders"`
	AllowedMethods []string `key:"allowedMethods" json:"allowed_methods" yaml:"allowedMethods"`
}
