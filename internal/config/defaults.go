package config

const (
	defaultArtifactDir            = "~/.local/share/cointist/tmp"
	defaultLogDir                 = "~/.local/share/cointist/logs"
	defaultSnapshotFile           = "~/.local/share/cointist/snapshot/selection.json"
	defaultExportFile             = "~/.local/share/cointist/final/selected.json"
	defaultSlugMapFile            = "~/.local/share/cointist/final/slug_map.json"
	defaultStorePath              = "~/.local/share/cointist/catalog.db"
	defaultAPIBind                = "127.0.0.1:7491"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultWindowSeconds          = 120
	defaultPollIntervalMillis     = 1500
	defaultWaitTimeoutSeconds     = 300
	defaultLogScanTimeoutMillis   = 2000
	defaultLiveQueryTimeoutMillis = 3000
	defaultLiveQueryRPS           = 10
	defaultResolverConcurrency    = 4
	defaultFuzzyMinOverlap        = 0.5
	defaultFuzzyShortOverlap      = 0.4
	defaultFuzzyShortTokens       = 6
	defaultFuzzyMinShared         = 3
	defaultPopulateTimeoutSeconds = 60
	defaultStoreMaxConns          = 2
	defaultNotifyTimeoutSeconds   = 10
)

// Store drivers understood by internal/catalog.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArtifactDir:  defaultArtifactDir,
			LogDir:       defaultLogDir,
			SnapshotFile: defaultSnapshotFile,
			ExportFile:   defaultExportFile,
			SlugMapFile:  defaultSlugMapFile,
			APIBind:      defaultAPIBind,
		},
		Aggregator: Aggregator{
			WindowSeconds:      defaultWindowSeconds,
			AnchorOnInvocation: true,
			PollIntervalMillis: defaultPollIntervalMillis,
			WaitTimeoutSeconds: defaultWaitTimeoutSeconds,
			Backfill:           true,
		},
		Resolver: Resolver{
			LogScanTimeoutMillis:   defaultLogScanTimeoutMillis,
			LiveQueryTimeoutMillis: defaultLiveQueryTimeoutMillis,
			LiveQueryRPS:           defaultLiveQueryRPS,
			Concurrency:            defaultResolverConcurrency,
			FuzzyMinOverlap:        defaultFuzzyMinOverlap,
			FuzzyShortOverlap:      defaultFuzzyShortOverlap,
			FuzzyShortTokens:       defaultFuzzyShortTokens,
			FuzzyMinShared:         defaultFuzzyMinShared,
		},
		Export: Export{
			PopulateTimeoutSeconds: defaultPopulateTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Store: Store{
			Driver:   StoreDriverSQLite,
			Path:     defaultStorePath,
			MaxConns: defaultStoreMaxConns,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
