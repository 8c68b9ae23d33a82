package cfg

type Cfg struct {
	// Cache configuration
	RedisAddr string

	// HTTP server configuration
	Port         string
	RefreshToken string

	// Metadata API configuration
	MetadataEndpoint   string
	MetadataAPIKey     string
	MetadataTimeout    int // seconds
	MetadataSpacingMS  int // minimum gap between metadata calls

	// Pipeline configuration
	SourcesFile      string
	RawTTLHours      int
	PageSize         int
	SourceBatchSize  int
	SourceBatchDelay int // milliseconds
	WorkerCount      int
	RefreshInterval  int // seconds, 0 disables the periodic refresh

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
