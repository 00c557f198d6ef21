package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for the authentication handshake.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits. Retries are off unless configured.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Rate limiting.
const (
	// DefaultRateBurst is used when a rate limit is set without a burst.
	DefaultRateBurst = 1
)

// HTTP status codes commonly used.
const (
	// HTTPStatusOK represents a successful HTTP response.
	HTTPStatusOK = 200

	// HTTPStatusBadRequest represents a client error.
	HTTPStatusBadRequest = 400

	// HTTPStatusNotFound represents a missing resource.
	HTTPStatusNotFound = 404

	// HTTPStatusUnprocessableEntity is returned for validation failures.
	HTTPStatusUnprocessableEntity = 422
)

// Authentication.
const (
	// APIKeyHeader carries the API key when it travels as a header.
	APIKeyHeader = "X-Redmine-API-Key"

	// APIKeyQueryParam carries the API key when it travels in the query.
	APIKeyQueryParam = "key"

	// DummyPassword is sent when Basic auth has no real password. The
	// server rejects an empty one.
	DummyPassword = "12345"
)

// Content types.
const (
	// ContentTypeJSON is the default request body media type.
	ContentTypeJSON = "application/json"
)

// Client identification.
const (
	// DefaultUserAgent is sent when none is configured.
	DefaultUserAgent = "redmine-ws/1.0"

	// TracerName is the OpenTelemetry instrumentation name.
	TracerName = "redmine-ws"
)

// Change events.
const (
	// DefaultSubjectPrefix prefixes NATS subjects.
	DefaultSubjectPrefix = "redmine"

	// DefaultPublishTimeout bounds a NATS flush.
	DefaultPublishTimeout = 5 * time.Second

	// NATSConnectRetries is how many times a failed dial is retried.
	NATSConnectRetries = 3
)

// Pagination and display limits.
const (
	// DefaultPageSize is the default number of items per page.
	DefaultPageSize = 25

	// MaxPageSize is the largest page the server honours.
	MaxPageSize = 100

	// MaxTableColumnWidth truncates long cells in table output.
	MaxTableColumnWidth = 60
)

// Format constants.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// CRUD operation constants.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// Config keys.
const (
	ConfigKeyURL           = "url"
	ConfigKeyAPIKey        = "api_key"
	ConfigKeyUsername      = "username"
	ConfigKeyPassword      = "password"
	ConfigKeyServerVersion = "server_version"
	ConfigKeyKeyPlacement  = "key_placement"
	ConfigKeyDryRun        = "dry_run"
	ConfigKeyDebug         = "debug"
	ConfigKeyOutput        = "output"
	ConfigKeyNATSURL       = "nats_url"
	ConfigKeyRetryMax      = "retry_max"
	ConfigKeyRateLimit     = "rate_limit"

	// EnvPrefix prefixes environment overrides, e.g. REDMINE_URL.
	EnvPrefix = "REDMINE"

	// ConfigDirName is the directory under $HOME holding config.yml.
	ConfigDirName = ".redmine"
)
