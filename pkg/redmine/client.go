package redmine

import (
	"context"
	"net/url"
	"time"
)

// Transport moves raw bytes to and from the service. Every method attaches
// the configured credentials and returns a *ResponseError for any
// non-success status.
type Transport interface {
	// Fetch issues a GET and returns the response body.
	Fetch(ctx context.Context, path string, query url.Values) ([]byte, error)
	// Create issues a POST and returns the response body.
	Create(ctx context.Context, path string, payload []byte) ([]byte, error)
	// Replace issues a PUT; the response body is discarded.
	Replace(ctx context.Context, path string, payload []byte) error
	// Remove issues a DELETE.
	Remove(ctx context.Context, path string) error
}

// DryRunner is implemented by transports that can skip writes.
type DryRunner interface {
	DryRun() bool
}

// ChangeEvent describes a write the service accepted. EventID is unique per
// event so consumers can drop redeliveries.
type ChangeEvent struct {
	EventID   string    `json:"event_id,omitempty"`
	Resource  string    `json:"resource"`
	Operation string    `json:"operation"`
	ID        ID        `json:"id,omitempty"`
	Changes   ChangeSet `json:"changes,omitempty"`
	Time      time.Time `json:"time"`
}

// Change operations carried by ChangeEvent.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// ChangePublisher receives a ChangeEvent after every successful write.
type ChangePublisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Client provides a Manager per resource type. Close releases any
// change-event connection.
type Client interface {
	Issues() *Manager
	Projects() *Manager
	Users() *Manager
	TimeEntries() *Manager
	Versions() *Manager
	Memberships() *Manager
	News() *Manager
	Manager(res *Resource) *Manager
	Close() error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]interface{}) {}
func (NoopLogger) Info(string, map[string]interface{})  {}
func (NoopLogger) Warn(string, map[string]interface{})  {}
func (NoopLogger) Error(string, map[string]interface{}) {}

// KeyPlacement selects where an API key travels.
type KeyPlacement string

const (
	// KeyPlacementAuto picks from ServerVersion: header for >= 1.1, Basic
	// username below that.
	KeyPlacementAuto KeyPlacement = ""
	// KeyPlacementQuery sends the key as the "key" query parameter.
	KeyPlacementQuery KeyPlacement = "query"
	// KeyPlacementHeader sends the key in the X-Redmine-API-Key header.
	KeyPlacementHeader KeyPlacement = "header"
	// KeyPlacementBasic sends the key as the HTTP Basic username.
	KeyPlacementBasic KeyPlacement = "basic"
)

// Config represents client configuration.
//
// # Authentication
//
// Provide either APIKey or Username (with Password). Username/Password use
// HTTP Basic authentication and cost one extra request: the first call on a
// client performs a GET of BaseURL to establish the authentication context.
// An APIKey is attached per request, placed according to KeyPlacement.
//
// # Dry run
//
// With DryRun set, create, update and delete never reach the network:
// create returns the would-be payload, update and delete do nothing. Reads
// are unaffected. Every skipped write is logged at Info.
type Config struct {
	// BaseURL is the service root, e.g. "https://redmine.example.com".
	BaseURL string

	// APIKey is the pre-shared key from the user's account page.
	APIKey string
	// KeyPlacement overrides where APIKey is sent.
	KeyPlacement KeyPlacement
	// Username and Password select HTTP Basic authentication.
	Username string
	Password string
	// ServerVersion is the service version, e.g. "1.0" or "4.2.3". Empty
	// means a current server.
	ServerVersion string

	// DryRun skips every write.
	DryRun bool
	// Debug enables request/response logging through Logger.
	Debug bool
	// Logger receives library logs. Defaults to NoopLogger.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// ContentType overrides the request body media type.
	ContentType string
	// HTTPTimeout bounds each request; zero keeps the default.
	HTTPTimeout time.Duration

	// RetryMax enables transport-level retries of 5xx/429 responses. Zero,
	// the default, means a failure surfaces on first occurrence.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RateLimit caps requests per second when positive.
	RateLimit float64
	RateBurst int

	// Tracing wraps the HTTP transport with OpenTelemetry instrumentation.
	Tracing bool

	// NATSURL, when set, publishes a ChangeEvent for every accepted write.
	NATSURL string
	// NATSSubjectPrefix defaults to "redmine".
	NATSSubjectPrefix string
}
