package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/redmine-ws/internal/auth"
	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/internal/events"
	"github.com/fivetwenty-io/redmine-ws/internal/http"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// Static errors for err113 compliance.
var (
	ErrBaseURLRequired = errors.New("base URL is required")
)

// Client implements the redmine.Client interface.
type Client struct {
	httpClient *http.Client
	transport  *Transport
	publisher  events.Publisher
	logger     redmine.Logger
	baseURL    string

	issues      *redmine.Manager
	projects    *redmine.Manager
	users       *redmine.Manager
	timeEntries *redmine.Manager
	versions    *redmine.Manager
	memberships *redmine.Manager
	news        *redmine.Manager
}

var _ redmine.Client = (*Client)(nil)

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *redmine.Config, logger redmine.Logger) []http.Option {
	httpOpts := []http.Option{
		http.WithLogger(logger),
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.ContentType != "" {
		httpOpts = append(httpOpts, http.WithContentType(config.ContentType))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	if config.RateLimit > 0 {
		httpOpts = append(httpOpts, http.WithRateLimit(config.RateLimit, config.RateBurst))
	}

	if config.Tracing {
		httpOpts = append(httpOpts, http.WithTracing(true))
	}

	return httpOpts
}

// New creates a new client. Nothing is sent over the network until the
// first operation; with Basic credentials that first operation is preceded
// by the handshake.
func New(ctx context.Context, config *redmine.Config, opts ...http.Option) (*Client, error) {
	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	credentials, err := auth.New(auth.Options{
		APIKey:        config.APIKey,
		Username:      config.Username,
		Password:      config.Password,
		ServerVersion: config.ServerVersion,
		Placement:     config.KeyPlacement,
	})
	if err != nil && !errors.Is(err, auth.ErrNoCredentials) {
		return nil, fmt.Errorf("configuring credentials: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = redmine.NoopLogger{}
	}

	if config.DryRun {
		logger.Info("dry run: no data will be written to the server", map[string]interface{}{
			"url": config.BaseURL,
		})
	}

	httpOpts := append(createHTTPClientOptions(config, logger), opts...)
	httpClient := http.NewClient(config.BaseURL, credentials, httpOpts...)

	publisher, err := events.NewFromConfig(publisherConfig(config))
	if err != nil {
		return nil, fmt.Errorf("configuring change events: %w", err)
	}

	client := &Client{
		httpClient: httpClient,
		transport:  NewTransport(httpClient, config.DryRun, logger),
		publisher:  publisher,
		logger:     logger,
		baseURL:    httpClient.BaseURL(),
	}

	client.initializeManagers()

	return client, nil
}

func publisherConfig(config *redmine.Config) *events.Config {
	if config.NATSURL == "" {
		return nil
	}

	return &events.Config{
		Type:          events.PublisherTypeNATS,
		URL:           config.NATSURL,
		SubjectPrefix: config.NATSSubjectPrefix,
	}
}

// initializeManagers builds one manager per catalogued resource type.
func (c *Client) initializeManagers() {
	c.issues = c.Manager(redmine.IssueResource)
	c.projects = c.Manager(redmine.ProjectResource)
	c.users = c.Manager(redmine.UserResource)
	c.timeEntries = c.Manager(redmine.TimeEntryResource)
	c.versions = c.Manager(redmine.VersionResource)
	c.memberships = c.Manager(redmine.MembershipResource)
	c.news = c.Manager(redmine.NewsResource)
}

// Manager builds a manager for any resource, catalogued or not.
func (c *Client) Manager(res *redmine.Resource) *redmine.Manager {
	return redmine.NewManager(c.transport, res,
		redmine.WithPublisher(c.publisher),
		redmine.WithManagerLogger(c.logger),
	)
}

func (c *Client) Issues() *redmine.Manager      { return c.issues }
func (c *Client) Projects() *redmine.Manager    { return c.projects }
func (c *Client) Users() *redmine.Manager       { return c.users }
func (c *Client) TimeEntries() *redmine.Manager { return c.timeEntries }
func (c *Client) Versions() *redmine.Manager    { return c.versions }
func (c *Client) Memberships() *redmine.Manager { return c.memberships }
func (c *Client) News() *redmine.Manager        { return c.news }

// Transport returns the underlying transport.
func (c *Client) Transport() *Transport {
	return c.transport
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases the change-event connection, if any.
func (c *Client) Close() error {
	return c.publisher.Close()
}
