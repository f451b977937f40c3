// Package cloudclient is a hypermedia client for the unified cloud API.
//
// The client knows nothing about resource types at compile time. It fetches
// the entry-point document, builds one Accessor per advertised relation and
// materializes every returned element into a generic Resource holding
// scalars, typed properties, address lists, lazy references and an action
// table.
//
// A Client may be shared between goroutines once New has returned; discovery
// happens exactly once under a lock. Resources are independent snapshots and
// must not be mutated concurrently.
package cloudclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/artpar/cloudgate/adapters/metrics"
	"github.com/rs/zerolog"
)

// Config configures the client.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client

	// Logger receives request and schema-degradation diagnostics. Nil means no logging.
	Logger *zerolog.Logger

	// Metrics is optional.
	Metrics *metrics.Collector
}

// Client is a discovered connection to one API endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	headers    map[string]string
	logger     zerolog.Logger
	metrics    *metrics.Collector

	mu        sync.Mutex
	entry     *EntryPoint
	accessors []*Accessor
	byName    map[string]*Accessor
}

// New creates a client and performs discovery. A discovery failure aborts
// construction.
func New(ctx context.Context, cfg Config) (*Client, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := c.Discover(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("cloudclient: base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "cloudclient").Logger()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		headers:    cfg.Headers,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// BaseURL returns the entry-point URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DriverName returns the backend driver advertised by the entry point.
func (c *Client) DriverName() string {
	if ep := c.EntryPoint(); ep != nil {
		return ep.Driver
	}
	return ""
}

// APIVersion returns the API version advertised by the entry point.
func (c *Client) APIVersion() string {
	if ep := c.EntryPoint(); ep != nil {
		return ep.Version
	}
	return ""
}
