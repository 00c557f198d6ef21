package events

import (
	"fmt"
)

// PublisherType represents the type of publisher backend.
type PublisherType string

const (
	// PublisherTypeNATS publishes to a NATS server.
	PublisherTypeNATS PublisherType = "nats"

	// PublisherTypeNone drops events.
	PublisherTypeNone PublisherType = "none"
)

// Config configures the publisher backend.
type Config struct {
	// Type is the backend type.
	Type PublisherType

	// URL is the NATS server URL.
	URL string

	// SubjectPrefix prefixes every subject; defaults to "redmine".
	SubjectPrefix string
}

// NewFromConfig creates the publisher described by config. A nil config
// yields a NoopPublisher.
func NewFromConfig(config *Config) (Publisher, error) {
	if config == nil {
		return NewNoopPublisher(), nil
	}

	switch config.Type {
	case PublisherTypeNATS:
		if config.URL == "" {
			return nil, ErrNATSURLRequired
		}

		return ConnectNATS(config.URL, config.SubjectPrefix)
	case PublisherTypeNone, "":
		return NewNoopPublisher(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPublisherType, config.Type)
	}
}

// Builder helps build publisher configurations.
type Builder struct {
	config *Config
}

// NewBuilder creates a new publisher builder.
func NewBuilder() *Builder {
	return &Builder{
		config: &Config{Type: PublisherTypeNone},
	}
}

// WithNATS selects the NATS backend.
func (b *Builder) WithNATS(url, subjectPrefix string) *Builder {
	b.config.Type = PublisherTypeNATS
	b.config.URL = url
	b.config.SubjectPrefix = subjectPrefix

	return b
}

// Build creates the publisher from the configuration.
func (b *Builder) Build() (Publisher, error) {
	return NewFromConfig(b.config)
}
