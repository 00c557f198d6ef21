package constants

import "errors"

// Configuration errors.
var (
	ErrNoURLConfigured     = errors.New("no Redmine URL configured, use 'redmine config set url <url>'")
	ErrNoCredentials       = errors.New("no API key or username configured, use 'redmine config set api_key <key>'")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrInvalidOutputFormat = errors.New("invalid output format")
)

// Command errors.
var (
	ErrNoFieldsGiven   = errors.New("no fields given, use --set name=value")
	ErrInvalidFieldArg = errors.New("invalid field argument, expected name=value")
	ErrUnknownResource = errors.New("unknown resource type")
)

// Handshake errors.
var (
	ErrHandshakeFailed = errors.New("authentication handshake failed")
)
