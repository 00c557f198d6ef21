package client

import (
	"context"
	"net/url"

	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/internal/http"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// Transport implements redmine.Transport over the HTTP engine. In dry-run
// mode writes are logged and skipped; reads always go out.
type Transport struct {
	http   *http.Client
	dryRun bool
	logger redmine.Logger
}

var (
	_ redmine.Transport = (*Transport)(nil)
	_ redmine.DryRunner = (*Transport)(nil)
)

// NewTransport creates a Transport.
func NewTransport(httpClient *http.Client, dryRun bool, logger redmine.Logger) *Transport {
	if logger == nil {
		logger = redmine.NoopLogger{}
	}

	return &Transport{
		http:   httpClient,
		dryRun: dryRun,
		logger: logger,
	}
}

// DryRun reports whether writes are skipped.
func (t *Transport) DryRun() bool {
	return t.dryRun
}

// Fetch issues a GET.
func (t *Transport) Fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := t.http.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// Create issues a POST and returns the response body. In dry-run mode the
// payload itself is returned.
func (t *Transport) Create(ctx context.Context, path string, payload []byte) ([]byte, error) {
	if t.dryRun {
		t.pretend(constants.OperationCreate, path)

		return payload, nil
	}

	resp, err := t.http.Post(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// Replace issues a PUT.
func (t *Transport) Replace(ctx context.Context, path string, payload []byte) error {
	if t.dryRun {
		t.pretend(constants.OperationUpdate, path)

		return nil
	}

	_, err := t.http.Put(ctx, path, payload)

	return err
}

// Remove issues a DELETE.
func (t *Transport) Remove(ctx context.Context, path string) error {
	if t.dryRun {
		t.pretend(constants.OperationDelete, path)

		return nil
	}

	_, err := t.http.Delete(ctx, path)

	return err
}

func (t *Transport) pretend(op, path string) {
	t.logger.Info("dry run: pretending to "+op, map[string]interface{}{
		"path": path,
	})
}
