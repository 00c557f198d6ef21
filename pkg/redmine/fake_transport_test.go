package redmine_test

import (
	"context"
	"net/url"
	"sync"

	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// call records one transport invocation.
type call struct {
	Method  string
	Path    string
	Query   url.Values
	Payload []byte
}

// fakeTransport replays canned responses keyed by method and path. Pages of
// a query are returned in order, one per Fetch on the same path.
type fakeTransport struct {
	mu sync.Mutex

	pages    map[string][][]byte
	bodies   map[string][]byte
	errs     map[string]error
	calls    []call
	dryRun   bool
	consumed map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		pages:    make(map[string][][]byte),
		bodies:   make(map[string][]byte),
		errs:     make(map[string]error),
		consumed: make(map[string]int),
	}
}

func (f *fakeTransport) page(path string, body string) *fakeTransport {
	f.pages[path] = append(f.pages[path], []byte(body))

	return f
}

func (f *fakeTransport) body(method, path, body string) *fakeTransport {
	f.bodies[method+" "+path] = []byte(body)

	return f
}

func (f *fakeTransport) fail(method, path string, err error) *fakeTransport {
	f.errs[method+" "+path] = err

	return f
}

func (f *fakeTransport) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, c)

	return f.errs[c.Method+" "+c.Path]
}

func (f *fakeTransport) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]call(nil), f.calls...)
}

func (f *fakeTransport) Fetch(_ context.Context, path string, query url.Values) ([]byte, error) {
	err := f.record(call{Method: "GET", Path: path, Query: query})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if pages, ok := f.pages[path]; ok {
		i := f.consumed[path]
		f.consumed[path]++

		if i < len(pages) {
			return pages[i], nil
		}

		return pages[len(pages)-1], nil
	}

	return f.bodies["GET "+path], nil
}

func (f *fakeTransport) Create(_ context.Context, path string, payload []byte) ([]byte, error) {
	err := f.record(call{Method: "POST", Path: path, Payload: payload})
	if err != nil {
		return nil, err
	}

	if body, ok := f.bodies["POST "+path]; ok {
		return body, nil
	}

	return payload, nil
}

func (f *fakeTransport) Replace(_ context.Context, path string, payload []byte) error {
	return f.record(call{Method: "PUT", Path: path, Payload: payload})
}

func (f *fakeTransport) Remove(_ context.Context, path string) error {
	return f.record(call{Method: "DELETE", Path: path})
}

func (f *fakeTransport) DryRun() bool {
	return f.dryRun
}

// recordingPublisher collects change events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []redmine.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event redmine.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return p.err
}

func (p *recordingPublisher) Events() []redmine.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]redmine.ChangeEvent(nil), p.events...)
}

// recordingLogger collects warn messages.
type recordingLogger struct {
	redmine.NoopLogger

	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.warns = append(l.warns, msg)
}
