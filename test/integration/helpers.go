//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	URL        string
	APIKey     string
	Project    string
	BinaryPath string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		URL:        os.Getenv("REDMINE_TEST_URL"),
		APIKey:     os.Getenv("REDMINE_TEST_API_KEY"),
		Project:    os.Getenv("REDMINE_TEST_PROJECT"),
		BinaryPath: getBinaryPath(),
		Verbose:    os.Getenv("REDMINE_TEST_VERBOSE") == "true",
	}
}

func getBinaryPath() string {
	if path := os.Getenv("REDMINE_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../redmine", "./redmine", "../redmine"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "redmine"
}

// SkipIfMissingConfig skips the test unless a live service is configured.
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.URL == "" || config.APIKey == "" {
		t.Skip("REDMINE_TEST_URL or REDMINE_TEST_API_KEY not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("redmine binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// CommandRunner runs the redmine binary against the configured service.
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
}

// NewCommandRunner creates a new command runner.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	return &CommandRunner{config: config, t: t}
}

// Run executes a command with the service flags prepended.
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a command with stdin input.
func (runner *CommandRunner) RunWithInput(input string, args ...string) (stdout, stderr string, err error) {
	full := append([]string{"--url", runner.config.URL, "--api-key", runner.config.APIKey}, args...)

	cmd := exec.Command(runner.config.BinaryPath, full...) //nolint:gosec // test binary
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// RunJSON executes a command with JSON output and decodes the result.
func (runner *CommandRunner) RunJSON(out any, args ...string) {
	runner.t.Helper()

	stdout, stderr, err := runner.Run(append(args, "--output", "json")...)
	require.NoError(runner.t, err, stderr)
	require.NoError(runner.t, json.Unmarshal([]byte(stdout), out), stdout)
}

// CleanupResource attempts to delete a test resource.
func (runner *CommandRunner) CleanupResource(group, id string) {
	if id == "" {
		return
	}

	stdout, stderr, err := runner.Run(group, "delete", id, "--force")
	if err != nil && runner.config.Verbose {
		runner.t.Logf("Cleanup warning for %s %s: %s\nStderr: %s", group, id, stdout, stderr)
	}
}

// GenerateTestName creates a unique test resource name.
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().Unix())
}
