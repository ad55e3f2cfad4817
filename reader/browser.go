package reader

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CommandProvider renders JavaScript-heavy pages by invoking an external
// headless-browser binary, keeping the heavyweight runtime out of this
// process. The command receives the target URL as its final argument and
// must print the rendered HTML to stdout. It satisfies the same Fetcher
// contract as the network providers.
type CommandProvider struct {
	command string
	args    []string
	timeout time.Duration
}

// defaultRenderTimeout bounds one out-of-process render.
const defaultRenderTimeout = 120 * time.Second

// NewCommandProvider builds a renderer-backed provider. command is the
// renderer binary; args are passed before the URL.
func NewCommandProvider(command string, args []string, timeout time.Duration) (*CommandProvider, error) {
	if command == "" {
		return nil, fmt.Errorf("%w: renderer command is empty", ErrConfiguration)
	}
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &CommandProvider{command: command, args: args, timeout: timeout}, nil
}

// Name identifies the provider in logs and metrics.
func (cp *CommandProvider) Name() string { return "renderer" }

// Fetch runs the renderer against the URL and returns the rendered HTML.
// The format argument is accepted for contract compatibility; the renderer
// always produces HTML.
func (cp *CommandProvider) Fetch(ctx context.Context, pageURL string, _ Format) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, cp.timeout)
	defer cancel()

	args := append(append([]string{}, cp.args...), pageURL)
	cmd := exec.CommandContext(runCtx, cp.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("renderer timed out after %v: %w", cp.timeout, runCtx.Err())
		}
		return nil, fmt.Errorf("renderer failed: %w (stderr: %s)", err, stderr.String())
	}

	html := stdout.String()
	if html == "" {
		return nil, &ContentUnavailableError{Provider: cp.Name(), Reason: "renderer produced no output"}
	}

	return &Result{
		Content: html,
		Metadata: Metadata{
			SourceURL: pageURL,
			Provider:  cp.Name(),
		},
	}, nil
}
