// Package axbackend is the client side of the platform-specific
// accessibility back-end: a separate helper process that walks the OS
// accessibility tree and reports it as JSON on stdout. The back-end itself
// is not part of this module; this package only knows how to invoke it over
// its flag-based protocol and decode its output, and degrades to
// "unavailable" rather than failing the step loop.
package axbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

// Timeouts bound how long the loop waits on the back-end before treating it
// as unavailable for this step; a hung helper process must never stall the
// agent core.
const (
	QueryTimeout    = 2 * time.Second
	SearchTimeout   = 3 * time.Second
	SnapshotTimeout = 5 * time.Second
)

// ErrUnavailable signals the back-end could not be reached in time, is not
// installed, or reported success=false; callers degrade gracefully rather
// than treat it as fatal.
var ErrUnavailable = fmt.Errorf("axbackend: unavailable")

// Point is an optional focus hint passed to Query and Snapshot.
type Point struct {
	X, Y int
	Set  bool
}

// QueryResult is the decoded response to `--x N --y N --count K --distance D`.
type QueryResult struct {
	Success        bool            `json:"success"`
	ElementAtPoint *model.Element  `json:"elementAtPoint,omitempty"`
	NearbyElements []model.Element `json:"nearbyElements,omitempty"`
	QueryX         int             `json:"queryX"`
	QueryY         int             `json:"queryY"`
	QueryTimeMs    int             `json:"queryTimeMs"`
	Error          string          `json:"error,omitempty"`
}

// SearchResult is one match from `--search KW --count K`.
type SearchResult struct {
	Role       string     `json:"role"`
	Title      string     `json:"title"`
	Bounds     model.Rect `json:"bounds"`
	Similarity float64    `json:"similarity"`
}

// searchResponse is the decoded top-level response to a search invocation.
type searchResponse struct {
	Success       bool           `json:"success"`
	Results       []SearchResult `json:"results"`
	SearchKeyword string         `json:"searchKeyword"`
	QueryTimeMs   int            `json:"queryTimeMs"`
	Error         string         `json:"error,omitempty"`
}

// snapshotResponse wraps model.StateSnapshot's fields with the protocol's
// success envelope.
type snapshotResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	model.StateSnapshot
}

// Client invokes the accessibility back-end binary as a subprocess, one
// invocation per call, and decodes its stdout as JSON.
type Client struct {
	// BinaryPath is the back-end helper executable; resolved via PATH if relative.
	BinaryPath string
}

// NewClient returns a Client bound to the given helper binary name or path.
func NewClient(binaryPath string) *Client {
	return &Client{BinaryPath: binaryPath}
}

// Available reports whether the configured helper binary can be found.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.BinaryPath)
	return err == nil
}

// Query runs the point-query protocol: `--x N --y N --count K --distance D
// [--include-non-interactive]`, used by the find_element/locate tools.
func (c *Client) Query(ctx context.Context, x, y, count, distance int, includeNonInteractive bool) (QueryResult, error) {
	args := []string{
		"--x", strconv.Itoa(x),
		"--y", strconv.Itoa(y),
		"--count", strconv.Itoa(count),
		"--distance", strconv.Itoa(distance),
	}
	if includeNonInteractive {
		args = append(args, "--include-non-interactive")
	}
	var res QueryResult
	if err := c.runJSON(ctx, QueryTimeout, args, &res); err != nil {
		return QueryResult{}, err
	}
	if !res.Success {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrUnavailable, res.Error)
	}
	return res, nil
}

// SearchUIElements runs `--search KW --count K` and decodes the result list.
func (c *Client) SearchUIElements(ctx context.Context, keyword string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	args := []string{"--search", keyword, "--count", strconv.Itoa(maxResults)}
	var res searchResponse
	if err := c.runJSON(ctx, SearchTimeout, args, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, res.Error)
	}
	return res.Results, nil
}

// CaptureState runs `--snapshot [--x N --y N]` and decodes a StateSnapshot.
func (c *Client) CaptureState(ctx context.Context, focus Point) (model.StateSnapshot, error) {
	args := []string{"--snapshot"}
	if focus.Set {
		args = append(args, "--x", strconv.Itoa(focus.X), "--y", strconv.Itoa(focus.Y))
	}
	var res snapshotResponse
	if err := c.runJSON(ctx, SnapshotTimeout, args, &res); err != nil {
		return model.StateSnapshot{}, err
	}
	if !res.Success {
		return model.StateSnapshot{}, fmt.Errorf("%w: %s", ErrUnavailable, res.Error)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}
	return res.StateSnapshot, nil
}

func (c *Client) runJSON(ctx context.Context, timeout time.Duration, args []string, out any) error {
	if !c.Available() {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return fmt.Errorf("axbackend: %s %v: %w: %s", c.BinaryPath, args, err, stderr.String())
	}

	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("axbackend: decode %s %v output: %w", c.BinaryPath, args, err)
	}
	return nil
}
