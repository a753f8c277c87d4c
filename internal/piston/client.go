// Package piston talks to the Piston remote code-execution service.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrExecUnavailable means no configured endpoint produced a successful run.
var ErrExecUnavailable = errors.New("execution service failed")

// File is one source file submitted for execution.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Result is the outcome of a run.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

type executeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []File `json:"files"`
	Stdin    string `json:"stdin"`
}

// Piston deployments disagree on field names; the wrapper accepts both the
// emkc.org shape ({run:{stdout,stderr,code}}) and flat variants.
type executeResponse struct {
	Run    *runResult `json:"run"`
	Stdout string     `json:"stdout"`
	Output string     `json:"output"`
	Stderr string     `json:"stderr"`
	Error  string     `json:"error"`
	Code   int        `json:"code"`
}

type runResult struct {
	Stdout string `json:"stdout"`
	Output string `json:"output"`
	Stderr string `json:"stderr"`
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Exit   int    `json:"exit"`
}

type Client struct {
	endpoints []string
	timeout   time.Duration
	hc        *http.Client // optional; for tests
}

func NewClient(endpoints []string, timeout time.Duration) *Client {
	return &Client{endpoints: endpoints, timeout: timeout}
}

// NewClientWithHTTPClient returns a client using the given http.Client (e.g. in tests).
func NewClientWithHTTPClient(endpoints []string, timeout time.Duration, hc *http.Client) *Client {
	return &Client{endpoints: endpoints, timeout: timeout, hc: hc}
}

// Execute runs the files under the given language. Endpoints are tried in
// order with no payload difference between them; the first one answering
// 200 with a parseable body wins. When all endpoints fail the error is
// ErrExecUnavailable.
func (c *Client) Execute(ctx context.Context, language string, files []File, stdin string) (*Result, error) {
	if language == "" {
		return nil, fmt.Errorf("language is required")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}
	payload, err := json.Marshal(executeRequest{
		Language: language,
		Version:  "*",
		Files:    files,
		Stdin:    stdin,
	})
	if err != nil {
		return nil, err
	}

	hc := c.hc
	if hc == nil {
		hc = http.DefaultClient
	}
	for _, endpoint := range c.endpoints {
		res, err := c.tryEndpoint(ctx, hc, endpoint, payload)
		if err != nil {
			log.Warn().Str("endpoint", endpoint).Err(err).Msg("piston endpoint failed")
			continue
		}
		return res, nil
	}
	return nil, ErrExecUnavailable
}

func (c *Client) tryEndpoint(ctx context.Context, hc *http.Client, endpoint string, payload []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.result(), nil
}

func (r *executeResponse) result() *Result {
	if r.Run != nil {
		out := &Result{Stdout: r.Run.Stdout, Stderr: r.Run.Stderr, ExitCode: r.Run.Code}
		if out.Stdout == "" {
			out.Stdout = r.Run.Output
		}
		if out.Stderr == "" {
			out.Stderr = r.Run.Error
		}
		if out.ExitCode == 0 {
			out.ExitCode = r.Run.Exit
		}
		return out
	}
	out := &Result{Stdout: r.Stdout, Stderr: r.Stderr, ExitCode: r.Code}
	if out.Stdout == "" {
		out.Stdout = r.Output
	}
	if out.Stderr == "" {
		out.Stderr = r.Error
	}
	return out
}
