package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
	"github.com/claude/repcoach/internal/session"
)

// maxAttempts bounds retries of one API call.
const maxAttempts = 3

// FinishResult is the server's answer to finishing a session.
type FinishResult struct {
	Session   models.SessionRow `json:"session"`
	Challenge struct {
		Title string `json:"title"`
		Met   bool   `json:"met"`
	} `json:"challenge"`

	// Unconfirmed is set when an earlier attempt finished the session but
	// its response was lost, so Session and Challenge are empty.
	Unconfirmed bool `json:"-"`
}

// statusError is a non-2xx API response. 4xx responses are not retried.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, strings.TrimSpace(e.body))
}

// retriedError is a 4xx answer to a retry, after an earlier attempt of the
// same call failed.
type retriedError struct {
	*statusError
}

func (e *retriedError) Unwrap() error { return e.statusError }

// Client drives sessions on the RepCoach server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the RepCoach server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// StartSession opens a replay session for the workout.
func (c *Client) StartSession(ctx context.Context, w reps.Workout) (uuid.UUID, error) {
	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	req := map[string]string{"exercise": w.String(), "source": models.SourceReplay}
	if err := c.post(ctx, "/api/v1/sessions/", req, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("starting session: %w", err)
	}
	return resp.ID, nil
}

// SendFrame posts one frame and returns the server's update.
func (c *Client) SendFrame(ctx context.Context, id uuid.UUID, f pose.Frame) (session.Update, error) {
	var u session.Update
	if err := c.post(ctx, "/api/v1/sessions/"+id.String()+"/frames", f, &u); err != nil {
		return session.Update{}, err
	}
	return u, nil
}

// SendHeartRate posts one heart rate sample.
func (c *Client) SendHeartRate(ctx context.Context, id uuid.UUID, bpm int, at time.Time) error {
	req := map[string]any{"bpm": bpm}
	if !at.IsZero() {
		req["time"] = at
	}
	return c.post(ctx, "/api/v1/sessions/"+id.String()+"/heart_rate", req, nil)
}

// FinishSession ends the session and returns the stored summary.
func (c *Client) FinishSession(ctx context.Context, id uuid.UUID) (*FinishResult, error) {
	var res FinishResult
	err := c.post(ctx, "/api/v1/sessions/"+id.String()+"/finish", struct{}{}, &res)
	var re *retriedError
	if errors.As(err, &re) && re.status == http.StatusNotFound {
		// A lost response to an earlier attempt; the server keeps a session
		// registered until it is stored.
		return &FinishResult{Unconfirmed: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finishing session: %w", err)
	}
	return &res, nil
}

// post sends v as JSON and decodes the response into out when out is not nil.
// Retries with exponential backoff on transport errors and 5xx responses.
func (c *Client) post(ctx context.Context, path string, v, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		body, err := c.do(ctx, path, data)
		if err == nil {
			if out == nil || len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			return nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && se.status < 500 {
			if attempt > 0 {
				err = &retriedError{se}
			}
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	return fmt.Errorf("%s after %d attempts: %w", path, maxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, path string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}
	return body, nil
}
