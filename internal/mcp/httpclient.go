package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
)

// HTTPClient implements DataSource by calling the RepCoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// bucketToPeriod maps MCP bucket values to the REST API period parameter.
func bucketToPeriod(bucket string) string {
	switch bucket {
	case "1 day":
		return "daily"
	case "1 month":
		return "monthly"
	default:
		return "weekly"
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) QuerySessions(ctx context.Context, f storage.SessionFilter, _ int) ([]models.SessionRow, error) {
	params := timeParams(f.Start, f.End)
	if f.ExerciseType != "" {
		params.Set("exercise", f.ExerciseType)
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}

	var sessions []models.SessionRow
	if err := c.get(ctx, "/api/v1/history", params, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, id uuid.UUID, _ int) (*storage.SessionDetail, error) {
	var detail storage.SessionDetail
	if err := c.get(ctx, "/api/v1/history/"+id.String(), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// RepsBetween sums the per-exercise totals of the summary endpoint.
func (c *HTTPClient) RepsBetween(ctx context.Context, start, end time.Time, exerciseType string, uid int) (int, error) {
	summary, err := c.GetExerciseSummary(ctx, start, end, uid)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range summary {
		if exerciseType == "" || s.ExerciseType == exerciseType {
			total += s.TotalReps
		}
	}
	return total, nil
}

// GetWeeklyGoal reads the goal from the dashboard. The server applies its
// own default, so def is unused.
func (c *HTTPClient) GetWeeklyGoal(ctx context.Context, _, _ int) (int, error) {
	var dash struct {
		WeeklyProgress struct {
			Goal int `json:"goal"`
		} `json:"weekly_progress"`
	}
	if err := c.get(ctx, "/api/v1/dashboard", nil, &dash); err != nil {
		return 0, err
	}
	return dash.WeeklyProgress.Goal, nil
}

func (c *HTTPClient) IsChallengeCompleted(ctx context.Context, _ int, day time.Time) (bool, error) {
	params := url.Values{}
	params.Set("date", day.Format("2006-01-02"))

	var resp struct {
		Completed bool `json:"completed"`
	}
	if err := c.get(ctx, "/api/v1/challenge", params, &resp); err != nil {
		return false, err
	}
	return resp.Completed, nil
}

func (c *HTTPClient) GetExerciseSummary(ctx context.Context, start, end time.Time, _ int) ([]storage.ExerciseSummary, error) {
	var summary []storage.ExerciseSummary
	if err := c.get(ctx, "/api/v1/summary", timeParams(start, end), &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (c *HTTPClient) GetPeriodSummary(ctx context.Context, start, end time.Time, bucket string, _ int) ([]storage.PeriodSummary, error) {
	params := timeParams(start, end)
	params.Set("period", bucketToPeriod(bucket))

	var periods []storage.PeriodSummary
	if err := c.get(ctx, "/api/v1/summary/periods", params, &periods); err != nil {
		return nil, err
	}
	return periods, nil
}

func (c *HTTPClient) GetDataStats(ctx context.Context, _ int) (*storage.DataStats, error) {
	var stats storage.DataStats
	if err := c.get(ctx, "/api/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
