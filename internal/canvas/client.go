// Package canvas reads courses and assignments from the Canvas LMS REST API.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/models"
)

const (
	coursesPath     = "/api/v1/courses?per_page=100&enrollment_state=active&state[]=available"
	assignmentsPath = "/api/v1/courses/%d/assignments?per_page=100&order_by=due_at"
	selfPath        = "/api/v1/users/self"

	EndpointCourses     = "courses"
	EndpointAssignments = "assignments"
	EndpointSelf        = "users_self"
)

// RequestObserver receives timing for every Canvas HTTP round trip.
type RequestObserver interface {
	ObserveCanvasRequest(endpoint string, status int, duration time.Duration)
}

// Client wraps an authenticated HTTP capability with Canvas endpoints.
type Client struct {
	baseURL  string
	doer     Doer
	observer RequestObserver
	logger   *zap.Logger
}

// NewClient constructs a Canvas client rooted at baseURL.
func NewClient(baseURL string, doer Doer, observer RequestObserver, logger *zap.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		doer:     doer,
		observer: observer,
		logger:   logger,
	}
}

// CoursesURL is the first page of the active course collection.
func (c *Client) CoursesURL() string {
	return c.baseURL + coursesPath
}

// AssignmentsURL is the first page of a course's assignments ordered by due date.
func (c *Client) AssignmentsURL(courseID int64) string {
	return c.baseURL + fmt.Sprintf(assignmentsPath, courseID)
}

// ListCourses fetches every course visible to the session. Entries without a
// usable id or name are dropped.
func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	raw, err := FetchAll(ctx, c.instrumented(EndpointCourses), c.CoursesURL())
	if err != nil {
		return nil, err
	}

	courses := make([]models.Course, 0, len(raw))
	for _, item := range raw {
		course, err := DecodeCourse(item)
		if err != nil {
			c.logger.Debug("skipping canvas course entry", zap.Error(err))
			continue
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// ListAssignments fetches every assignment of a course.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]models.Assignment, error) {
	raw, err := FetchAll(ctx, c.instrumented(EndpointAssignments), c.AssignmentsURL(courseID))
	if err != nil {
		return nil, err
	}

	assignments := make([]models.Assignment, 0, len(raw))
	for _, item := range raw {
		assignment, err := DecodeAssignment(item)
		if err != nil {
			c.logger.Warn("skipping canvas assignment entry", zap.Int64("course_id", courseID), zap.Error(err))
			continue
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

// Authenticated probes users/self. Any non-success status means the
// session is not signed in; only transport failures are returned as errors.
func (c *Client) Authenticated(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+selfPath, nil)
	if err != nil {
		return false, fmt.Errorf("create canvas request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.instrumented(EndpointSelf).Do(req)
	if err != nil {
		return false, fmt.Errorf("canvas auth probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices, nil
}

func (c *Client) instrumented(endpoint string) Doer {
	if c.observer == nil {
		return c.doer
	}
	return &observedDoer{doer: c.doer, endpoint: endpoint, observer: c.observer}
}

type observedDoer struct {
	doer     Doer
	endpoint string
	observer RequestObserver
}

func (d *observedDoer) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := d.doer.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	d.observer.ObserveCanvasRequest(d.endpoint, status, time.Since(start))
	return resp, err
}

type courseWire struct {
	ID                     json.RawMessage `json:"id"`
	Name                   *string         `json:"name"`
	WorkflowState          *string         `json:"workflow_state"`
	AccessRestrictedByDate *bool           `json:"access_restricted_by_date"`
	EndAt                  *string         `json:"end_at"`
}

// DecodeCourse validates one raw course entry.
func DecodeCourse(raw json.RawMessage) (models.Course, error) {
	var wire courseWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return models.Course{}, fmt.Errorf("decode course: %w", err)
	}

	id, err := parseID(wire.ID)
	if err != nil {
		return models.Course{}, err
	}
	if wire.Name == nil {
		return models.Course{}, fmt.Errorf("course %d has no name", id)
	}

	course := models.Course{ID: id, Name: *wire.Name}
	if wire.WorkflowState != nil {
		course.WorkflowState = *wire.WorkflowState
	}
	if wire.AccessRestrictedByDate != nil {
		course.AccessRestricted = *wire.AccessRestrictedByDate
	}
	if wire.EndAt != nil {
		if endAt, ok := parseTimestamp(*wire.EndAt); ok {
			course.EndAt = &endAt
		}
	}
	return course, nil
}

type assignmentWire struct {
	ID    json.RawMessage `json:"id"`
	Name  *string         `json:"name"`
	DueAt *string         `json:"due_at"`
}

// DecodeAssignment validates one raw assignment entry. A missing id is
// tolerated; an unparseable due timestamp is not.
func DecodeAssignment(raw json.RawMessage) (models.Assignment, error) {
	var wire assignmentWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return models.Assignment{}, fmt.Errorf("decode assignment: %w", err)
	}

	assignment := models.Assignment{}
	if id, err := parseID(wire.ID); err == nil {
		assignment.ID = id
	}
	if wire.Name != nil {
		assignment.Name = *wire.Name
	}
	if wire.DueAt != nil && strings.TrimSpace(*wire.DueAt) != "" {
		dueAt, ok := parseTimestamp(*wire.DueAt)
		if !ok {
			return models.Assignment{}, fmt.Errorf("assignment %q has invalid due_at %q", assignment.Name, *wire.DueAt)
		}
		assignment.DueAt = &dueAt
	}
	return assignment, nil
}

func parseID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing id")
	}

	var number int64
	if err := json.Unmarshal(raw, &number); err == nil {
		return positiveID(number)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("invalid id %s", string(raw))
	}
	number, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", text)
	}
	return positiveID(number)
}

func positiveID(id int64) (int64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("invalid id %d", id)
	}
	return id, nil
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NewHTTPClient returns an *http.Client that authenticates every request
// with a Canvas access token.
func NewHTTPClient(accessToken string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &tokenTransport{token: accessToken, base: http.DefaultTransport},
	}
}

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}
