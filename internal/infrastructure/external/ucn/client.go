// Package ucn implements the client for the university systems: the login and
// academic history endpoints on puclaro and the curriculum and course-list
// API on losvilos ("hawaii").
package ucn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
	"github.com/malla-ucn/malla-estudiante/pkg/circuitbreaker"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
	"github.com/malla-ucn/malla-estudiante/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the university client.
type ClientConfig struct {
	LoginURL  string
	AvanceURL string
	MallasURL string
	RamosURL  string

	// HawaiiAuth is sent as X-HAWAII-AUTH to the losvilos API.
	HawaiiAuth string

	Timeout time.Duration

	// RateLimit is requests per second across all endpoints.
	RateLimit rate.Limit
	Burst     int

	Retry retry.Config

	BreakerThreshold int
	BreakerTimeout   time.Duration

	// FetchConcurrency bounds parallel catalog fetches in FetchCurricula.
	FetchConcurrency int

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// DefaultClientConfig returns sensible defaults against the production hosts.
func DefaultClientConfig() ClientConfig {
	rc := retry.DefaultConfig()
	rc.InitialDelay = 300 * time.Millisecond
	return ClientConfig{
		LoginURL:         "https://puclaro.ucn.cl/eross/avance/login.php",
		AvanceURL:        "https://puclaro.ucn.cl/eross/avance/avance.php",
		MallasURL:        "https://losvilos.ucn.cl/hawaii/api/mallas",
		RamosURL:         "https://losvilos.ucn.cl/hawaii/api/estudiante",
		Timeout:          15 * time.Second,
		RateLimit:        10,
		Burst:            5,
		Retry:            rc,
		BreakerThreshold: 3,
		BreakerTimeout:   60 * time.Second,
		FetchConcurrency: 4,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the university APIs. It implements academic.Source and
// student.Authenticator.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	mapper     *Mapper
}

var (
	_ academic.Source       = (*Client)(nil)
	_ student.Authenticator = (*Client)(nil)
)

// NewClient creates a new university client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.FetchConcurrency <= 0 {
		config.FetchConcurrency = 4
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	log := config.Logger.With(logger.Component("ucn"))

	breaker := circuitbreaker.UCNAPIBreaker("ucn-api", isRetryable, circuitbreaker.LogStateChanges(log),
		circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
		circuitbreaker.WithTimeout(config.BreakerTimeout),
	)

	return &Client{
		config:     config,
		httpClient: config.HTTPClient,
		logger:     log,
		limiter:    rate.NewLimiter(config.RateLimit, config.Burst),
		breaker:    breaker,
		mapper:     NewMapper(),
	}
}

// BreakerState reports the circuit breaker state, for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// Login checks credentials with login.php and returns the student with their
// careers.
func (c *Client) Login(ctx context.Context, email, password string) (*student.Student, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("password", password)

	resp, err := c.get(ctx, "Login", c.config.LoginURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, shared.ErrInvalidCredentials
	}

	var dto LoginResponseDTO
	if err := json.Unmarshal(resp.body, &dto); err != nil {
		return nil, shared.WrapError("ucn", "Login", shared.ErrUCNInvalidResponse, "invalid login payload", err)
	}
	if dto.Error != "" {
		return nil, shared.ErrInvalidCredentials
	}
	if dto.Rut.String() == "" {
		rut, ok := student.RutFromEmail(email)
		if !ok {
			return nil, shared.ErrInvalidCredentials
		}
		dto.Rut = FlexString(rut)
	}
	return c.mapper.StudentFromLogin(&dto, email), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// FetchAttemptHistory returns the student's attempts for a program. A missing
// student is an empty history.
func (c *Client) FetchAttemptHistory(ctx context.Context, rut, program string) ([]academic.CourseAttemptRecord, error) {
	q := url.Values{}
	q.Set("rut", rut)
	q.Set("codcarrera", program)

	resp, err := c.get(ctx, "FetchAttemptHistory", c.config.AvanceURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound || strings.Contains(string(resp.body), "no encontrado") {
		return []academic.CourseAttemptRecord{}, nil
	}
	if resp.status >= 400 {
		return nil, shared.WrapError("ucn", "FetchAttemptHistory", shared.ErrExternalService, "unexpected status",
			&APIError{StatusCode: resp.status, Body: string(resp.body)})
	}

	var rows []AttemptDTO
	if !decodeArray(resp.body, &rows) {
		return []academic.CourseAttemptRecord{}, nil
	}
	return c.mapper.AttemptsFromDTOs(rows), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM
// ══════════════════════════════════════════════════════════════════════════════

// FetchCurriculum returns one catalog. An unknown catalog is empty.
func (c *Client) FetchCurriculum(ctx context.Context, ref academic.CatalogRef) ([]academic.CurriculumCourse, error) {
	// The API takes the ref as a bare query string: /mallas?8606-201610
	target := c.config.MallasURL + "?" + url.QueryEscape(ref.String())

	resp, err := c.get(ctx, "FetchCurriculum", target, c.hawaiiHeaders())
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return []academic.CurriculumCourse{}, nil
	}
	if resp.status >= 400 {
		return nil, shared.WrapError("ucn", "FetchCurriculum", shared.ErrExternalService, "unexpected status",
			&APIError{StatusCode: resp.status, Body: string(resp.body)})
	}

	var rows []CurriculumCourseDTO
	if !decodeArray(resp.body, &rows) {
		return []academic.CurriculumCourse{}, nil
	}
	return c.mapper.CoursesFromDTOs(rows), nil
}

// FetchCurricula fetches several catalogs concurrently and merges them in
// ref order, first occurrence of a code winning. A failing catalog is logged
// and skipped; the call only fails when every catalog failed.
func (c *Client) FetchCurricula(ctx context.Context, refs []academic.CatalogRef) (academic.Curriculum, error) {
	refs = academic.DedupCatalogRefs(refs)
	results := make([][]academic.CurriculumCourse, len(refs))
	errs := make([]error, len(refs))

	var g errgroup.Group
	g.SetLimit(c.config.FetchConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			courses, err := c.FetchCurriculum(ctx, ref)
			if err != nil {
				c.logger.WarnContext(ctx, "catalog fetch failed", "catalog", ref.String(), logger.Err(err))
				errs[i] = err
				return nil
			}
			results[i] = courses
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if len(refs) > 0 && failed == len(refs) {
		return nil, errors.Join(errs...)
	}
	return academic.MergeCurricula(results...), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLED COURSES
// ══════════════════════════════════════════════════════════════════════════════

// FetchEnrolledCourses returns the student's current course list.
func (c *Client) FetchEnrolledCourses(ctx context.Context, rut string) ([]academic.EnrolledCourse, error) {
	target := strings.TrimRight(c.config.RamosURL, "/") + "/" + url.PathEscape(rut) + "/ramos"

	resp, err := c.get(ctx, "FetchEnrolledCourses", target, c.hawaiiHeaders())
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return []academic.EnrolledCourse{}, nil
	}
	if resp.status >= 400 {
		return nil, shared.WrapError("ucn", "FetchEnrolledCourses", shared.ErrExternalService, "unexpected status",
			&APIError{StatusCode: resp.status, Body: string(resp.body)})
	}

	var rows []EnrolledCourseDTO
	if !decodeArray(resp.body, &rows) {
		return []academic.EnrolledCourse{}, nil
	}
	out := make([]academic.EnrolledCourse, 0, len(rows))
	for _, row := range rows {
		if course := c.mapper.EnrolledFromDTO(row); course.Code != "" {
			out = append(out, course)
		}
	}
	return out, nil
}

func (c *Client) hawaiiHeaders() http.Header {
	h := http.Header{}
	if c.config.HawaiiAuth != "" {
		h.Set("X-HAWAII-AUTH", c.config.HawaiiAuth)
	}
	return h
}

// decodeArray decodes body into dst when it holds a JSON array. Objects
// (including {"error": ...}) and garbage report false.
func decodeArray(body []byte, dst any) bool {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "[") {
		return false
	}
	return json.Unmarshal([]byte(trimmed), dst) == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

type response struct {
	status int
	body   []byte
}

// get runs a GET through the rate limiter, the circuit breaker and retries.
// Statuses below 500 other than 429 are returned to the caller as responses.
func (c *Client) get(ctx context.Context, op, target string, header http.Header) (response, error) {
	start := time.Now()

	resp, err := retry.DoWithData(ctx, func(ctx context.Context) (response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, retry.Permanent(err)
		}
		var out response
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			out, err = c.doSingleRequest(ctx, target, header)
			return err
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return response{}, retry.Permanent(err)
		}
		return out, err
	},
		retry.WithConfig(c.config.Retry),
		retry.WithRetryIf(isRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			c.logger.WarnContext(ctx, "retrying university request",
				logger.Operation(op), "attempt", attempt, "delay", delay, logger.Err(err))
		}),
	)

	c.logger.DebugContext(ctx, "university request",
		logger.Operation(op), "status", resp.status, logger.Latency(time.Since(start)))

	if err != nil {
		return response{}, classify(op, err)
	}
	return resp, nil
}

// doSingleRequest performs one HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, target string, header http.Header) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return response{}, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 5 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return response{}, &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return response{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// isRetryable reports whether err is worth another attempt: transport
// failures, 429 and 5xx. It doubles as the breaker's failure predicate.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if retry.IsPermanent(err) {
		return false
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// classify maps a final transport error onto the domain error kinds.
func classify(op string, err error) error {
	var rateErr *RateLimitError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("ucn", op, shared.ErrTimeout, "request cancelled", err)
	case errors.As(err, &rateErr):
		return shared.WrapError("ucn", op, shared.ErrUCNRateLimited, "university API rate limit exceeded", err)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return shared.WrapError("ucn", op, shared.ErrUCNUnavailable, "university API temporarily disabled", err)
	default:
		return shared.WrapError("ucn", op, shared.ErrUCNUnavailable, "university API is unavailable", err)
	}
}
