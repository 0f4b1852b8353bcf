package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xlog "github.com/GoPolymarket/parlay-builder/internal/log"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

const maxBodyBytes = 1 << 20

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	// Timeout bounds reads (entitlements, counts, weeks, save).
	Timeout time.Duration
	// GenerateTimeout bounds the suggest calls, which run for seconds to minutes.
	GenerateTimeout time.Duration
	// MaxRPS caps outbound requests; zero disables the limiter.
	MaxRPS     float64
	Burst      int
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the remote parlay API.
type Client struct {
	baseURL         string
	token           string
	timeout         time.Duration
	generateTimeout time.Duration
	httpClient      *http.Client
	limiter         *rate.Limiter
	logger          zerolog.Logger
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Per-call deadlines come from the context; the client itself has none.
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	genTimeout := opts.GenerateTimeout
	if genTimeout <= 0 {
		genTimeout = 180 * time.Second
	}
	var limiter *rate.Limiter
	if opts.MaxRPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), burst)
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		token:           opts.Token,
		timeout:         timeout,
		generateTimeout: genTimeout,
		httpClient:      httpClient,
		limiter:         limiter,
		logger:          opts.Logger,
	}
}

// Entitlements fetches the feature entitlements of userID ("" for anonymous).
// user_id is always sent so an anonymous read is never answered for the
// token's owner.
func (c *Client) Entitlements(ctx context.Context, userID string) (parlay.Entitlements, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	var ent parlay.Entitlements
	if err := c.do(ctx, "entitlements", http.MethodGet, "/entitlements", q, nil, &ent, c.timeout); err != nil {
		return parlay.Entitlements{}, err
	}
	return ent.Normalize(), nil
}

// CandidateLegsCount reads how many eligible legs exist for one sport.
func (c *Client) CandidateLegsCount(ctx context.Context, query parlay.CandidateQuery) (parlay.CandidateAvailability, error) {
	q := url.Values{}
	q.Set("sport", string(query.Sport))
	if query.Week != nil {
		q.Set("week", strconv.Itoa(*query.Week))
	}
	if query.LegCountHint > 0 {
		q.Set("num_legs", strconv.Itoa(query.LegCountHint))
	}
	q.Set("include_player_props", strconv.FormatBool(query.IncludePlayerProps))
	if query.Mode != "" {
		q.Set("mode", string(query.Mode))
	}
	var out parlay.CandidateAvailability
	if err := c.do(ctx, "candidate_legs_count", http.MethodGet, "/parlay/candidate-legs-count", q, nil, &out, c.timeout); err != nil {
		return parlay.CandidateAvailability{}, err
	}
	if out.Sport == "" {
		out.Sport = query.Sport
	}
	if out.Week == nil && query.Week != nil {
		w := *query.Week
		out.Week = &w
	}
	if query.Mode != parlay.ModeTriple {
		out.StrongEdgeCount = nil
	}
	return out, nil
}

// NFLWeeks lists the selectable NFL weeks.
func (c *Client) NFLWeeks(ctx context.Context) (parlay.WeekList, error) {
	var out parlay.WeekList
	if err := c.do(ctx, "nfl_weeks", http.MethodGet, "/nfl/weeks", nil, nil, &out, c.timeout); err != nil {
		return parlay.WeekList{}, err
	}
	return out, nil
}

// SuggestParlay issues a Single mode generation.
func (c *Client) SuggestParlay(ctx context.Context, req SuggestRequest) (*SuggestResponse, error) {
	var out SuggestResponse
	if err := c.do(ctx, "suggest_parlay", http.MethodPost, "/parlay/suggest", nil, req, &out, c.generateTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// SuggestTripleParlay issues a Triple mode generation.
func (c *Client) SuggestTripleParlay(ctx context.Context, req TripleRequest) (*SuggestResponse, error) {
	var out SuggestResponse
	if err := c.do(ctx, "suggest_triple_parlay", http.MethodPost, "/parlay/suggest-triple", nil, req, &out, c.generateTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveParlay stores a generated parlay for the signed-in user.
func (c *Client) SaveParlay(ctx context.Context, req SaveRequest) (SavedParlay, error) {
	var out SavedParlay
	if err := c.do(ctx, "save_parlay", http.MethodPost, "/parlays", nil, req, &out, c.timeout); err != nil {
		return SavedParlay{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any, timeout time.Duration) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportError(op, err)
		}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := xlog.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logger := xlog.WithContext(ctx, c.logger)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug().Err(err).Str("op", op).Dur("latency", time.Since(start)).Msg("backend request failed")
		return transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(op, err)
	}
	logger.Debug().
		Str("op", op).
		Str(xlog.FieldRequestID, requestID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend response")

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Sentinel: ErrStatus, Operation: op, Status: resp.StatusCode, Body: data}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Status: resp.StatusCode, Code: CodeDecodeFailed, Body: data, Err: err}
	}
	return nil
}

func transportError(op string, err error) error {
	apiErr := &APIError{Sentinel: ErrUnavailable, Operation: op, Code: CodeNetwork, Err: err}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		apiErr.Sentinel, apiErr.Code = ErrTimeout, CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		apiErr.Sentinel, apiErr.Code = ErrTimeout, CodeTimeout
	case errors.Is(err, syscall.ECONNABORTED), errors.Is(err, syscall.ECONNRESET):
		apiErr.Code = CodeConnAborted
	case errors.Is(err, context.Canceled):
		apiErr.Code = CodeCanceled
	}
	return apiErr
}
