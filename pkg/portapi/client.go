package portapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxResponseSizeBytes = 2 << 20

// StatusError is a non-2xx backend response. Callers map it into their own
// failure taxonomy by status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status=%d body=%s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL  string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	Email    string        `envconfig:"EMAIL" split_words:"true"`
	Password string        `envconfig:"PASSWORD" split_words:"true"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Option customizes Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

type tokenSet struct {
	access  string
	refresh string
	csrf    string
}

// Client talks to the logistics backend with cookie-token auth. The token set
// is process-wide; a 401 triggers exactly one transparent refresh before the
// request is retried.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu     sync.Mutex
	tokens tokenSet
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:    baseURL,
		email:      strings.TrimSpace(cfg.Email),
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Login authenticates the service's own backend credentials and stores the
// resulting cookie tokens.
func (c *Client) Login(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute login request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSizeBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Body: "login failed"}
	}

	c.storeCookies(resp)
	return nil
}

// refreshTokens attempts one token refresh using the refresh cookie.
func (c *Client) refreshTokens(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", nil)
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	c.attachAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute refresh request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSizeBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Body: "token refresh failed"}
	}

	c.storeCookies(resp)
	return nil
}

func (c *Client) storeCookies(resp *http.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cookie := range resp.Cookies() {
		switch cookie.Name {
		case "access-token":
			c.tokens.access = cookie.Value
		case "refresh-token":
			c.tokens.refresh = cookie.Value
		case "csrf-token":
			c.tokens.csrf = cookie.Value
		}
	}
}

func (c *Client) attachAuth(req *http.Request) {
	c.mu.Lock()
	tokens := c.tokens
	c.mu.Unlock()

	req.Header.Set("Accept", "application/json")
	if tokens.csrf != "" {
		req.Header.Set("X-CSRF-Token", tokens.csrf)
		req.AddCookie(&http.Cookie{Name: "csrf-token", Value: tokens.csrf})
	}
	if tokens.access != "" {
		req.AddCookie(&http.Cookie{Name: "access-token", Value: tokens.access})
	}
	if tokens.refresh != "" {
		req.AddCookie(&http.Cookie{Name: "refresh-token", Value: tokens.refresh})
	}
}

// getJSON performs an authenticated GET with a single 401-refresh retry and
// decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.doGet(ctx, path, query)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSizeBytes))
		resp.Body.Close()
		if err := c.refreshTokens(ctx); err != nil {
			return &StatusError{StatusCode: http.StatusUnauthorized, Body: "unauthorized after refresh"}
		}
		resp, err = c.doGet(ctx, path, query)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	c.attachAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute backend request: %w", err)
	}
	return resp, nil
}

/* ------------------------------ Endpoints ------------------------------- */

func (c *Client) Bookings(ctx context.Context, q BookingQuery) ([]Booking, error) {
	query := url.Values{}
	if q.StartDate != "" {
		query.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		query.Set("endDate", q.EndDate)
	}
	if q.Status != "" {
		query.Set("status", strings.ToUpper(strings.TrimSpace(q.Status)))
	}
	if q.TerminalID != "" {
		query.Set("terminalId", q.TerminalID)
	}
	if q.CarrierID != "" {
		query.Set("carrierId", q.CarrierID)
	}

	var out bookingsResponse
	if err := c.getJSON(ctx, "/api/bookings", query, &out); err != nil {
		return nil, err
	}
	return out.Bookings, nil
}

func (c *Client) Availability(ctx context.Context, terminalID, startDate, endDate string) ([]AvailabilityDay, error) {
	query := url.Values{}
	query.Set("terminalId", terminalID)
	query.Set("startDate", startDate)
	query.Set("endDate", endDate)

	var out availabilityResponse
	if err := c.getJSON(ctx, "/api/slots/available", query, &out); err != nil {
		return nil, err
	}
	return out.Availability, nil
}

func (c *Client) Terminals(ctx context.Context) ([]Terminal, error) {
	var out terminalsResponse
	if err := c.getJSON(ctx, "/api/terminals", nil, &out); err != nil {
		return nil, err
	}
	return out.Terminals, nil
}

// DaySummary returns slot-level analytics for one terminal, or all terminals
// when terminalID is empty.
func (c *Client) DaySummary(ctx context.Context, terminalID, date string) ([]TerminalDaySummary, error) {
	terminalPath := strings.TrimSpace(terminalID)
	if terminalPath == "" {
		terminalPath = "all"
	}
	query := url.Values{}
	query.Set("date", date)

	var out summariesResponse
	path := "/api/analytics/terminals/" + url.PathEscape(terminalPath) + "/day-summary"
	if err := c.getJSON(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return out.Summaries, nil
}

func (c *Client) Overview(ctx context.Context) (map[string]any, error) {
	var out overviewResponse
	if err := c.getJSON(ctx, "/api/analytics/overview", nil, &out); err != nil {
		return nil, err
	}
	return out.Overview, nil
}

func (c *Client) Utilization(ctx context.Context, startDate, endDate string) ([]UtilizationEntry, error) {
	query := url.Values{}
	query.Set("startDate", startDate)
	query.Set("endDate", endDate)

	var out utilizationResponse
	if err := c.getJSON(ctx, "/api/analytics/capacity/utilization", query, &out); err != nil {
		return nil, err
	}
	return out.Utilization, nil
}

// CapacityForDate returns the effective capacity config of one terminal for
// one date, including closures and per-date overrides.
func (c *Client) CapacityForDate(ctx context.Context, terminalID, date string) (CapacityForDate, error) {
	query := url.Values{}
	query.Set("date", date)

	var out CapacityForDate
	path := "/api/terminals/" + url.PathEscape(terminalID) + "/capacity-for-date"
	if err := c.getJSON(ctx, path, query, &out); err != nil {
		return CapacityForDate{}, err
	}
	return out, nil
}

func (c *Client) UserByID(ctx context.Context, userID string) (User, error) {
	var out userResponse
	if err := c.getJSON(ctx, "/api/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

// ResolveTerminalID returns the terminal assigned to an operator, or "" when
// none is assigned.
func (c *Client) ResolveTerminalID(ctx context.Context, userID string) (string, error) {
	user, err := c.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.OperatorTerminal == nil {
		return "", nil
	}
	return user.OperatorTerminal.Terminal.ID, nil
}

// ResolveCarrierID returns the carrier a user belongs to, or "" when none.
func (c *Client) ResolveCarrierID(ctx context.Context, userID string) (string, error) {
	user, err := c.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Carrier == nil {
		return "", nil
	}
	return user.Carrier.ID, nil
}
