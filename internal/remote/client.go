package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zombor/billed/internal/bill"
)

// Client implements bill.RemoteStore against the billed API
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithBasicAuth sends basic auth credentials with every request
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// NewClient creates a new Client for the API at baseURL
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the bills of email, or every bill when email is empty
func (c *Client) List(ctx context.Context, email string) ([]*bill.Bill, error) {
	endpoint := c.baseURL + "/api/bills"
	if email != "" {
		endpoint += "?" + url.Values{"email": {email}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var bills []*bill.Bill
	if err := c.do(req, http.StatusOK, &bills); err != nil {
		return nil, err
	}
	if bills == nil {
		bills = []*bill.Bill{}
	}
	return bills, nil
}

// Create posts a new bill and returns the stored record
func (c *Client) Create(ctx context.Context, b *bill.Bill) (*bill.Bill, error) {
	jsonData, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshaling bill: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bills", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created bill.Bill
	if err := c.do(req, http.StatusCreated, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Upload sends a receipt as a multipart form with "file" and "email" parts
func (c *Client) Upload(ctx context.Context, f bill.File, email string) (*bill.UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("email", email); err != nil {
		return nil, fmt.Errorf("writing email field: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	if f.ContentType != "" {
		h.Set("Content-Type", f.ContentType)
	}
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, fmt.Errorf("writing file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bills/files", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result bill.UploadResult
	if err := c.do(req, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends req and decodes the JSON response into out. Failures come back as
// *bill.NetworkError whose message is fit for display.
func (c *Client) do(req *http.Request, want int, out any) error {
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("Remote store request failed", "method", req.Method, "url", req.URL.Redacted(), "error", err)
		return &bill.NetworkError{Message: "Erreur réseau", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Warn("Remote store returned an error",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(body)),
		)
		return &bill.NetworkError{
			Message: fmt.Sprintf("Erreur %d", resp.StatusCode),
			Err:     fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &bill.NetworkError{Message: "Erreur réseau", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
