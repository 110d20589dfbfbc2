package transform

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clipvault/backend/internal/config"
)

// Client is an HTTP client for the transformation backend's upload API.
// Requests are authenticated with a signature over the sorted request
// parameters plus the API secret.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	CloudName  string
	APIKey     string
	APISecret  string
	NowFunc    func() time.Time
}

// NewClient constructs a Client from service configuration.
func NewClient(cfg config.TransformConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		CloudName:  cfg.CloudName,
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
	}
}

type uploadResponse struct {
	PublicID string  `json:"public_id"`
	Bytes    int64   `json:"bytes"`
	Duration float64 `json:"duration"`
	Error    struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload streams the provided bytes to the backend as one multipart request
// and blocks until the backend reports a terminal result. The body is
// consumed exactly once; cancelling ctx aborts the in-flight connection.
func (c *Client) Upload(ctx context.Context, body io.Reader, opts UploadOptions) (Result, error) {
	if c.APIKey == "" || c.APISecret == "" {
		return Result{}, ErrMissingCredentials
	}

	resource := opts.Resource
	if resource == "" {
		resource = ResourceImage
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if opts.Folder != "" {
		params["folder"] = opts.Folder
	}
	if t := transformationString(opts.Recipe); t != "" {
		params["transformation"] = t
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(form, pw, body, params, c.APIKey, c.sign(params))
		pw.CloseWithError(err)
	}()

	endpoint := fmt.Sprintf("%s/v1/%s/%s/upload", c.BaseURL, c.CloudName, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return Result{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transform upload: %w", err)
	}
	defer resp.Body.Close()

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && resp.StatusCode == http.StatusOK {
		return Result{}, fmt.Errorf("parse upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, &BackendError{StatusCode: resp.StatusCode, Message: payload.Error.Message}
	}
	if payload.PublicID == "" {
		return Result{}, &BackendError{StatusCode: resp.StatusCode, Message: "response missing public_id"}
	}

	return Result{
		RemoteRef: payload.PublicID,
		Bytes:     payload.Bytes,
		Duration:  payload.Duration,
	}, nil
}

// Destroy removes the asset identified by remoteRef from the backend. Used
// as best-effort compensation when a transformed asset could not be
// persisted locally.
func (c *Client) Destroy(ctx context.Context, remoteRef string, resource ResourceType) error {
	if c.APIKey == "" || c.APISecret == "" {
		return ErrMissingCredentials
	}
	if strings.TrimSpace(remoteRef) == "" {
		return fmt.Errorf("transform destroy: empty remote ref")
	}
	if resource == "" {
		resource = ResourceImage
	}

	params := map[string]string{
		"public_id": remoteRef,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}

	form := make([]string, 0, len(params)+2)
	for k, v := range params {
		form = append(form, fmt.Sprintf("%s=%s", k, v))
	}
	form = append(form, "api_key="+c.APIKey, "signature="+c.sign(params))

	endpoint := fmt.Sprintf("%s/v1/%s/%s/destroy", c.BaseURL, c.CloudName, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(strings.Join(form, "&")))
	if err != nil {
		return fmt.Errorf("build destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("transform destroy: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &BackendError{StatusCode: resp.StatusCode}
	}
	return nil
}

// sign computes the request signature: hex SHA-1 over the sorted
// ampersand-joined parameters with the API secret appended.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}

func (c *Client) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now().UTC()
}

func transformationString(r Recipe) string {
	var parts []string
	if r.Quality != "" {
		parts = append(parts, "q_"+r.Quality)
	}
	if r.Format != "" {
		parts = append(parts, "f_"+r.Format)
	}
	return strings.Join(parts, ",")
}

func writeUploadForm(form *multipart.Writer, pw *io.PipeWriter, body io.Reader, params map[string]string, apiKey, signature string) error {
	for k, v := range params {
		if err := form.WriteField(k, v); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := form.WriteField("api_key", apiKey); err != nil {
		return fmt.Errorf("write form field api_key: %w", err)
	}
	if err := form.WriteField("signature", signature); err != nil {
		return fmt.Errorf("write form field signature: %w", err)
	}

	part, err := form.CreateFormFile("file", "upload")
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("stream upload body: %w", err)
	}

	return form.Close()
}
