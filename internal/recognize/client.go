// Package recognize talks to the speech recognition service and selects the
// recognition profile for an audio file.
package recognize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// Options are the per-request recognition parameters.
type Options struct {
	Model          string
	ContentType    string
	SpeakerLabels  bool
	WordConfidence bool
	Timestamps     bool
}

// OptionsFor builds request options for a profile.
func OptionsFor(model string, diarization bool) Options {
	return Options{
		Model:          model,
		ContentType:    "audio/wav",
		SpeakerLabels:  diarization,
		WordConfidence: true,
		Timestamps:     true,
	}
}

// ServiceError is a non-success response from the recognition service.
type ServiceError struct {
	StatusCode int
	Body       string
}

// Error formats the service failure.
func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("recognition service returned %d: %s", e.StatusCode, e.Body)
}

// Client calls the recognize endpoint synchronously. No client-side timeout
// is applied; the service's own timeout governs long audio.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client. requestsPerMinute <= 0 disables pacing.
func NewClient(baseURL, apiKey string, requestsPerMinute int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Recognize submits audio and returns the raw response body verbatim.
func (c *Client) Recognize(ctx context.Context, audio io.Reader, opts Options) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/recognize?"+query(opts).Encode(), audio)
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", err)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.SetBasicAuth("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognize request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recognize response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func query(opts Options) url.Values {
	q := url.Values{}
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	q.Set("speaker_labels", strconv.FormatBool(opts.SpeakerLabels))
	q.Set("word_confidence", strconv.FormatBool(opts.WordConfidence))
	q.Set("timestamps", strconv.FormatBool(opts.Timestamps))
	q.Set("inactivity_timeout", "-1")
	return q
}
