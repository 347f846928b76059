// Package client talks to a running product-lens server over its JSON API.
package client

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/web"
)

const DefaultBaseURL = "http://127.0.0.1:8080"

type ClientOpts struct {
	BaseURL string
}

type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(opts ClientOpts) *Client {
	c := Client{baseURL: DefaultBaseURL}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(c.baseURL).
		SetHeaders(
			map[string]string{
				"Accept":     "application/json",
				"User-Agent": "product-lens-client",
			},
		)

	return &c
}

// APIError is a failing response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetError(&web.ErrorResponse{})

	if result != nil {
		request.SetResult(result)
	}

	return request
}

// Analyze sends the image as a data URI to /api/analyze.
func (c *Client) Analyze(ctx context.Context, img *imagesource.CapturedImage) (*web.AnalyzeResponse, error) {
	result := &web.AnalyzeResponse{}

	_, err := handleError(c.req(ctx, result).
		SetBody(web.AnalyzeRequest{Image: img.DataURI}).
		Post("/api/analyze"))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	_, err := handleError(c.req(ctx, nil).Get("/health"))
	return err
}

// handleError turns failing responses (>399 status code) into errors.
// Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		msg := res.Status()
		if e, ok := res.Error().(*web.ErrorResponse); ok && e.Error != "" {
			msg = e.Error
		}
		return res, &APIError{StatusCode: res.StatusCode(), Message: msg}
	}

	return res, nil
}
