// Package client talks to the inventory count HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/export"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/pkg/correlationid"
)

// APIError is a non-2xx response of the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d, code=%s, message=%s", e.StatusCode, e.Code, e.Message)
}

// Client is a resty-backed API client.
type Client struct {
	httpClient *resty.Client
}

func New(cfg config.Client) *Client {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/api/v1").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only reads are retried; a repeated count would add a second line.
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if id, ok := correlationid.FromContext(r.Context()); ok {
				r.SetHeader(correlationid.Header, id)
			}
			return nil
		})

	return &Client{httpClient: restyClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	apiErr := new(APIError)

	req := c.httpClient.R().
		SetContext(ctx).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		return nil, apiErr
	}

	return resp, nil
}

func (c *Client) ImportCatalog(ctx context.Context, data []byte, encoding string) (model.ImportResult, error) {
	result := new(model.ImportResult)
	apiErr := new(APIError)

	req := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		SetResult(result).
		SetError(apiErr)
	if encoding != "" {
		req.SetQueryParam("encoding", encoding)
	}

	resp, err := req.Post("/catalog/import")
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("import catalog: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		apiErr.StatusCode = resp.StatusCode()
		return model.ImportResult{}, apiErr
	}

	return *result, nil
}

func (c *Client) CatalogStats(ctx context.Context) (model.CatalogStats, error) {
	result := new(model.CatalogStats)
	if _, err := c.do(ctx, http.MethodGet, "/catalog/stats", nil, result); err != nil {
		return model.CatalogStats{}, err
	}
	return *result, nil
}

func (c *Client) ClearCatalog(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/catalog", nil, nil)
	return err
}

// Resolve returns ok=false when the API answers 404.
func (c *Client) Resolve(ctx context.Context, code string) (model.Product, bool, error) {
	result := new(model.Product)
	_, err := c.do(ctx, http.MethodGet, "/catalog/products/"+url.PathEscape(code), nil, result)
	if isNotFound(err) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, err
	}
	return *result, true, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]model.Product, error) {
	var result struct {
		Products []model.Product `json:"products"`
	}

	apiErr := new(APIError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetResult(&result).
		SetError(apiErr).
		Get("/catalog/products")
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		apiErr.StatusCode = resp.StatusCode()
		return nil, apiErr
	}

	return result.Products, nil
}

type countRequest struct {
	Code string `json:"code"`
	Qty  int    `json:"qty"`
}

// Count appends qty of code. ok is false when the product is unknown.
func (c *Client) Count(ctx context.Context, code string, qty int) (model.Line, bool, error) {
	result := new(model.Line)
	_, err := c.do(ctx, http.MethodPost, "/ledger/lines", countRequest{Code: code, Qty: qty}, result)
	if isNotFound(err) {
		return model.Line{}, false, nil
	}
	if err != nil {
		return model.Line{}, false, err
	}
	return *result, true, nil
}

func (c *Client) Lines(ctx context.Context) ([]model.Line, error) {
	var result struct {
		Lines []model.Line `json:"lines"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/ledger/lines", nil, &result); err != nil {
		return nil, err
	}
	return result.Lines, nil
}

func (c *Client) Undo(ctx context.Context) (model.Line, bool, error) {
	var result struct {
		Undone bool        `json:"undone"`
		Line   *model.Line `json:"line"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/ledger/undo", nil, &result); err != nil {
		return model.Line{}, false, err
	}
	if !result.Undone || result.Line == nil {
		return model.Line{}, false, nil
	}
	return *result.Line, true, nil
}

func (c *Client) Remove(ctx context.Context, id int64) (model.Line, error) {
	result := new(model.Line)
	if _, err := c.do(ctx, http.MethodDelete, "/ledger/lines/"+strconv.FormatInt(id, 10), nil, result); err != nil {
		return model.Line{}, err
	}
	return *result, nil
}

func (c *Client) ClearLines(ctx context.Context) (int64, error) {
	var result struct {
		Removed int64 `json:"removed"`
	}
	if _, err := c.do(ctx, http.MethodDelete, "/ledger/lines", nil, &result); err != nil {
		return 0, err
	}
	return result.Removed, nil
}

func (c *Client) Summary(ctx context.Context) (model.LedgerSummary, error) {
	result := new(model.LedgerSummary)
	if _, err := c.do(ctx, http.MethodGet, "/ledger/summary", nil, result); err != nil {
		return model.LedgerSummary{}, err
	}
	return *result, nil
}

func (c *Client) Report(ctx context.Context) (export.Report, error) {
	result := new(export.Report)
	if _, err := c.do(ctx, http.MethodGet, "/ledger/report", nil, result); err != nil {
		return export.Report{}, err
	}
	return *result, nil
}

// Download fetches a text export. It returns the body and the file name the
// server suggested.
func (c *Client) Download(ctx context.Context, kind string) ([]byte, string, error) {
	var path string
	switch kind {
	case "txt":
		path = "/ledger/export.txt"
	case "report":
		path = "/ledger/report.txt"
	default:
		return nil, "", fmt.Errorf("unknown export kind %q", kind)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, "", err
	}

	var filename string
	if _, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return resp.Body(), filename, nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
