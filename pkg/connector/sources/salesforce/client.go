// Package salesforce implements the CRM side of sfbridge: SOQL construction,
// object describe, paged query extraction and record insert over the REST API.
//
// Every operation takes the caller's Credentials explicitly; nothing here
// holds a session or caches a token.
package salesforce

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/ajitpratap0/sfbridge/pkg/clients"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/sfbridge/pkg/json"
	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
	"go.uber.org/zap"
)

// DefaultAPIVersion is used when no version is configured
const DefaultAPIVersion = "v59.0"

// maxErrorBody bounds how much of an error response is kept for diagnostics
const maxErrorBody = 4096

// Client performs authenticated REST calls against a CRM instance
type Client struct {
	http       *clients.HTTPClient
	apiVersion string
	logger     *zap.Logger
}

// NewClient creates a REST client for the given API version
func NewClient(httpClient *clients.HTTPClient, apiVersion string, logger *zap.Logger) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		http:       httpClient,
		apiVersion: apiVersion,
		logger:     logger.With(zap.String("component", "salesforce_client")),
	}
}

// APIVersion returns the REST API version in use
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// dataURL starts a URL under /services/data/<version>/ for the instance
func (c *Client) dataURL(creds models.Credentials, segments ...string) *stringpool.URLBuilder {
	ub := stringpool.NewURLBuilder(creds.BaseURL())
	ub.AddPath("services", "data", c.apiVersion)
	ub.AddPath(segments...)
	return ub
}

func (c *Client) headers(creds models.Credentials) map[string]string {
	return map[string]string{
		"Authorization": creds.BearerHeader(),
		"Accept":        "application/json",
	}
}

// getJSON issues a GET and decodes a 2xx body into out
func (c *Client) getJSON(ctx context.Context, creds models.Credentials, url, operation string, out interface{}) error {
	ctx = clients.WithOperation(ctx, metrics.TargetCRM, operation)

	resp, err := c.http.Get(ctx, url, c.headers(creds))
	if err != nil {
		return transportError(ctx, err, operation)
	}
	defer func() { _ = resp.Body.Close() }()

	return c.decode(resp, operation, out)
}

// postJSON issues a POST with a JSON body and decodes a 2xx body into out
func (c *Client) postJSON(ctx context.Context, creds models.Credentials, url, operation string, in, out interface{}) error {
	ctx = clients.WithOperation(ctx, metrics.TargetCRM, operation)

	payload, err := jsonpool.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode request body")
	}

	headers := c.headers(creds)
	headers["Content-Type"] = "application/json"

	resp, err := c.http.Post(ctx, url, bytes.NewReader(payload), headers)
	if err != nil {
		return transportError(ctx, err, operation)
	}
	defer func() { _ = resp.Body.Close() }()

	return c.decode(resp, operation, out)
}

func (c *Client) decode(resp *http.Response, operation string, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBuffer := stringpool.GetBuilder(stringpool.Small)
		defer stringpool.PutBuilder(errorBuffer, stringpool.Small)

		_, _ = io.Copy(errorBuffer, io.LimitReader(resp.Body, maxErrorBody))
		body := stringpool.Clone(errorBuffer.String())

		c.logger.Debug("request rejected",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("body", body))
		return statusError(resp.StatusCode, body, operation)
	}

	if err := jsonpool.Decode(resp.Body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode "+operation+" response")
	}
	return nil
}

// statusError classifies a non-2xx CRM response. The status and body are kept
// on the error so the caller sees the CRM's own explanation. A query naming an
// unknown object fails with 400 INVALID_TYPE and is reported like a 404.
func statusError(status int, body, operation string) *errors.Error {
	var e *errors.Error
	switch status {
	case http.StatusUnauthorized:
		e = errors.New(errors.ErrorTypeAuthentication, "unauthorized")
	case http.StatusNotFound:
		e = errors.New(errors.ErrorTypeNotFound, "object not found")
	case http.StatusBadRequest:
		if strings.Contains(body, "INVALID_TYPE") {
			e = errors.New(errors.ErrorTypeNotFound, "object not found")
			break
		}
		fallthrough
	default:
		e = errors.New(errors.ErrorTypeConnection,
			stringpool.Sprintf("%s failed with status %d: %s", operation, status, body))
	}
	return e.WithDetail("status", status).
		WithDetail("body", body).
		WithDetail("operation", operation)
}

func transportError(ctx context.Context, err error, operation string) *errors.Error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(err, errors.ErrorTypeTimeout, operation+" request timed out")
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, operation+" request failed")
}
