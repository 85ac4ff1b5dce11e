package salesforce

import (
	"context"
	"strings"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// cursorPrefix is the only resource root a continuation cursor may point at
const cursorPrefix = "/services/data/"

// Extractor runs queries and follows their continuation cursors. It does not
// drain result sets on its own; each call returns exactly one page.
type Extractor struct {
	client *Client
}

// NewExtractor creates an extractor over client
func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

// Run executes query and returns its first page
func (e *Extractor) Run(ctx context.Context, creds models.Credentials, query models.Query) (page *models.Page, err error) {
	if query == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "query is required")
	}

	ctx, span := observability.StartSpan(ctx, "salesforce.query")
	defer func() { observability.EndSpan(span, err) }()

	ub := e.client.dataURL(creds, "query")
	ub.AddParam("q", query.String())
	url := ub.String()
	ub.Close()

	page, err = e.fetch(ctx, creds, url, "query")
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(page.Records)))
	return page, nil
}

// Continue fetches the page identified by cursor, the nextRecordsUrl of a
// previous page. The cursor must be a resource path on the caller's instance.
func (e *Extractor) Continue(ctx context.Context, creds models.Credentials, cursor string) (page *models.Page, err error) {
	if err := ValidateCursor(cursor); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "salesforce.query_more")
	defer func() { observability.EndSpan(span, err) }()

	ub := stringpool.NewURLBuilder(creds.BaseURL())
	ub.AddRawPath(cursor)
	url := ub.String()
	ub.Close()

	page, err = e.fetch(ctx, creds, url, "query_more")
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(page.Records)))
	return page, nil
}

func (e *Extractor) fetch(ctx context.Context, creds models.Credentials, url, operation string) (*models.Page, error) {
	var page models.Page
	if err := e.client.getJSON(ctx, creds, url, operation, &page); err != nil {
		return nil, err
	}
	if page.Records == nil {
		page.Records = []models.Record{}
	}

	object := recordType(page.Records)
	metrics.RecordsExtracted.WithLabelValues(object).Add(float64(len(page.Records)))

	e.client.logger.Debug("page fetched",
		zap.String("operation", operation),
		zap.String("object", object),
		zap.Int("records", len(page.Records)),
		zap.Int("total_size", page.TotalSize),
		zap.Bool("has_more", page.HasMore()))

	return &page, nil
}

// ValidateCursor checks that cursor is an absolute resource path under the
// data API. Anything else, including absolute URLs, is rejected before a
// request is made so the bearer token never leaves the caller's instance.
func ValidateCursor(cursor string) error {
	if cursor == "" {
		return errors.New(errors.ErrorTypeValidation, "cursor is required")
	}
	if !strings.HasPrefix(cursor, cursorPrefix) ||
		strings.Contains(cursor, "..") ||
		strings.Contains(cursor, "://") ||
		strings.ContainsAny(cursor, "\\@#") {
		return errors.New(errors.ErrorTypeValidation, "cursor must be a path under "+cursorPrefix).
			WithDetail("cursor", cursor)
	}
	return nil
}

// recordType reads the sobject type from the first record's attributes
func recordType(records []models.Record) string {
	if len(records) == 0 {
		return "unknown"
	}
	attrs, ok := records[0]["attributes"].(map[string]interface{})
	if !ok {
		return "unknown"
	}
	if t, ok := attrs["type"].(string); ok && t != "" {
		return t
	}
	return "unknown"
}
