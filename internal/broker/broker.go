// Package broker is the inbound surface of sfbridge. Each method is one
// independent, synchronous unit of work: it validates caller input, checks the
// object capability map and drives the CRM and warehouse components.
package broker

import (
	"context"
	"strings"

	"github.com/ajitpratap0/sfbridge/pkg/auth"
	bq "github.com/ajitpratap0/sfbridge/pkg/connector/destinations/bigquery"
	"github.com/ajitpratap0/sfbridge/pkg/connector/registry"
	"github.com/ajitpratap0/sfbridge/pkg/connector/sources/salesforce"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/logger"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TokenExchanger performs OAuth2 exchanges with the CRM identity endpoint
type TokenExchanger interface {
	BuildAuthorizationURL(redirectURI string) (string, error)
	ExchangeCode(ctx context.Context, redirectURI, code string) (*auth.TokenResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*auth.TokenResult, error)
}

// Describer fetches object metadata
type Describer interface {
	Describe(ctx context.Context, creds models.Credentials, objectName string) (*models.ObjectDescriptor, error)
}

// Extractor runs queries one page at a time
type Extractor interface {
	Run(ctx context.Context, creds models.Credentials, query models.Query) (*models.Page, error)
	Continue(ctx context.Context, creds models.Credentials, cursor string) (*models.Page, error)
}

// Uploader inserts records into the CRM
type Uploader interface {
	Insert(ctx context.Context, creds models.Credentials, objectName string, records []models.Record, batchSize int) (*models.UploadResult, error)
}

// WarehouseLoader creates tables and appends batches
type WarehouseLoader interface {
	TableFor(object string) bq.TableRef
	EnsureTable(ctx context.Context, ref bq.TableRef, schema *bq.WarehouseSchema) (bq.TableRef, error)
	Append(ctx context.Context, ref bq.TableRef, records []models.Record, schema *bq.WarehouseSchema) (*models.LoadResult, error)
}

// Options tune broker behaviour
type Options struct {
	// MaxPages bounds how many pages one warehouse load follows. 0 means unlimited.
	MaxPages int
	// JobRows is the number of buffered rows that triggers a load job.
	// Pages are coalesced until it is reached. 0 means DefaultJobRows.
	JobRows int
	// UploadBatchSize is the insert batch size, capped at the CRM limit
	UploadBatchSize int
}

// DefaultJobRows keeps a large object well inside the per-table daily load job quota
const DefaultJobRows = 50000

// LoadSummary reports a completed warehouse load
type LoadSummary struct {
	Table      string              `json:"table"`
	Jobs       []models.LoadResult `json:"jobs"`
	Rows       int64               `json:"rows"`
	Pages      int                 `json:"pages"`
	Gaps       []bq.MappingGap     `json:"schema_gaps,omitempty"`
	Truncated  bool                `json:"truncated"`
	NextCursor string              `json:"next_records_url,omitempty"`
}

// Broker wires the components together
type Broker struct {
	tokens    TokenExchanger
	describer Describer
	extractor Extractor
	uploader  Uploader
	loader    WarehouseLoader
	registry  *registry.Registry
	options   Options
	logger    *zap.Logger
}

// Deps carries the broker's collaborators. Loader may be nil when no
// warehouse is configured; warehouse loads are then rejected.
type Deps struct {
	Tokens    TokenExchanger
	Describer Describer
	Extractor Extractor
	Uploader  Uploader
	Loader    WarehouseLoader
	Registry  *registry.Registry
}

// New creates a broker
func New(deps Deps, options Options, log *zap.Logger) *Broker {
	if options.JobRows <= 0 {
		options.JobRows = DefaultJobRows
	}
	if options.UploadBatchSize <= 0 || options.UploadBatchSize > salesforce.MaxUploadBatch {
		options.UploadBatchSize = salesforce.MaxUploadBatch
	}
	return &Broker{
		tokens:    deps.Tokens,
		describer: deps.Describer,
		extractor: deps.Extractor,
		uploader:  deps.Uploader,
		loader:    deps.Loader,
		registry:  deps.Registry,
		options:   options,
		logger:    log.With(zap.String("component", "broker")),
	}
}

// GetOAuthURL returns the authorization URL for redirectURI
func (b *Broker) GetOAuthURL(redirectURI string) (string, error) {
	return b.tokens.BuildAuthorizationURL(strings.TrimSpace(redirectURI))
}

// ExchangeCode trades an authorization code for tokens
func (b *Broker) ExchangeCode(ctx context.Context, redirectURI, code string) (*auth.TokenResult, error) {
	return b.tokens.ExchangeCode(ctx, strings.TrimSpace(redirectURI), strings.TrimSpace(code))
}

// Refresh trades a refresh token for a new access token
func (b *Broker) Refresh(ctx context.Context, refreshToken string) (*auth.TokenResult, error) {
	return b.tokens.RefreshToken(ctx, strings.TrimSpace(refreshToken))
}

// Describe returns the metadata of object
func (b *Broker) Describe(ctx context.Context, creds models.Credentials, object string) (*models.ObjectDescriptor, error) {
	if err := b.admit(creds, object, registry.OpDescribe); err != nil {
		return nil, err
	}
	return b.describer.Describe(logger.WithObject(ctx, object), creds, object)
}

// Extract runs the extraction query for object and returns its first page.
// Only custom objects are described first; standard objects select
// FIELDS(STANDARD).
func (b *Broker) Extract(ctx context.Context, creds models.Credentials, object, from, to string) (page *models.Page, err error) {
	if err := b.admit(creds, object, registry.OpExtract); err != nil {
		return nil, err
	}
	dates, err := models.ParseDateRange(from, to)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithObject(ctx, object)
	ctx, span := observability.StartSpan(ctx, "broker.extract", attribute.String("sobject", object))
	defer func() { observability.EndSpan(span, err) }()

	desc := models.NewObjectDescriptor(object, nil)
	if desc.IsCustom {
		if desc, err = b.describer.Describe(ctx, creds, object); err != nil {
			return nil, err
		}
	}

	query, err := salesforce.BuildQuery(desc, dates)
	if err != nil {
		return nil, err
	}

	b.logger.With(logger.ContextFields(ctx)...).Debug("running extraction", zap.Stringer("query", query))
	return b.extractor.Run(ctx, creds, query)
}

// ExtractNext fetches the page behind a continuation cursor
func (b *Broker) ExtractNext(ctx context.Context, creds models.Credentials, cursor string) (*models.Page, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return b.extractor.Continue(ctx, creds, strings.TrimSpace(cursor))
}

// LoadToWarehouse extracts object and appends every page to its warehouse
// table, creating the table from the object's describe metadata when absent.
// Pages are buffered and appended together once JobRows rows are pending, so
// one load job usually covers several pages. Rows already extracted when a
// later page fails are appended before the error is returned.
func (b *Broker) LoadToWarehouse(ctx context.Context, creds models.Credentials, object, from, to string) (summary *LoadSummary, err error) {
	if b.loader == nil {
		return nil, errors.New(errors.ErrorTypeCapability, "warehouse loading is not configured")
	}
	if err := b.admit(creds, object, registry.OpLoad); err != nil {
		return nil, err
	}
	dates, err := models.ParseDateRange(from, to)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithObject(ctx, object)
	ctx, span := observability.StartSpan(ctx, "broker.load", attribute.String("sobject", object))
	defer func() { observability.EndSpan(span, err) }()
	log := b.logger.With(logger.ContextFields(ctx)...)

	desc, err := b.describer.Describe(ctx, creds, object)
	if err != nil {
		return nil, err
	}

	schema := bq.MapSchema(desc)
	bq.ReportGaps(log, desc.Name, schema.Gaps)

	ref, err := b.loader.EnsureTable(ctx, b.loader.TableFor(desc.Name), schema)
	if err != nil {
		return nil, err
	}

	query, err := salesforce.BuildQuery(desc, dates)
	if err != nil {
		return nil, err
	}

	summary = &LoadSummary{
		Table: ref.String(),
		Jobs:  []models.LoadResult{},
		Gaps:  schema.Gaps,
	}

	var (
		pending      []models.Record
		pendingPages int
		extracted    int
	)
	flush := func() error {
		result, err := b.loader.Append(ctx, ref, pending, schema)
		if err != nil {
			return err
		}
		summary.Pages += pendingPages
		if result.JobID != "" {
			summary.Jobs = append(summary.Jobs, *result)
			summary.Rows += result.Rows
		}
		pending, pendingPages = nil, 0
		return nil
	}

	page, err := b.extractor.Run(ctx, creds, query)
	for {
		if err != nil {
			if pendingPages > 0 {
				if flushErr := flush(); flushErr != nil {
					log.Warn("failed to append buffered rows after extraction error", zap.Error(flushErr))
				}
			}
			return nil, progressError(err, summary)
		}

		extracted++
		pending = append(pending, page.Records...)
		pendingPages++
		if len(pending) >= b.options.JobRows {
			if err := flush(); err != nil {
				return nil, progressError(err, summary)
			}
		}

		if !page.HasMore() {
			break
		}
		if b.options.MaxPages > 0 && extracted >= b.options.MaxPages {
			summary.Truncated = true
			summary.NextCursor = page.NextCursor
			log.Warn("page limit reached, load truncated",
				zap.Int("max_pages", b.options.MaxPages),
				zap.String("next_records_url", page.NextCursor))
			break
		}
		page, err = b.extractor.Continue(ctx, creds, page.NextCursor)
	}
	if pendingPages > 0 {
		if err := flush(); err != nil {
			return nil, progressError(err, summary)
		}
	}

	span.SetAttributes(attribute.Int("pages", summary.Pages), attribute.Int64("rows", summary.Rows))
	log.Info("warehouse load finished",
		zap.String("table", summary.Table),
		zap.Int("pages", summary.Pages),
		zap.Int("jobs", len(summary.Jobs)),
		zap.Int64("rows", summary.Rows),
		zap.Bool("truncated", summary.Truncated))

	return summary, nil
}

// Upload inserts records as object rows
func (b *Broker) Upload(ctx context.Context, creds models.Credentials, object string, records []models.Record) (*models.UploadResult, error) {
	if err := b.admit(creds, object, registry.OpUpload); err != nil {
		return nil, err
	}
	return b.uploader.Insert(logger.WithObject(ctx, object), creds, object, records, b.options.UploadBatchSize)
}

// admit validates credentials and the object name, then applies the capability map
func (b *Broker) admit(creds models.Credentials, object string, op registry.Operation) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(object) == "" {
		return errors.New(errors.ErrorTypeValidation, "object_name is required")
	}
	return b.registry.Check(object, op)
}

// progressError annotates a mid-load failure with what was already appended.
// Appends are not rolled back.
func progressError(err error, summary *LoadSummary) error {
	var e *errors.Error
	if !errors.As(err, &e) {
		e = errors.Wrap(err, errors.ErrorTypeInternal, "warehouse load failed")
	}
	jobIDs := make([]string, len(summary.Jobs))
	for i, j := range summary.Jobs {
		jobIDs[i] = j.JobID
	}
	return e.WithDetail("pages_loaded", summary.Pages).
		WithDetail("rows_loaded", summary.Rows).
		WithDetail("jobs", jobIDs)
}
