// Package bigquery maps CRM object metadata onto warehouse schemas and appends
// extracted records to BigQuery tables through load jobs.
package bigquery

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// TableRef names a warehouse table
type TableRef struct {
	Project string `json:"project"`
	Dataset string `json:"dataset"`
	Table   string `json:"table"`
}

// String renders project.dataset.table
func (r TableRef) String() string {
	return stringpool.Concat(r.Project, ".", r.Dataset, ".", r.Table)
}

// LoadRequest describes one load job. Exactly one of Data and SourceURI is set:
// Data is an inline NDJSON body, SourceURI a gzip NDJSON object in GCS.
type LoadRequest struct {
	Table     TableRef
	Schema    bigquery.Schema
	JobID     string
	Labels    map[string]string
	Data      []byte
	SourceURI string
	Rows      int64
}

// Warehouse is the subset of BigQuery the loader needs
type Warehouse interface {
	TableMetadata(ctx context.Context, ref TableRef) (*bigquery.TableMetadata, error)
	CreateTable(ctx context.Context, ref TableRef, meta *bigquery.TableMetadata) error
	UpdateSchema(ctx context.Context, ref TableRef, schema bigquery.Schema, etag string) error
	Load(ctx context.Context, req LoadRequest) (*models.LoadResult, error)
	Close() error
}

// ClientConfig configures the BigQuery client
type ClientConfig struct {
	ProjectID       string
	CredentialsFile string
	Location        string
}

// Client implements Warehouse on cloud.google.com/go/bigquery
type Client struct {
	client   *bigquery.Client
	location string
	logger   *zap.Logger
}

var _ Warehouse = (*Client)(nil)

// NewClient creates a BigQuery client. The credentials file is used when it
// exists; otherwise application default credentials apply.
func NewClient(ctx context.Context, cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption

	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err == nil {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		} else {
			logger.Warn("credentials file not readable, using application default credentials",
				zap.String("path", cfg.CredentialsFile),
				zap.Error(err))
		}
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create BigQuery client")
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &Client{
		client:   client,
		location: cfg.Location,
		logger:   logger.With(zap.String("component", "bigquery_client")),
	}, nil
}

func (c *Client) table(ref TableRef) *bigquery.Table {
	return c.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table)
}

// TableMetadata returns the table's metadata. A missing table yields an error
// for which IsNotFound is true.
func (c *Client) TableMetadata(ctx context.Context, ref TableRef) (*bigquery.TableMetadata, error) {
	meta, err := c.table(ref).Metadata(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "table not found").
				WithDetail("table", ref.String())
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read table metadata").
			WithDetail("table", ref.String())
	}
	return meta, nil
}

// CreateTable creates the table. A concurrent create yields an error for which
// IsAlreadyExists is true.
func (c *Client) CreateTable(ctx context.Context, ref TableRef, meta *bigquery.TableMetadata) error {
	if err := c.table(ref).Create(ctx, meta); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create table").
			WithDetail("table", ref.String())
	}
	return nil
}

// UpdateSchema replaces the table schema. A non-empty etag makes the update
// conditional on the table not having changed since it was read.
func (c *Client) UpdateSchema(ctx context.Context, ref TableRef, schema bigquery.Schema, etag string) error {
	if _, err := c.table(ref).Update(ctx, bigquery.TableMetadataToUpdate{Schema: schema}, etag); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to update table schema").
			WithDetail("table", ref.String())
	}
	return nil
}

// Load runs a WRITE_APPEND, CREATE_NEVER load job and waits for it
func (c *Client) Load(ctx context.Context, req LoadRequest) (*models.LoadResult, error) {
	var source bigquery.LoadSource
	if req.SourceURI != "" {
		gcsRef := bigquery.NewGCSReference(req.SourceURI)
		gcsRef.SourceFormat = bigquery.JSON
		gcsRef.Compression = bigquery.Gzip
		gcsRef.Schema = req.Schema
		gcsRef.IgnoreUnknownValues = true
		source = gcsRef
	} else {
		readerSource := bigquery.NewReaderSource(bytes.NewReader(req.Data))
		readerSource.SourceFormat = bigquery.JSON
		readerSource.Schema = req.Schema
		readerSource.IgnoreUnknownValues = true
		source = readerSource
	}

	loader := c.table(req.Table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever
	loader.SchemaUpdateOptions = []string{"ALLOW_FIELD_ADDITION"}
	loader.JobID = req.JobID
	loader.Location = c.location
	loader.Labels = req.Labels

	c.logger.Info("submitting load job",
		zap.String("job_id", req.JobID),
		zap.String("table", req.Table.String()),
		zap.Int64("rows", req.Rows),
		zap.Bool("staged", req.SourceURI != ""))

	job, err := loader.Run(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to submit load job").
			WithDetail("job_id", req.JobID)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed waiting for load job").
			WithDetail("job_id", job.ID())
	}
	if status.Err() != nil {
		for i, jobErr := range status.Errors {
			c.logger.Error("load job error detail",
				zap.String("job_id", job.ID()),
				zap.Int("error_index", i),
				zap.String("reason", jobErr.Reason),
				zap.String("location", jobErr.Location),
				zap.String("message", jobErr.Message))
		}
		return nil, LoadJobError(job.ID(), status.Err(), status.Errors)
	}

	result := &models.LoadResult{JobID: job.ID(), Rows: req.Rows}
	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
			result.Rows = stats.OutputRows
			c.logger.Info("load job completed",
				zap.String("job_id", job.ID()),
				zap.Int64("input_file_bytes", stats.InputFileBytes),
				zap.Int64("output_rows", stats.OutputRows))
		}
	}
	return result, nil
}

// Close releases the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

// LoadJobError builds the load_job error for a failed job, carrying every
// error the job reported.
func LoadJobError(jobID string, cause error, jobErrors []*bigquery.Error) *errors.Error {
	details := make([]map[string]string, 0, len(jobErrors))
	messages := make([]string, 0, len(jobErrors))
	for _, je := range jobErrors {
		if je == nil {
			continue
		}
		details = append(details, map[string]string{
			"reason":   je.Reason,
			"location": je.Location,
			"message":  je.Message,
		})
		messages = append(messages, je.Message)
	}

	msg := "load job failed"
	if len(messages) > 0 {
		msg = stringpool.Concat(msg, ": ", strings.Join(messages, "; "))
	}

	var e *errors.Error
	if cause != nil {
		e = errors.Wrap(cause, errors.ErrorTypeLoadJob, msg)
	} else {
		e = errors.New(errors.ErrorTypeLoadJob, msg)
	}
	return e.WithDetail("job_id", jobID).WithDetail("errors", details)
}

// IsNotFound reports whether err carries a 404 from the Google API
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsAlreadyExists reports whether err carries a 409 from the Google API
func IsAlreadyExists(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
