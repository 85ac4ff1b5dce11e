package bigquery

import (
	"context"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/logger"
	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultClusterField is the column tables are clustered on
const DefaultClusterField = "OwnerId"

// jobPrefix starts every load job id
const jobPrefix = "sfbridge"

// Stager uploads an NDJSON batch somewhere a load job can read it and returns
// its URI.
type Stager interface {
	Stage(ctx context.Context, object string, ndjson []byte) (string, error)
}

// LoaderConfig configures table placement and job labelling
type LoaderConfig struct {
	ProjectID    string
	DatasetID    string
	ClusterField string
	Labels       map[string]string
}

// Loader creates tables and appends record batches
type Loader struct {
	warehouse Warehouse
	stager    Stager
	config    LoaderConfig
	logger    *zap.Logger
}

// NewLoader creates a loader. stager may be nil, in which case batches are
// sent inline with the load job.
func NewLoader(warehouse Warehouse, stager Stager, config LoaderConfig, log *zap.Logger) *Loader {
	if config.ClusterField == "" {
		config.ClusterField = DefaultClusterField
	}
	return &Loader{
		warehouse: warehouse,
		stager:    stager,
		config:    config,
		logger:    log.With(zap.String("component", "bigquery_loader")),
	}
}

// TableFor returns the configured table for a CRM object
func (l *Loader) TableFor(object string) TableRef {
	return TableRef{
		Project: l.config.ProjectID,
		Dataset: l.config.DatasetID,
		Table:   object,
	}
}

// EnsureTable makes sure ref exists and has every column of schema. A missing
// table is created with schema, clustered on the cluster field when the schema
// has that column. Losing a create race to another caller counts as success.
// An existing table gains the columns it lacks, and schema.Schema is replaced
// by the table's effective schema so that load jobs match it.
func (l *Loader) EnsureTable(ctx context.Context, ref TableRef, schema *WarehouseSchema) (_ TableRef, err error) {
	ctx, span := observability.StartSpan(ctx, "bigquery.ensure_table",
		attribute.String("table", ref.String()))
	defer func() { observability.EndSpan(span, err) }()

	log := l.logger.With(logger.ContextFields(ctx)...).With(zap.String("table", ref.String()))

	timer := metrics.NewTimer()
	existing, err := l.warehouse.TableMetadata(ctx, ref)
	metrics.ObserveUpstream(metrics.TargetWarehouse, "table_metadata", statusOf(err), timer.Stop())
	if err == nil {
		if err = l.evolve(ctx, ref, existing, schema, log); err != nil {
			return TableRef{}, err
		}
		return ref, nil
	}
	if !IsNotFound(err) && !errors.IsType(err, errors.ErrorTypeNotFound) {
		return TableRef{}, err
	}

	meta := &bigquery.TableMetadata{
		Name:   ref.Table,
		Schema: schema.Schema,
		Labels: l.config.Labels,
	}
	if schema.HasColumn(l.config.ClusterField) {
		meta.Clustering = &bigquery.Clustering{Fields: []string{l.config.ClusterField}}
	} else {
		log.Info("cluster column absent, creating unclustered table",
			zap.String("cluster_field", l.config.ClusterField))
	}

	timer = metrics.NewTimer()
	err = l.warehouse.CreateTable(ctx, ref, meta)
	metrics.ObserveUpstream(metrics.TargetWarehouse, "create_table", statusOf(err), timer.Stop())
	if err != nil {
		if IsAlreadyExists(err) {
			log.Info("table created concurrently")
			return ref, nil
		}
		return TableRef{}, err
	}

	log.Info("table created", zap.Int("columns", len(schema.Schema)))
	return ref, nil
}

// evolve adds the columns of schema that the existing table lacks
func (l *Loader) evolve(ctx context.Context, ref TableRef, existing *bigquery.TableMetadata, schema *WarehouseSchema, log *zap.Logger) error {
	merged, added := EvolveSchema(existing.Schema, schema.Schema)
	if len(added) == 0 {
		log.Debug("table exists")
		schema.Schema = merged
		return nil
	}

	timer := metrics.NewTimer()
	err := l.warehouse.UpdateSchema(ctx, ref, merged, existing.ETag)
	metrics.ObserveUpstream(metrics.TargetWarehouse, "update_schema", statusOf(err), timer.Stop())
	if err != nil {
		// A concurrent load may have added the same columns first.
		current, readErr := l.warehouse.TableMetadata(ctx, ref)
		if readErr != nil || len(missingColumns(current.Schema, schema.Schema)) > 0 {
			return err
		}
		log.Info("table schema widened concurrently", zap.Strings("columns", added))
		schema.Schema, _ = EvolveSchema(current.Schema, schema.Schema)
		return nil
	}

	metrics.ColumnsAdded.WithLabelValues(ref.Table).Add(float64(len(added)))
	log.Info("table schema widened", zap.Strings("columns", added))
	schema.Schema = merged
	return nil
}

// Append loads records into ref with one load job. An empty batch runs no job.
func (l *Loader) Append(ctx context.Context, ref TableRef, records []models.Record, schema *WarehouseSchema) (result *models.LoadResult, err error) {
	if len(records) == 0 {
		return &models.LoadResult{}, nil
	}

	ctx, span := observability.StartSpan(ctx, "bigquery.append",
		attribute.String("table", ref.String()),
		attribute.Int("records", len(records)))
	defer func() { observability.EndSpan(span, err) }()

	data, err := EncodeNDJSON(records)
	if err != nil {
		return nil, err
	}

	req := LoadRequest{
		Table:  ref,
		Schema: schema.Schema,
		JobID:  JobID(ref.Table),
		Labels: l.jobLabels(ref.Table),
		Rows:   int64(len(records)),
	}

	if l.stager != nil {
		timer := metrics.NewTimer()
		uri, stageErr := l.stager.Stage(ctx, ref.Table, data)
		metrics.ObserveUpstream(metrics.TargetStaging, "stage", statusOf(stageErr), timer.Stop())
		if stageErr != nil {
			return nil, stageErr
		}
		req.SourceURI = uri
	} else {
		req.Data = data
	}

	timer := metrics.NewTimer()
	result, err = l.warehouse.Load(ctx, req)
	metrics.ObserveUpstream(metrics.TargetWarehouse, "load", statusOf(err), timer.Stop())
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.WithDetail("table", ref.String())
		}
		return nil, err
	}

	metrics.RowsLoaded.WithLabelValues(ref.Table).Add(float64(result.Rows))
	l.logger.With(logger.ContextFields(ctx)...).Info("batch appended",
		zap.String("table", ref.String()),
		zap.String("job_id", result.JobID),
		zap.Int64("rows", result.Rows))

	return result, nil
}

func (l *Loader) jobLabels(object string) map[string]string {
	labels := make(map[string]string, len(l.config.Labels)+2)
	for k, v := range l.config.Labels {
		labels[k] = v
	}
	labels["source"] = jobPrefix
	labels["object"] = labelValue(object)
	return labels
}

// JobID returns a fresh load job id for object: sfbridge_<object>_<uuid>
func JobID(object string) string {
	return jobPrefix + "_" + sanitize(object, false) + "_" + uuid.NewString()
}

// labelValue lowercases and restricts s to the label character set
func labelValue(s string) string {
	v := sanitize(strings.ToLower(s), true)
	if len(v) > 63 {
		v = v[:63]
	}
	return v
}

func sanitize(s string, lower bool) string {
	b := stringpool.GetBuilder(stringpool.Small)
	defer stringpool.PutBuilder(b, stringpool.Small)

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteByte(byte(r))
		case r >= 'A' && r <= 'Z' && !lower:
			b.WriteByte(byte(r))
		default:
			b.WriteByte('_')
		}
	}
	return stringpool.Clone(b.String())
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(errors.TypeOf(err))
}
