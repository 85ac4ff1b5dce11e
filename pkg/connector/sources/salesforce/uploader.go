package salesforce

import (
	"context"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/logger"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxUploadBatch is the largest collection the composite sobjects endpoint accepts
const MaxUploadBatch = 200

type compositeRequest struct {
	AllOrNone bool            `json:"allOrNone"`
	Records   []models.Record `json:"records"`
}

// RecordUploader inserts records through the composite sobjects API
type RecordUploader struct {
	client *Client
}

// NewRecordUploader creates an uploader over client
func NewRecordUploader(client *Client) *RecordUploader {
	return &RecordUploader{client: client}
}

// Insert creates records as objectName rows, batchSize at a time. Batches are
// sent with allOrNone=false, so one bad record does not fail its neighbours;
// per-record outcomes come back in input order. A batch rejected as a whole
// stops the upload and the error reports how many records were already sent.
func (u *RecordUploader) Insert(ctx context.Context, creds models.Credentials, objectName string, records []models.Record, batchSize int) (result *models.UploadResult, err error) {
	if objectName == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "object name is required")
	}
	if batchSize <= 0 || batchSize > MaxUploadBatch {
		batchSize = MaxUploadBatch
	}

	result = &models.UploadResult{
		Object:  objectName,
		Results: make([]models.RecordResult, 0, len(records)),
	}
	if len(records) == 0 {
		return result, nil
	}

	ctx, span := observability.StartSpan(ctx, "salesforce.insert",
		attribute.String("sobject", objectName),
		attribute.Int("records", len(records)))
	defer func() { observability.EndSpan(span, err) }()

	ub := u.client.dataURL(creds, "composite", "sobjects")
	url := ub.String()
	ub.Close()

	log := u.client.logger.With(logger.ContextFields(ctx)...)
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		req := compositeRequest{
			AllOrNone: false,
			Records:   stampType(objectName, records[start:end]),
		}

		var batch []models.RecordResult
		if err = u.client.postJSON(ctx, creds, url, "insert", req, &batch); err != nil {
			if e, ok := err.(*errors.Error); ok {
				e.WithDetail("object", objectName).WithDetail("sent", start)
			}
			return nil, err
		}
		if len(batch) != end-start {
			return nil, errors.New(errors.ErrorTypeData, "insert response does not match batch size").
				WithDetail("expected", end-start).
				WithDetail("got", len(batch))
		}

		for _, r := range batch {
			if r.Success {
				result.Succeeded++
			} else {
				result.Failed++
			}
		}
		result.Results = append(result.Results, batch...)

		log.Debug("batch inserted",
			zap.String("object", objectName),
			zap.Int("offset", start),
			zap.Int("size", end-start))
	}

	return result, nil
}

// stampType copies records adding attributes.type, leaving the input untouched
func stampType(objectName string, records []models.Record) []models.Record {
	out := make([]models.Record, len(records))
	for i, rec := range records {
		stamped := make(models.Record, len(rec)+1)
		for k, v := range rec {
			stamped[k] = v
		}
		stamped["attributes"] = map[string]interface{}{"type": objectName}
		out[i] = stamped
	}
	return out
}
