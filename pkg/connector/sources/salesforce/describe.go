package salesforce

import (
	"context"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// describeResponse is the subset of the sobject describe body we use
type describeResponse struct {
	Name   string             `json:"name"`
	Label  string             `json:"label"`
	Custom bool               `json:"custom"`
	Fields []models.FieldMeta `json:"fields"`
}

// Describer fetches object metadata
type Describer struct {
	client *Client
}

// NewDescriber creates a describer over client
func NewDescriber(client *Client) *Describer {
	return &Describer{client: client}
}

// Describe returns the field list of objectName. An object the CRM does not
// know, or one described with no fields, is reported as not found.
func (d *Describer) Describe(ctx context.Context, creds models.Credentials, objectName string) (desc *models.ObjectDescriptor, err error) {
	if objectName == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "object name is required")
	}

	ctx, span := observability.StartSpan(ctx, "salesforce.describe",
		attribute.String("sobject", objectName))
	defer func() { observability.EndSpan(span, err) }()

	ub := d.client.dataURL(creds, "sobjects", objectName, "describe")
	url := ub.String()
	ub.Close()

	var body describeResponse
	if err = d.client.getJSON(ctx, creds, url, "describe", &body); err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.WithDetail("object", objectName)
		}
		return nil, err
	}

	if len(body.Fields) == 0 {
		return nil, errors.New(errors.ErrorTypeNotFound, "object not found").
			WithDetail("object", objectName).
			WithDetail("reason", "describe returned no fields")
	}

	name := body.Name
	if name == "" {
		name = objectName
	}
	desc = models.NewObjectDescriptor(name, body.Fields)
	desc.Label = body.Label

	d.client.logger.Debug("object described",
		zap.String("object", name),
		zap.Int("fields", len(desc.Fields)),
		zap.Bool("custom", desc.IsCustom))

	return desc, nil
}
