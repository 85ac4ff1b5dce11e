package bigquery

import (
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"go.uber.org/zap"
)

// GapReason explains why a native type did not map exactly
type GapReason string

const (
	// GapDowngraded marks a recognised type stored as STRING on purpose
	GapDowngraded GapReason = "downgraded"
	// GapUnrecognised marks a type the mapper does not know
	GapUnrecognised GapReason = "unrecognised"
)

// MappingGap records a field whose native type was not carried over as is.
// It is informational: the column still exists, typed STRING.
type MappingGap struct {
	Field      string             `json:"field"`
	NativeType string             `json:"native_type"`
	Mapped     bigquery.FieldType `json:"mapped"`
	Reason     GapReason          `json:"reason"`
}

// WarehouseSchema is an ordered warehouse schema plus the gaps met while building it
type WarehouseSchema struct {
	Schema bigquery.Schema `json:"-"`
	Gaps   []MappingGap    `json:"gaps,omitempty"`
}

// HasColumn reports whether the schema has a top-level column called name
func (s *WarehouseSchema) HasColumn(name string) bool {
	for _, f := range s.Schema {
		if f.Name == name {
			return true
		}
	}
	return false
}

var exactTypes = map[string]bigquery.FieldType{
	"boolean":    bigquery.BooleanFieldType,
	"bool":       bigquery.BooleanFieldType,
	"int":        bigquery.IntegerFieldType,
	"long":       bigquery.IntegerFieldType,
	"integer":    bigquery.IntegerFieldType,
	"int64":      bigquery.IntegerFieldType,
	"double":     bigquery.FloatFieldType,
	"currency":   bigquery.FloatFieldType,
	"percent":    bigquery.FloatFieldType,
	"float":      bigquery.FloatFieldType,
	"float64":    bigquery.FloatFieldType,
	"numeric":    bigquery.NumericFieldType,
	"bignumeric": bigquery.BigNumericFieldType,
	"date":       bigquery.DateFieldType,
	"timestamp":  bigquery.TimestampFieldType,
	"json":       bigquery.JSONFieldType,
	"bytes":      bigquery.BytesFieldType,
	"geography":  bigquery.GeographyFieldType,

	// Text-like CRM types, and compound ones that arrive JSON-encoded
	"id":              bigquery.StringFieldType,
	"string":          bigquery.StringFieldType,
	"reference":       bigquery.StringFieldType,
	"picklist":        bigquery.StringFieldType,
	"multipicklist":   bigquery.StringFieldType,
	"combobox":        bigquery.StringFieldType,
	"textarea":        bigquery.StringFieldType,
	"encryptedstring": bigquery.StringFieldType,
	"email":           bigquery.StringFieldType,
	"url":             bigquery.StringFieldType,
	"phone":           bigquery.StringFieldType,
	"base64":          bigquery.StringFieldType,
	"address":         bigquery.StringFieldType,
	"location":        bigquery.StringFieldType,
	"anytype":         bigquery.StringFieldType,
}

// downgraded types are recognised but always stored as STRING.
// CRM datetimes carry a +0000 offset that load jobs do not parse as DATETIME,
// and CRM times end in Z, which TIME columns reject.
var downgraded = map[string]struct{}{
	"datetime": {},
	"time":     {},
}

// MapType returns the warehouse type for a native type tag. It is total:
// unknown tags map to STRING.
func MapType(native string) bigquery.FieldType {
	t, _ := classify(native)
	return t
}

func classify(native string) (bigquery.FieldType, GapReason) {
	key := strings.ToLower(strings.TrimSpace(native))
	if _, ok := downgraded[key]; ok {
		return bigquery.StringFieldType, GapDowngraded
	}
	if t, ok := exactTypes[key]; ok {
		return t, ""
	}
	return bigquery.StringFieldType, GapUnrecognised
}

// MapSchema builds a NULLABLE column for every field of desc, in describe order
func MapSchema(desc *models.ObjectDescriptor) *WarehouseSchema {
	ws := &WarehouseSchema{
		Schema: make(bigquery.Schema, 0, len(desc.Fields)),
	}

	for _, f := range desc.Fields {
		t, reason := classify(f.NativeType)
		ws.Schema = append(ws.Schema, &bigquery.FieldSchema{
			Name:        f.Name,
			Type:        t,
			Description: f.Label,
		})
		if reason != "" {
			ws.Gaps = append(ws.Gaps, MappingGap{
				Field:      f.Name,
				NativeType: f.NativeType,
				Mapped:     t,
				Reason:     reason,
			})
		}
	}

	return ws
}

// ReportGaps logs each gap at WARN and counts it by native type
func ReportGaps(log *zap.Logger, object string, gaps []MappingGap) {
	for _, g := range gaps {
		log.Warn("schema mapping gap",
			zap.String("object", object),
			zap.String("field", g.Field),
			zap.String("native_type", g.NativeType),
			zap.String("mapped", string(g.Mapped)),
			zap.String("reason", string(g.Reason)))
		metrics.SchemaMappingGaps.WithLabelValues(strings.ToLower(g.NativeType)).Inc()
	}
}
