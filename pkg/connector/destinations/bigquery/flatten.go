package bigquery

import (
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/sfbridge/pkg/json"
	"github.com/ajitpratap0/sfbridge/pkg/models"
)

// attributesKey is the per-record metadata block the CRM adds to query rows
const attributesKey = "attributes"

// FlattenRecord turns a CRM record into a warehouse row: the attributes block
// is dropped, nested maps and slices become their JSON text, scalars pass
// through unchanged.
func FlattenRecord(rec models.Record) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		if k == attributesKey {
			continue
		}
		switch v.(type) {
		case map[string]interface{}, []interface{}, models.Record:
			s, err := jsonpool.MarshalString(v)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode nested value").
					WithDetail("field", k)
			}
			row[k] = s
		default:
			row[k] = v
		}
	}
	return row, nil
}

// FlattenRecords flattens a page of records in order
func FlattenRecords(records []models.Record) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		row, err := FlattenRecord(rec)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// EncodeNDJSON flattens records and renders them one JSON object per line
func EncodeNDJSON(records []models.Record) ([]byte, error) {
	rows, err := FlattenRecords(records)
	if err != nil {
		return nil, err
	}
	data, err := jsonpool.MarshalLines(rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode rows")
	}
	return data, nil
}
