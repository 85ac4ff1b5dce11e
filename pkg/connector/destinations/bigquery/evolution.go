package bigquery

import (
	"strings"

	"cloud.google.com/go/bigquery"
)

// EvolveSchema widens an existing table schema with the columns of mapped it
// lacks. Existing columns keep their position, type and mode; new columns are
// appended NULLABLE in mapped order. Names compare case-insensitively, as
// column names do in the warehouse. added is empty when existing already
// covers mapped.
func EvolveSchema(existing, mapped bigquery.Schema) (merged bigquery.Schema, added []string) {
	have := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		have[strings.ToLower(f.Name)] = struct{}{}
	}

	merged = append(bigquery.Schema(nil), existing...)
	for _, f := range mapped {
		key := strings.ToLower(f.Name)
		if _, ok := have[key]; ok {
			continue
		}
		have[key] = struct{}{}
		column := *f
		column.Required = false
		merged = append(merged, &column)
		added = append(added, f.Name)
	}
	return merged, added
}

// missingColumns lists the columns of mapped that existing lacks
func missingColumns(existing, mapped bigquery.Schema) []string {
	_, added := EvolveSchema(existing, mapped)
	return added
}
