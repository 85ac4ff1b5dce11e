// Package models provides the request-scoped data types that flow between the
// CRM extraction side and the warehouse load side of sfbridge.
package models

// Record is a single CRM row as decoded from a query response.
// Values are scalars or nested structures (maps and slices).
type Record map[string]interface{}

// Query is a complete SOQL statement. It is built once from an
// ObjectDescriptor and a DateRange and never modified afterwards.
type Query string

// String returns the statement text
func (q Query) String() string {
	return string(q)
}

// Page is one slice of a query result set.
type Page struct {
	// Records are returned in CRM order
	Records []Record `json:"records"`

	// NextCursor is the opaque resource path of the following page.
	// Empty means end of result set.
	NextCursor string `json:"nextRecordsUrl,omitempty"`

	// TotalSize is the size of the whole result set as reported by the CRM
	TotalSize int `json:"totalSize"`

	// Done reports whether this is the last page
	Done bool `json:"done"`
}

// HasMore reports whether another page can be fetched with NextCursor
func (p *Page) HasMore() bool {
	return p != nil && p.NextCursor != ""
}

// LoadResult describes one completed warehouse load job.
type LoadResult struct {
	JobID string `json:"job_id"`
	// Rows is taken from the job's load statistics when available,
	// otherwise it is the number of rows submitted.
	Rows int64 `json:"rows"`
}

// RecordResult is the per-record outcome of an insert into the CRM.
type RecordResult struct {
	ID      string        `json:"id,omitempty"`
	Success bool          `json:"success"`
	Errors  []RecordError `json:"errors,omitempty"`
}

// RecordError is one failure reported by the CRM for a record.
type RecordError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

// UploadResult aggregates the outcome of inserting a batch of records.
// Results are in input order.
type UploadResult struct {
	Object    string         `json:"object"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []RecordResult `json:"results"`
}
