package salesforce

import (
	"net/http"
	"strings"
	"testing"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/sfbridge/pkg/json"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoInsert answers a composite insert, failing every record whose Name is empty
func echoInsert(t *testing.T, batchSizes *[]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			AllOrNone bool                     `json:"allOrNone"`
			Records   []map[string]interface{} `json:"records"`
		}
		if !assert.NoError(t, jsonpool.Decode(r.Body, &req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.False(t, req.AllOrNone)
		*batchSizes = append(*batchSizes, len(req.Records))

		out := make([]map[string]interface{}, len(req.Records))
		for i, rec := range req.Records {
			attrs, _ := rec["attributes"].(map[string]interface{})
			assert.Equal(t, "Invoice__c", attrs["type"])

			name, _ := rec["Name"].(string)
			if name == "" {
				out[i] = map[string]interface{}{
					"success": false,
					"errors": []map[string]interface{}{{
						"statusCode": "REQUIRED_FIELD_MISSING",
						"message":    "Required fields are missing: [Name]",
						"fields":     []string{"Name"},
					}},
				}
				continue
			}
			out[i] = map[string]interface{}{"id": "a01" + strings.Repeat("0", 3) + name, "success": true, "errors": []interface{}{}}
		}
		writeJSON(t, w, http.StatusOK, out)
	}
}

func TestInsert_BatchesAndOrder(t *testing.T) {
	var sizes []int
	_, client, creds := newFakeInstance(t, map[string]http.HandlerFunc{
		"/services/data/v59.0/composite/sobjects": echoInsert(t, &sizes),
	})

	records := []models.Record{
		{"Name": "A"}, {"Name": ""}, {"Name": "C"}, {"Name": "D"}, {"Name": "E"},
	}

	result, err := NewRecordUploader(client).Insert(background(), creds, "Invoice__c", records, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, "Invoice__c", result.Object)
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 5)
	assert.Equal(t, "a01000A", result.Results[0].ID)
	assert.False(t, result.Results[1].Success)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", result.Results[1].Errors[0].StatusCode)
	assert.Equal(t, "a01000E", result.Results[4].ID)

	_, stamped := records[0]["attributes"]
	assert.False(t, stamped, "input records must not be modified")
}

func TestInsert_BatchSizeCapped(t *testing.T) {
	var sizes []int
	_, client, creds := newFakeInstance(t, map[string]http.HandlerFunc{
		"/services/data/v59.0/composite/sobjects": echoInsert(t, &sizes),
	})

	records := make([]models.Record, 450)
	for i := range records {
		records[i] = models.Record{"Name": "n"}
	}

	result, err := NewRecordUploader(client).Insert(background(), creds, "Invoice__c", records, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{200, 200, 50}, sizes)
	assert.Equal(t, 450, result.Succeeded)
}

func TestInsert_Empty(t *testing.T) {
	fake, client, creds := newFakeInstance(t, nil)

	result, err := NewRecordUploader(client).Insert(background(), creds, "Invoice__c", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Equal(t, 0, fake.requestCount())
}

func TestInsert_RejectedBatch(t *testing.T) {
	_, client, creds := newFakeInstance(t, map[string]http.HandlerFunc{
		"/services/data/v59.0/composite/sobjects": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`[{"message":"sObject type 'Nope__c' is not supported.","errorCode":"INVALID_TYPE"}]`))
		},
	})

	_, err := NewRecordUploader(client).Insert(background(), creds, "Nope__c", []models.Record{{"Name": "x"}}, 0)
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeConnection, e.Type)
	assert.Equal(t, "Nope__c", e.Details["object"])
	assert.Equal(t, 0, e.Details["sent"])
}
