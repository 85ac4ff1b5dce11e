package bigquery

import (
	stderrors "errors"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestTableRef_String(t *testing.T) {
	assert.Equal(t, "proj.salesforce.Account", TableRef{Project: "proj", Dataset: "salesforce", Table: "Account"}.String())
}

func TestStatusHelpers(t *testing.T) {
	notFound := errors.Wrap(&googleapi.Error{Code: http.StatusNotFound}, errors.ErrorTypeNotFound, "table not found")
	conflict := errors.Wrap(&googleapi.Error{Code: http.StatusConflict}, errors.ErrorTypeConnection, "failed to create table")

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsAlreadyExists(notFound))
	assert.True(t, IsAlreadyExists(conflict))
	assert.False(t, IsNotFound(stderrors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestLoadJobError(t *testing.T) {
	cause := stderrors.New("job failed")
	err := LoadJobError("sfbridge_Account_1", cause, []*bigquery.Error{
		{Reason: "invalid", Location: "row 3", Message: "no such field: Foo"},
		nil,
		{Reason: "invalid", Location: "row 9", Message: "bad date"},
	})

	require.NotNil(t, err)
	assert.Equal(t, errors.ErrorTypeLoadJob, err.Type)
	assert.Equal(t, http.StatusBadGateway, errors.HTTPStatus(err))
	assert.Contains(t, err.Message, "no such field: Foo")
	assert.Contains(t, err.Message, "bad date")
	assert.Equal(t, "sfbridge_Account_1", err.Details["job_id"])

	details, ok := err.Details["errors"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, details, 2)
	assert.Equal(t, "row 9", details[1]["location"])
	assert.True(t, errors.Is(err, cause))
}
