package bigquery

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

type fakeWarehouse struct {
	tables    map[string]*bigquery.TableMetadata
	createErr error
	updateErr error
	loadErr   error
	created   []*bigquery.TableMetadata
	updates   []bigquery.Schema
	etags     []string
	loads     []LoadRequest
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{tables: make(map[string]*bigquery.TableMetadata)}
}

func (f *fakeWarehouse) TableMetadata(_ context.Context, ref TableRef) (*bigquery.TableMetadata, error) {
	if meta, ok := f.tables[ref.String()]; ok {
		return meta, nil
	}
	return nil, errors.Wrap(&googleapi.Error{Code: http.StatusNotFound}, errors.ErrorTypeNotFound, "table not found")
}

func (f *fakeWarehouse) CreateTable(_ context.Context, ref TableRef, meta *bigquery.TableMetadata) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, meta)
	f.tables[ref.String()] = meta
	return nil
}

func (f *fakeWarehouse) UpdateSchema(_ context.Context, ref TableRef, schema bigquery.Schema, etag string) error {
	f.etags = append(f.etags, etag)
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, schema)
	f.tables[ref.String()].Schema = schema
	return nil
}

func (f *fakeWarehouse) Load(_ context.Context, req LoadRequest) (*models.LoadResult, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.loads = append(f.loads, req)
	return &models.LoadResult{JobID: req.JobID, Rows: req.Rows}, nil
}

func (f *fakeWarehouse) Close() error { return nil }

type fakeStager struct {
	objects map[string][]byte
}

func (s *fakeStager) Stage(_ context.Context, object string, data []byte) (string, error) {
	uri := "gs://bucket/sfbridge/" + object + "/batch.json.gz"
	s.objects[uri] = data
	return uri, nil
}

func testSchema(withOwner bool) *WarehouseSchema {
	fields := []models.FieldMeta{{Name: "Id", NativeType: "id"}, {Name: "Name", NativeType: "string"}}
	if withOwner {
		fields = append(fields, models.FieldMeta{Name: "OwnerId", NativeType: "reference"})
	}
	return MapSchema(models.NewObjectDescriptor("Account", fields))
}

func newTestLoader(wh Warehouse, stager Stager) *Loader {
	return NewLoader(wh, stager, LoaderConfig{
		ProjectID: "proj",
		DatasetID: "salesforce",
		Labels:    map[string]string{"env": "test"},
	}, zap.NewNop())
}

func TestEnsureTable_CreatesClustered(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)
	ref := loader.TableFor("Account")

	got, err := loader.EnsureTable(context.Background(), ref, testSchema(true))
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	require.Len(t, wh.created, 1)
	meta := wh.created[0]
	require.NotNil(t, meta.Clustering)
	assert.Equal(t, []string{"OwnerId"}, meta.Clustering.Fields)
	assert.Len(t, meta.Schema, 3)
}

func TestEnsureTable_NoClusterColumn(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)

	_, err := loader.EnsureTable(context.Background(), loader.TableFor("Account"), testSchema(false))
	require.NoError(t, err)
	require.Len(t, wh.created, 1)
	assert.Nil(t, wh.created[0].Clustering)
}

func TestEnsureTable_ExistingTableNotRecreated(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)
	ref := loader.TableFor("Account")
	wh.tables[ref.String()] = &bigquery.TableMetadata{Schema: testSchema(true).Schema}

	_, err := loader.EnsureTable(context.Background(), ref, testSchema(true))
	require.NoError(t, err)
	assert.Empty(t, wh.created)
	assert.Empty(t, wh.updates)
}

func TestEnsureTable_TwiceCreatesOnce(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)
	ref := loader.TableFor("Account")

	first, err := loader.EnsureTable(context.Background(), ref, testSchema(true))
	require.NoError(t, err)
	second, err := loader.EnsureTable(context.Background(), ref, testSchema(true))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, wh.created, 1)
	assert.Empty(t, wh.updates)
}

func TestEnsureTable_AddsMissingColumns(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)
	ref := loader.TableFor("Account")
	wh.tables[ref.String()] = &bigquery.TableMetadata{
		ETag: "etag-1",
		Schema: bigquery.Schema{
			{Name: "Id", Type: bigquery.StringFieldType, Required: true},
		},
	}

	schema := MapSchema(models.NewObjectDescriptor("Account", []models.FieldMeta{
		{Name: "Id", NativeType: "id"},
		{Name: "Amount__c", NativeType: "currency"},
	}))
	_, err := loader.EnsureTable(context.Background(), ref, schema)
	require.NoError(t, err)

	assert.Empty(t, wh.created)
	require.Len(t, wh.updates, 1)
	assert.Equal(t, []string{"etag-1"}, wh.etags)

	updated := wh.updates[0]
	require.Len(t, updated, 2)
	assert.Equal(t, "Id", updated[0].Name)
	assert.True(t, updated[0].Required)
	assert.Equal(t, "Amount__c", updated[1].Name)
	assert.False(t, updated[1].Required)
	assert.Equal(t, updated, schema.Schema)

	_, err = loader.Append(context.Background(), ref, []models.Record{{"Id": "001", "Amount__c": 12.5}}, schema)
	require.NoError(t, err)
	require.Len(t, wh.loads, 1)
	assert.Len(t, wh.loads[0].Schema, 2)
}

func TestEnsureTable_KeepsExtraExistingColumns(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)
	ref := loader.TableFor("Account")
	wh.tables[ref.String()] = &bigquery.TableMetadata{
		Schema: bigquery.Schema{
			{Name: "id", Type: bigquery.StringFieldType},
			{Name: "Name", Type: bigquery.StringFieldType},
			{Name: "OwnerId", Type: bigquery.StringFieldType},
			{Name: "Legacy__c", Type: bigquery.StringFieldType},
		},
	}

	schema := testSchema(true)
	_, err := loader.EnsureTable(context.Background(), ref, schema)
	require.NoError(t, err)

	assert.Empty(t, wh.updates)
	require.Len(t, schema.Schema, 4)
	assert.Equal(t, "Legacy__c", schema.Schema[3].Name)
}

func TestEnsureTable_SchemaUpdateFailure(t *testing.T) {
	wh := newFakeWarehouse()
	wh.updateErr = errors.Wrap(&googleapi.Error{Code: http.StatusPreconditionFailed}, errors.ErrorTypeConnection, "failed to update table schema")
	loader := newTestLoader(wh, nil)
	ref := loader.TableFor("Account")
	wh.tables[ref.String()] = &bigquery.TableMetadata{
		Schema: bigquery.Schema{{Name: "Id", Type: bigquery.StringFieldType}},
	}

	_, err := loader.EnsureTable(context.Background(), ref, testSchema(true))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestEnsureTable_ConcurrentCreateIsSuccess(t *testing.T) {
	wh := newFakeWarehouse()
	wh.createErr = errors.Wrap(&googleapi.Error{Code: http.StatusConflict}, errors.ErrorTypeConnection, "failed to create table")
	loader := newTestLoader(wh, nil)

	_, err := loader.EnsureTable(context.Background(), loader.TableFor("Account"), testSchema(true))
	assert.NoError(t, err)
}

func TestEnsureTable_CreateFailure(t *testing.T) {
	wh := newFakeWarehouse()
	wh.createErr = errors.Wrap(&googleapi.Error{Code: http.StatusForbidden}, errors.ErrorTypeConnection, "failed to create table")
	loader := newTestLoader(wh, nil)

	_, err := loader.EnsureTable(context.Background(), loader.TableFor("Account"), testSchema(true))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestAppend_Inline(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)
	ref := loader.TableFor("Account")

	result, err := loader.Append(context.Background(), ref, []models.Record{
		{"attributes": map[string]interface{}{"type": "Account"}, "Id": "001", "Name": "Acme"},
		{"Id": "002", "Name": "Globex"},
	}, testSchema(true))
	require.NoError(t, err)

	require.Len(t, wh.loads, 1)
	req := wh.loads[0]
	assert.Equal(t, ref, req.Table)
	assert.Empty(t, req.SourceURI)
	assert.Equal(t, int64(2), req.Rows)
	assert.Equal(t, 2, bytes.Count(req.Data, []byte("\n")))
	assert.NotContains(t, string(req.Data), "attributes")
	assert.Len(t, req.Schema, 3)

	assert.Regexp(t, regexp.MustCompile(`^sfbridge_Account_[0-9a-f-]{36}$`), req.JobID)
	assert.Equal(t, "test", req.Labels["env"])
	assert.Equal(t, "account", req.Labels["object"])

	assert.Equal(t, req.JobID, result.JobID)
	assert.Equal(t, int64(2), result.Rows)
}

func TestAppend_Staged(t *testing.T) {
	wh := newFakeWarehouse()
	stager := &fakeStager{objects: map[string][]byte{}}
	loader := newTestLoader(wh, stager)

	_, err := loader.Append(context.Background(), loader.TableFor("Invoice__c"), []models.Record{{"Id": "a01"}}, testSchema(false))
	require.NoError(t, err)

	require.Len(t, wh.loads, 1)
	assert.Nil(t, wh.loads[0].Data)
	assert.True(t, strings.HasPrefix(wh.loads[0].SourceURI, "gs://bucket/"))
	assert.Contains(t, stager.objects, wh.loads[0].SourceURI)
	assert.Equal(t, "invoice__c", wh.loads[0].Labels["object"])
}

func TestAppend_EmptyBatchRunsNoJob(t *testing.T) {
	wh := newFakeWarehouse()
	loader := newTestLoader(wh, nil)

	result, err := loader.Append(context.Background(), loader.TableFor("Account"), nil, testSchema(true))
	require.NoError(t, err)
	assert.Empty(t, result.JobID)
	assert.Zero(t, result.Rows)
	assert.Empty(t, wh.loads)
}

func TestAppend_JobFailure(t *testing.T) {
	wh := newFakeWarehouse()
	wh.loadErr = LoadJobError("sfbridge_Account_x", nil, []*bigquery.Error{{Reason: "invalid", Message: "bad row"}})
	loader := newTestLoader(wh, nil)

	_, err := loader.Append(context.Background(), loader.TableFor("Account"), []models.Record{{"Id": "1"}}, testSchema(true))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLoadJob))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "proj.salesforce.Account", e.Details["table"])
}

func TestJobIDAndLabels(t *testing.T) {
	assert.True(t, strings.HasPrefix(JobID("Invoice__c"), "sfbridge_Invoice__c_"))
	assert.NotEqual(t, JobID("Account"), JobID("Account"))
	assert.Equal(t, "weird_name", labelValue("Weird Name"))
	assert.Len(t, labelValue(strings.Repeat("x", 100)), 63)
}
