package salesforce

import (
	"net/http"
	"testing"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	_, client, creds := newFakeInstance(t, map[string]http.HandlerFunc{
		"/services/data/v59.0/sobjects/Invoice__c/describe": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"name":   "Invoice__c",
				"label":  "Invoice",
				"custom": true,
				"fields": []map[string]interface{}{
					{"name": "Id", "type": "id", "nillable": false},
					{"name": "Amount__c", "type": "currency", "nillable": true},
					{"name": "Due__c", "type": "datetime", "nillable": true},
				},
			})
		},
	})

	desc, err := NewDescriber(client).Describe(background(), creds, "Invoice__c")
	require.NoError(t, err)

	assert.Equal(t, "Invoice__c", desc.Name)
	assert.Equal(t, "Invoice", desc.Label)
	assert.True(t, desc.IsCustom)
	assert.Equal(t, []string{"Id", "Amount__c", "Due__c"}, desc.FieldNames())
	assert.Equal(t, "currency", desc.Fields[1].NativeType)
}

func TestDescribe_StandardObject(t *testing.T) {
	_, client, creds := newFakeInstance(t, map[string]http.HandlerFunc{
		"/services/data/v59.0/sobjects/Account/describe": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"name":   "Account",
				"fields": []map[string]interface{}{{"name": "Id", "type": "id"}},
			})
		},
	})

	desc, err := NewDescriber(client).Describe(background(), creds, "Account")
	require.NoError(t, err)
	assert.False(t, desc.IsCustom)
}

func TestDescribe_NotFound(t *testing.T) {
	_, client, creds := newFakeInstance(t, nil)

	_, err := NewDescriber(client).Describe(background(), creds, "Nope__c")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "object not found")
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(err))
}

func TestDescribe_NoFieldsIsNotFound(t *testing.T) {
	_, client, creds := newFakeInstance(t, map[string]http.HandlerFunc{
		"/services/data/v59.0/sobjects/Ghost__c/describe": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"name": "Ghost__c", "fields": []interface{}{}})
		},
	})

	_, err := NewDescriber(client).Describe(background(), creds, "Ghost__c")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestDescribe_Unauthorized(t *testing.T) {
	_, client, creds := newFakeInstance(t, nil)
	creds.AccessToken = "expired"

	_, err := NewDescriber(client).Describe(background(), creds, "Account")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestDescribe_ServerErrorKeepsStatusAndBody(t *testing.T) {
	_, client, creds := newFakeInstance(t, map[string]http.HandlerFunc{
		"/services/data/v59.0/sobjects/Account/describe": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("maintenance"))
		},
	})

	_, err := NewDescriber(client).Describe(background(), creds, "Account")
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeConnection, e.Type)
	assert.Equal(t, http.StatusServiceUnavailable, e.Details["status"])
	assert.Equal(t, "maintenance", e.Details["body"])
	assert.Contains(t, e.Message, "503")
}

func TestDescribe_EmptyName(t *testing.T) {
	fake, client, creds := newFakeInstance(t, nil)

	_, err := NewDescriber(client).Describe(background(), creds, "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, 0, fake.requestCount())
}
