package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Salesforce.ClientID = "3MVG9client"
	cfg.Salesforce.ClientSecret = "secret"
	cfg.BigQuery.ProjectID = "acme-analytics"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("SERVICE_IP", "")
	t.Setenv("SERVICE_PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4445, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:4445", cfg.Server.Address())
	assert.Equal(t, 10*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "v59.0", cfg.Salesforce.APIVersion)
	assert.Equal(t, []string{"refresh_token"}, cfg.Salesforce.Scopes)
	assert.Equal(t, 200, cfg.Salesforce.UploadBatchSize)
	assert.Equal(t, 50000, cfg.BigQuery.JobRows)
	assert.Equal(t, "salesforce", cfg.BigQuery.DatasetID)
	assert.Equal(t, "./googleapis.json", cfg.BigQuery.CredentialsFile)
	assert.Equal(t, "OwnerId", cfg.BigQuery.ClusterField)
	assert.True(t, cfg.HTTPClient.EnableHTTP2)
	assert.False(t, cfg.Server.TLSEnabled())
}

func TestLoad_LegacyEnvAliases(t *testing.T) {
	t.Setenv("SALES_CLIENT_KEY", "legacy-id")
	t.Setenv("SALES_CLIENT_SECRET", "legacy-secret")
	t.Setenv("BIGQUERY_DATASET_ID", "crm_raw")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "legacy-project")
	t.Setenv("SERVICE_IP", "127.0.0.1")
	t.Setenv("SERVICE_PORT", "9000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "legacy-id", cfg.Salesforce.ClientID)
	assert.Equal(t, "legacy-secret", cfg.Salesforce.ClientSecret)
	assert.Equal(t, "crm_raw", cfg.BigQuery.DatasetID)
	assert.Equal(t, "legacy-project", cfg.BigQuery.ProjectID)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address())
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("SALES_CLIENT_KEY", "legacy-id")
	t.Setenv("SFBRIDGE_SALESFORCE_CLIENT_ID", "new-id")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "new-id", cfg.Salesforce.ClientID)
}

func TestLoad_FileWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SF_SECRET", "from-env")

	path := filepath.Join(t.TempDir(), "sfbridge.yaml")
	content := `
server:
  port: 8443
  request_timeout: 2m
salesforce:
  client_id: file-id
  client_secret: ${TEST_SF_SECRET}
bigquery:
  project_id: acme
  staging_bucket: acme-staging
  max_pages: 5
  job_rows: 10000
objects:
  Account: [describe, extract]
  Invoice__c: [describe, extract, load]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, "file-id", cfg.Salesforce.ClientID)
	assert.Equal(t, "from-env", cfg.Salesforce.ClientSecret)
	assert.Equal(t, "acme-staging", cfg.BigQuery.StagingBucket)
	assert.Equal(t, 5, cfg.BigQuery.MaxPages)
	assert.Equal(t, 10000, cfg.BigQuery.JobRows)
	assert.Len(t, cfg.Objects, 2)
	assert.NoError(t, cfg.Validate())
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_SF_SELF", "a${TEST_SF_SELF}b")
	t.Setenv("TEST_SF_USER", "svc")

	got := substituteEnvVars("user: ${TEST_SF_USER}\nsecret: ${TEST_SF_SELF}\nprice: $5 ${not-a-var}\nmissing: ${TEST_SF_UNSET}")

	assert.Equal(t, "user: svc\nsecret: a${TEST_SF_SELF}b\nprice: $5 ${not-a-var}\nmissing: ", got)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client id", func(c *Config) { c.Salesforce.ClientID = "" }},
		{"missing project", func(c *Config) { c.BigQuery.ProjectID = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad login url", func(c *Config) { c.Salesforce.LoginURL = "login.salesforce.com" }},
		{"bad api version", func(c *Config) { c.Salesforce.APIVersion = "59.0" }},
		{"batch too large", func(c *Config) { c.Salesforce.UploadBatchSize = 201 }},
		{"cert without key", func(c *Config) { c.Server.TLSCertFile = "cert.pem" }},
		{"unknown operation", func(c *Config) { c.Objects = map[string][]string{"Account": {"delete"}} }},
	}

	require.NoError(t, validConfig(t).Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestDump_MasksSecrets(t *testing.T) {
	cfg := validConfig(t)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, cfg))

	out := buf.String()
	assert.NotContains(t, out, "client_secret: secret")
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "project_id: acme-analytics")
	assert.Equal(t, "secret", cfg.Salesforce.ClientSecret)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SFBRIDGE_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SFBRIDGE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("SFBRIDGE_TEST_DOTENV"))
}
