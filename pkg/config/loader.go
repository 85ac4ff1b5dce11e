package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SFBRIDGE_SERVER_PORT
const EnvPrefix = "SFBRIDGE"

// legacyEnv maps configuration keys to the variable names used by earlier deployments.
var legacyEnv = map[string][]string{
	"salesforce.client_id":      {"SALES_CLIENT_KEY"},
	"salesforce.client_secret":  {"SALES_CLIENT_SECRET"},
	"bigquery.dataset_id":       {"BIGQUERY_DATASET_ID"},
	"bigquery.project_id":       {"GOOGLE_CLOUD_PROJECT"},
	"bigquery.credentials_file": {"GOOGLE_APPLICATION_CREDENTIALS"},
	"server.host":               {"SERVICE_IP"},
	"server.port":               {"SERVICE_PORT"},
}

// LoadDotEnv loads variables from .env style files without overriding the
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. ${VAR} references in the
// file are expanded before parsing.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	for key, aliases := range legacyEnv {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator's command line
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.ReadConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4445)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", "10m")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")

	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.api_version", "v59.0")
	v.SetDefault("salesforce.scopes", []string{"refresh_token"})
	v.SetDefault("salesforce.upload_batch_size", 200)

	v.SetDefault("bigquery.dataset_id", "salesforce")
	v.SetDefault("bigquery.credentials_file", "./googleapis.json")
	v.SetDefault("bigquery.cluster_field", "OwnerId")
	v.SetDefault("bigquery.staging_bucket", "")
	v.SetDefault("bigquery.staging_prefix", "sfbridge")
	v.SetDefault("bigquery.max_pages", 0)
	v.SetDefault("bigquery.job_rows", 50000)
	v.SetDefault("bigquery.location", "")

	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", "90s")
	v.SetDefault("http_client.enable_http2", true)
	v.SetDefault("http_client.dial_timeout", "30s")
	v.SetDefault("http_client.tls_handshake_timeout", "10s")
	v.SetDefault("http_client.response_header_timeout", "60s")
	v.SetDefault("http_client.request_timeout", "120s")
	v.SetDefault("http_client.keep_alive", "30s")
	v.SetDefault("http_client.insecure_skip_verify", false)
	v.SetDefault("http_client.user_agent", "sfbridge/1.0")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "sfbridge")
	v.SetDefault("tracing.environment", "production")
	v.SetDefault("tracing.sampling_rate", 0.1)
	v.SetDefault("tracing.pretty_print", false)
	v.SetDefault("tracing.batch_timeout", "5s")
}

// Dump writes the configuration as YAML with secrets masked
func Dump(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Masked()); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

// envVarPattern matches ${VAR_NAME} references
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values in a
// single pass. Substituted values are not expanded again.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}
