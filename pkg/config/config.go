package config

import (
	"net"
	"strconv"
	"time"

	"github.com/ajitpratap0/sfbridge/pkg/clients"
	"github.com/ajitpratap0/sfbridge/pkg/connector/registry"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/logger"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	"github.com/go-playground/validator/v10"
)

// Config is the process-wide, read-only configuration of sfbridge.
type Config struct {
	Server     ServerConfig                `mapstructure:"server" yaml:"server"`
	Salesforce SalesforceConfig            `mapstructure:"salesforce" yaml:"salesforce"`
	BigQuery   BigQueryConfig              `mapstructure:"bigquery" yaml:"bigquery"`
	HTTPClient clients.HTTPConfig          `mapstructure:"http_client" yaml:"http_client"`
	Log        logger.Config               `mapstructure:"log" yaml:"log"`
	Tracing    observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`

	// Objects restricts which CRM objects may be used and for which operations
	// (describe, extract, load, upload). Empty means every object is allowed.
	Objects map[string][]string `mapstructure:"objects" yaml:"objects,omitempty"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"gte=1,lte=65535"`
	Mode            string        `mapstructure:"mode" yaml:"mode" validate:"oneof=debug release test"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	TLSCertFile     string        `mapstructure:"tls_cert_file" yaml:"tls_cert_file,omitempty" validate:"required_with=TLSKeyFile"`
	TLSKeyFile      string        `mapstructure:"tls_key_file" yaml:"tls_key_file,omitempty" validate:"required_with=TLSCertFile"`
}

// Address returns the host:port the server listens on
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TLSEnabled reports whether both certificate and key are configured
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// SalesforceConfig configures the connected app and REST API.
type SalesforceConfig struct {
	ClientID        string   `mapstructure:"client_id" yaml:"client_id" validate:"required"`
	ClientSecret    string   `mapstructure:"client_secret" yaml:"client_secret" validate:"required"`
	LoginURL        string   `mapstructure:"login_url" yaml:"login_url" validate:"required,http_url"`
	APIVersion      string   `mapstructure:"api_version" yaml:"api_version" validate:"required,startswith=v"`
	Scopes          []string `mapstructure:"scopes" yaml:"scopes"`
	UploadBatchSize int      `mapstructure:"upload_batch_size" yaml:"upload_batch_size" validate:"gte=1,lte=200"`
}

// BigQueryConfig configures the warehouse target.
type BigQueryConfig struct {
	ProjectID       string            `mapstructure:"project_id" yaml:"project_id" validate:"required"`
	DatasetID       string            `mapstructure:"dataset_id" yaml:"dataset_id" validate:"required"`
	CredentialsFile string            `mapstructure:"credentials_file" yaml:"credentials_file"`
	Location        string            `mapstructure:"location" yaml:"location,omitempty"`
	ClusterField    string            `mapstructure:"cluster_field" yaml:"cluster_field"`
	StagingBucket   string            `mapstructure:"staging_bucket" yaml:"staging_bucket,omitempty"`
	StagingPrefix   string            `mapstructure:"staging_prefix" yaml:"staging_prefix,omitempty"`
	MaxPages        int               `mapstructure:"max_pages" yaml:"max_pages" validate:"gte=0"`
	JobRows         int               `mapstructure:"job_rows" yaml:"job_rows" validate:"gte=0"`
	JobLabels       map[string]string `mapstructure:"job_labels" yaml:"job_labels,omitempty"`
}

// Validate checks the configuration required to serve requests
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.New(errors.ErrorTypeConfig, "invalid configuration: "+fe.Namespace()+" failed "+fe.Tag()).
				WithDetail("field", fe.Namespace())
		}
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}

	for object, ops := range c.Objects {
		for _, op := range ops {
			if _, err := registry.ParseOperation(op); err != nil {
				return errors.New(errors.ErrorTypeConfig, "invalid configuration: unknown operation "+op+" for object "+object)
			}
		}
	}
	return nil
}

// Masked returns a copy with secrets replaced, suitable for printing
func (c Config) Masked() Config {
	if c.Salesforce.ClientSecret != "" {
		c.Salesforce.ClientSecret = "********"
	}
	if c.Salesforce.ClientID != "" {
		c.Salesforce.ClientID = logger.Redact(c.Salesforce.ClientID)
	}
	return c
}
