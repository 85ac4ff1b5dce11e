// Package config loads the sfbridge configuration.
//
// Values are resolved from, in increasing order of precedence:
//
//   - built-in defaults
//   - an optional YAML file, with ${VAR_NAME} references expanded from the environment
//   - SFBRIDGE_* environment variables (SFBRIDGE_SERVER_PORT, SFBRIDGE_SALESFORCE_CLIENT_ID, ...)
//
// The variable names of earlier deployments are accepted as aliases:
// SALES_CLIENT_KEY, SALES_CLIENT_SECRET, BIGQUERY_DATASET_ID, GOOGLE_CLOUD_PROJECT,
// GOOGLE_APPLICATION_CREDENTIALS, SERVICE_IP and SERVICE_PORT.
//
// # Usage
//
//	if err := config.LoadDotEnv(); err != nil {
//		log.Fatal(err)
//	}
//	cfg, err := config.Load("sfbridge.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// The configuration is loaded once at startup and treated as read-only afterwards.
package config
