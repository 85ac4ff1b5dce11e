// Package sfbridge is a stateless HTTP broker between Salesforce and BigQuery.
//
// Every request carries the caller's Salesforce instance URL and access
// token; the broker keeps no session or token state of its own. It offers:
//
//   - OAuth2 authorization-code and refresh-token exchanges
//   - SOQL construction from object metadata and a date window
//   - object describe, paged extraction and continuation by cursor
//   - BigQuery table creation and NDJSON appends, optionally staged in GCS
//   - record insertion through the composite sObject collection API
//
// # Layout
//
//	cmd/sfbridge                          - CLI: serve, config, auth-url, version
//	internal/server                       - gin routes, envelopes and middleware
//	internal/broker                       - request orchestration
//	pkg/auth                              - OAuth2 token exchanges
//	pkg/connector/sources/salesforce      - REST client, SOQL builder, extractor, uploader
//	pkg/connector/destinations/bigquery   - schema mapping, flattening and load jobs
//	pkg/connector/destinations/gcs        - gzip NDJSON staging
//	pkg/connector/registry                - per-object capability checks
//	pkg/config                            - viper configuration with env overrides
//	pkg/logger, pkg/metrics, pkg/observability - zap, Prometheus and OpenTelemetry
//
// # Quick Start
//
//	export SALES_CLIENT_KEY=... SALES_CLIENT_SECRET=...
//	export GOOGLE_CLOUD_PROJECT=my-project BIGQUERY_DATASET_ID=salesforce
//	sfbridge serve --config sfbridge.yaml
//
// Then, with a token obtained through /login_oauth_callback:
//
//	curl -X POST localhost:4445/save_object_data_to_bigquery \
//	    -d instance_url=https://acme.my.salesforce.com -d access_token=... \
//	    -d object_name=Account -d from_date=2024-01-01 -d to_date=2024-01-31
package sfbridge
