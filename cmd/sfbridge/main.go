package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ajitpratap0/sfbridge/internal/broker"
	"github.com/ajitpratap0/sfbridge/internal/server"
	"github.com/ajitpratap0/sfbridge/pkg/auth"
	"github.com/ajitpratap0/sfbridge/pkg/clients"
	"github.com/ajitpratap0/sfbridge/pkg/config"
	"github.com/ajitpratap0/sfbridge/pkg/connector/destinations/bigquery"
	"github.com/ajitpratap0/sfbridge/pkg/connector/destinations/gcs"
	"github.com/ajitpratap0/sfbridge/pkg/connector/registry"
	"github.com/ajitpratap0/sfbridge/pkg/connector/sources/salesforce"
	"github.com/ajitpratap0/sfbridge/pkg/logger"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	var configFile string

	root := &cobra.Command{
		Use:   "sfbridge",
		Short: "sfbridge - Salesforce to BigQuery broker",
		Long:  `sfbridge brokers OAuth exchanges, SOQL extraction, BigQuery loads and record uploads for Salesforce over HTTP.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sfbridge version %s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return config.Dump(cmd.OutOrStdout(), cfg)
		},
	}

	var redirectURI string
	authURLCmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print the Salesforce consent URL for a redirect URI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			tokens := auth.NewTokenBroker(authConfig(cfg), nil, logger.Get())
			url, err := tokens.BuildAuthorizationURL(redirectURI)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	authURLCmd.Flags().StringVar(&redirectURI, "redirect", "", "OAuth redirect URI registered on the connected app")
	_ = authURLCmd.MarkFlagRequired("redirect")

	root.AddCommand(versionCmd, serveCmd, configCmd, authURLCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads, validates and applies the logging section of the configuration
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func authConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		ClientID:     cfg.Salesforce.ClientID,
		ClientSecret: cfg.Salesforce.ClientSecret,
		LoginURL:     cfg.Salesforce.LoginURL,
		Scopes:       cfg.Salesforce.Scopes,
	}
}

// serve wires every component and blocks until SIGINT or SIGTERM
func serve(cfg *config.Config) error {
	defer func() { _ = logger.Sync() }()

	log := logger.Get().With(zap.String("component", "sfbridge"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Tracing.ServiceVersion = version
	shutdownTracing, err := observability.InitTracing(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	httpClient := clients.NewHTTPClient(&cfg.HTTPClient, log)
	defer func() { _ = httpClient.Close() }()

	sfClient := salesforce.NewClient(httpClient, cfg.Salesforce.APIVersion, log)

	warehouse, err := bigquery.NewClient(ctx, bigquery.ClientConfig{
		ProjectID:       cfg.BigQuery.ProjectID,
		CredentialsFile: cfg.BigQuery.CredentialsFile,
		Location:        cfg.BigQuery.Location,
	}, log)
	if err != nil {
		return err
	}
	defer func() { _ = warehouse.Close() }()

	var stager bigquery.Stager
	if cfg.BigQuery.StagingBucket != "" {
		gcsStager, err := gcs.NewStager(ctx, gcs.Config{
			Bucket:          cfg.BigQuery.StagingBucket,
			Prefix:          cfg.BigQuery.StagingPrefix,
			CredentialsFile: cfg.BigQuery.CredentialsFile,
		}, log)
		if err != nil {
			return err
		}
		defer func() { _ = gcsStager.Close() }()
		stager = gcsStager
	}

	objects, err := registry.NewRegistry(cfg.Objects, log)
	if err != nil {
		return err
	}

	b := broker.New(broker.Deps{
		Tokens:    auth.NewTokenBroker(authConfig(cfg), httpClient.Client(), log),
		Describer: salesforce.NewDescriber(sfClient),
		Extractor: salesforce.NewExtractor(sfClient),
		Uploader:  salesforce.NewRecordUploader(sfClient),
		Loader: bigquery.NewLoader(warehouse, stager, bigquery.LoaderConfig{
			ProjectID:    cfg.BigQuery.ProjectID,
			DatasetID:    cfg.BigQuery.DatasetID,
			ClusterField: cfg.BigQuery.ClusterField,
			Labels:       cfg.BigQuery.JobLabels,
		}, log),
		Registry: objects,
	}, broker.Options{
		MaxPages:        cfg.BigQuery.MaxPages,
		JobRows:         cfg.BigQuery.JobRows,
		UploadBatchSize: cfg.Salesforce.UploadBatchSize,
	}, log)

	log.Info("starting sfbridge",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address()),
		zap.String("api_version", sfClient.APIVersion()),
		zap.String("dataset", cfg.BigQuery.DatasetID),
		zap.Bool("staging", stager != nil),
		zap.Bool("open_registry", objects.IsOpen()))

	if err := server.New(b, cfg.Server, log, server.WithUpstreamStats(httpClient)).Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("sfbridge stopped")
	return nil
}
