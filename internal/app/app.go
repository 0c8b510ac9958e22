// Package app wires the backend from settings. Both the Lambda and the local
// server entrypoints build their handler here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/afero"

	"pagesmith/handler"
	"pagesmith/internal/config"
	"pagesmith/internal/integrations/openai"
	"pagesmith/internal/integrations/paramstore"
	"pagesmith/internal/integrations/tokens"
	"pagesmith/internal/repository"
	"pagesmith/internal/usecase"
)

type siteStore interface {
	usecase.SiteWriter
	usecase.SiteReader
}

type builder struct {
	fs        afero.Fs
	loadAWS   func(ctx context.Context) (aws.Config, error)
	awsConfig *aws.Config
}

type Option func(*builder)

// WithFS replaces the OS filesystem used by the fs store.
func WithFS(fs afero.Fs) Option {
	return func(b *builder) {
		if fs != nil {
			b.fs = fs
		}
	}
}

// WithAWSConfigLoader replaces config.LoadDefaultConfig.
func WithAWSConfigLoader(load func(ctx context.Context) (aws.Config, error)) Option {
	return func(b *builder) {
		if load != nil {
			b.loadAWS = load
		}
	}
}

func NewHandler(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*handler.Handler, error) {
	if logger == nil {
		return nil, errors.New("app: logger must not be nil")
	}
	b := &builder{
		fs: afero.NewOsFs(),
		loadAWS: func(ctx context.Context) (aws.Config, error) {
			return awsconfig.LoadDefaultConfig(ctx)
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	store, err := b.store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	llm, err := b.llm(ctx, cfg)
	if err != nil {
		return nil, err
	}

	counter, err := tokens.New()
	if err != nil {
		return nil, fmt.Errorf("app: token counter: %w", err)
	}

	gen, err := usecase.NewGenerateService(llm, store, counter, usecase.Options{
		Model:            cfg.Model,
		MaxMessages:      cfg.MaxMessages,
		MaxContentLength: cfg.MaxContentLength,
		MaxPromptTokens:  cfg.MaxPromptTokens,
		Moderation:       cfg.Moderation,
	})
	if err != nil {
		return nil, fmt.Errorf("app: generate service: %w", err)
	}
	sites, err := usecase.NewSiteService(store)
	if err != nil {
		return nil, fmt.Errorf("app: site service: %w", err)
	}

	logger.Info("backend configured", "store", cfg.Store, "model", cfg.Model, "base_url", cfg.BaseURL, "moderation", cfg.Moderation)
	return handler.NewHandler(gen, sites, handler.WithLogger(logger))
}

func (b *builder) loadAWSConfig(ctx context.Context) (aws.Config, error) {
	if b.awsConfig != nil {
		return *b.awsConfig, nil
	}
	cfg, err := b.loadAWS(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
	}
	b.awsConfig = &cfg
	return cfg, nil
}

func (b *builder) store(ctx context.Context, cfg config.Server) (siteStore, error) {
	switch cfg.Store {
	case config.StoreDynamoDB:
		awsCfg, err := b.loadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		client, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("app: dynamodb store: %w", err)
		}
		return client, nil
	case config.StoreFS, "":
		fsStore, err := repository.NewFileStore(b.fs, cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("app: file store: %w", err)
		}
		return fsStore, nil
	default:
		return nil, fmt.Errorf("app: unknown store %q", cfg.Store)
	}
}

func (b *builder) llm(ctx context.Context, cfg config.Server) (*openai.Client, error) {
	opts := []openai.Option{
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithMaxTokens(cfg.MaxTokens),
		openai.WithTemperature(cfg.Temperature),
		openai.WithJSONResponse(cfg.JSONResponse),
	}
	if cfg.APIKey != "" {
		return openai.NewClient(nil, "", append(opts, openai.WithAPIKey(cfg.APIKey))...)
	}

	awsCfg, err := b.loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: parameter store: %w", err)
	}
	return openai.NewClient(ps, cfg.ParamPrefix, opts...)
}
