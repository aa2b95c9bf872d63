package proxy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// GatewayConfig holds the backend endpoints and hosted model names.
type GatewayConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	PremiumModel string
	LocalURL     string
	LocalTimeout time.Duration
}

// Gateway routes a completion to the hosted API or the local model server.
type Gateway struct {
	hosted       *HostedClient
	local        *LocalClient
	defaultModel string
	premiumModel string
	logger       *zap.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		hosted:       NewHostedClientWithBaseURL(cfg.APIKey, cfg.BaseURL),
		local:        NewLocalClient(cfg.LocalURL, cfg.LocalTimeout),
		defaultModel: cfg.DefaultModel,
		premiumModel: cfg.PremiumModel,
		logger:       zap.L().Named("gateway"),
	}
}

// Hosted exposes the hosted client for embedding calls.
func (g *Gateway) Hosted() *HostedClient { return g.hosted }

// Model returns the hosted model name for tier.
func (g *Gateway) Model(tier Tier) string {
	if tier == TierPremium && g.premiumModel != "" {
		return g.premiumModel
	}
	return g.defaultModel
}

// Complete returns the raw completion text. Errors are ErrUpstreamTimeout,
// ErrUpstreamUnavailable or *UpstreamError when the backend misbehaves.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	msgs := req.Messages()

	var (
		text string
		err  error
	)
	switch req.Kind {
	case Local:
		text, err = g.local.Complete(ctx, msgs, req.Temperature, req.MaxTokens)
	case Hosted:
		text, err = g.hosted.Complete(ctx, g.Model(req.Tier), msgs, req.Temperature, req.MaxTokens)
	default:
		return "", fmt.Errorf("unknown model kind %q", req.Kind)
	}

	if err != nil {
		g.logger.Warn("completion failed",
			zap.String("kind", string(req.Kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}

	g.logger.Debug("completion done",
		zap.String("kind", string(req.Kind)),
		zap.Int("messages", len(msgs)),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}
