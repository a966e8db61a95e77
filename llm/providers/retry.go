package providers

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/types"
	"go.uber.org/zap"
)

// RetryConfig Provider 重试配置
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryProvider 对可重试错误（限流、超时、5xx）做指数退避重试。
// 流式请求只重试建立连接阶段，流中途的错误原样交给调用方。
type RetryProvider struct {
	inner  llm.Provider
	config RetryConfig
	logger *zap.Logger
}

var _ llm.Provider = (*RetryProvider)(nil)

// NewRetryProvider 包装 inner。MaxRetries<=0 时直接返回 inner。
func NewRetryProvider(inner llm.Provider, config RetryConfig, logger *zap.Logger) llm.Provider {
	if config.MaxRetries <= 0 {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryProvider{
		inner:  inner,
		config: config,
		logger: logger.With(zap.String("component", "retry_provider"), zap.String("provider", inner.Name())),
	}
}

func (p *RetryProvider) Name() string { return p.inner.Name() }

func (p *RetryProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return retry(ctx, p, "completion", func() (*llm.ChatResponse, error) {
		return p.inner.Completion(ctx, req)
	})
}

func (p *RetryProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return retry(ctx, p, "stream", func() (<-chan llm.StreamChunk, error) {
		return p.inner.Stream(ctx, req)
	})
}

func retry[T any](ctx context.Context, p *RetryProvider, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt)
			p.logger.Debug("retrying "+op, zap.Int("attempt", attempt), zap.Duration("delay", delay))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, MapTransportError(ctx.Err(), p.inner.Name())
			case <-timer.C:
			}
		}

		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return zero, err
		}
		p.logger.Warn(op+" failed, will retry", zap.Int("attempt", attempt), zap.Error(err))
	}
	return zero, fmt.Errorf("%s failed after %d retries: %w", op, p.config.MaxRetries, lastErr)
}

func (p *RetryProvider) delay(attempt int) time.Duration {
	d := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffFactor, float64(attempt-1))
	if p.config.MaxDelay > 0 && d > float64(p.config.MaxDelay) {
		d = float64(p.config.MaxDelay)
	}
	return time.Duration(d)
}
