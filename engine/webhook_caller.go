package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zapflowhq/zapflow/logger"
	"go.uber.org/zap"
)

var _ WebhookCaller = new(RestyWebhookCaller)

type RestyWebhookCaller struct {
	client *resty.Client
}

func NewRestyWebhookCaller() *RestyWebhookCaller {
	return &RestyWebhookCaller{
		client: resty.New(),
	}
}

func (c *RestyWebhookCaller) Call(ctx context.Context, req WebhookRequest) error {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
	defer cancel()
	resp, err := c.client.R().
		SetContext(callCtx).
		SetHeaders(req.Headers).
		SetBody(req.Body).
		Execute(req.Method, req.Url)
	if err != nil {
		return fmt.Errorf("webhook call to %s failed: %w", req.Url, err)
	}
	if resp.IsError() {
		logger.Warn("webhook call returned error status", zap.String("url", req.Url), zap.Int("status", resp.StatusCode()))
	}
	return nil
}
