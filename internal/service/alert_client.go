package service

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AlertClient posts low-battery notifications to an operator webhook. All
// delivery is best effort: a failed post is logged and dropped, never
// propagated into the reconciliation pass.
type AlertClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewAlertClient returns nil when no webhook URL is configured, which
// disables alerting at the call sites.
func NewAlertClient(url string, logger *zap.Logger) *AlertClient {
	if url == "" {
		return nil
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &AlertClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

type lowBatteryAlert struct {
	DeviceID   string `json:"deviceId"`
	Battery    int    `json:"battery"`
	ObservedAt string `json:"observedAt"`
}

func (c *AlertClient) NotifyLowBattery(ctx context.Context, deviceID string, battery int, observedAt string) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(lowBatteryAlert{DeviceID: deviceID, Battery: battery, ObservedAt: observedAt}).
		Post(c.url)
	if err != nil {
		c.logger.Warn("low-battery alert delivery failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		c.logger.Warn("low-battery alert rejected",
			zap.String("device_id", deviceID),
			zap.Int("status", resp.StatusCode()),
		)
	}
}
