package httpclients

import (
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"openlend.ai/position-cache/app/utils/logger"
)

// Init configures resty defaults shared by all outbound clients.
func Init() {
	// nothing global yet; clients are created per upstream via NewClient
}

// NewClient builds a named resty client with shared timeout and logging
// behavior. The name shows up in request logs to identify the upstream.
func NewClient(name string) *resty.Client {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(0)
	client.AddResponseMiddleware(func(c *resty.Client, resp *resty.Response) error {
		logger.GetLogger().WithFields(logrus.Fields{
			"client":  name,
			"method":  resp.Request.Method,
			"url":     resp.Request.URL,
			"status":  resp.StatusCode(),
			"latency": resp.Duration().String(),
		}).Debug("outbound request")
		return nil
	})
	return client
}
