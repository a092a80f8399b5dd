package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	// NodeRetries is the number of retries for execution and consensus node requests
	NodeRetries = 3

	// NodeTimeout bounds a single execution or consensus node request
	NodeTimeout = 30 * time.Second

	// WebhookTimeout bounds a single webhook request
	WebhookTimeout = 10 * time.Second
)

// NewNodeClient returns an http.Client that retries failed requests with
// backoff and records request durations into observer when it is non-nil.
func NewNodeClient(log logrus.FieldLogger, observer prometheus.ObserverVec) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = NodeRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = &leveledLogger{log: log}
	retryClient.HTTPClient.Timeout = NodeTimeout

	if observer != nil {
		retryClient.HTTPClient.Transport = promhttp.InstrumentRoundTripperDuration(observer, retryClient.HTTPClient.Transport)
	}

	return retryClient.StandardClient()
}

// NewWebhookClient returns an http.Client for the webhook node. Retries are
// left to the caller so that authentication failures are seen directly.
func NewWebhookClient(insecureSkipVerify bool) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()

	if insecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	return &http.Client{
		Timeout:   WebhookTimeout,
		Transport: tr,
	}
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l *leveledLogger) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}

		fields[key] = keysAndValues[i+1]
	}

	return fields
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues)).Error(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues)).Debug(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues)).Debug(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues)).Warn(msg)
}
