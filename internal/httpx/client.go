// Package httpx builds the outbound HTTP client used for every call to the
// identity provider and the IAM token issuer. The provider sits in the
// critical path of every protected request, so the client carries a bounded
// timeout and a small number of retries on transient failures.
package httpx

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 10 * time.Second

// leveledZerolog adapts the retryablehttp logger interface onto zerolog.
// Intermediate failures are logged at WARN rather than ERROR because the
// client retries them.
type leveledZerolog struct {
	logger zerolog.Logger
}

func (l leveledZerolog) Error(msg string, keysAndValues ...any) {
	l.log(l.logger.Warn(), msg, keysAndValues)
}

func (l leveledZerolog) Warn(msg string, keysAndValues ...any) {
	l.log(l.logger.Warn(), msg, keysAndValues)
}

func (l leveledZerolog) Info(msg string, keysAndValues ...any) {
	l.log(l.logger.Info(), msg, keysAndValues)
}

func (l leveledZerolog) Debug(msg string, keysAndValues ...any) {
	l.log(l.logger.Debug(), msg, keysAndValues)
}

func (leveledZerolog) log(event *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, keysAndValues[i+1])
	}
	event.Msg(msg)
}

type Option func(*retryablehttp.Client)

// WithMaxRetries sets the maximum number of retries for the HTTP client.
func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

// WithTransport sets a custom transport for the HTTP client.
func WithTransport(transport http.RoundTripper) Option {
	return func(client *retryablehttp.Client) {
		client.HTTPClient.Transport = transport
	}
}

// NewClient returns a client with the stdlib http.Client interface and
// retryablehttp logic internally: pooled transport, retries on connection
// errors and 5xx responses, and a hard per-request timeout.
func NewClient(options ...Option) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 250 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledZerolog{
		logger: log.With().Str("component", "httpx").Logger(),
	})

	for _, option := range options {
		option(retryClient)
	}

	client := retryClient.StandardClient()
	client.Timeout = requestTimeout
	return client
}
