package iothub

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"
)

const (
	registryAPIVersion  = "2021-04-12"
	telemetryAPIVersion = "2020-03-13"

	defaultTokenTTL    = 1 * time.Hour
	tokenRenewBefore   = 5 * time.Minute
	defaultHTTPTimeout = 30 * time.Second

	maxErrorBody = 4096
)

type options struct {
	scheme     string
	httpClient *http.Client
	tokenTTL   time.Duration
	rootCAs    *x509.CertPool
	now        func() time.Time
}

type Option func(*options)

// WithScheme overrides the default "https", e.g. for a local hub.
func WithScheme(scheme string) Option {
	return func(o *options) {
		o.scheme = scheme
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRootCAs trusts pool instead of the system roots. Ignored when
// WithHTTPClient is also given.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) {
		o.rootCAs = pool
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.tokenTTL = ttl
	}
}

func buildOptions(opts []Option) options {
	o := options{
		scheme:   "https",
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
		if o.rootCAs != nil {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.TLSClientConfig = &tls.Config{RootCAs: o.rootCAs, MinVersion: tls.VersionTLS12}
			o.httpClient.Transport = transport
		}
	}
	return o
}
