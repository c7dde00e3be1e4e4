// Package transport owns the connection to a single API endpoint. It opens
// and replaces the underlying HTTP connection, performs raw request/response
// exchanges, and reports I/O failures as transport errors for the session
// engine to interpret. It knows nothing about tokens, polling, or the
// response envelope; that is the engine's job.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dynectlabs/dynect-go/internal/common/logtrace"
	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
)

// Endpoint describes the single host:port a connection talks to.
type Endpoint struct {
	Host string // API server address
	Port int    // API server port
	TLS  bool   // use HTTPS

	// Optional forward proxy. ProxyHost without ProxyPort is rejected.
	ProxyHost string
	ProxyPort int
	ProxyUser string
	ProxyPass string

	// Timeout bounds one full exchange. Zero selects the default.
	Timeout time.Duration

	// InsecureSkipVerify disables certificate validation. Test rigs only.
	InsecureSkipVerify bool
}

// DefaultTimeout bounds a single request/response exchange.
const DefaultTimeout = 300 * time.Second

// Request is one raw exchange to perform against the endpoint.
type Request struct {
	Method  string
	Path    string            // absolute path, already normalized by the caller
	Headers map[string]string // sent verbatim in addition to Content-Length
	Body    []byte
}

// Response is the raw result of an exchange.
type Response struct {
	StatusCode int
	Location   string // Location header, set on job redirects
	Body       []byte
}

// Conn performs exchanges against one endpoint. Connect replaces the
// underlying connection; Do connects implicitly when needed. Conn is not
// safe for concurrent use, matching the session that owns it.
type Conn struct {
	endpoint Endpoint
	base     string // scheme://host:port
	client   *http.Client
	logger   zerolog.Logger
}

// NewConn builds an unconnected Conn for the endpoint. The first Do (or an
// explicit Connect) opens the connection.
func NewConn(endpoint Endpoint) (*Conn, error) {
	if endpoint.Host == "" {
		return nil, dynerrors.ErrArgument.Msg("endpoint host is required")
	}
	if endpoint.ProxyHost != "" && endpoint.ProxyPort == 0 {
		return nil, dynerrors.ErrArgument.Msg("proxy missing port, please specify a port")
	}
	if endpoint.Timeout == 0 {
		endpoint.Timeout = DefaultTimeout
	}

	scheme := "http"
	if endpoint.TLS {
		scheme = "https"
	}
	return &Conn{
		endpoint: endpoint,
		base:     fmt.Sprintf("%s://%s:%d", scheme, endpoint.Host, endpoint.Port),
		logger:   logtrace.Component("transport"),
	}, nil
}

// Connected reports whether an underlying connection is currently open.
func (c *Conn) Connected() bool {
	return c.client != nil
}

// Connect opens a fresh connection to the endpoint, discarding any previous
// one. Repeated calls simply replace the connection.
func (c *Conn) Connect() error {
	c.Close()

	tr := &http.Transport{
		// One session, one connection: the API multiplexes every resource
		// type over a single authenticated channel.
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
	}
	if c.endpoint.TLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: c.endpoint.InsecureSkipVerify}
	}

	if c.endpoint.ProxyHost != "" {
		proxy := &url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", c.endpoint.ProxyHost, c.endpoint.ProxyPort),
		}
		if c.endpoint.ProxyUser != "" && c.endpoint.ProxyPass != "" {
			proxy.User = url.UserPassword(c.endpoint.ProxyUser, c.endpoint.ProxyPass)
		}
		tr.Proxy = http.ProxyURL(proxy)
		c.logger.Info().
			Str("endpoint", c.base).
			Str("proxy", proxy.Host).
			Msg("establishing connection via proxy")
	} else {
		c.logger.Info().Str("endpoint", c.base).Msg("establishing connection")
	}

	c.client = &http.Client{
		Transport: tr,
		Timeout:   c.endpoint.Timeout,
		// Job redirects (307) are polled by the engine, never followed
		// transparently.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return nil
}

// Close tears down the current connection, if any. Safe to call repeatedly.
func (c *Conn) Close() {
	if c.client != nil {
		c.client.CloseIdleConnections()
		c.client = nil
	}
}

// Do performs one exchange. If no connection exists it connects first.
// Network failures are reported as transport errors; HTTP-level statuses,
// including failures and job redirects, come back in the Response for the
// engine to classify.
func (c *Conn) Do(ctx context.Context, req Request) (*Response, error) {
	if c.client == nil {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	target := c.base + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, dynerrors.ErrArgument.Msg("failed to build request").Err(err)
	}
	for key, val := range req.Headers {
		httpReq.Header.Set(key, val)
	}
	httpReq.ContentLength = int64(len(req.Body))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, dynerrors.ErrTransport.Err(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dynerrors.ErrTransport.Msg("failed to read response").Err(err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
		Body:       body,
	}, nil
}

// URL returns the absolute URL for a path on this endpoint. Diagnostic use.
func (c *Conn) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path
}
