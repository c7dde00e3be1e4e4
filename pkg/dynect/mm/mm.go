// Package mm implements the Dyn Message Management session kind. Unlike the
// Traffic Management session it authenticates with an API key sent on every
// call, encodes arguments as form data, and reports numeric statuses rather
// than a status/msgs envelope. It shares the transport and registry with
// the Traffic Management session.
package mm

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/dynectlabs/dynect-go/internal/common/logtrace"
	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
	"github.com/dynectlabs/dynect-go/pkg/dynect/session"
	"github.com/dynectlabs/dynect-go/pkg/dynect/transport"
)

const (
	// DefaultHost is the public Message Management endpoint.
	DefaultHost = "emailapi.dynect.net"
	// DefaultPort is the public endpoint port.
	DefaultPort = 443

	uriRoot   = "/rest/json"
	userAgent = "dynect-go/" + session.Version
)

var validMethods = map[string]bool{
	http.MethodGet:  true,
	http.MethodPost: true,
}

var validate = validator.New()

// Config carries everything needed to construct a Message Management
// session. Only the API key is required.
type Config struct {
	APIKey string `validate:"required"`

	Host       string // defaults to DefaultHost
	Port       int    // defaults to DefaultPort
	DisableTLS bool

	// Owner and Registry as for the Traffic Management session.
	Owner    string
	Registry *session.Registry

	ProxyHost string
	ProxyPort int
	ProxyUser string
	ProxyPass string

	// Transport overrides the connection, for tests.
	Transport transport.Doer
}

// Session is one Message Management API connection.
type Session struct {
	cfg    Config
	conn   transport.Doer
	logger zerolog.Logger
}

// New constructs a Session, connects, and binds it into the registry.
// There is no login handshake; the API key rides on every request.
func New(cfg Config) (*Session, error) {
	if err := validate.Struct(&cfg); err != nil {
		return nil, dynerrors.ErrArgument.Msg("invalid message management config").Err(err)
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Owner == "" {
		cfg.Owner = uuid.NewString()
	}
	if cfg.Registry == nil {
		cfg.Registry = session.DefaultRegistry()
	}

	conn := cfg.Transport
	if conn == nil {
		var err error
		conn, err = transport.NewConn(transport.Endpoint{
			Host:      cfg.Host,
			Port:      cfg.Port,
			TLS:       !cfg.DisableTLS,
			ProxyHost: cfg.ProxyHost,
			ProxyPort: cfg.ProxyPort,
			ProxyUser: cfg.ProxyUser,
			ProxyPass: cfg.ProxyPass,
		})
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		cfg:    cfg,
		conn:   conn,
		logger: logtrace.Component("mm"),
	}
	if err := conn.Connect(); err != nil {
		return nil, err
	}
	cfg.Registry.Bind(cfg.Owner, s)
	return s, nil
}

// RegistryKind identifies this session type in the registry.
func (s *Session) RegistryKind() session.Kind { return session.KindMessage }

// Owner returns the registry owner id this session is bound under.
func (s *Session) Owner() string { return s.cfg.Owner }

// Current looks up the Message Management session bound for owner in the
// default registry.
func Current(owner string) *Session {
	if s, ok := session.DefaultRegistry().Current(session.KindMessage, owner).(*Session); ok {
		return s
	}
	return nil
}

// Close removes this session from the registry and drops the connection.
// The Message Management API has no server-side session to tear down.
func (s *Session) Close() {
	s.cfg.Registry.CloseCurrent(session.KindMessage, s.cfg.Owner)
	s.conn.Close()
}

// Execute runs one command against the API and returns the data portion of
// the response. The API key is injected when the caller did not supply one.
// GET arguments are folded into the query string; POST arguments are sent
// form-encoded.
func (s *Session) Execute(ctx context.Context, path, method string, args map[string]string) (gjson.Result, error) {
	path = normalizePath(path)
	method = strings.ToUpper(method)
	if !validMethods[method] {
		return gjson.Result{}, dynerrors.ErrArgument.Msg(
			method + " is not a valid HTTP method. Please use one of GET, POST")
	}

	form := url.Values{}
	for key, val := range args {
		form.Set(key, val)
	}
	if form.Get("apikey") == "" {
		form.Set("apikey", s.cfg.APIKey)
	}

	var body []byte
	if method == http.MethodGet {
		path = path + "?" + form.Encode()
	} else {
		body = []byte(form.Encode())
	}

	s.logger.Debug().Str("path", path).Str("method", method).Msg("executing request")

	raw, err := s.conn.Do(ctx, transport.Request{
		Method: method,
		Path:   path,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"User-Agent":   userAgent,
		},
		Body: body,
	})
	if err != nil {
		return gjson.Result{}, err
	}

	return processResponse(raw.Body)
}

// processResponse maps the numeric response statuses onto typed errors:
// 200 yields the data, 451 a key error, 452 an invalid argument, 453 an
// object error.
func processResponse(body []byte) (gjson.Result, error) {
	envelope := gjson.GetBytes(body, "response")
	if !envelope.Exists() {
		return gjson.Result{}, dynerrors.ErrSession.Msg("malformed message management response")
	}
	status := envelope.Get("status").Int()
	message := envelope.Get("message").String()

	switch status {
	case http.StatusOK:
		return envelope.Get("data"), nil
	case 451:
		return gjson.Result{}, dynerrors.ErrEmailKey.Msg(message)
	case 452:
		return gjson.Result{}, dynerrors.ErrEmailInvalidArgument.Msg(message)
	case 453:
		return gjson.Result{}, dynerrors.ErrEmailObject.Msg(message)
	}
	return gjson.Result{}, dynerrors.ErrSession.Msg(message)
}

// normalizePath ensures the path is absolute and carries the API root
// prefix exactly once.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasPrefix(path, uriRoot) {
		path = uriRoot + path
	}
	return path
}
