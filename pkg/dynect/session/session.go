// Package session implements the DynECT session engine: connection
// lifecycle, authenticated request execution, long-polling for asynchronous
// job completion, retry on transient connection errors, and the registry
// that lets unrelated resource code share one authenticated connection.
//
// A Session is bound to a single caller at a time. Concurrent use of one
// Session from multiple goroutines is not supported; construct one session
// per thread of control (the registry keys entries by owner for exactly
// this reason).
package session

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dynectlabs/dynect-go/internal/common/logtrace"
	"github.com/dynectlabs/dynect-go/pkg/dynect/crypt"
	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
	"github.com/dynectlabs/dynect-go/pkg/dynect/transport"
)

// Version is the SDK release, reported in the User-Agent header.
const Version = "1.0.0"

const (
	uriRoot   = "/REST"
	userAgent = "dynect-go/" + Version
)

var validMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Session is one authenticated connection to the Traffic Management API.
// A non-empty token implies a live transport connection; the token is
// cleared on logout or when a dead remote session is detected.
type Session struct {
	cfg    Config
	cipher *crypt.Cipher
	conn   transport.Doer
	logger zerolog.Logger

	customer string
	username string
	password string // ciphertext; plaintext exists only while building auth payloads

	token          string
	lastResponse   *Response
	permissions    []string
	hist           *history
	tasks          map[string]time.Duration // per-task backoff for blocked operations
	pollIncomplete bool

	// onAuthenticated is set by MultiSession to record identities after
	// every successful authenticate.
	onAuthenticated func()
}

// New constructs a Session: connects, authenticates (unless suppressed),
// and binds it into the registry. A session that fails to construct is
// never registered, so a reused owner keeps its previous binding.
func New(ctx context.Context, cfg Config) (*Session, error) {
	s, err := newSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.cfg.Registry.Bind(s.cfg.Owner, s)
	return s, nil
}

// newSession builds and connects a session without touching the registry.
func newSession(ctx context.Context, cfg Config) (*Session, error) {
	cfg.applyDefaults()
	if err := cfg.validateConfig(); err != nil {
		return nil, err
	}

	cipher, err := crypt.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	encrypted, err := cipher.Encrypt(cfg.Password)
	if err != nil {
		return nil, err
	}
	cfg.Password = ""

	conn := cfg.Transport
	if conn == nil {
		conn, err = transport.NewConn(cfg.endpoint())
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		cfg:            cfg,
		cipher:         cipher,
		conn:           conn,
		logger:         logtrace.Component("session"),
		customer:       cfg.Customer,
		username:       cfg.Username,
		password:       encrypted,
		tasks:          make(map[string]time.Duration),
		pollIncomplete: true,
	}
	if cfg.History {
		s.hist = &history{}
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if !cfg.SuppressAuth {
		if err := s.Authenticate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RegistryKind identifies this session type in the registry.
func (s *Session) RegistryKind() Kind { return KindTraffic }

// Token returns the current auth token, or "" when not authenticated.
func (s *Session) Token() string { return s.token }

// Customer returns the active customer name.
func (s *Session) Customer() string { return s.customer }

// Username returns the active user name.
func (s *Session) Username() string { return s.username }

// Owner returns the registry owner id this session is bound under.
func (s *Session) Owner() string { return s.cfg.Owner }

// LastResponse returns the most recently parsed envelope, for diagnostics.
func (s *Session) LastResponse() *Response { return s.lastResponse }

// connect opens a fresh transport connection. If a token is still held a
// best-effort logout runs first, with job polling suppressed for that one
// call, so the remote session is not orphaned.
func (s *Session) connect(ctx context.Context) error {
	if s.token != "" {
		s.logger.Debug().Msg("forcing logout from old session")
		orig := s.pollIncomplete
		s.pollIncomplete = false
		if _, err := s.execute(ctx, "/Session/", http.MethodDelete, nil, true); err != nil {
			s.logger.Debug().Err(err).Msg("logout of old session failed")
		}
		s.pollIncomplete = orig
		s.token = ""
	}
	return s.conn.Connect()
}

// Execute runs one command against the API. The path is prefixed with /REST
// when missing; method must be one of GET, POST, PUT, DELETE; args may be
// nil, a map, or a RequestFielder. On failure a typed error carrying the
// server's message list is returned; there is no partial success.
func (s *Session) Execute(ctx context.Context, path, method string, args any) (*Response, error) {
	return s.execute(ctx, path, method, args, false)
}

func (s *Session) execute(ctx context.Context, path, method string, args any, final bool) (*Response, error) {
	path = normalizePath(path)
	method = strings.ToUpper(method)
	if !validMethods[method] {
		return nil, dynerrors.ErrArgument.Msg(
			method + " is not a valid HTTP method. Please use one of GET, POST, PUT, DELETE")
	}

	rawArgs, body, err := prepareArguments(args)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("path", path).
		Str("method", method).
		RawJSON("args", redactBody(body)).
		Msg("executing request")

	raw, err := s.conn.Do(ctx, transport.Request{
		Method:  method,
		Path:    path,
		Headers: s.headers(),
		Body:    body,
	})
	if err != nil {
		if final || !errors.Is(err, dynerrors.ErrTransport) {
			return nil, err
		}
		return s.recoverTransport(ctx, path, method, rawArgs, err)
	}

	return s.handleResponse(ctx, raw, path, method, rawArgs, final)
}

// headers builds the fixed header set: content type, API version, user
// agent, caller extras, and the auth token when held.
func (s *Session) headers() map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   userAgent,
		"API-Version":  s.cfg.APIVersion,
	}
	for key, val := range s.cfg.ExtraHeaders {
		h[key] = val
	}
	if s.token != "" {
		h["Auth-Token"] = s.token
	}
	return h
}

// handleResponse resolves job redirects, parses the envelope, updates the
// token, records history, applies the blocked-task retry, and classifies
// the result.
func (s *Session) handleResponse(ctx context.Context, raw *transport.Response, path, method string, rawArgs map[string]any, final bool) (*Response, error) {
	if s.pollIncomplete {
		var err error
		raw, err = s.pollRedirect(ctx, raw)
		if err != nil {
			return nil, err
		}
	}

	resp, err := parseResponse(raw.Body)
	if err != nil {
		return nil, err
	}
	s.lastResponse = resp
	s.metaUpdate(path, method, resp)

	if s.hist != nil {
		s.hist.append(path, method, rawArgs, resp.Status)
	}

	if resp.Status == StatusFailure && !final {
		if plan, ok := s.retryDecision(resp.Msgs); ok {
			s.logger.Warn().
				Str("path", path).
				Dur("wait", plan.wait).
				Msg("request blocked or throttled, retrying")
			if err := sleepCtx(ctx, plan.wait); err != nil {
				return nil, err
			}
			return s.execute(ctx, path, method, rawArgs, plan.final)
		}
	}

	return s.processResponse(ctx, resp, method, final)
}

// processResponse classifies the envelope: success returns it, failure
// raises the method-specific error, and incomplete enters job polling
// unless this is already the final attempt.
func (s *Session) processResponse(ctx context.Context, resp *Response, method string, final bool) (*Response, error) {
	switch resp.Status {
	case StatusSuccess:
		return resp, nil
	case StatusFailure:
		return nil, classifyFailure(method, resp.Msgs)
	default:
		if final {
			return nil, dynerrors.ErrQueryTimeout.Msgs(resp.Msgs)
		}
		polled, err := s.WaitForJob(ctx, resp.JobID, s.cfg.JobTimeout)
		if err != nil {
			return nil, err
		}
		return s.processResponse(ctx, polled, method, true)
	}
}

// classifyFailure selects the typed error for a failure envelope. Failures
// whose messages mention login are authentication errors regardless of
// method.
func classifyFailure(method string, msgs []dynerrors.Message) error {
	for _, m := range msgs {
		if strings.Contains(m.Info, "login") {
			return dynerrors.FromMessages(dynerrors.ErrAuth, msgs)
		}
	}
	switch method {
	case http.MethodPost:
		return dynerrors.FromMessages(dynerrors.ErrCreate, msgs)
	case http.MethodGet:
		return dynerrors.FromMessages(dynerrors.ErrGet, msgs)
	case http.MethodPut:
		return dynerrors.FromMessages(dynerrors.ErrUpdate, msgs)
	case http.MethodDelete:
		return dynerrors.FromMessages(dynerrors.ErrDelete, msgs)
	}
	return dynerrors.FromMessages(dynerrors.ErrSession, msgs)
}

// metaUpdate keeps the token in step with session-create and session-delete
// calls.
func (s *Session) metaUpdate(path, method string, resp *Response) {
	if !strings.HasPrefix(path, uriRoot+"/Session") || resp.Status != StatusSuccess {
		return
	}
	switch method {
	case http.MethodPost:
		if tok := resp.Get("token"); tok.Exists() {
			s.token = tok.String()
		}
	case http.MethodDelete:
		s.token = ""
	}
}

// recoverTransport attempts the single reconnect-and-retry cycle after a
// transport error: reopen the connection, probe whether the remote session
// is still logged in, re-authenticate if not, then retry the original call
// once as final.
func (s *Session) recoverTransport(ctx context.Context, path, method string, rawArgs map[string]any, cause error) (*Response, error) {
	s.logger.Warn().Err(cause).Msg("transport error, attempting reconnect")

	s.conn.Close()
	if err := s.conn.Connect(); err != nil {
		return nil, cause
	}

	renewToken := false
	probe, err := s.execute(ctx, "/Session/", http.MethodGet, nil, true)
	switch {
	case err == nil:
		if len(probe.Msgs) > 0 && strings.Contains(probe.Msgs[0].Info, "login:") {
			renewToken = true
		}
	case errors.Is(err, dynerrors.ErrAuth) || errors.Is(err, dynerrors.ErrGet):
		renewToken = true
	default:
		return nil, cause
	}

	if renewToken {
		// The remote session was killed; the token is dead.
		s.token = ""
		if err := s.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	return s.execute(ctx, path, method, rawArgs, true)
}

// Authenticate posts the credentials to the session endpoint and stores the
// returned token. The password is decrypted only for the duration of the
// call.
func (s *Session) Authenticate(ctx context.Context) error {
	args, err := s.authData()
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, "/Session/", http.MethodPost, args, false)
	if err != nil {
		if errors.Is(err, dynerrors.ErrTransport) {
			return dynerrors.ErrAuth.Msg("unable to access the API host").Err(err)
		}
		if errors.Is(err, dynerrors.ErrAuth) {
			return err
		}
		var de dynerrors.Error
		if errors.As(err, &de) {
			return dynerrors.ErrAuth.Msg(de.Error()).Msgs(de.Messages()).Err(err)
		}
		return dynerrors.ErrAuth.Err(err)
	}

	s.logger.Info().
		Str("customer", s.customer).
		Str("user", s.username).
		Msg("authentication successful")
	if s.onAuthenticated != nil {
		s.onAuthenticated()
	}
	return nil
}

// authData builds the session-create payload.
func (s *Session) authData() (map[string]any, error) {
	plain, err := s.cipher.Decrypt(s.password)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"customer_name": s.customer,
		"user_name":     s.username,
		"password":      plain,
	}, nil
}

// LogOut tears down the remote session and removes this session from the
// registry. Double logout is tolerated by the registry.
func (s *Session) LogOut(ctx context.Context) error {
	if _, err := s.execute(ctx, "/Session/", http.MethodDelete, nil, false); err != nil {
		return err
	}
	s.cfg.Registry.CloseCurrent(KindTraffic, s.cfg.Owner)
	return nil
}

// UpdatePassword changes the current user's password and re-seals the new
// one into the credential box.
func (s *Session) UpdatePassword(ctx context.Context, newPassword string) error {
	args := map[string]any{"password": newPassword}
	if _, err := s.execute(ctx, "/Password/", http.MethodPut, args, false); err != nil {
		return err
	}
	encrypted, err := s.cipher.Encrypt(newPassword)
	if err != nil {
		return err
	}
	s.password = encrypted
	return nil
}

// UserPermissionsReport returns the permission names granted to the given
// user, defaulting to the session's own user.
func (s *Session) UserPermissionsReport(ctx context.Context, userName string) ([]string, error) {
	if userName == "" {
		userName = s.username
	}
	resp, err := s.execute(ctx, "/UserPermissionReport/", http.MethodPost,
		map[string]any{"user_name": userName}, false)
	if err != nil {
		return nil, err
	}
	var permissions []string
	for _, p := range resp.Get("allowed").Array() {
		if name := p.Get("name"); name.Exists() {
			permissions = append(permissions, name.String())
		}
	}
	return permissions, nil
}

// Permissions returns the current user's permissions, fetching them on
// first use and caching thereafter. The cache is never invalidated; call
// UserPermissionsReport directly for a fresh view.
func (s *Session) Permissions(ctx context.Context) ([]string, error) {
	if s.permissions == nil {
		permissions, err := s.UserPermissionsReport(ctx, "")
		if err != nil {
			return nil, err
		}
		s.permissions = permissions
	}
	return s.permissions, nil
}

// retryPlan is one blocked-task or throttle retry decision.
type retryPlan struct {
	wait  time.Duration
	final bool
}

var taskIDPattern = regexp.MustCompile(`^task_id:\s+(\d+)$`)

// retryDecision inspects failure messages for the two retryable server
// conditions: rate limiting (stable ERR_CD) and the blocked-by-current-task
// race (free-text INFO, the only signal the API exposes). Both get exactly
// one retry; the blocked-task wait backs off per task id across calls.
func (s *Session) retryDecision(msgs []dynerrors.Message) (retryPlan, bool) {
	for _, m := range msgs {
		if m.ErrorCode == "RATE_LIMIT_EXCEEDED" {
			return retryPlan{wait: 5 * time.Second, final: true}, true
		}
	}

	blocked := false
	for _, m := range msgs {
		if strings.Contains(m.Info, "Operation blocked by current task") {
			blocked = true
			break
		}
	}
	if !blocked {
		return retryPlan{}, false
	}

	wait := 1 * time.Second
	for _, m := range msgs {
		if match := taskIDPattern.FindStringSubmatch(m.Info); match != nil {
			task := match[1]
			if prev, ok := s.tasks[task]; ok {
				wait = prev
			}
			s.tasks[task] = wait*2 + time.Second
			break
		}
	}
	return retryPlan{wait: wait, final: true}, true
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

// sleepCtx sleeps for d unless the context expires first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return dynerrors.ErrSession.Msg("request cancelled").Err(ctx.Err())
	case <-timer.C:
		return nil
	}
}
