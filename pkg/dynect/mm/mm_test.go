package mm

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
	"github.com/dynectlabs/dynect-go/pkg/dynect/session"
	"github.com/dynectlabs/dynect-go/pkg/dynect/transport"
)

// stubConn is a scripted transport that records requests and answers each
// with the next canned body.
type stubConn struct {
	t        *testing.T
	bodies   []string
	requests []transport.Request
	connects int
	closes   int
}

func (c *stubConn) Do(_ context.Context, req transport.Request) (*transport.Response, error) {
	c.requests = append(c.requests, req)
	if len(c.bodies) == 0 {
		c.t.Fatalf("unexpected request: %s %s", req.Method, req.Path)
	}
	body := c.bodies[0]
	c.bodies = c.bodies[1:]
	return &transport.Response{StatusCode: 200, Body: []byte(body)}, nil
}

func (c *stubConn) Connect() error  { c.connects++; return nil }
func (c *stubConn) Close()          { c.closes++ }
func (c *stubConn) Connected() bool { return c.connects > c.closes }

func newTestSession(t *testing.T, conn *stubConn) *Session {
	t.Helper()
	conn.t = t
	s, err := New(Config{
		APIKey:    "key123",
		Owner:     "thread-1",
		Registry:  session.NewRegistry(),
		Transport: conn,
	})
	require.NoError(t, err)
	return s
}

func TestConfigRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, dynerrors.ErrArgument)
}

func TestMethodValidation(t *testing.T) {
	conn := &stubConn{}
	s := newTestSession(t, conn)

	for _, method := range []string{"PUT", "DELETE", "PATCH"} {
		_, err := s.Execute(context.Background(), "/senders", method, nil)
		assert.ErrorIs(t, err, dynerrors.ErrArgument, method)
	}
	assert.Empty(t, conn.requests)
}

func TestGetFoldsArgsIntoQuery(t *testing.T) {
	conn := &stubConn{bodies: []string{
		`{"response":{"status":200,"message":"OK","data":{"emailaddress":"a@example.com"}}}`,
	}}
	s := newTestSession(t, conn)

	data, err := s.Execute(context.Background(), "senders/details", "GET",
		map[string]string{"emailaddress": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", data.Get("emailaddress").String())

	req := conn.requests[0]
	path, rawQuery, found := strings.Cut(req.Path, "?")
	require.True(t, found)
	assert.Equal(t, "/rest/json/senders/details", path)
	assert.Empty(t, req.Body)

	query, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", query.Get("emailaddress"))
	assert.Equal(t, "key123", query.Get("apikey"))
}

func TestPostSendsForm(t *testing.T) {
	conn := &stubConn{bodies: []string{
		`{"response":{"status":200,"message":"OK","data":{}}}`,
	}}
	s := newTestSession(t, conn)

	_, err := s.Execute(context.Background(), "/senders", "POST",
		map[string]string{"emailaddress": "a@example.com"})
	require.NoError(t, err)

	req := conn.requests[0]
	assert.Equal(t, "/rest/json/senders", req.Path)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Headers["Content-Type"])

	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", form.Get("emailaddress"))
	assert.Equal(t, "key123", form.Get("apikey"))
}

func TestCallerAPIKeyWins(t *testing.T) {
	conn := &stubConn{bodies: []string{
		`{"response":{"status":200,"message":"OK","data":{}}}`,
	}}
	s := newTestSession(t, conn)

	_, err := s.Execute(context.Background(), "/senders", "POST",
		map[string]string{"apikey": "other-key"})
	require.NoError(t, err)

	form, err := url.ParseQuery(string(conn.requests[0].Body))
	require.NoError(t, err)
	assert.Equal(t, "other-key", form.Get("apikey"))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected error
	}{
		{
			"key error",
			`{"response":{"status":451,"message":"Missing or Invalid API Key","data":{}}}`,
			dynerrors.ErrEmailKey,
		},
		{
			"invalid argument",
			`{"response":{"status":452,"message":"emailaddress is invalid","data":{}}}`,
			dynerrors.ErrEmailInvalidArgument,
		},
		{
			"object error",
			`{"response":{"status":453,"message":"sender does not exist","data":{}}}`,
			dynerrors.ErrEmailObject,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &stubConn{bodies: []string{tt.body}}
			s := newTestSession(t, conn)

			_, err := s.Execute(context.Background(), "/senders", "GET", nil)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	conn := &stubConn{bodies: []string{`<html>gateway error</html>`}}
	s := newTestSession(t, conn)

	_, err := s.Execute(context.Background(), "/senders", "GET", nil)
	assert.ErrorIs(t, err, dynerrors.ErrSession)
}

// failingConn refuses to connect.
type failingConn struct{ stubConn }

func (c *failingConn) Connect() error {
	return dynerrors.ErrTransport.Msg("connection refused")
}

func TestFailedConstructionNotRegistered(t *testing.T) {
	reg := session.NewRegistry()
	_, err := New(Config{
		APIKey:    "key123",
		Owner:     "thread-1",
		Registry:  reg,
		Transport: &failingConn{},
	})
	require.Error(t, err)
	assert.Nil(t, reg.Current(session.KindMessage, "thread-1"))
}

func TestRegistryLifecycle(t *testing.T) {
	reg := session.NewRegistry()
	conn := &stubConn{t: t}
	s, err := New(Config{
		APIKey:    "key123",
		Owner:     "thread-1",
		Registry:  reg,
		Transport: conn,
	})
	require.NoError(t, err)

	assert.Same(t, s, reg.Current(session.KindMessage, "thread-1"))
	assert.Nil(t, reg.Current(session.KindTraffic, "thread-1"))

	s.Close()
	assert.Nil(t, reg.Current(session.KindMessage, "thread-1"))
	assert.Equal(t, 1, conn.closes)
}
