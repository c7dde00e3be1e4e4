package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
)

// endpointFor converts an httptest server URL into an Endpoint.
func endpointFor(t *testing.T, srv *httptest.Server) Endpoint {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Endpoint{Host: u.Hostname(), Port: port}
}

func TestConnValidation(t *testing.T) {
	_, err := NewConn(Endpoint{})
	assert.ErrorIs(t, err, dynerrors.ErrArgument)

	_, err = NewConn(Endpoint{Host: "api.example.net", ProxyHost: "proxy.example.net"})
	assert.ErrorIs(t, err, dynerrors.ErrArgument)

	c, err := NewConn(Endpoint{Host: "api.example.net", Port: 443, TLS: true})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.net:443/REST/Zone/", c.URL("/REST/Zone/"))
	assert.False(t, c.Connected())
}

func TestDoExchange(t *testing.T) {
	var gotMethod, gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotToken = r.Header.Get("Auth-Token")
		w.Write([]byte(`{"status":"success","data":{}}`))
	}))
	defer srv.Close()

	c, err := NewConn(endpointFor(t, srv))
	require.NoError(t, err)

	// Do connects implicitly.
	resp, err := c.Do(context.Background(), Request{
		Method:  http.MethodGet,
		Path:    "/REST/Zone/example.com/",
		Headers: map[string]string{"Auth-Token": "tok123"},
	})
	require.NoError(t, err)
	assert.True(t, c.Connected())
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/REST/Zone/example.com/", gotPath)
	assert.Equal(t, "tok123", gotToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), `"status":"success"`)
}

func TestDoRedirectNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/REST/Job/99/" {
			t.Fatal("redirect must not be followed by the transport")
		}
		w.Header().Set("Location", "/REST/Job/99/")
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	c, err := NewConn(endpointFor(t, srv))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/REST/Zone/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/REST/Job/99/", resp.Location)
}

func TestDoTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ep := endpointFor(t, srv)
	srv.Close() // remote end is gone

	c, err := NewConn(ep)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/REST/Session/"})
	assert.ErrorIs(t, err, dynerrors.ErrTransport)
}

func TestConnectReplacesConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewConn(endpointFor(t, srv))
	require.NoError(t, err)

	require.NoError(t, c.Connect())
	assert.True(t, c.Connected())
	require.NoError(t, c.Connect())
	assert.True(t, c.Connected())

	c.Close()
	assert.False(t, c.Connected())
	c.Close()
}
