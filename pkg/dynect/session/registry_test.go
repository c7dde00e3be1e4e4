package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct{ kind Kind }

func (f *fakeEntry) RegistryKind() Kind { return f.kind }

func TestRegistryScopesByOwner(t *testing.T) {
	reg := NewRegistry()
	a := &fakeEntry{kind: KindTraffic}
	b := &fakeEntry{kind: KindTraffic}

	reg.Bind("owner-a", a)
	reg.Bind("owner-b", b)

	assert.Same(t, a, reg.Current(KindTraffic, "owner-a"))
	assert.Same(t, b, reg.Current(KindTraffic, "owner-b"))
	assert.Nil(t, reg.Current(KindTraffic, "owner-c"))
}

func TestRegistryScopesByKind(t *testing.T) {
	reg := NewRegistry()
	tm := &fakeEntry{kind: KindTraffic}
	mm := &fakeEntry{kind: KindMessage}

	reg.Bind("owner-a", tm)
	reg.Bind("owner-a", mm)

	assert.Same(t, tm, reg.Current(KindTraffic, "owner-a"))
	assert.Same(t, mm, reg.Current(KindMessage, "owner-a"))
}

func TestRegistryBindReplaces(t *testing.T) {
	reg := NewRegistry()
	old := &fakeEntry{kind: KindTraffic}
	neu := &fakeEntry{kind: KindTraffic}

	reg.Bind("owner-a", old)
	reg.Bind("owner-a", neu)

	assert.Same(t, neu, reg.Current(KindTraffic, "owner-a"))
}

func TestRegistryCloseCurrent(t *testing.T) {
	reg := NewRegistry()
	e := &fakeEntry{kind: KindTraffic}
	reg.Bind("owner-a", e)

	assert.Same(t, e, reg.CloseCurrent(KindTraffic, "owner-a"))
	assert.Nil(t, reg.Current(KindTraffic, "owner-a"))

	// Double close is tolerated.
	assert.Nil(t, reg.CloseCurrent(KindTraffic, "owner-a"))
}

func TestSessionRegistersItself(t *testing.T) {
	conn := &stubConn{t: t}
	cfg := testConfig(conn)
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)

	got := cfg.Registry.Current(KindTraffic, "thread-1")
	assert.Same(t, s, got)
}
