package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
)

// identity is one stored credential set. Records are immutable; switching
// the active identity copies one of these into the live session fields.
type identity struct {
	customer string
	username string
	password string // ciphertext
	token    string
}

// Identity is the caller-visible view of a stored identity.
type Identity struct {
	Customer string
	Username string
}

// MultiSession layers multiple concurrently-authenticated identities over
// one session engine. Each successful authenticate records the identity;
// switching the active identity swaps the live credentials and token
// without reopening the transport. Entries are unique by
// (username, customer).
type MultiSession struct {
	*Session
	identities []identity
	active     int // index into identities, -1 when no identity is active
}

// NewMulti constructs a MultiSession: connects, authenticates the initial
// credentials (unless suppressed), and records them as the first open
// identity. Like New, a failed construction leaves the registry untouched.
func NewMulti(ctx context.Context, cfg Config) (*MultiSession, error) {
	suppress := cfg.SuppressAuth
	cfg.SuppressAuth = true

	s, err := newSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m := &MultiSession{Session: s, active: -1}
	s.onAuthenticated = m.recordOpenSession

	if !suppress {
		if err := s.Authenticate(ctx); err != nil {
			return nil, err
		}
	}
	// Registry lookups see the multi-session wrapper, not the inner session.
	s.cfg.Registry.Bind(s.cfg.Owner, m)
	return m, nil
}

// recordOpenSession stores the live identity after a successful
// authenticate, replacing any entry with the same username and customer.
func (m *MultiSession) recordOpenSession() {
	entry := identity{
		customer: m.customer,
		username: m.username,
		password: m.password,
		token:    m.token,
	}
	for i := range m.identities {
		if m.identities[i].username == entry.username && m.identities[i].customer == entry.customer {
			m.identities[i] = entry
			m.active = i
			return
		}
	}
	m.identities = append(m.identities, entry)
	m.active = len(m.identities) - 1
}

// OpenSessions lists the stored identities in insertion order.
func (m *MultiSession) OpenSessions() []Identity {
	out := make([]Identity, 0, len(m.identities))
	for _, id := range m.identities {
		out = append(out, Identity{Customer: id.customer, Username: id.username})
	}
	return out
}

// ActiveIdentity returns the currently active identity. ok is false when
// the session is in the blank state left by an ambiguous logout.
func (m *MultiSession) ActiveIdentity() (Identity, bool) {
	if m.active < 0 || m.active >= len(m.identities) {
		return Identity{}, false
	}
	id := m.identities[m.active]
	return Identity{Customer: id.customer, Username: id.username}, true
}

// SetActiveSession makes the identity matching username (and customer, when
// given) active and re-authenticates it. Exactly one identity must match:
// zero matches yield ErrNoOpenSession, several yield ErrAmbiguousSession.
func (m *MultiSession) SetActiveSession(ctx context.Context, username, customer string) error {
	idx, count := -1, 0
	for i, id := range m.identities {
		if id.username != username {
			continue
		}
		if customer != "" && id.customer != customer {
			continue
		}
		idx = i
		count++
	}
	if count > 1 {
		return dynerrors.ErrAmbiguousSession.Msg(fmt.Sprintf(
			"user %s has open sessions under several customers, specify the customer", username))
	}
	if count == 0 {
		if customer != "" {
			return dynerrors.ErrNoOpenSession.Msg(fmt.Sprintf(
				"no open session for customer %s, user %s", customer, username))
		}
		return dynerrors.ErrNoOpenSession.Msg(fmt.Sprintf("no open session for user %s", username))
	}

	id := m.identities[idx]
	m.customer = id.customer
	m.username = id.username
	m.password = id.password
	m.token = id.token
	m.active = idx
	return m.Authenticate(ctx)
}

// NewUserSession authenticates a brand-new identity and makes it active.
// On authentication failure the previously active identity is restored.
func (m *MultiSession) NewUserSession(ctx context.Context, customer, username, password string) error {
	if len(m.identities) == 0 {
		return dynerrors.ErrNoOpenSession.Msg("session empty, create a new multi-session first")
	}

	var prev *identity
	if m.active >= 0 && m.active < len(m.identities) {
		p := m.identities[m.active]
		prev = &p
	}

	encrypted, err := m.cipher.Encrypt(password)
	if err != nil {
		return err
	}
	m.customer = customer
	m.username = username
	m.password = encrypted
	m.token = ""

	if err := m.Authenticate(ctx); err != nil {
		if prev != nil {
			if restoreErr := m.SetActiveSession(ctx, prev.username, prev.customer); restoreErr != nil {
				m.logger.Warn().Err(restoreErr).Msg("failed to restore previous identity")
			}
		}
		return err
	}
	return nil
}

// LogOutActiveSession logs out only the active identity's remote session.
// With one remaining peer that peer becomes active; with several the
// session is left blank and the caller must pick one with SetActiveSession.
func (m *MultiSession) LogOutActiveSession(ctx context.Context) error {
	if len(m.identities) <= 1 {
		return m.LogOut(ctx)
	}

	if _, err := m.execute(ctx, "/Session/", http.MethodDelete, nil, false); err != nil {
		return err
	}

	kept := m.identities[:0]
	for _, id := range m.identities {
		if id.username == m.username && id.customer == m.customer {
			continue
		}
		kept = append(kept, id)
	}
	m.identities = kept
	m.active = -1

	if len(m.identities) == 1 {
		return m.SetActiveSession(ctx, m.identities[0].username, m.identities[0].customer)
	}

	m.logger.Warn().Msg(
		"more than one open session remains, select one with SetActiveSession")
	m.customer, m.username, m.password, m.token = "", "", "", ""
	return nil
}

// LogOut makes each stored identity active in turn and logs it fully out,
// then removes this session from the registry.
func (m *MultiSession) LogOut(ctx context.Context) error {
	snapshot := make([]identity, len(m.identities))
	copy(snapshot, m.identities)

	for _, id := range snapshot {
		if err := m.SetActiveSession(ctx, id.username, id.customer); err != nil {
			return err
		}
		if _, err := m.execute(ctx, "/Session/", http.MethodDelete, nil, false); err != nil {
			return err
		}
	}

	m.cfg.Registry.CloseCurrent(KindTraffic, m.cfg.Owner)
	m.identities = nil
	m.active = -1
	m.customer, m.username, m.password, m.token = "", "", "", ""
	return nil
}
