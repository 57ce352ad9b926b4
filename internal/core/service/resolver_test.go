package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
	"github.com/portalcms/account-gateway/internal/pkg/credential"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type stubHandle struct {
	id       int64
	username string
	email    string
	joined   time.Time
	locked   bool
	saves    int
	saveErr  error
}

func (h *stubHandle) ID() int64             { return h.id }
func (h *stubHandle) Username() string      { return h.username }
func (h *stubHandle) Email() string         { return h.email }
func (h *stubHandle) JoinDate() time.Time   { return h.joined }
func (h *stubHandle) SetLocked(locked bool) { h.locked = locked }

func (h *stubHandle) Save(_ context.Context) error {
	h.saves++
	return h.saveErr
}

type stubRealm struct {
	byID     map[int64]*stubHandle
	byName   map[string]*stubHandle
	password string
	banned   map[string]bool
	nextID   int64

	createErr   error
	validateErr error
}

func newStubRealm() *stubRealm {
	return &stubRealm{
		byID:     make(map[int64]*stubHandle),
		byName:   make(map[string]*stubHandle),
		password: "hunter2",
		banned:   make(map[string]bool),
		nextID:   100,
	}
}

func (r *stubRealm) addAccount(id int64, username string) *stubHandle {
	h := &stubHandle{id: id, username: username, email: username + "@example.com"}
	r.byID[id] = h
	r.byName[domain.NormalizeUsername(username)] = h
	return h
}

func (r *stubRealm) ValidateCredentials(_ context.Context, username, password string) (bool, error) {
	if r.validateErr != nil {
		return false, r.validateErr
	}
	_, ok := r.byName[domain.NormalizeUsername(username)]
	return ok && password == r.password, nil
}

func (r *stubRealm) AccountExists(_ context.Context, username string) (bool, error) {
	_, ok := r.byName[domain.NormalizeUsername(username)]
	return ok, nil
}

func (r *stubRealm) IPBanned(_ context.Context, ip string) (bool, error) {
	return r.banned[ip], nil
}

func (r *stubRealm) CreateAccount(_ context.Context, username, _, email, _ string) (int64, error) {
	if r.createErr != nil {
		return 0, r.createErr
	}
	r.nextID++
	h := r.addAccount(r.nextID, username)
	h.email = email
	return r.nextID, nil
}

func (r *stubRealm) FetchAccountByID(_ context.Context, id int64) (ports.AccountHandle, error) {
	h, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return h, nil
}

func (r *stubRealm) FetchAccountByUsername(_ context.Context, username string) (ports.AccountHandle, error) {
	h, ok := r.byName[domain.NormalizeUsername(username)]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return h, nil
}

type stubSessions struct {
	records map[string]*domain.SessionRecord
	deleted []string
}

func newStubSessions() *stubSessions {
	return &stubSessions{records: make(map[string]*domain.SessionRecord)}
}

func (s *stubSessions) Find(_ context.Context, token string) (*domain.SessionRecord, error) {
	record, ok := s.records[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *stubSessions) Insert(_ context.Context, record *domain.SessionRecord) error {
	if _, ok := s.records[record.Token]; ok {
		return errors.New("token already exists")
	}
	clone := *record
	s.records[record.Token] = &clone
	return nil
}

func (s *stubSessions) Delete(_ context.Context, token string) error {
	s.deleted = append(s.deleted, token)
	delete(s.records, token)
	return nil
}

type stubAccounts struct {
	rows   map[int64]*domain.AccountRecord
	groups *stubGroups

	insertErr error
	// pendingRow materialises on the first Insert attempt regardless of its
	// outcome, simulating a concurrent provisioner winning the race.
	pendingRow *domain.AccountRecord
	// discardInserts makes Insert succeed without storing anything.
	discardInserts bool

	lastSeen    map[int64]time.Time
	lastSeenErr error
}

func newStubAccounts(groups *stubGroups) *stubAccounts {
	return &stubAccounts{
		rows:     make(map[int64]*domain.AccountRecord),
		groups:   groups,
		lastSeen: make(map[int64]time.Time),
	}
}

func (a *stubAccounts) FindWithGroup(ctx context.Context, accountID int64) (*domain.AccountRecord, *domain.AccountGroup, error) {
	row, ok := a.rows[accountID]
	if !ok {
		return nil, nil, domain.ErrAccountNotFound
	}
	group, err := a.groups.FindGroup(ctx, row.GroupID)
	if err != nil {
		return nil, nil, err
	}
	clone := *row
	return &clone, group, nil
}

func (a *stubAccounts) Insert(_ context.Context, account *domain.AccountRecord) error {
	if a.pendingRow != nil {
		clone := *a.pendingRow
		a.rows[clone.ID] = &clone
		a.pendingRow = nil
	}
	if a.insertErr != nil {
		return a.insertErr
	}
	if a.discardInserts {
		return nil
	}
	if _, ok := a.rows[account.ID]; ok {
		return domain.ErrAccountExists
	}
	clone := *account
	a.rows[account.ID] = &clone
	return nil
}

func (a *stubAccounts) UpdateLastSeen(_ context.Context, accountID int64, seen time.Time) error {
	if a.lastSeenErr != nil {
		return a.lastSeenErr
	}
	a.lastSeen[accountID] = seen
	return nil
}

func (a *stubAccounts) SetActivated(_ context.Context, accountID int64, activated bool) error {
	row, ok := a.rows[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	row.Activated = activated
	return nil
}

type stubGroups struct {
	byID    map[int64]*domain.AccountGroup
	keys    []string
	updates map[int64][]byte
	listErr error
}

func newStubGroups() *stubGroups {
	return &stubGroups{
		byID:    make(map[int64]*domain.AccountGroup),
		keys:    []string{domain.PermAccountAccess, "admin_access", "send_messages"},
		updates: make(map[int64][]byte),
	}
}

func (g *stubGroups) FindGroup(_ context.Context, groupID int64) (*domain.AccountGroup, error) {
	group, ok := g.byID[groupID]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	clone := *group
	return &clone, nil
}

func (g *stubGroups) UpdateGroupPermissions(_ context.Context, groupID int64, blob []byte) error {
	g.updates[groupID] = blob
	if group, ok := g.byID[groupID]; ok {
		group.Permissions = blob
	}
	return nil
}

func (g *stubGroups) ListPermissionKeys(_ context.Context) ([]string, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.keys, nil
}

type stubNotifier struct {
	events []domain.AuthEvent
}

func (n *stubNotifier) Notify(event domain.AuthEvent) {
	n.events = append(n.events, event)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var discardLogger = zerolog.Nop()

const (
	guestGroupID  = int64(1)
	memberGroupID = int64(3)
	adminGroupID  = int64(4)
)

type fixture struct {
	realm    *stubRealm
	sessions *stubSessions
	accounts *stubAccounts
	groups   *stubGroups
	resolver *IdentityResolver
}

func newFixture(requireActivation bool) *fixture {
	groups := newStubGroups()
	groups.byID[guestGroupID] = &domain.AccountGroup{
		ID:    guestGroupID,
		Title: "Guest",
	}
	groups.byID[memberGroupID] = &domain.AccountGroup{
		ID:          memberGroupID,
		Title:       "Member",
		Flags:       domain.GroupFlags{IsUser: true},
		Permissions: domain.EncodePermissions(map[string]bool{domain.PermAccountAccess: true, "send_messages": true}),
	}
	groups.byID[adminGroupID] = &domain.AccountGroup{
		ID:    adminGroupID,
		Title: "Super Admin",
		Flags: domain.GroupFlags{IsUser: true, IsAdmin: true, IsSuperAdmin: true},
	}

	realm := newStubRealm()
	sessions := newStubSessions()
	accounts := newStubAccounts(groups)

	resolver := NewIdentityResolver(
		realm, sessions, accounts, groups,
		NewPermissionCache(groups, discardLogger),
		ResolverConfig{
			GuestGroupID:      guestGroupID,
			ProvisionGroupID:  memberGroupID,
			RequireActivation: requireActivation,
		},
		discardLogger,
	)

	return &fixture{
		realm:    realm,
		sessions: sessions,
		accounts: accounts,
		groups:   groups,
		resolver: resolver,
	}
}

// addMember registers a realm account plus its local mirror row.
func (f *fixture) addMember(id int64, username string) *stubHandle {
	h := f.realm.addAccount(id, username)
	f.accounts.rows[id] = &domain.AccountRecord{
		ID:        id,
		Username:  domain.NormalizeUsername(username),
		Email:     h.email,
		GroupID:   memberGroupID,
		Activated: true,
	}
	return h
}

// addSession stores a live session for the account and returns its transport
// credential.
func (f *fixture) addSession(t *testing.T, accountID int64, ip string, expiresAt time.Time) (string, string) {
	t.Helper()
	token, err := credential.MintToken()
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	f.sessions.records[token] = &domain.SessionRecord{
		Token:     token,
		AccountID: accountID,
		BoundIP:   ip,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
	return token, credential.Encode(accountID, token)
}

// ---------------------------------------------------------------------------
// Resolve tests
// ---------------------------------------------------------------------------

func TestResolver_EmptyCredentialResolvesGuest(t *testing.T) {
	f := newFixture(false)

	identity, err := f.resolver.Resolve(context.Background(), "", "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Authenticated {
		t.Error("guest identity must not be authenticated")
	}
	if identity.Username != domain.GuestUsername {
		t.Errorf("expected username %q, got %q", domain.GuestUsername, identity.Username)
	}
	if identity.GroupID != guestGroupID {
		t.Errorf("expected guest group %d, got %d", guestGroupID, identity.GroupID)
	}
	if identity.IPAddress != "10.0.0.5" {
		t.Errorf("expected ip to carry through, got %q", identity.IPAddress)
	}
}

func TestResolver_MalformedCredentialResolvesGuest(t *testing.T) {
	f := newFixture(false)

	identity, err := f.resolver.Resolve(context.Background(), "not-a-credential", "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Authenticated {
		t.Error("malformed credential must resolve as guest")
	}
}

func TestResolver_UnknownTokenResolvesGuest(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")

	cred := credential.Encode(7, "0000000000000000000000000000000000000000")
	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Authenticated {
		t.Error("unknown token must resolve as guest")
	}
	if len(f.sessions.deleted) != 0 {
		t.Errorf("absent session must not trigger a delete, got %v", f.sessions.deleted)
	}
}

func TestResolver_ValidSessionResolvesAccount(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")
	token, cred := f.addSession(t, 7, "10.0.0.5", time.Now().Add(time.Hour))

	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.Authenticated {
		t.Fatal("expected authenticated identity")
	}
	if identity.AccountID != 7 {
		t.Errorf("expected account 7, got %d", identity.AccountID)
	}
	if identity.Username != "Alice" {
		t.Errorf("expected normalized username Alice, got %q", identity.Username)
	}
	if identity.SessionToken != token {
		t.Error("identity must carry its live session token")
	}
	if !identity.HasPermission(domain.PermAccountAccess) {
		t.Error("member must hold account_access")
	}
	if identity.HasPermission("admin_access") {
		t.Error("member must not hold admin_access")
	}
}

func TestResolver_AccountMismatchForcesLogout(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")
	f.addMember(8, "bob")
	token, _ := f.addSession(t, 7, "10.0.0.5", time.Now().Add(time.Hour))

	// Credential claims bob but the token belongs to alice's session.
	cred := credential.Encode(8, token)
	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Authenticated {
		t.Error("mismatched credential must resolve as guest")
	}
	if len(f.sessions.deleted) != 1 || f.sessions.deleted[0] != token {
		t.Errorf("expected session %q deleted, got %v", token, f.sessions.deleted)
	}
}

func TestResolver_IPMismatchForcesLogout(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")
	token, cred := f.addSession(t, 7, "10.0.0.5", time.Now().Add(time.Hour))

	identity, err := f.resolver.Resolve(context.Background(), cred, "172.16.0.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Authenticated {
		t.Error("ip mismatch must resolve as guest")
	}
	if len(f.sessions.deleted) != 1 || f.sessions.deleted[0] != token {
		t.Errorf("expected session %q deleted, got %v", token, f.sessions.deleted)
	}
	if identity.IPAddress != "172.16.0.9" {
		t.Errorf("guest must carry the requester ip, got %q", identity.IPAddress)
	}
}

func TestResolver_ExpiredSessionForcesLogout(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")
	token, cred := f.addSession(t, 7, "10.0.0.5", time.Now().Add(time.Hour))

	// Jump the resolver clock past the expiry instead of sleeping.
	f.resolver.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Authenticated {
		t.Error("expired session must resolve as guest")
	}
	if len(f.sessions.deleted) != 1 || f.sessions.deleted[0] != token {
		t.Errorf("expected session %q deleted, got %v", token, f.sessions.deleted)
	}
}

func TestResolver_RealmDeletedAccountResolvesGuest(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")
	_, cred := f.addSession(t, 7, "10.0.0.5", time.Now().Add(time.Hour))

	// Realm-side deletion after the session was minted.
	delete(f.realm.byID, 7)

	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Authenticated {
		t.Error("realm-deleted account must resolve as guest")
	}
}

func TestResolver_ProvisionsMissingMirrorRow(t *testing.T) {
	f := newFixture(false)
	h := f.realm.addAccount(9, "carol")
	h.joined = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, cred := f.addSession(t, 9, "10.0.0.5", time.Now().Add(time.Hour))

	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.Authenticated {
		t.Fatal("expected authenticated identity after provisioning")
	}

	row, ok := f.accounts.rows[9]
	if !ok {
		t.Fatal("expected mirror row to be provisioned")
	}
	if row.GroupID != memberGroupID {
		t.Errorf("expected provision group %d, got %d", memberGroupID, row.GroupID)
	}
	if !row.Registered.Equal(h.joined) {
		t.Errorf("expected realm join date %v, got %v", h.joined, row.Registered)
	}
	if row.RegistrationIP != "10.0.0.5" {
		t.Errorf("expected registration ip recorded, got %q", row.RegistrationIP)
	}
}

func TestResolver_ProvisioningRaceServedByRefetch(t *testing.T) {
	f := newFixture(false)
	f.realm.addAccount(9, "carol")
	_, cred := f.addSession(t, 9, "10.0.0.5", time.Now().Add(time.Hour))

	// The concurrent provisioner's row lands together with our duplicate-key
	// failure; the re-fetch must serve it.
	f.accounts.insertErr = domain.ErrAccountExists
	f.accounts.pendingRow = &domain.AccountRecord{
		ID:        9,
		Username:  "Carol",
		GroupID:   memberGroupID,
		Activated: true,
	}

	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.Authenticated {
		t.Fatal("race loser must still resolve the provisioned account")
	}
	if identity.AccountID != 9 {
		t.Errorf("expected account 9, got %d", identity.AccountID)
	}
}

func TestResolver_ProvisioningRefetchMissIsFatal(t *testing.T) {
	f := newFixture(false)
	f.realm.addAccount(9, "carol")
	_, cred := f.addSession(t, 9, "10.0.0.5", time.Now().Add(time.Hour))

	// Insert claims success but the row never lands: the subsequent miss is
	// an unrecoverable inconsistency, not a guest downgrade.
	f.accounts.discardInserts = true

	identity, err := f.resolver.Resolve(context.Background(), cred, "10.0.0.5")
	if !errors.Is(err, domain.ErrProvisioningFailed) {
		t.Fatalf("expected ErrProvisioningFailed, got %v", err)
	}
	if identity != nil {
		t.Error("fatal provisioning failure must not yield an identity")
	}
}

func TestResolver_AccessGateBeforeActivationGate(t *testing.T) {
	f := newFixture(true)
	f.realm.addAccount(7, "alice")

	// No account_access and not activated: the access failure wins.
	f.groups.byID[memberGroupID].Permissions = nil
	f.accounts.rows[7] = &domain.AccountRecord{
		ID:        7,
		Username:  "Alice",
		GroupID:   memberGroupID,
		Activated: false,
	}

	_, err := f.resolver.ResolveAccount(context.Background(), 7, "10.0.0.5")
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestResolver_UnactivatedAccountRejectedWhenRequired(t *testing.T) {
	f := newFixture(true)
	f.addMember(7, "alice")
	f.accounts.rows[7].Activated = false

	_, err := f.resolver.ResolveAccount(context.Background(), 7, "10.0.0.5")
	if !errors.Is(err, domain.ErrAccountNotActivated) {
		t.Fatalf("expected ErrAccountNotActivated, got %v", err)
	}
}

func TestResolver_UnactivatedAccountAllowedWhenNotRequired(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")
	f.accounts.rows[7].Activated = false

	identity, err := f.resolver.ResolveAccount(context.Background(), 7, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.Authenticated {
		t.Error("activation must not gate resolution when the policy is off")
	}
}

func TestResolver_SuperAdminBypassesPermissionChecks(t *testing.T) {
	f := newFixture(false)
	f.realm.addAccount(2, "root")
	f.accounts.rows[2] = &domain.AccountRecord{
		ID:        2,
		Username:  "Root",
		GroupID:   adminGroupID,
		Activated: true,
	}

	identity, err := f.resolver.ResolveAccount(context.Background(), 2, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.HasPermission("anything_at_all") {
		t.Error("super admin must pass every permission check")
	}
	if !identity.HasPermission(domain.PermAccountAccess) {
		t.Error("super admin must pass the access gate without the key stored")
	}
}

func TestResolver_StalePermissionKeysPrunedAndPersisted(t *testing.T) {
	f := newFixture(false)
	f.addMember(7, "alice")
	f.groups.byID[memberGroupID].Permissions = domain.EncodePermissions(map[string]bool{
		domain.PermAccountAccess: true,
		"old_feature":            true,
	})

	identity, err := f.resolver.ResolveAccount(context.Background(), 7, "10.0.0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.HasPermission("old_feature") {
		t.Error("stale key must not survive resolution")
	}

	blob, ok := f.groups.updates[memberGroupID]
	if !ok {
		t.Fatal("expected pruned blob written back to the group")
	}
	healed := domain.DecodePermissions(blob)
	if healed["old_feature"] {
		t.Error("persisted blob must not contain the pruned key")
	}
	if !healed[domain.PermAccountAccess] {
		t.Error("persisted blob must keep surviving grants")
	}
}

func TestResolver_GuestGroupFailureDegradesToBareGuest(t *testing.T) {
	f := newFixture(false)
	delete(f.groups.byID, guestGroupID)

	identity, err := f.resolver.Resolve(context.Background(), "", "10.0.0.5")
	if err != nil {
		t.Fatalf("guest resolution must never fail, got %v", err)
	}
	if identity.Authenticated {
		t.Error("bare guest must not be authenticated")
	}
	if identity.HasPermission(domain.PermAccountAccess) {
		t.Error("bare guest must hold no permissions")
	}
}
