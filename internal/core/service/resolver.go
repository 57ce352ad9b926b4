package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
	"github.com/portalcms/account-gateway/internal/pkg/credential"
)

// ResolverConfig carries the policy knobs the resolver needs.
type ResolverConfig struct {
	// GuestGroupID is the reserved group backing unauthenticated identities.
	GuestGroupID int64
	// ProvisionGroupID is assigned to mirror rows created for realm accounts
	// seen for the first time.
	ProvisionGroupID int64
	// RequireActivation gates resolution of accounts that have not completed
	// email verification.
	RequireActivation bool
}

// IdentityResolver coordinates the session store, the realm, and the
// permission cache to produce the request's Identity. Every failure short of
// a fatal provisioning error degrades to the guest identity; session
// anomalies (IP mismatch, expiry) additionally delete the session as a
// forced logout.
type IdentityResolver struct {
	realm    ports.RealmAdapter
	sessions ports.SessionStore
	accounts ports.AccountRepository
	groups   ports.GroupRepository
	perms    *PermissionCache
	cfg      ResolverConfig
	log      zerolog.Logger

	now func() time.Time
}

func NewIdentityResolver(
	realm ports.RealmAdapter,
	sessions ports.SessionStore,
	accounts ports.AccountRepository,
	groups ports.GroupRepository,
	perms *PermissionCache,
	cfg ResolverConfig,
	log zerolog.Logger,
) *IdentityResolver {
	return &IdentityResolver{
		realm:    realm,
		sessions: sessions,
		accounts: accounts,
		groups:   groups,
		perms:    perms,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Resolve validates the transport credential and returns the resulting
// identity. The error is non-nil only for domain.ErrProvisioningFailed.
func (r *IdentityResolver) Resolve(ctx context.Context, cred, clientIP string) (*domain.Identity, error) {
	// 1. No credential, no session.
	if cred == "" {
		return r.guest(ctx, clientIP)
	}

	// 2. A credential that does not decode is treated as absent.
	accountID, token, err := credential.Decode(cred)
	if err != nil {
		r.log.Debug().Str("ip", clientIP).Msg("malformed session credential, resolving as guest")
		return r.guest(ctx, clientIP)
	}

	// 3. Look up and validate the session record.
	record, err := r.sessions.Find(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			r.log.Warn().Err(err).Msg("session lookup failed, resolving as guest")
		}
		return r.guest(ctx, clientIP)
	}

	switch {
	case record.AccountID != accountID:
		// Token belongs to a different account than the credential claims.
		r.forceLogout(ctx, token, "account mismatch", clientIP)
		return r.guest(ctx, clientIP)
	case !record.BoundTo(clientIP):
		// Possible stolen token: bound IP and requester IP disagree.
		r.forceLogout(ctx, token, "ip mismatch", clientIP)
		return r.guest(ctx, clientIP)
	case record.Expired(r.now()):
		r.forceLogout(ctx, token, "expired", clientIP)
		return r.guest(ctx, clientIP)
	}

	// 4. Session is good; load the account behind it.
	identity, err := r.ResolveAccount(ctx, record.AccountID, clientIP)
	if err != nil {
		if errors.Is(err, domain.ErrProvisioningFailed) {
			return nil, err
		}
		r.log.Warn().
			Err(err).
			Int64("account_id", record.AccountID).
			Msg("account resolution failed, resolving as guest")
		return r.guest(ctx, clientIP)
	}

	identity.SessionToken = token
	return identity, nil
}

// ResolveAccount runs the authenticated path for a known account id: realm
// fetch, mirror lookup (provisioning it when absent), permission pruning,
// access and activation gates. Unlike Resolve it surfaces the specific
// failure so login can report it; callers other than login degrade those
// failures to guest.
func (r *IdentityResolver) ResolveAccount(ctx context.Context, accountID int64, clientIP string) (*domain.Identity, error) {
	// The realm is the authority: a session may outlive realm-side deletion.
	handle, err := r.realm.FetchAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("resolve account %d: realm fetch: %w", accountID, err)
	}

	account, group, err := r.accounts.FindWithGroup(ctx, handle.ID())
	if errors.Is(err, domain.ErrAccountNotFound) {
		account, group, err = r.provision(ctx, handle, clientIP)
	}
	if err != nil {
		return nil, err
	}

	perms, err := r.perms.Resolve(ctx, group.ID, group.Permissions)
	if err != nil {
		return nil, err
	}

	// Access gate first, activation gate second. Order is observable when an
	// unactivated account also lacks account_access.
	if !group.Flags.IsSuperAdmin && !perms[domain.PermAccountAccess] {
		return nil, domain.ErrAccessDenied
	}
	if r.cfg.RequireActivation && !account.Activated {
		return nil, domain.ErrAccountNotActivated
	}

	return buildIdentity(handle, account, group, perms, clientIP), nil
}

// provision inserts a mirror row for a realm account seen for the first
// time. Two requests racing here is expected: a duplicate-key failure means
// the other request won, and the re-fetch serves both. A re-fetch miss after
// our own insert is unrecoverable.
func (r *IdentityResolver) provision(ctx context.Context, handle ports.AccountHandle, clientIP string) (*domain.AccountRecord, *domain.AccountGroup, error) {
	registered := handle.JoinDate()
	if registered.IsZero() {
		registered = r.now()
	}

	row := &domain.AccountRecord{
		ID:             handle.ID(),
		Username:       domain.NormalizeUsername(handle.Username()),
		Email:          handle.Email(),
		GroupID:        r.cfg.ProvisionGroupID,
		Activated:      true,
		Registered:     registered,
		RegistrationIP: clientIP,
	}

	if err := r.accounts.Insert(ctx, row); err != nil {
		if !errors.Is(err, domain.ErrAccountExists) {
			r.log.Warn().Err(err).Int64("account_id", row.ID).Msg("mirror insert failed, retrying via re-fetch")
		}
	} else {
		r.log.Info().
			Int64("account_id", row.ID).
			Str("username", row.Username).
			Msg("provisioned local mirror for realm account")
	}

	account, group, err := r.accounts.FindWithGroup(ctx, handle.ID())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: account %d absent after insert", domain.ErrProvisioningFailed, handle.ID())
	}
	return account, group, nil
}

// guest builds the baseline unauthenticated identity from the reserved
// guest group. When even that fails the bare guest identity is returned, so
// callers always end up with something valid.
func (r *IdentityResolver) guest(ctx context.Context, clientIP string) (*domain.Identity, error) {
	identity := domain.Guest(clientIP)

	group, err := r.groups.FindGroup(ctx, r.cfg.GuestGroupID)
	if err != nil {
		r.log.Error().Err(err).Int64("group_id", r.cfg.GuestGroupID).Msg("guest group unavailable")
		return identity, nil
	}

	perms, err := r.perms.Resolve(ctx, group.ID, group.Permissions)
	if err != nil {
		r.log.Error().Err(err).Int64("group_id", group.ID).Msg("guest permission resolution failed")
		return identity, nil
	}

	identity.GroupID = group.ID
	identity.GroupTitle = group.Title
	identity.Flags = group.Flags
	identity.Permissions = perms
	return identity, nil
}

func (r *IdentityResolver) forceLogout(ctx context.Context, token, reason, clientIP string) {
	if err := r.sessions.Delete(ctx, token); err != nil {
		r.log.Error().Err(err).Msg("forced logout: session delete failed")
	}
	r.log.Warn().
		Str("reason", reason).
		Str("ip", clientIP).
		Msg("session invalidated, forced logout")
}

func buildIdentity(handle ports.AccountHandle, account *domain.AccountRecord, group *domain.AccountGroup, perms map[string]bool, clientIP string) *domain.Identity {
	return &domain.Identity{
		Authenticated: true,
		AccountID:     handle.ID(),
		Username:      domain.NormalizeUsername(handle.Username()),
		Email:         handle.Email(),
		IPAddress:     clientIP,
		GroupID:       group.ID,
		GroupTitle:    group.Title,
		Flags:         group.Flags,
		Permissions:   perms,
		Attributes: map[string]any{
			"activated":          account.Activated,
			"registered":         account.Registered,
			"registration_ip":    account.RegistrationIP,
			"last_seen":          account.LastSeen,
			"language":           account.Language,
			"selected_theme":     account.SelectedTheme,
			"votes":              account.Votes,
			"vote_points":        account.VotePoints,
			"vote_points_earned": account.VotePointsEarned,
			"vote_points_spent":  account.VotePointsSpent,
			"donations":          account.Donations,
			// Only recovery presence is exposed, never the blob.
			"has_recovery": len(account.RecoveryBlob) > 10,
		},
	}
}
