package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
	"github.com/portalcms/account-gateway/internal/pkg/credential"
)

// AuthConfig carries the auth policy knobs.
type AuthConfig struct {
	// SessionLifetime bounds every minted session. Default 30 days.
	SessionLifetime time.Duration
	// RequireEmailVerification locks new realm accounts until activation.
	RequireEmailVerification bool
	// ActivationSecret signs activation tokens; ActivationTTL bounds them.
	ActivationSecret string
	ActivationTTL    time.Duration
	// ProvisionGroupID is assigned to mirror rows created at registration.
	ProvisionGroupID int64
}

// AuthService implements login, registration, logout, and activation on top
// of the identity resolver, the session store, and the realm.
type AuthService struct {
	realm      ports.RealmAdapter
	sessions   ports.SessionStore
	accounts   ports.AccountRepository
	resolver   *IdentityResolver
	notifier   ports.Notifier
	activation *activationCodec
	cfg        AuthConfig
	log        zerolog.Logger

	now func() time.Time
}

func NewAuthService(
	realm ports.RealmAdapter,
	sessions ports.SessionStore,
	accounts ports.AccountRepository,
	resolver *IdentityResolver,
	notifier ports.Notifier,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if cfg.SessionLifetime <= 0 {
		cfg.SessionLifetime = 30 * 24 * time.Hour
	}
	if cfg.ActivationTTL <= 0 {
		cfg.ActivationTTL = 48 * time.Hour
	}
	return &AuthService{
		realm:      realm,
		sessions:   sessions,
		accounts:   accounts,
		resolver:   resolver,
		notifier:   notifier,
		activation: newActivationCodec(cfg.ActivationSecret, cfg.ActivationTTL),
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Login validates credentials against the realm, runs the authenticated
// resolution path, and mints a fresh session bound to the caller's IP.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (*domain.Identity, string, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, "", domain.ErrInvalidField
	}

	// 1. Credential check is the realm's call entirely.
	ok, err := s.realm.ValidateCredentials(ctx, username, password)
	if err != nil {
		return nil, "", fmt.Errorf("login: realm validate: %w", err)
	}
	if !ok {
		s.log.Info().Str("username", username).Str("ip", clientIP).Msg("login rejected: invalid credentials")
		return nil, "", domain.ErrInvalidCredentials
	}

	// 2. Resolve the full identity; access/activation failures propagate.
	handle, err := s.realm.FetchAccountByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("login: realm fetch: %w", err)
	}
	identity, err := s.resolver.ResolveAccount(ctx, handle.ID(), clientIP)
	if err != nil {
		return nil, "", err
	}

	// 3. Mint the session. Re-login always issues a new token.
	token, err := credential.MintToken()
	if err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}
	now := s.now()
	record := &domain.SessionRecord{
		Token:     token,
		AccountID: identity.AccountID,
		BoundIP:   clientIP,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionLifetime),
	}
	if err := s.sessions.Insert(ctx, record); err != nil {
		return nil, "", fmt.Errorf("login: store session: %w", err)
	}

	// Last-seen tracking is best effort.
	if err := s.accounts.UpdateLastSeen(ctx, identity.AccountID, now); err != nil {
		s.log.Warn().Err(err).Int64("account_id", identity.AccountID).Msg("last-seen update failed")
	}

	identity.SessionToken = token
	s.notifier.Notify(domain.AuthEvent{
		Name:      domain.EventUserLoggedIn,
		AccountID: identity.AccountID,
		Username:  identity.Username,
		IPAddress: clientIP,
		At:        now,
	})
	s.log.Info().Str("username", identity.Username).Int64("account_id", identity.AccountID).Msg("login successful")

	return identity, credential.Encode(identity.AccountID, token), nil
}

// Register creates the account in the realm, then mirrors it locally.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (int64, error) {
	username := domain.NormalizeUsername(input.Username)
	password := strings.TrimSpace(input.Password)
	email := strings.TrimSpace(input.Email)
	if username == "" || password == "" || email == "" {
		return 0, domain.ErrInvalidField
	}

	// 1. Gate on IP bans and username collisions before touching the realm.
	banned, err := s.realm.IPBanned(ctx, input.IPAddress)
	if err != nil {
		return 0, fmt.Errorf("register: ip ban check: %w", err)
	}
	if banned {
		s.log.Warn().Str("ip", input.IPAddress).Msg("registration rejected: banned ip")
		return 0, domain.ErrIPBanned
	}

	exists, err := s.realm.AccountExists(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("register: existence check: %w", err)
	}
	if exists {
		return 0, domain.ErrUsernameTaken
	}

	// 2. The realm owns account creation.
	accountID, err := s.realm.CreateAccount(ctx, username, password, email, input.IPAddress)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrRealmCreateFailed, err)
	}

	// 3. Under the verification policy the account starts locked and
	//    unactivated; the activation token travels with the created event.
	now := s.now()
	activated := true
	var activationToken string
	if s.cfg.RequireEmailVerification {
		activated = false
		if err := s.lockRealmAccount(ctx, accountID); err != nil {
			s.log.Error().Err(err).Int64("account_id", accountID).Msg("realm lock failed for unverified account")
		}
		activationToken, err = s.activation.Mint(accountID, now)
		if err != nil {
			s.log.Error().Err(err).Int64("account_id", accountID).Msg("activation token mint failed")
		}
	}

	row := &domain.AccountRecord{
		ID:             accountID,
		Username:       username,
		Email:          email,
		GroupID:        s.cfg.ProvisionGroupID,
		Activated:      activated,
		Registered:     now,
		RegistrationIP: input.IPAddress,
		RecoveryBlob:   encodeRecovery(input, email),
	}
	if err := s.accounts.Insert(ctx, row); err != nil && !errors.Is(err, domain.ErrAccountExists) {
		return 0, fmt.Errorf("register: insert mirror: %w", err)
	}

	s.notifier.Notify(domain.AuthEvent{
		Name:            domain.EventAccountCreated,
		AccountID:       accountID,
		Username:        username,
		Email:           email,
		IPAddress:       input.IPAddress,
		At:              now,
		Password:        password,
		ActivationToken: activationToken,
	})
	s.log.Info().Str("username", username).Int64("account_id", accountID).Msg("account registered")

	return accountID, nil
}

// Logout deletes the identity's session and optionally resolves a fresh
// guest so the caller always ends the call holding a valid identity.
func (s *AuthService) Logout(ctx context.Context, identity *domain.Identity, startNewSession bool) (*domain.Identity, error) {
	if identity == nil || !identity.Authenticated {
		return identity, nil
	}

	if err := s.sessions.Delete(ctx, identity.SessionToken); err != nil {
		s.log.Error().Err(err).Int64("account_id", identity.AccountID).Msg("logout: session delete failed")
	}

	s.notifier.Notify(domain.AuthEvent{
		Name:      domain.EventUserLoggedOut,
		AccountID: identity.AccountID,
		Username:  identity.Username,
		IPAddress: identity.IPAddress,
		At:        s.now(),
	})
	s.log.Info().Str("username", identity.Username).Int64("account_id", identity.AccountID).Msg("logout")

	if !startNewSession {
		return nil, nil
	}
	return s.resolver.Resolve(ctx, "", identity.IPAddress)
}

// Activate redeems an activation token: the mirror row is marked activated
// and the realm account unlocked.
func (s *AuthService) Activate(ctx context.Context, token string) error {
	accountID, err := s.activation.Parse(token)
	if err != nil {
		return domain.ErrActivationInvalid
	}

	if err := s.accounts.SetActivated(ctx, accountID, true); err != nil {
		return fmt.Errorf("activate account %d: %w", accountID, err)
	}

	handle, err := s.realm.FetchAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("activate account %d: realm fetch: %w", accountID, err)
	}
	handle.SetLocked(false)
	if err := handle.Save(ctx); err != nil {
		return fmt.Errorf("activate account %d: realm unlock: %w", accountID, err)
	}

	s.log.Info().Int64("account_id", accountID).Msg("account activated")
	return nil
}

func (s *AuthService) lockRealmAccount(ctx context.Context, accountID int64) error {
	handle, err := s.realm.FetchAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	handle.SetLocked(true)
	return handle.Save(ctx)
}

// recoveryPayload is the secret question/answer blob stored opaquely on the
// mirror row; only its presence is ever exposed.
type recoveryPayload struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
	Email      string `json:"email"`
}

func encodeRecovery(input ports.RegisterInput, email string) string {
	answer := strings.TrimSpace(input.SecretAnswer)
	if input.SecretQuestionID == 0 || answer == "" {
		return ""
	}
	raw, err := json.Marshal(recoveryPayload{
		QuestionID: input.SecretQuestionID,
		Answer:     answer,
		Email:      email,
	})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}
