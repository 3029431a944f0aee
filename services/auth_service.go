package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
)

// LoginResult is everything a successful login hands back to the client:
// identity, the drained offline backlog and the friend list with live
// presence states.
type LoginResult struct {
	ID      domain.UserID
	Name    string
	Backlog []string
	Friends []domain.Friend
}

// AuthService owns the per-user session state machine on this instance:
// Anonymous -> Online -> Offline. It creates and tears down sessions and the
// matching bus subscriptions.
type AuthService struct {
	registry contract.IRegistry
	users    contract.IUserRepository
	friends  contract.IFriendRepository
	offline  contract.IOfflineQueue
	bus      contract.IBus
	metrics  *observability.Metrics
	log      *slog.Logger

	// loginMu serializes the duplicate-login check against session creation
	// so two concurrent logins for the same id cannot both pass. It only
	// covers in-memory state, never a store or bus call.
	loginMu sync.Mutex
}

func NewAuthService(
	registry contract.IRegistry,
	users contract.IUserRepository,
	friends contract.IFriendRepository,
	offline contract.IOfflineQueue,
	bus contract.IBus,
	metrics *observability.Metrics,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		registry: registry,
		users:    users,
		friends:  friends,
		offline:  offline,
		bus:      bus,
		metrics:  metrics,
		log:      log,
	}
}

// Login authenticates a user and binds them to conn. Failures are
// side-effect free: no session, no store mutation, no subscription.
func (s *AuthService) Login(ctx context.Context, id domain.UserID, password string, conn contract.Sender) (LoginResult, error) {
	user, err := s.users.GetUser(id)
	if err != nil {
		s.metrics.LoginRejected()
		return LoginResult{}, errors.ErrAuthFailed
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		s.metrics.LoginRejected()
		return LoginResult{}, errors.ErrAuthFailed
	}

	s.loginMu.Lock()
	if _, exists := s.registry.Lookup(id); exists {
		s.loginMu.Unlock()
		s.metrics.LoginRejected()
		return LoginResult{}, errors.ErrAlreadyOnline
	}
	if user.State == domain.Online {
		// Logged in on another instance. The flag may be stale after a
		// crash elsewhere, but duplicate rejection takes precedence.
		s.loginMu.Unlock()
		s.metrics.LoginRejected()
		return LoginResult{}, errors.ErrAlreadyOnline
	}
	if replaced := s.registry.Add(id, conn); replaced {
		s.log.Error("session replaced despite duplicate-login rejection", "user", id)
	}
	s.loginMu.Unlock()

	// Subscribe before flipping the store flag: once other instances see
	// "online" they will publish to our channel.
	if err := s.bus.Subscribe(ctx, id); err != nil {
		s.registry.Remove(id)
		s.metrics.LoginRejected()
		return LoginResult{}, fmt.Errorf("bus subscribe: %w", err)
	}
	if err := s.users.UpdateUserState(id, domain.Online); err != nil {
		// Known consistency gap: the session and subscription exist but the
		// fleet still sees the user offline. Messages routed meanwhile land
		// in the offline queue, which is the safe side.
		s.log.Warn("presence update failed after login", "user", id, "error", err)
	}

	backlog, err := s.offline.DequeueAllOffline(id)
	if err != nil {
		s.log.Warn("offline backlog drain failed", "user", id, "error", err)
		backlog = nil
	}

	friends, err := s.friends.Friends(id)
	if err != nil {
		s.log.Warn("friend list lookup failed", "user", id, "error", err)
		friends = nil
	}

	s.metrics.Login()
	s.metrics.SetLiveSessions(s.registry.Len())
	s.log.Info("user logged in", "user", id, "backlog", len(backlog))

	return LoginResult{
		ID:   user.ID,
		Name: user.Name,
		Backlog: lo.Map(backlog, func(payload []byte, _ int) string {
			return string(payload)
		}),
		Friends: lo.Map(friends, func(f domain.User, _ int) domain.Friend {
			return domain.Friend{ID: f.ID, Name: f.Name, State: f.State}
		}),
	}, nil
}

// Register creates a new account in the offline state and returns its id.
func (s *AuthService) Register(name, password string) (domain.UserID, error) {
	id, err := s.users.InsertUser(domain.User{Name: name, Password: password})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrRegistrationFailed, err)
	}
	s.log.Info("user registered", "user", id)
	return id, nil
}

// Logout tears the session down: registry, bus subscription, store presence.
func (s *AuthService) Logout(ctx context.Context, id domain.UserID) {
	s.registry.Remove(id)
	s.teardown(ctx, id)
	s.log.Info("user logged out", "user", id)
}

// HandleAbruptDisconnect is the transport-close path. It must leave the same
// end state as an explicit Logout, found via the connection instead of the id.
func (s *AuthService) HandleAbruptDisconnect(ctx context.Context, conn contract.Sender) {
	id, found := s.registry.RemoveByConnection(conn)
	if !found {
		return
	}
	s.teardown(ctx, id)
	s.log.Info("user disconnected", "user", id)
}

func (s *AuthService) teardown(ctx context.Context, id domain.UserID) {
	if err := s.bus.Unsubscribe(ctx, id); err != nil {
		s.log.Warn("bus unsubscribe failed", "user", id, "error", err)
	}
	if err := s.users.UpdateUserState(id, domain.Offline); err != nil {
		s.log.Warn("presence update failed after logout", "user", id, "error", err)
	}
	s.metrics.SetLiveSessions(s.registry.Len())
}

// ResetAllOnStartup marks every user offline. A fresh process holds no
// sessions, so any "online" flag in the store is dangling state from a
// prior crash.
func (s *AuthService) ResetAllOnStartup() error {
	return s.users.ResetAllStates()
}
