package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/runtime"
)

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

type authFixture struct {
	registry *runtime.Registry
	users    *mocks.MockIUserRepository
	friends  *mocks.MockIFriendRepository
	offline  *mocks.MockIOfflineQueue
	bus      *mocks.MockIBus
	svc      *AuthService
}

func newAuthFixture(t *testing.T) authFixture {
	ctrl := gomock.NewController(t)
	f := authFixture{
		registry: runtime.NewRegistry(),
		users:    mocks.NewMockIUserRepository(ctrl),
		friends:  mocks.NewMockIFriendRepository(ctrl),
		offline:  mocks.NewMockIOfflineQueue(ctrl),
		bus:      mocks.NewMockIBus(ctrl),
	}
	f.svc = NewAuthService(f.registry, f.users, f.friends, f.offline, f.bus, newTestMetrics(), slog.Default())
	return f
}

type stubConn struct{}

func (s *stubConn) Send(payload []byte) error { return nil }

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	alice := domain.User{ID: 1, Name: "alice", Password: "s3cret", State: domain.Offline}

	t.Run("should create session, subscribe and drain backlog on success", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)
		conn := &stubConn{}

		f.users.EXPECT().GetUser(alice.ID).Return(alice, nil)
		f.bus.EXPECT().Subscribe(gomock.Any(), alice.ID).Return(nil)
		f.users.EXPECT().UpdateUserState(alice.ID, domain.Online).Return(nil)
		f.offline.EXPECT().DequeueAllOffline(alice.ID).
			Return([][]byte{[]byte("queued one"), []byte("queued two")}, nil)
		f.friends.EXPECT().Friends(alice.ID).
			Return([]domain.User{{ID: 2, Name: "bob", State: domain.Online}}, nil)

		result, err := f.svc.Login(ctx, alice.ID, "s3cret", conn)

		req.NoError(err)
		req.Equal(alice.ID, result.ID)
		req.Equal("alice", result.Name)
		req.Equal([]string{"queued one", "queued two"}, result.Backlog)
		req.Equal([]domain.Friend{{ID: 2, Name: "bob", State: domain.Online}}, result.Friends)

		got, found := f.registry.Lookup(alice.ID)
		req.True(found)
		req.Same(conn, got)
	})

	t.Run("should fail with AuthFailed for an unknown id without side effects", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.users.EXPECT().GetUser(domain.UserID(404)).Return(domain.User{}, errors.ErrUserNotFound)

		_, err := f.svc.Login(ctx, 404, "whatever", &stubConn{})

		req.ErrorIs(err, errors.ErrAuthFailed)
		req.Zero(f.registry.Len())
	})

	t.Run("should fail with AuthFailed for a wrong password without side effects", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.users.EXPECT().GetUser(alice.ID).Return(alice, nil)

		_, err := f.svc.Login(ctx, alice.ID, "wrong", &stubConn{})

		req.ErrorIs(err, errors.ErrAuthFailed)
		req.Zero(f.registry.Len())
	})

	t.Run("should fail with AlreadyOnline when the store reports online elsewhere", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)
		remote := alice
		remote.State = domain.Online

		f.users.EXPECT().GetUser(alice.ID).Return(remote, nil)

		_, err := f.svc.Login(ctx, alice.ID, "s3cret", &stubConn{})

		req.ErrorIs(err, errors.ErrAlreadyOnline)
		req.Zero(f.registry.Len())
	})

	t.Run("should tear the session down again when subscribe fails", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.users.EXPECT().GetUser(alice.ID).Return(alice, nil)
		f.bus.EXPECT().Subscribe(gomock.Any(), alice.ID).Return(context.DeadlineExceeded)

		_, err := f.svc.Login(ctx, alice.ID, "s3cret", &stubConn{})

		req.Error(err)
		req.Zero(f.registry.Len())
	})

	t.Run("should let exactly one of two concurrent logins succeed", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.users.EXPECT().GetUser(alice.ID).Return(alice, nil).Times(2)
		f.bus.EXPECT().Subscribe(gomock.Any(), alice.ID).Return(nil).Times(1)
		f.users.EXPECT().UpdateUserState(alice.ID, domain.Online).Return(nil).Times(1)
		f.offline.EXPECT().DequeueAllOffline(alice.ID).Return(nil, nil).Times(1)
		f.friends.EXPECT().Friends(alice.ID).Return(nil, nil).Times(1)

		results := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Login(ctx, alice.ID, "s3cret", &stubConn{})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var failures []error
		successes := 0
		for err := range results {
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}
		req.Equal(1, successes)
		req.Len(failures, 1)
		req.ErrorIs(failures[0], errors.ErrAlreadyOnline)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("should clear the session, unsubscribe and mark offline", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)
		conn := &stubConn{}
		f.registry.Add(domain.UserID(1), conn)

		f.bus.EXPECT().Unsubscribe(gomock.Any(), domain.UserID(1)).Return(nil)
		f.users.EXPECT().UpdateUserState(domain.UserID(1), domain.Offline).Return(nil)

		f.svc.Logout(ctx, domain.UserID(1))

		_, found := f.registry.Lookup(domain.UserID(1))
		req.False(found)
	})
}

func TestAuthService_HandleAbruptDisconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("should produce the same end state as an explicit logout", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)
		conn := &stubConn{}
		f.registry.Add(domain.UserID(1), conn)

		f.bus.EXPECT().Unsubscribe(gomock.Any(), domain.UserID(1)).Return(nil)
		f.users.EXPECT().UpdateUserState(domain.UserID(1), domain.Offline).Return(nil)

		f.svc.HandleAbruptDisconnect(ctx, conn)

		_, found := f.registry.Lookup(domain.UserID(1))
		req.False(found)
	})

	t.Run("should do nothing for a connection without a session", func(t *testing.T) {
		f := newAuthFixture(t)

		// No expectations: neither bus nor store may be touched
		f.svc.HandleAbruptDisconnect(ctx, &stubConn{})
	})
}

func TestAuthService_Register(t *testing.T) {
	t.Run("should return the new id on success", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.users.EXPECT().
			InsertUser(domain.User{Name: "dora", Password: "pw"}).
			Return(domain.UserID(12), nil)

		id, err := f.svc.Register("dora", "pw")
		req.NoError(err)
		req.Equal(domain.UserID(12), id)
	})

	t.Run("should wrap insert failures as RegistrationFailed", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.users.EXPECT().InsertUser(gomock.Any()).Return(domain.UserID(0), context.DeadlineExceeded)

		_, err := f.svc.Register("dora", "pw")
		req.ErrorIs(err, errors.ErrRegistrationFailed)
	})
}

var _ contract.Sender = (*stubConn)(nil)
