package services

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
)

type routerFixture struct {
	registry *mocks.MockIRegistry
	users    *mocks.MockIUserRepository
	bus      *mocks.MockIBus
	offline  *mocks.MockIOfflineQueue
	router   *DeliveryRouter
}

func newRouterFixture(t *testing.T) routerFixture {
	ctrl := gomock.NewController(t)
	f := routerFixture{
		registry: mocks.NewMockIRegistry(ctrl),
		users:    mocks.NewMockIUserRepository(ctrl),
		bus:      mocks.NewMockIBus(ctrl),
		offline:  mocks.NewMockIOfflineQueue(ctrl),
	}
	f.router = NewDeliveryRouter(f.registry, f.users, f.bus, f.offline, newTestMetrics(), slog.Default())
	return f
}

func TestDeliveryRouter_Route(t *testing.T) {
	ctx := context.Background()
	target := domain.UserID(3)
	payload := []byte(`{"msgid":6,"id":1,"toid":3,"msg":"hi"}`)

	t.Run("should deliver on the local connection when a session exists", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockSender(ctrl)

		f.registry.EXPECT().Lookup(target).Return(conn, true)
		conn.EXPECT().Send(payload).Return(nil).Times(1)
		// Store and bus stay untouched

		outcome, err := f.router.Route(ctx, target, payload)

		req.NoError(err)
		req.Equal(contract.DeliveredLocal, outcome)
	})

	t.Run("should publish on the bus when the target is online elsewhere", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)

		f.registry.EXPECT().Lookup(target).Return(nil, false)
		f.users.EXPECT().GetUser(target).Return(domain.User{ID: target, State: domain.Online}, nil)
		f.bus.EXPECT().Publish(gomock.Any(), target, payload).Return(nil).Times(1)

		outcome, err := f.router.Route(ctx, target, payload)

		req.NoError(err)
		req.Equal(contract.DeliveredRemote, outcome)
	})

	t.Run("should queue offline when the target is offline", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)

		f.registry.EXPECT().Lookup(target).Return(nil, false)
		f.users.EXPECT().GetUser(target).Return(domain.User{ID: target, State: domain.Offline}, nil)
		f.offline.EXPECT().EnqueueOffline(target, payload).Return(nil).Times(1)

		outcome, err := f.router.Route(ctx, target, payload)

		req.NoError(err)
		req.Equal(contract.Queued, outcome)
	})

	t.Run("should fall back to the queue when a bus publish fails", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)

		f.registry.EXPECT().Lookup(target).Return(nil, false)
		f.users.EXPECT().GetUser(target).Return(domain.User{ID: target, State: domain.Online}, nil)
		f.bus.EXPECT().Publish(gomock.Any(), target, payload).Return(fmt.Errorf("broker gone"))
		f.offline.EXPECT().EnqueueOffline(target, payload).Return(nil).Times(1)

		outcome, err := f.router.Route(ctx, target, payload)

		req.NoError(err)
		req.Equal(contract.Queued, outcome)
	})

	t.Run("should treat a presence lookup failure as offline", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)

		f.registry.EXPECT().Lookup(target).Return(nil, false)
		f.users.EXPECT().GetUser(target).Return(domain.User{}, errors.ErrUserNotFound)
		f.offline.EXPECT().EnqueueOffline(target, payload).Return(nil).Times(1)

		outcome, err := f.router.Route(ctx, target, payload)

		req.NoError(err)
		req.Equal(contract.Queued, outcome)
	})

	t.Run("should queue offline when the local send fails", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockSender(ctrl)

		f.registry.EXPECT().Lookup(target).Return(conn, true)
		conn.EXPECT().Send(payload).Return(fmt.Errorf("broken pipe"))
		f.offline.EXPECT().EnqueueOffline(target, payload).Return(nil).Times(1)

		outcome, err := f.router.Route(ctx, target, payload)

		req.NoError(err)
		req.Equal(contract.Queued, outcome)
	})

	t.Run("should surface the error when even the queue fails", func(t *testing.T) {
		req := require.New(t)
		f := newRouterFixture(t)

		f.registry.EXPECT().Lookup(target).Return(nil, false)
		f.users.EXPECT().GetUser(target).Return(domain.User{ID: target, State: domain.Offline}, nil)
		f.offline.EXPECT().EnqueueOffline(target, payload).Return(fmt.Errorf("disk full"))

		_, err := f.router.Route(ctx, target, payload)

		req.Error(err)
	})
}
