package badgerdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
	badgerdb "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/storage/badger"
)

var ctx = context.Background()

func TestOrderRepository(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.OrderRepository()

	order := domain.NewOrder(
		"maker-key", 0, "deadbeef", "aa",
		"BTC", "100000", "ETH", "2000000000000000000",
	)
	require.NoError(t, repo.AddOrder(ctx, order))

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		require.Equal(t, order, got)

		_, err = repo.GetOrder(ctx, "unknown")
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("open_orders", func(t *testing.T) {
		open, err := repo.GetOpenOrders(ctx)
		require.NoError(t, err)
		require.Len(t, open, 1)
		require.Equal(t, order.ID, open[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		err := repo.UpdateOrder(
			ctx, order.ID, func(o *domain.Order) (*domain.Order, error) {
				if err := o.Take("taker-key", 0, "cafebabe", "bb"); err != nil {
					return nil, err
				}
				return o, nil
			},
		)
		require.NoError(t, err)

		got, err := repo.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		require.True(t, got.IsMatched())
		require.Equal(t, "taker-key", got.TakerMasterKeyID)

		open, err := repo.GetOpenOrders(ctx)
		require.NoError(t, err)
		require.Empty(t, open)
	})

	t.Run("matched_order", func(t *testing.T) {
		got, err := repo.GetMatchedOrder(
			ctx, order.ID, domain.SideMaker, "maker-key",
		)
		require.NoError(t, err)
		require.Equal(t, order.ID, got.ID)

		got, err = repo.GetMatchedOrder(
			ctx, order.ID, domain.SideTaker, "taker-key",
		)
		require.NoError(t, err)
		require.Equal(t, order.ID, got.ID)

		// A matched order is invisible to anyone but its two parties.
		_, err = repo.GetMatchedOrder(
			ctx, order.ID, domain.SideMaker, "taker-key",
		)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestSessionRepository(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.SessionRepository()

	session := domain.NewSwapSession(
		"order-1", domain.SideMaker,
		"BTC", "100000", "ETH", "2000000000000000000",
		3, "11", "22",
	)
	require.NoError(t, repo.AddSession(ctx, session))

	got, err := repo.GetSession(ctx, session.OrderID)
	require.NoError(t, err)
	require.Equal(t, session.OrderID, got.OrderID)
	require.Equal(t, domain.SideMaker, got.Side)
	require.Equal(t, uint32(3), got.DepositAccountIndex)
	require.Equal(t, domain.PendingIndexUnset, got.PendingIndex)

	_, err = repo.GetSession(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = repo.UpdateSession(
		ctx, session.OrderID,
		func(s *domain.SwapSession) (*domain.SwapSession, error) {
			return s, s.BeginRelease([]byte(`{"opaque":true}`), "cc", "dd")
		},
	)
	require.NoError(t, err)

	got, err = repo.GetSession(ctx, session.OrderID)
	require.NoError(t, err)
	require.JSONEq(t, `{"opaque":true}`, string(got.GradualReleaseShare))
	require.Equal(t, domain.PendingIndexAwaitingFirstMessage, got.PendingIndex)
	require.Equal(t, "cc", got.CounterpartyEncryptionKey)

	all, err := repo.GetAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestIdentityRepository(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.IdentityRepository()

	got, err := repo.GetIdentity(ctx)
	require.NoError(t, err)
	require.Nil(t, got)

	identity := &domain.Identity{
		MasterKeyID:   "abc123",
		ShareMaterial: []byte("share material"),
	}
	require.NoError(t, repo.AddIdentity(ctx, identity))

	got, err = repo.GetIdentity(ctx)
	require.NoError(t, err)
	require.Equal(t, identity, got)
}

func TestAccountIndexRepository(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.AccountIndexRepository()

	for _, currency := range []string{"BTC", "ETH"} {
		for want := uint32(0); want < 3; want++ {
			index, err := repo.NextAccountIndex(ctx, currency)
			require.NoError(t, err)
			require.Equal(t, want, index)
		}
	}
}

func TestAccountIndexSurvivesReopen(t *testing.T) {
	baseDir := t.TempDir()

	repoManager, err := badgerdb.NewRepoManager(baseDir, nil)
	require.NoError(t, err)
	index, err := repoManager.AccountIndexRepository().NextAccountIndex(ctx, "BTC")
	require.NoError(t, err)
	require.Equal(t, uint32(0), index)
	repoManager.Close()

	repoManager, err = badgerdb.NewRepoManager(baseDir, nil)
	require.NoError(t, err)
	defer repoManager.Close()
	index, err = repoManager.AccountIndexRepository().NextAccountIndex(ctx, "BTC")
	require.NoError(t, err)
	require.Equal(t, uint32(1), index)
}

func newTestRepoManager(t *testing.T) ports.RepoManager {
	repoManager, err := badgerdb.NewRepoManager("", nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}
