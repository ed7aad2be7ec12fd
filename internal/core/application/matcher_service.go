package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

// broadcastTimeout bounds the asynchronous deposit broadcasts that follow a
// successful take.
const broadcastTimeout = 30 * time.Second

// MatcherService is the single source of truth for order state, the relay of
// gradual-release messages and the final key-material hand-off.
type MatcherService interface {
	RegisterIdentity(ctx context.Context, masterPublicKey []byte) (string, error)
	RegisterOrder(ctx context.Context, info RegisterOrderInfo) (string, error)
	ListOpenOrders(ctx context.Context) ([]OrderInfo, error)
	GetOrder(ctx context.Context, orderID string) (*OrderInfo, error)
	TakeOrder(ctx context.Context, info TakeOrderInfo) (*MatchInfo, error)
	RelayFirstMessage(
		ctx context.Context, side, masterKeyID, orderID string,
		firstMessage json.RawMessage,
	) error
	RelaySegment(
		ctx context.Context, side, masterKeyID, orderID string,
		proof *protocol.SegmentProof,
	) error
	WithdrawHandoff(
		ctx context.Context, side, masterKeyID, orderID string,
	) (*HandoffInfo, error)
}

type matcherService struct {
	repoManager ports.RepoManager
	vault       ports.ThresholdVault
	chains      ports.BlockchainManager
	notifier    ports.Notifier

	// one mutex per order id serializes the Open -> Matched transition so
	// that concurrent takes against the same order cannot both succeed.
	orderLocks    map[string]*sync.Mutex
	orderLocksMtx sync.Mutex
}

func NewMatcherService(
	repoManager ports.RepoManager,
	vault ports.ThresholdVault,
	chains ports.BlockchainManager,
	notifier ports.Notifier,
) MatcherService {
	return &matcherService{
		repoManager: repoManager,
		vault:       vault,
		chains:      chains,
		notifier:    notifier,
		orderLocks:  make(map[string]*sync.Mutex),
	}
}

func (m *matcherService) RegisterIdentity(
	ctx context.Context, masterPublicKey []byte,
) (string, error) {
	return m.vault.RegisterIdentity(ctx, masterPublicKey)
}

// RegisterOrder stores a maker order as-is. The server does not verify that
// the deposit transaction matches the order amounts: the taking party must
// validate the deposit independently before trusting funds.
func (m *matcherService) RegisterOrder(
	ctx context.Context, info RegisterOrderInfo,
) (string, error) {
	if !domain.IsSupportedCurrency(info.Order.SourceCurrency) ||
		!domain.IsSupportedCurrency(info.Order.DestinationCurrency) {
		return "", domain.ErrUnsupportedCurrency
	}

	order := domain.NewOrder(
		info.MasterKeyID, info.DepositAccountIndex,
		info.DepositTxHex, info.EncryptionKey,
		info.Order.SourceCurrency, info.Order.SourceAmount,
		info.Order.DestinationCurrency, info.Order.DestinationAmount,
	)
	if err := m.repoManager.OrderRepository().AddOrder(ctx, order); err != nil {
		return "", err
	}

	log.WithField("order_id", order.ID).Debug("registered new order")
	return order.ID, nil
}

func (m *matcherService) ListOpenOrders(ctx context.Context) ([]OrderInfo, error) {
	orders, err := m.repoManager.OrderRepository().GetOpenOrders(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]OrderInfo, 0, len(orders))
	for i := range orders {
		infos = append(infos, *orderInfoFromDomain(&orders[i]))
	}
	return infos, nil
}

func (m *matcherService) GetOrder(
	ctx context.Context, orderID string,
) (*OrderInfo, error) {
	order, err := m.repoManager.OrderRepository().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return orderInfoFromDomain(order), nil
}

// TakeOrder atomically transitions an open order to Matched and returns the
// maker's deposit material to the taker. The deposit broadcasts and the match
// push to the maker happen asynchronously, after the response is on its way.
func (m *matcherService) TakeOrder(
	ctx context.Context, info TakeOrderInfo,
) (*MatchInfo, error) {
	lock := m.lockForOrder(info.OrderID)
	lock.Lock()
	defer lock.Unlock()

	repo := m.repoManager.OrderRepository()
	var matched *domain.Order
	if err := repo.UpdateOrder(
		ctx, info.OrderID,
		func(o *domain.Order) (*domain.Order, error) {
			if err := o.Take(
				info.MasterKeyID, info.DepositAccountIndex,
				info.DepositTxHex, info.EncryptionKey,
			); err != nil {
				// a non-open order is indistinguishable from a missing one
				// from the taker's point of view
				return nil, domain.ErrOrderNotFound
			}
			matched = o
			return o, nil
		},
	); err != nil {
		return nil, err
	}

	makerDepositPublicKey, err := m.vault.ChildPublicKey(
		ctx, matched.MasterKeyID,
		domain.CoinDerivationIndex[matched.SourceCurrency],
		matched.DepositAccountIndex,
	)
	if err != nil {
		return nil, err
	}

	go m.settleMatch(*matched)

	return &MatchInfo{
		OrderID:                      matched.ID,
		CounterpartyDepositPublicKey: hex.EncodeToString(makerDepositPublicKey),
		CounterpartyDepositTxHex:     matched.DepositTxHex,
		CounterpartyEncryptionKey:    matched.EncryptionKey,
	}, nil
}

// settleMatch broadcasts both deposit transactions and notifies the maker.
// The push is best-effort: a disconnected maker simply misses it.
func (m *matcherService) settleMatch(order domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		client, err := m.chains.Client(order.SourceCurrency)
		if err != nil {
			return err
		}
		txid, err := client.SendSignedTransaction(gctx, order.DepositTxHex)
		if err != nil {
			return fmt.Errorf("maker deposit broadcast: %w", err)
		}
		log.WithField("txid", txid).Debug("sent maker deposit transaction")
		return nil
	})
	g.Go(func() error {
		client, err := m.chains.Client(order.DestinationCurrency)
		if err != nil {
			return err
		}
		txid, err := client.SendSignedTransaction(gctx, order.TakerDepositTxHex)
		if err != nil {
			return fmt.Errorf("taker deposit broadcast: %w", err)
		}
		log.WithField("txid", txid).Debug("sent taker deposit transaction")
		return nil
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).WithField("order_id", order.ID).
			Warn("failed to broadcast deposit transactions")
		return
	}

	takerDepositPublicKey, err := m.vault.ChildPublicKey(
		ctx, order.TakerMasterKeyID,
		domain.CoinDerivationIndex[order.DestinationCurrency],
		order.TakerDepositAccountIndex,
	)
	if err != nil {
		log.WithError(err).WithField("order_id", order.ID).
			Warn("failed to derive taker deposit public key")
		return
	}

	m.notifier.Notify(order.MasterKeyID, protocol.NewMatchMessage(
		order.ID,
		hex.EncodeToString(takerDepositPublicKey),
		order.TakerDepositTxHex,
		order.TakerEncryptionKey,
	))
}

// RelayFirstMessage forwards a party's gradual-release first message to its
// counterparty. The sender is acknowledged immediately; delivery is
// fire-and-forget.
func (m *matcherService) RelayFirstMessage(
	ctx context.Context, side, masterKeyID, orderID string,
	firstMessage json.RawMessage,
) error {
	order, parsedSide, err := m.matchedOrderFor(ctx, side, masterKeyID, orderID)
	if err != nil {
		return err
	}

	m.notifier.Notify(order.CounterpartyKeyID(parsedSide),
		protocol.NewFirstMessageMessage(orderID, firstMessage))
	return nil
}

// RelaySegment forwards one segment proof to the counterparty, fire-and-forget.
func (m *matcherService) RelaySegment(
	ctx context.Context, side, masterKeyID, orderID string,
	proof *protocol.SegmentProof,
) error {
	order, parsedSide, err := m.matchedOrderFor(ctx, side, masterKeyID, orderID)
	if err != nil {
		return err
	}

	m.notifier.Notify(order.CounterpartyKeyID(parsedSide),
		protocol.NewSegmentMessage(orderID, proof))
	return nil
}

// WithdrawHandoff releases the public derivation parameters the caller needs
// to reconstruct the counterparty share locally. The private material is
// never held by the server.
func (m *matcherService) WithdrawHandoff(
	ctx context.Context, side, masterKeyID, orderID string,
) (*HandoffInfo, error) {
	order, parsedSide, err := m.matchedOrderFor(ctx, side, masterKeyID, orderID)
	if err != nil {
		return nil, err
	}

	var (
		counterpartyKeyID        string
		counterpartyAccountIndex uint32
		counterpartyCurrency     string
	)
	if parsedSide == domain.SideTaker {
		counterpartyKeyID = order.MasterKeyID
		counterpartyAccountIndex = order.DepositAccountIndex
		counterpartyCurrency = order.SourceCurrency
	} else {
		counterpartyKeyID = order.TakerMasterKeyID
		counterpartyAccountIndex = order.TakerDepositAccountIndex
		counterpartyCurrency = order.DestinationCurrency
	}

	sharePublic, err := m.vault.SharePublicMaterial(
		ctx, counterpartyKeyID,
		domain.CoinDerivationIndex[counterpartyCurrency],
		counterpartyAccountIndex,
	)
	if err != nil {
		return nil, err
	}

	return &HandoffInfo{
		CounterpartySharePublic:  hex.EncodeToString(sharePublic),
		CounterpartyMasterKeyID:  counterpartyKeyID,
		CounterpartyAccountIndex: counterpartyAccountIndex,
	}, nil
}

func (m *matcherService) matchedOrderFor(
	ctx context.Context, side, masterKeyID, orderID string,
) (*domain.Order, domain.Side, error) {
	parsedSide, err := domain.ParseSide(side)
	if err != nil {
		return nil, "", err
	}

	order, err := m.repoManager.OrderRepository().GetMatchedOrder(
		ctx, orderID, parsedSide, masterKeyID,
	)
	if err != nil {
		return nil, "", err
	}
	return order, parsedSide, nil
}

func (m *matcherService) lockForOrder(orderID string) *sync.Mutex {
	m.orderLocksMtx.Lock()
	defer m.orderLocksMtx.Unlock()

	lock, ok := m.orderLocks[orderID]
	if !ok {
		lock = &sync.Mutex{}
		m.orderLocks[orderID] = lock
	}
	return lock
}
