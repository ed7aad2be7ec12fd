package application_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crosswap-network/crosswap-daemon/internal/core/application"
	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
	devrelease "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/release/dev"
	localsigner "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/signer/local"
	badgerdb "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/storage/badger"
	localvault "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/vault/local"
	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

// TestSwapEndToEnd drives a full swap between two in-process parties through
// a real matcher service, the local signer and vault, the dev release engine
// and a fake ledger. Every push message crosses the real wire encoding.
func TestSwapEndToEnd(t *testing.T) {
	h := newSwapHarness(t)

	maker := h.newParty(t)
	taker := h.newParty(t)

	// Main accounts need headroom above the deposit amounts.
	h.chain.fund(h.addressOf(t, maker, domain.CurrencyBTC), "1000000")
	h.chain.fund(h.addressOf(t, taker, domain.CurrencyETH), "3000000000000000000")

	orderID, err := maker.MakeOrder(ctx, application.OrderRequest{
		SourceCurrency:      domain.CurrencyBTC,
		SourceAmount:        "100000",
		DestinationCurrency: domain.CurrencyETH,
		DestinationAmount:   "2000000000000000000",
	})
	require.NoError(t, err)

	open, err := taker.ListOpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, orderID, open[0].ID)

	require.NoError(t, taker.TakeOrder(ctx, orderID))

	// From here on everything happens by push message: the match reaches the
	// maker, first messages cross, then the 32 segments of each side.
	makerSettlement := waitForSettlement(t, maker)
	takerSettlement := waitForSettlement(t, taker)

	require.Equal(t, orderID, makerSettlement.OrderID)
	require.Equal(t, domain.SideMaker, makerSettlement.Side)
	require.Equal(t, domain.CurrencyETH, makerSettlement.Currency)
	require.Equal(t, orderID, takerSettlement.OrderID)
	require.Equal(t, domain.CurrencyBTC, takerSettlement.Currency)

	// Each party swept the counterparty deposit to its own main account.
	require.Equal(
		t, "2000000000000000000",
		h.chain.balanceOf(h.addressOf(t, maker, domain.CurrencyETH)),
	)
	require.Equal(
		t, "100000",
		h.chain.balanceOf(h.addressOf(t, taker, domain.CurrencyBTC)),
	)

	t.Run("sessions_settled", func(t *testing.T) {
		for _, party := range []application.PartyService{maker, taker} {
			sessions, err := party.ListSessions(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			require.True(t, sessions[0].Settled)
			require.False(t, sessions[0].Failed)
			require.Len(t, sessions[0].SegmentProofs, domain.SegmentCount)
			require.NotEmpty(t, sessions[0].WithdrawTxID)
		}
	})
}

func TestMakeOrderRequiresHeadroom(t *testing.T) {
	h := newSwapHarness(t)
	maker := h.newParty(t)

	req := application.OrderRequest{
		SourceCurrency:      domain.CurrencyBTC,
		SourceAmount:        "100000",
		DestinationCurrency: domain.CurrencyETH,
		DestinationAmount:   "2000000000000000000",
	}

	// A balance equal to the deposit amount leaves nothing for the fee.
	h.chain.fund(h.addressOf(t, maker, domain.CurrencyBTC), "100000")
	_, err := maker.MakeOrder(ctx, req)
	require.ErrorIs(t, err, application.ErrInsufficientFunds)

	h.chain.fund(h.addressOf(t, maker, domain.CurrencyBTC), "1")
	_, err = maker.MakeOrder(ctx, req)
	require.NoError(t, err)
}

func TestMakeOrderRejectsNonIntegerAmounts(t *testing.T) {
	h := newSwapHarness(t)
	maker := h.newParty(t)
	h.chain.fund(h.addressOf(t, maker, domain.CurrencyBTC), "1000000")

	for _, amount := range []string{"1000.7", "0.2", "0", "-100", "sats"} {
		_, err := maker.MakeOrder(ctx, application.OrderRequest{
			SourceCurrency:      domain.CurrencyBTC,
			SourceAmount:        amount,
			DestinationCurrency: domain.CurrencyETH,
			DestinationAmount:   "2000000000000000000",
		})
		require.ErrorIs(t, err, application.ErrInvalidAmount, amount)
	}
}

// TestSegmentContainment holds back the segments pushed to the taker so the
// test can replay and forge them: a stale index must be a no-op and a
// tampered proof must poison the session without a withdrawal.
func TestSegmentContainment(t *testing.T) {
	h := newSwapHarness(t)
	maker := h.newParty(t)
	taker := h.newParty(t)

	h.chain.fund(h.addressOf(t, maker, domain.CurrencyBTC), "1000000")
	h.chain.fund(h.addressOf(t, taker, domain.CurrencyETH), "3000000000000000000")

	segments := make(chan *protocol.SegmentMessage, 4)
	h.dispatcher.divert(taker.MasterKeyID(), func(message interface{}) bool {
		if segment, ok := message.(*protocol.SegmentMessage); ok {
			segments <- segment
			return true
		}
		return false
	})

	orderID, err := maker.MakeOrder(ctx, application.OrderRequest{
		SourceCurrency:      domain.CurrencyBTC,
		SourceAmount:        "100000",
		DestinationCurrency: domain.CurrencyETH,
		DestinationAmount:   "2000000000000000000",
	})
	require.NoError(t, err)
	require.NoError(t, taker.TakeOrder(ctx, orderID))

	segZero := nextSegment(t, segments)
	require.Equal(t, 0, segZero.SegmentProof.Index)
	taker.HandleMessage(segZero)

	// The taker answered with its own proof and the maker replied with the
	// next segment, which the diversion captured as well.
	segOne := nextSegment(t, segments)
	require.Equal(t, 1, segOne.SegmentProof.Index)

	t.Run("stale_segment_is_dropped", func(t *testing.T) {
		taker.HandleMessage(segZero)

		session := sessionOf(t, taker)
		require.Equal(t, 1, session.PendingIndex)
		require.Len(t, session.SegmentProofs, 1)
		require.False(t, session.Failed)
	})

	t.Run("tampered_segment_poisons_session", func(t *testing.T) {
		taker.HandleMessage(tamperSegment(t, segOne))

		session := sessionOf(t, taker)
		require.True(t, session.Failed)
		require.False(t, session.Settled)
		require.Equal(t, 1, session.PendingIndex)
		require.Len(t, session.SegmentProofs, 1)
		require.Empty(t, session.WithdrawTxID)

		// The genuine segment does not revive a poisoned session.
		taker.HandleMessage(segOne)
		session = sessionOf(t, taker)
		require.Len(t, session.SegmentProofs, 1)

		select {
		case info := <-taker.Settlements():
			t.Fatalf("unexpected settlement for order %s", info.OrderID)
		default:
		}
		require.Equal(
			t, "0",
			h.chain.balanceOf(h.addressOf(t, taker, domain.CurrencyBTC)),
		)
	})
}

// tamperSegment flips the ciphertext byte of a segment proof, leaving the
// rest of the message intact.
func tamperSegment(
	t *testing.T, msg *protocol.SegmentMessage,
) *protocol.SegmentMessage {
	t.Helper()

	var payload struct {
		Ciphertext string `json:"ciphertext"`
	}
	require.NoError(t, json.Unmarshal(msg.SegmentProof.Payload, &payload))
	ct, err := hex.DecodeString(payload.Ciphertext)
	require.NoError(t, err)
	ct[0] ^= 0xff
	payload.Ciphertext = hex.EncodeToString(ct)
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return protocol.NewSegmentMessage(msg.OrderID, &protocol.SegmentProof{
		Index:   msg.SegmentProof.Index,
		Payload: raw,
	})
}

func nextSegment(
	t *testing.T, segments <-chan *protocol.SegmentMessage,
) *protocol.SegmentMessage {
	t.Helper()
	select {
	case segment := <-segments:
		return segment
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a relayed segment")
		return nil
	}
}

func sessionOf(
	t *testing.T, party application.PartyService,
) domain.SwapSession {
	t.Helper()
	sessions, err := party.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	return sessions[0]
}

func waitForSettlement(
	t *testing.T, party application.PartyService,
) application.SettlementInfo {
	select {
	case info := <-party.Settlements():
		return info
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for settlement")
		return application.SettlementInfo{}
	}
}

// swapHarness holds one matcher service and the shared fake ledger both
// parties and the server operate on.
type swapHarness struct {
	matcherSvc application.MatcherService
	dispatcher *dispatchNotifier
	chain      *swapChain
}

func newSwapHarness(t *testing.T) *swapHarness {
	serverRepoManager, err := badgerdb.NewRepoManager("", nil)
	require.NoError(t, err)
	t.Cleanup(serverRepoManager.Close)

	vaultStore, err := badgerdb.NewStore("", "vault", nil)
	require.NoError(t, err)
	t.Cleanup(func() { vaultStore.Close() })

	chain := newSwapChain()
	dispatcher := newDispatchNotifier()
	matcherSvc := application.NewMatcherService(
		serverRepoManager, localvault.NewVault(vaultStore),
		chainManagerFor(chain), dispatcher,
	)
	return &swapHarness{
		matcherSvc: matcherSvc,
		dispatcher: dispatcher,
		chain:      chain,
	}
}

func (h *swapHarness) newParty(t *testing.T) application.PartyService {
	repoManager, err := badgerdb.NewRepoManager("", nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)

	client := &inprocClient{svc: h.matcherSvc}
	party := application.NewPartyService(
		repoManager, localsigner.NewSigner(client), devrelease.NewEngine(),
		chainManagerFor(h.chain), client,
	)
	require.NoError(t, party.Init(ctx))
	h.dispatcher.register(t, party)
	return party
}

func (h *swapHarness) addressOf(
	t *testing.T, party application.PartyService, currency string,
) string {
	addr, err := party.DepositAddress(ctx, currency)
	require.NoError(t, err)
	return addr
}

// dispatchNotifier stands in for the websocket hub: it re-encodes every push
// through the wire format and hands it to the recipient on a dedicated
// goroutine, the way a connection reader would.
type dispatchNotifier struct {
	lock    sync.RWMutex
	parties map[string]chan []byte
	taps    map[string]func(message interface{}) bool
}

func newDispatchNotifier() *dispatchNotifier {
	return &dispatchNotifier{
		parties: make(map[string]chan []byte),
		taps:    make(map[string]func(message interface{}) bool),
	}
}

// divert installs a filter on a party's inbound messages: a message for which
// the filter returns true is swallowed before reaching the party, leaving the
// test in control of its delivery.
func (n *dispatchNotifier) divert(
	masterKeyID string, tap func(message interface{}) bool,
) {
	n.lock.Lock()
	n.taps[masterKeyID] = tap
	n.lock.Unlock()
}

func (n *dispatchNotifier) tapFor(
	masterKeyID string,
) func(message interface{}) bool {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.taps[masterKeyID]
}

func (n *dispatchNotifier) register(
	t *testing.T, party application.PartyService,
) {
	t.Helper()

	// The channel is never closed: late fire-and-forget pushes from
	// background broadcasts must not panic after the test body returns.
	frames := make(chan []byte, 128)
	n.lock.Lock()
	n.parties[party.MasterKeyID()] = frames
	n.lock.Unlock()

	masterKeyID := party.MasterKeyID()
	go func() {
		for frame := range frames {
			message, err := protocol.DecodeMessage(frame)
			if err != nil {
				continue
			}
			if tap := n.tapFor(masterKeyID); tap != nil && tap(message) {
				continue
			}
			party.HandleMessage(message)
		}
	}()
}

func (n *dispatchNotifier) Notify(masterKeyID string, message interface{}) {
	n.lock.RLock()
	frames, ok := n.parties[masterKeyID]
	n.lock.RUnlock()
	if !ok {
		return
	}
	frame, err := json.Marshal(message)
	if err != nil {
		return
	}
	frames <- frame
}

// inprocClient adapts the matcher service to the party-side client interface,
// bypassing HTTP.
type inprocClient struct {
	svc application.MatcherService
}

func (c *inprocClient) RegisterIdentity(
	ctx context.Context, masterPublicKey []byte,
) (string, error) {
	return c.svc.RegisterIdentity(ctx, masterPublicKey)
}

func (c *inprocClient) RegisterOrder(
	ctx context.Context, req protocol.RegisterOrderRequest,
) (string, error) {
	return c.svc.RegisterOrder(ctx, application.RegisterOrderInfo{
		MasterKeyID:         req.MasterKeyID,
		DepositAccountIndex: req.DepositAccountIndex,
		DepositTxHex:        req.DepositTxHex,
		EncryptionKey:       req.EncryptionKey,
		Order: application.OrderRequest{
			SourceCurrency:      req.SourceCurrency,
			SourceAmount:        req.SourceAmount,
			DestinationCurrency: req.DestinationCurrency,
			DestinationAmount:   req.DestinationAmount,
		},
	})
}

func (c *inprocClient) ListOpenOrders(
	ctx context.Context,
) ([]protocol.OrderInfo, error) {
	orders, err := c.svc.ListOpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]protocol.OrderInfo, 0, len(orders))
	for _, o := range orders {
		infos = append(infos, orderInfoToWire(&o))
	}
	return infos, nil
}

func (c *inprocClient) GetOrder(
	ctx context.Context, orderID string,
) (*protocol.OrderInfo, error) {
	order, err := c.svc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	info := orderInfoToWire(order)
	return &info, nil
}

func (c *inprocClient) TakeOrder(
	ctx context.Context, req protocol.TakeOrderRequest,
) (*protocol.TakeOrderReply, error) {
	match, err := c.svc.TakeOrder(ctx, application.TakeOrderInfo{
		OrderID:             req.OrderID,
		MasterKeyID:         req.MasterKeyID,
		DepositAccountIndex: req.DepositAccountIndex,
		DepositTxHex:        req.DepositTxHex,
		EncryptionKey:       req.EncryptionKey,
	})
	if err != nil {
		return nil, err
	}
	return &protocol.TakeOrderReply{
		OrderID:                      match.OrderID,
		CounterpartyDepositPublicKey: match.CounterpartyDepositPublicKey,
		CounterpartyDepositTxHex:     match.CounterpartyDepositTxHex,
		CounterpartyEncryptionKey:    match.CounterpartyEncryptionKey,
	}, nil
}

func (c *inprocClient) SendFirstMessage(
	ctx context.Context, side, masterKeyID, orderID string,
	firstMessage json.RawMessage,
) error {
	return c.svc.RelayFirstMessage(ctx, side, masterKeyID, orderID, firstMessage)
}

func (c *inprocClient) SendSegment(
	ctx context.Context, side, masterKeyID, orderID string,
	proof *protocol.SegmentProof,
) error {
	return c.svc.RelaySegment(ctx, side, masterKeyID, orderID, proof)
}

func (c *inprocClient) Withdraw(
	ctx context.Context, side, masterKeyID, orderID string,
) (*protocol.WithdrawReply, error) {
	handoff, err := c.svc.WithdrawHandoff(ctx, side, masterKeyID, orderID)
	if err != nil {
		return nil, err
	}
	return &protocol.WithdrawReply{
		CounterpartySharePublic:  handoff.CounterpartySharePublic,
		CounterpartyMasterKeyID:  handoff.CounterpartyMasterKeyID,
		CounterpartyAccountIndex: handoff.CounterpartyAccountIndex,
	}, nil
}

func orderInfoToWire(o *application.OrderInfo) protocol.OrderInfo {
	return protocol.OrderInfo{
		ID:                  o.ID,
		SourceCurrency:      o.SourceCurrency,
		SourceAmount:        o.SourceAmount,
		DestinationCurrency: o.DestinationCurrency,
		DestinationAmount:   o.DestinationAmount,
	}
}

// swapChain is a single fake ledger backing both currencies: addresses are
// hex-encoded compressed public keys and transfers apply instantly on
// broadcast. It is fee-less, so the strict balance headroom check is the only
// funding gate exercised.
type swapChain struct {
	lock     sync.Mutex
	balances map[string]decimal.Decimal
}

func newSwapChain() *swapChain {
	return &swapChain{balances: make(map[string]decimal.Decimal)}
}

func chainManagerFor(chain *swapChain) ports.BlockchainManager {
	return swapChainManager{chain: chain}
}

type swapChainManager struct {
	chain *swapChain
}

func (m swapChainManager) Client(currency string) (ports.BlockchainClient, error) {
	if !domain.IsSupportedCurrency(currency) {
		return nil, domain.ErrUnsupportedCurrency
	}
	return m.chain, nil
}

func (c *swapChain) fund(address, amount string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.balances[address] = c.balances[address].Add(decimal.RequireFromString(amount))
}

func (c *swapChain) balanceOf(address string) string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.balances[address].String()
}

func (c *swapChain) GetAddress(publicKey []byte) (string, error) {
	return hex.EncodeToString(publicKey), nil
}

func (c *swapChain) GetBalance(
	_ context.Context, publicKey []byte,
) (decimal.Decimal, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.balances[hex.EncodeToString(publicKey)], nil
}

func (c *swapChain) BuildTransaction(
	_ context.Context, fromPublicKey []byte, amount string, toPublicKey []byte,
) (ports.Transaction, error) {
	from := hex.EncodeToString(fromPublicKey)
	if amount == ports.AmountAll {
		amount = c.balanceOf(from)
	}
	return &swapTx{
		From:   from,
		To:     hex.EncodeToString(toPublicKey),
		Amount: amount,
	}, nil
}

func (c *swapChain) SendSignedTransaction(
	_ context.Context, txHex string,
) (string, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return "", err
	}
	var tx swapTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return "", err
	}
	if tx.Sig == "" {
		return "", fmt.Errorf("transaction is not signed")
	}

	amount := decimal.RequireFromString(tx.Amount)
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.balances[tx.From].LessThan(amount) {
		return "", fmt.Errorf("insufficient funds on %s", tx.From)
	}
	c.balances[tx.From] = c.balances[tx.From].Sub(amount)
	c.balances[tx.To] = c.balances[tx.To].Add(amount)
	return hex.EncodeToString(tx.Hash()), nil
}

func (c *swapChain) ParseTransaction(rawTx []byte) (ports.Transaction, error) {
	var tx swapTx
	if err := json.Unmarshal(rawTx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

type swapTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Sig    string `json:"sig,omitempty"`
}

func (tx *swapTx) Hash() []byte {
	raw, _ := json.Marshal(tx)
	sum := sha256.Sum256(raw)
	return sum[:]
}

func (tx *swapTx) HashesToSign(signingPublicKeys [][]byte) ([][]byte, error) {
	if len(signingPublicKeys) != 1 ||
		hex.EncodeToString(signingPublicKeys[0]) != tx.From {
		return nil, fmt.Errorf("unexpected signing keys")
	}
	sum := sha256.Sum256([]byte(tx.From + tx.To + tx.Amount))
	return [][]byte{sum[:]}, nil
}

func (tx *swapTx) IsPayingTo(publicKey []byte) bool {
	return tx.To == hex.EncodeToString(publicKey)
}

func (tx *swapTx) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

func (tx *swapTx) InjectSignatures(
	signingPublicKeys [][]byte, sigs []*ports.Signature,
) error {
	if len(signingPublicKeys) != 1 || len(sigs) != 1 {
		return fmt.Errorf("unexpected signature count")
	}
	tx.Sig = hex.EncodeToString(append(sigs[0].R, sigs[0].S...))
	return nil
}
