package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

// opTimeout bounds every network round-trip triggered by a push message, so a
// hung server or chain backend can never wedge the message loop forever.
const opTimeout = 30 * time.Second

const settlementBufferSize = 16

// PartyService drives one party's side of the swap protocol: identity
// bootstrap, order entry, and the gradual-release exchange advanced one push
// message at a time.
type PartyService interface {
	// Init loads the persisted identity or generates a fresh one with the
	// signing counterpart. It must be called before any other method.
	Init(ctx context.Context) error
	MasterKeyID() string
	Balances(ctx context.Context) ([]BalanceInfo, error)
	DepositAddress(ctx context.Context, currency string) (string, error)
	ListOpenOrders(ctx context.Context) ([]OrderInfo, error)
	ListSessions(ctx context.Context) ([]domain.SwapSession, error)
	// MakeOrder funds and registers a new order, returning its id.
	MakeOrder(ctx context.Context, req OrderRequest) (string, error)
	// TakeOrder funds and takes an open order.
	TakeOrder(ctx context.Context, orderID string) error
	// HandleMessage processes one decoded push message. Messages are handled
	// strictly one at a time; callers hand over frames in receive order.
	HandleMessage(message interface{})
	// Settlements emits a notification for every completed withdrawal.
	Settlements() <-chan SettlementInfo
}

type partyService struct {
	repoManager ports.RepoManager
	signer      ports.ThresholdSigner
	engine      ports.GradualReleaseEngine
	chains      ports.BlockchainManager
	client      ports.MatchingClient

	identity *domain.Identity

	handleMtx   sync.Mutex
	settlements chan SettlementInfo
}

func NewPartyService(
	repoManager ports.RepoManager,
	signer ports.ThresholdSigner,
	engine ports.GradualReleaseEngine,
	chains ports.BlockchainManager,
	client ports.MatchingClient,
) PartyService {
	return &partyService{
		repoManager: repoManager,
		signer:      signer,
		engine:      engine,
		chains:      chains,
		client:      client,
		settlements: make(chan SettlementInfo, settlementBufferSize),
	}
}

func (p *partyService) Init(ctx context.Context) error {
	identity, err := p.repoManager.IdentityRepository().GetIdentity(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		masterKeyID, shareMaterial, err := p.signer.GenerateIdentity(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate identity: %w", err)
		}
		identity = &domain.Identity{
			MasterKeyID:   masterKeyID,
			ShareMaterial: shareMaterial,
		}
		if err := p.repoManager.IdentityRepository().AddIdentity(
			ctx, identity,
		); err != nil {
			return err
		}
		log.Infof("generated new identity %s", masterKeyID)
	}

	p.identity = identity
	return nil
}

func (p *partyService) MasterKeyID() string {
	if p.identity == nil {
		return ""
	}
	return p.identity.MasterKeyID
}

func (p *partyService) Balances(ctx context.Context) ([]BalanceInfo, error) {
	if err := p.requireIdentity(); err != nil {
		return nil, err
	}

	balances := make([]BalanceInfo, 0, len(domain.CoinDerivationIndex))
	for _, currency := range []string{domain.CurrencyBTC, domain.CurrencyETH} {
		balance, err := p.balanceOf(ctx, currency)
		if err != nil {
			return nil, err
		}
		balances = append(balances, BalanceInfo{
			Currency: currency,
			Value:    balance.String(),
		})
	}
	return balances, nil
}

func (p *partyService) DepositAddress(
	ctx context.Context, currency string,
) (string, error) {
	if err := p.requireIdentity(); err != nil {
		return "", err
	}
	coinIndex, ok := domain.CoinDerivationIndex[currency]
	if !ok {
		return "", domain.ErrUnsupportedCurrency
	}

	child, err := p.signer.DeriveChild(p.identity.ShareMaterial, coinIndex, 0)
	if err != nil {
		return "", err
	}
	client, err := p.chains.Client(currency)
	if err != nil {
		return "", err
	}
	return client.GetAddress(child.PublicKey)
}

func (p *partyService) ListOpenOrders(
	ctx context.Context,
) ([]OrderInfo, error) {
	orders, err := p.client.ListOpenOrders(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		list = append(list, OrderInfo{
			ID:                  o.ID,
			SourceCurrency:      o.SourceCurrency,
			SourceAmount:        o.SourceAmount,
			DestinationCurrency: o.DestinationCurrency,
			DestinationAmount:   o.DestinationAmount,
		})
	}
	return list, nil
}

func (p *partyService) ListSessions(
	ctx context.Context,
) ([]domain.SwapSession, error) {
	return p.repoManager.SessionRepository().GetAllSessions(ctx)
}

func (p *partyService) MakeOrder(
	ctx context.Context, req OrderRequest,
) (string, error) {
	if err := p.requireIdentity(); err != nil {
		return "", err
	}
	if !domain.IsSupportedCurrency(req.SourceCurrency) ||
		!domain.IsSupportedCurrency(req.DestinationCurrency) {
		return "", domain.ErrUnsupportedCurrency
	}
	if err := p.ensureFunds(ctx, req.SourceCurrency, req.SourceAmount); err != nil {
		return "", err
	}

	accountIndex, err := p.repoManager.AccountIndexRepository().NextAccountIndex(
		ctx, req.SourceCurrency,
	)
	if err != nil {
		return "", err
	}
	encPrivateKey, encPublicKey, err := newEncryptionKeyPair()
	if err != nil {
		return "", err
	}
	depositTxHex, err := p.buildSignedDeposit(
		ctx, req.SourceCurrency, req.SourceAmount, accountIndex,
	)
	if err != nil {
		return "", err
	}

	orderID, err := p.client.RegisterOrder(ctx, protocol.RegisterOrderRequest{
		MasterKeyID:         p.identity.MasterKeyID,
		DepositAccountIndex: accountIndex,
		DepositTxHex:        depositTxHex,
		EncryptionKey:       encPublicKey,
		SourceCurrency:      req.SourceCurrency,
		SourceAmount:        req.SourceAmount,
		DestinationCurrency: req.DestinationCurrency,
		DestinationAmount:   req.DestinationAmount,
	})
	if err != nil {
		return "", err
	}

	session := domain.NewSwapSession(
		orderID, domain.SideMaker,
		req.SourceCurrency, req.SourceAmount,
		req.DestinationCurrency, req.DestinationAmount,
		accountIndex, encPrivateKey, encPublicKey,
	)
	if err := p.repoManager.SessionRepository().AddSession(ctx, session); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"order": orderID,
		"pair":  fmt.Sprintf("%s/%s", req.SourceCurrency, req.DestinationCurrency),
	}).Info("registered order")
	return orderID, nil
}

func (p *partyService) TakeOrder(ctx context.Context, orderID string) error {
	if err := p.requireIdentity(); err != nil {
		return err
	}

	order, err := p.client.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := p.ensureFunds(
		ctx, order.DestinationCurrency, order.DestinationAmount,
	); err != nil {
		return err
	}

	accountIndex, err := p.repoManager.AccountIndexRepository().NextAccountIndex(
		ctx, order.DestinationCurrency,
	)
	if err != nil {
		return err
	}
	encPrivateKey, encPublicKey, err := newEncryptionKeyPair()
	if err != nil {
		return err
	}
	depositTxHex, err := p.buildSignedDeposit(
		ctx, order.DestinationCurrency, order.DestinationAmount, accountIndex,
	)
	if err != nil {
		return err
	}

	reply, err := p.client.TakeOrder(ctx, protocol.TakeOrderRequest{
		MasterKeyID:         p.identity.MasterKeyID,
		OrderID:             orderID,
		DepositAccountIndex: accountIndex,
		DepositTxHex:        depositTxHex,
		EncryptionKey:       encPublicKey,
	})
	if err != nil {
		return err
	}
	if _, err := parseUncompressedKeyHex(
		reply.CounterpartyEncryptionKey,
	); err != nil {
		return err
	}

	session := domain.NewSwapSession(
		orderID, domain.SideTaker,
		order.SourceCurrency, order.SourceAmount,
		order.DestinationCurrency, order.DestinationAmount,
		accountIndex, encPrivateKey, encPublicKey,
	)
	session.CounterpartyEncryptionKey = reply.CounterpartyEncryptionKey
	session.CounterpartyDepositPublicKey = reply.CounterpartyDepositPublicKey
	if err := p.repoManager.SessionRepository().AddSession(ctx, session); err != nil {
		return err
	}

	log.WithField("order", orderID).Info("took order")
	return nil
}

func (p *partyService) Settlements() <-chan SettlementInfo {
	return p.settlements
}

// HandleMessage serializes all protocol transitions behind a single mutex:
// sessions advance one message at a time, in arrival order.
func (p *partyService) HandleMessage(message interface{}) {
	p.handleMtx.Lock()
	defer p.handleMtx.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg := message.(type) {
	case *protocol.MatchMessage:
		if err := p.handleMatch(ctx, msg); err != nil {
			log.WithError(err).WithField("order", msg.OrderID).
				Warn("failed to handle match")
		}
	case *protocol.FirstMessageMessage:
		if err := p.handleFirstMessage(ctx, msg); err != nil {
			log.WithError(err).WithField("order", msg.OrderID).
				Warn("failed to handle first message")
		}
	case *protocol.SegmentMessage:
		if err := p.handleSegment(ctx, msg); err != nil {
			log.WithError(err).WithField("order", msg.OrderID).
				Warn("failed to handle segment")
		}
	default:
		log.Warnf("dropping push message of unexpected type %T", message)
	}
}

// handleMatch is the maker's reaction to its order being taken: validate the
// taker's material, create the release share over the deposit child key and
// send the first message.
func (p *partyService) handleMatch(
	ctx context.Context, msg *protocol.MatchMessage,
) error {
	session, err := p.repoManager.SessionRepository().GetSession(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	if session.Side != domain.SideMaker {
		return fmt.Errorf("%w: match pushed to taker session", protocol.ErrProtocol)
	}
	if session.PendingIndex != domain.PendingIndexUnset {
		log.WithField("order", msg.OrderID).Warn("dropping duplicate match")
		return nil
	}

	counterpartyDepositKey, err := compressKeyHex(msg.CounterpartyDepositPublicKey)
	if err != nil {
		return err
	}
	counterpartyEncKey, err := stripUncompressedPrefix(msg.CounterpartyEncryptionKey)
	if err != nil {
		return err
	}

	// The taker's deposit lives on the chain this party will withdraw from.
	chainClient, err := p.chains.Client(session.WithdrawCurrency())
	if err != nil {
		return err
	}
	rawTx, err := hex.DecodeString(msg.CounterpartyDepositTxHex)
	if err != nil {
		return fmt.Errorf("%w: %s", protocol.ErrProtocol, err)
	}
	depositTx, err := chainClient.ParseTransaction(rawTx)
	if err != nil {
		return fmt.Errorf("%w: %s", protocol.ErrProtocol, err)
	}
	if !depositTx.IsPayingTo(counterpartyDepositKey) {
		return ErrDepositMismatch
	}

	coinIndex := domain.CoinDerivationIndex[session.DepositCurrency()]
	child, err := p.signer.DeriveChild(
		p.identity.ShareMaterial, coinIndex, session.DepositAccountIndex,
	)
	if err != nil {
		return err
	}
	firstMessage, share, err := p.engine.CreateShare(
		child.PrivateShare, counterpartyEncKey,
	)
	if err != nil {
		return err
	}

	if err := p.repoManager.SessionRepository().UpdateSession(
		ctx, msg.OrderID,
		func(s *domain.SwapSession) (*domain.SwapSession, error) {
			if err := s.BeginRelease(
				share, msg.CounterpartyEncryptionKey,
				msg.CounterpartyDepositPublicKey,
			); err != nil {
				return nil, err
			}
			return s, nil
		},
	); err != nil {
		return err
	}

	log.WithField("order", msg.OrderID).Info("order matched, starting release")
	return p.client.SendFirstMessage(
		ctx, string(domain.SideMaker), p.identity.MasterKeyID,
		msg.OrderID, firstMessage,
	)
}

// handleFirstMessage verifies the counterparty's first message. The taker,
// which has not created its own share yet, answers with its own first
// message; the maker answers with the proof for segment 0.
func (p *partyService) handleFirstMessage(
	ctx context.Context, msg *protocol.FirstMessageMessage,
) error {
	session, err := p.repoManager.SessionRepository().GetSession(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	if session.Failed || session.Settled || session.PendingIndex >= 0 {
		log.WithField("order", msg.OrderID).Warn("dropping stale first message")
		return nil
	}

	encryptionKey, err := stripUncompressedPrefix(session.EncryptionPublicKey)
	if err != nil {
		return err
	}
	if !p.engine.VerifyStart(msg.FirstMessage, encryptionKey) {
		p.failSession(ctx, msg.OrderID)
		return fmt.Errorf("%w: first message", ErrVerificationFailed)
	}

	if len(session.GradualReleaseShare) == 0 {
		return p.answerWithOwnFirstMessage(ctx, session, msg.FirstMessage)
	}
	return p.answerWithSegmentZero(ctx, session, msg.FirstMessage)
}

// answerWithOwnFirstMessage is the taker branch: create the release share over
// the deposit child key, accept the maker's first message and send our own.
// No segment proof is sent yet; the maker opens the exchange with segment 0.
func (p *partyService) answerWithOwnFirstMessage(
	ctx context.Context, session *domain.SwapSession,
	counterpartyFirstMessage []byte,
) error {
	counterpartyEncKey, err := stripUncompressedPrefix(
		session.CounterpartyEncryptionKey,
	)
	if err != nil {
		return err
	}
	coinIndex := domain.CoinDerivationIndex[session.DepositCurrency()]
	child, err := p.signer.DeriveChild(
		p.identity.ShareMaterial, coinIndex, session.DepositAccountIndex,
	)
	if err != nil {
		return err
	}
	firstMessage, share, err := p.engine.CreateShare(
		child.PrivateShare, counterpartyEncKey,
	)
	if err != nil {
		return err
	}

	if err := p.repoManager.SessionRepository().UpdateSession(
		ctx, session.OrderID,
		func(s *domain.SwapSession) (*domain.SwapSession, error) {
			if err := s.BeginRelease(share, "", ""); err != nil {
				return nil, err
			}
			if err := s.AcceptFirstMessage(counterpartyFirstMessage); err != nil {
				return nil, err
			}
			return s, nil
		},
	); err != nil {
		return err
	}

	return p.client.SendFirstMessage(
		ctx, string(session.Side), p.identity.MasterKeyID,
		session.OrderID, firstMessage,
	)
}

// answerWithSegmentZero is the maker branch: the own share already exists, so
// accepting the taker's first message opens the segment exchange.
func (p *partyService) answerWithSegmentZero(
	ctx context.Context, session *domain.SwapSession,
	counterpartyFirstMessage []byte,
) error {
	if err := p.repoManager.SessionRepository().UpdateSession(
		ctx, session.OrderID,
		func(s *domain.SwapSession) (*domain.SwapSession, error) {
			if err := s.AcceptFirstMessage(counterpartyFirstMessage); err != nil {
				return nil, err
			}
			return s, nil
		},
	); err != nil {
		return err
	}

	proof, err := p.engine.ProveSegment(session.GradualReleaseShare, 0)
	if err != nil {
		return err
	}
	return p.client.SendSegment(
		ctx, string(session.Side), p.identity.MasterKeyID,
		session.OrderID, proof,
	)
}

// handleSegment verifies and records one counterparty proof, then answers
// with this role's next proof and, once all segments are in, extracts the
// counterparty key and withdraws.
func (p *partyService) handleSegment(
	ctx context.Context, msg *protocol.SegmentMessage,
) error {
	session, err := p.repoManager.SessionRepository().GetSession(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	if !session.IsExchanging() ||
		msg.SegmentProof.Index != session.PendingIndex {
		// Duplicate and out-of-order deliveries are dropped, which makes
		// segment receipt idempotent.
		log.WithFields(log.Fields{
			"order": msg.OrderID,
			"k":     msg.SegmentProof.Index,
		}).Warn("dropping unexpected segment")
		return nil
	}

	encryptionKey, err := stripUncompressedPrefix(session.EncryptionPublicKey)
	if err != nil {
		return err
	}
	if !p.engine.VerifySegment(
		session.CounterpartyFirstMessage, msg.SegmentProof, encryptionKey,
	) {
		p.failSession(ctx, msg.OrderID)
		return fmt.Errorf(
			"%w: segment %d", ErrVerificationFailed, msg.SegmentProof.Index,
		)
	}

	if err := p.repoManager.SessionRepository().UpdateSession(
		ctx, msg.OrderID,
		func(s *domain.SwapSession) (*domain.SwapSession, error) {
			if err := s.AppendSegment(msg.SegmentProof); err != nil {
				return nil, err
			}
			session = s
			return s, nil
		},
	); err != nil {
		return err
	}

	role := roleFor(session.Side)
	if !session.IsComplete() || role.sendsFinalProof() {
		proof, err := p.engine.ProveSegment(
			session.GradualReleaseShare,
			role.nextProofIndex(msg.SegmentProof.Index),
		)
		if err != nil {
			return err
		}
		if err := p.client.SendSegment(
			ctx, string(session.Side), p.identity.MasterKeyID,
			session.OrderID, proof,
		); err != nil {
			return err
		}
	}

	if session.IsComplete() {
		return p.withdraw(ctx, session)
	}
	return nil
}

// withdraw extracts the counterparty deposit key from the full proof sequence
// and sweeps the counterparty deposit with a plain single-key signature. The
// extracted key is a full private key, no threshold round-trip is involved.
func (p *partyService) withdraw(
	ctx context.Context, session *domain.SwapSession,
) error {
	decryptionKey, err := hex.DecodeString(session.EncryptionPrivateKey)
	if err != nil {
		return err
	}
	secret, err := p.engine.ExtractSecret(
		session.CounterpartyFirstMessage, session.SegmentProofs, decryptionKey,
	)
	if err != nil {
		return err
	}
	secretPublicKey, err := publicKeyOfSecret(secret)
	if err != nil {
		return err
	}

	handoff, err := p.client.Withdraw(
		ctx, string(session.Side), p.identity.MasterKeyID, session.OrderID,
	)
	if err != nil {
		return err
	}
	if !strings.EqualFold(
		handoff.CounterpartySharePublic,
		hex.EncodeToString(secretPublicKey.SerializeUncompressed()),
	) {
		p.failSession(ctx, session.OrderID)
		return ErrKeyMismatch
	}

	currency := session.WithdrawCurrency()
	chainClient, err := p.chains.Client(currency)
	if err != nil {
		return err
	}
	coinIndex := domain.CoinDerivationIndex[currency]
	destination, err := p.signer.DeriveChild(p.identity.ShareMaterial, coinIndex, 0)
	if err != nil {
		return err
	}

	fromPublicKey := secretPublicKey.SerializeCompressed()
	tx, err := chainClient.BuildTransaction(
		ctx, fromPublicKey, ports.AmountAll, destination.PublicKey,
	)
	if err != nil {
		return err
	}
	hashes, err := tx.HashesToSign([][]byte{fromPublicKey})
	if err != nil {
		return err
	}
	sig, err := signWithKey(secret, hashes[0])
	if err != nil {
		return err
	}
	if err := tx.InjectSignatures(
		[][]byte{fromPublicKey}, []*ports.Signature{sig},
	); err != nil {
		return err
	}
	rawTx, err := tx.Serialize()
	if err != nil {
		return err
	}
	txid, err := chainClient.SendSignedTransaction(ctx, hex.EncodeToString(rawTx))
	if err != nil {
		return err
	}

	if err := p.repoManager.SessionRepository().UpdateSession(
		ctx, session.OrderID,
		func(s *domain.SwapSession) (*domain.SwapSession, error) {
			s.Settle(txid)
			return s, nil
		},
	); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"order":    session.OrderID,
		"currency": currency,
		"txid":     txid,
	}).Info("swap settled")

	info := SettlementInfo{
		OrderID:      session.OrderID,
		Side:         session.Side,
		Currency:     currency,
		WithdrawTxID: txid,
	}
	select {
	case p.settlements <- info:
	default:
		log.WithField("order", session.OrderID).
			Warn("settlement channel full, dropping notification")
	}
	return nil
}

// buildSignedDeposit builds the deposit transaction moving amount from the
// party's main account to the fresh deposit account, threshold-signs it and
// returns it hex-encoded. The signature is verified locally before use.
func (p *partyService) buildSignedDeposit(
	ctx context.Context, currency, amount string, toAccountIndex uint32,
) (string, error) {
	coinIndex := domain.CoinDerivationIndex[currency]
	from, err := p.signer.DeriveChild(p.identity.ShareMaterial, coinIndex, 0)
	if err != nil {
		return "", err
	}
	to, err := p.signer.DeriveChild(
		p.identity.ShareMaterial, coinIndex, toAccountIndex,
	)
	if err != nil {
		return "", err
	}

	chainClient, err := p.chains.Client(currency)
	if err != nil {
		return "", err
	}
	tx, err := chainClient.BuildTransaction(ctx, from.PublicKey, amount, to.PublicKey)
	if err != nil {
		return "", err
	}
	hashes, err := tx.HashesToSign([][]byte{from.PublicKey})
	if err != nil {
		return "", err
	}
	sig, err := p.signer.Sign(
		ctx, hashes[0], p.identity.ShareMaterial, coinIndex, 0,
	)
	if err != nil {
		return "", err
	}
	if !verifySignature(sig, hashes[0], from.PublicKey) {
		return "", ErrInvalidSignature
	}
	if err := tx.InjectSignatures(
		[][]byte{from.PublicKey}, []*ports.Signature{sig},
	); err != nil {
		return "", err
	}

	rawTx, err := tx.Serialize()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(rawTx), nil
}

// ensureFunds gates order entry on the amount being a positive whole number
// of base units and on the main account balance being strictly greater than
// the amount to deposit, leaving headroom for the network fee.
func (p *partyService) ensureFunds(
	ctx context.Context, currency, amount string,
) error {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if !amt.IsInteger() || !amt.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	balance, err := p.balanceOf(ctx, currency)
	if err != nil {
		return err
	}
	if !balance.GreaterThan(amt) {
		return ErrInsufficientFunds
	}
	return nil
}

func (p *partyService) balanceOf(
	ctx context.Context, currency string,
) (decimal.Decimal, error) {
	coinIndex, ok := domain.CoinDerivationIndex[currency]
	if !ok {
		return decimal.Zero, domain.ErrUnsupportedCurrency
	}
	child, err := p.signer.DeriveChild(p.identity.ShareMaterial, coinIndex, 0)
	if err != nil {
		return decimal.Zero, err
	}
	client, err := p.chains.Client(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return client.GetBalance(ctx, child.PublicKey)
}

func (p *partyService) failSession(ctx context.Context, orderID string) {
	if err := p.repoManager.SessionRepository().UpdateSession(
		ctx, orderID,
		func(s *domain.SwapSession) (*domain.SwapSession, error) {
			s.Fail()
			return s, nil
		},
	); err != nil {
		log.WithError(err).WithField("order", orderID).
			Warn("failed to mark session as failed")
	}
}

func (p *partyService) requireIdentity() error {
	if p.identity == nil {
		return ErrIdentityNotInitialized
	}
	return nil
}
