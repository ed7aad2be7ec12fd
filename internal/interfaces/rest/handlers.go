package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/crosswap-network/crosswap-daemon/internal/core/application"
	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

func (s *Service) registerIdentity(c *gin.Context) {
	var req protocol.RegisterIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	masterKeyID, err := s.matcherSvc.RegisterIdentity(
		c.Request.Context(), []byte(req.MasterPublicKey),
	)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.RegisterIdentityReply{
		MasterKeyID: masterKeyID,
	})
}

func (s *Service) registerOrder(c *gin.Context) {
	var req protocol.RegisterOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	orderID, err := s.matcherSvc.RegisterOrder(
		c.Request.Context(), application.RegisterOrderInfo{
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
		},
	)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.RegisterOrderReply{OrderID: orderID})
}

func (s *Service) listOpenOrders(c *gin.Context) {
	orders, err := s.matcherSvc.ListOpenOrders(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	list := make([]protocol.OrderInfo, 0, len(orders))
	for _, o := range orders {
		list = append(list, orderInfoReply(o))
	}
	c.JSON(http.StatusOK, list)
}

func (s *Service) getOrder(c *gin.Context) {
	order, err := s.matcherSvc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderInfoReply(*order))
}

func (s *Service) takeOrder(c *gin.Context) {
	var req protocol.TakeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	match, err := s.matcherSvc.TakeOrder(
		c.Request.Context(), application.TakeOrderInfo{
			OrderID:             req.OrderID,
			MasterKeyID:         req.MasterKeyID,
			DepositAccountIndex: req.DepositAccountIndex,
			DepositTxHex:        req.DepositTxHex,
			EncryptionKey:       req.EncryptionKey,
		},
	)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.TakeOrderReply{
		OrderID:                      match.OrderID,
		CounterpartyDepositPublicKey: match.CounterpartyDepositPublicKey,
		CounterpartyDepositTxHex:     match.CounterpartyDepositTxHex,
		CounterpartyEncryptionKey:    match.CounterpartyEncryptionKey,
	})
}

func (s *Service) relayFirstMessage(c *gin.Context) {
	var req protocol.FirstMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.matcherSvc.RelayFirstMessage(
		c.Request.Context(), req.Side, req.MasterKeyID, req.OrderID,
		req.FirstMessage,
	); err != nil {
		replyError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) relaySegment(c *gin.Context) {
	var req protocol.SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.SegmentProof == nil {
		badRequest(c, errors.New("missing segment proof"))
		return
	}

	if err := s.matcherSvc.RelaySegment(
		c.Request.Context(), req.Side, req.MasterKeyID, req.OrderID,
		req.SegmentProof,
	); err != nil {
		replyError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) withdraw(c *gin.Context) {
	var req protocol.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	handoff, err := s.matcherSvc.WithdrawHandoff(
		c.Request.Context(), req.Side, req.MasterKeyID, req.OrderID,
	)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.WithdrawReply{
		CounterpartySharePublic:  handoff.CounterpartySharePublic,
		CounterpartyMasterKeyID:  handoff.CounterpartyMasterKeyID,
		CounterpartyAccountIndex: handoff.CounterpartyAccountIndex,
	})
}

func (s *Service) connect(c *gin.Context) {
	masterKeyID := c.Param("masterKeyId")
	if masterKeyID == "" {
		badRequest(c, errors.New("missing master key id"))
		return
	}
	// A failed upgrade has already been replied to by the upgrader itself,
	// writing again would double the response.
	if err := s.hub.Upgrade(c.Writer, c.Request, masterKeyID); err != nil {
		log.WithError(err).WithField("masterKeyId", masterKeyID).
			Warn("websocket upgrade failed")
	}
}

func orderInfoReply(o application.OrderInfo) protocol.OrderInfo {
	return protocol.OrderInfo{
		ID:                  o.ID,
		SourceCurrency:      o.SourceCurrency,
		SourceAmount:        o.SourceAmount,
		DestinationCurrency: o.DestinationCurrency,
		DestinationAmount:   o.DestinationAmount,
	}
}

// replyError maps domain errors onto HTTP statuses: unknown or unavailable
// orders are 404, malformed requests 400, anything else 500.
func replyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, protocol.ErrorReply{Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrUnsupportedCurrency),
		errors.Is(err, protocol.ErrProtocol):
		badRequest(c, err)
	default:
		internalError(c, err)
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, protocol.ErrorReply{Message: err.Error()})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, protocol.ErrorReply{Message: err.Error()})
}
