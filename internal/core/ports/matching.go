package ports

import (
	"context"
	"encoding/json"

	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

// MatchingClient is the party's request/response view of the matching server.
type MatchingClient interface {
	RegisterIdentity(ctx context.Context, masterPublicKey []byte) (string, error)
	RegisterOrder(
		ctx context.Context, req protocol.RegisterOrderRequest,
	) (string, error)
	ListOpenOrders(ctx context.Context) ([]protocol.OrderInfo, error)
	GetOrder(ctx context.Context, orderID string) (*protocol.OrderInfo, error)
	TakeOrder(
		ctx context.Context, req protocol.TakeOrderRequest,
	) (*protocol.TakeOrderReply, error)
	SendFirstMessage(
		ctx context.Context, side, masterKeyID, orderID string,
		firstMessage json.RawMessage,
	) error
	SendSegment(
		ctx context.Context, side, masterKeyID, orderID string,
		proof *protocol.SegmentProof,
	) error
	Withdraw(
		ctx context.Context, side, masterKeyID, orderID string,
	) (*protocol.WithdrawReply, error)
}
