// Package matchclient is the party-side client of the matching server: a
// thin JSON REST client plus the websocket push stream.
package matchclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
	"github.com/crosswap-network/crosswap-daemon/pkg/httputil"
	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

// ErrOrderNotFound mirrors the server's 404 replies on order lookups.
var ErrOrderNotFound = errors.New("order not found")

var jsonHeader = map[string]string{"Content-Type": "application/json"}

type client struct {
	baseURL string
}

// NewClient returns a MatchingClient talking to the server at baseURL.
func NewClient(baseURL string) ports.MatchingClient {
	return &client{baseURL}
}

func (c *client) RegisterIdentity(
	ctx context.Context, masterPublicKey []byte,
) (string, error) {
	var reply protocol.RegisterIdentityReply
	if err := c.post(ctx, "/v1/identity", protocol.RegisterIdentityRequest{
		MasterPublicKey: string(masterPublicKey),
	}, &reply); err != nil {
		return "", err
	}
	return reply.MasterKeyID, nil
}

func (c *client) RegisterOrder(
	ctx context.Context, req protocol.RegisterOrderRequest,
) (string, error) {
	var reply protocol.RegisterOrderReply
	if err := c.post(ctx, "/v1/order", req, &reply); err != nil {
		return "", err
	}
	return reply.OrderID, nil
}

func (c *client) ListOpenOrders(
	ctx context.Context,
) ([]protocol.OrderInfo, error) {
	var orders []protocol.OrderInfo
	if err := c.get(ctx, "/v1/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *client) GetOrder(
	ctx context.Context, orderID string,
) (*protocol.OrderInfo, error) {
	var order protocol.OrderInfo
	if err := c.get(ctx, "/v1/order/"+orderID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *client) TakeOrder(
	ctx context.Context, req protocol.TakeOrderRequest,
) (*protocol.TakeOrderReply, error) {
	var reply protocol.TakeOrderReply
	if err := c.post(ctx, "/v1/takeOrder", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *client) SendFirstMessage(
	ctx context.Context, side, masterKeyID, orderID string,
	firstMessage json.RawMessage,
) error {
	return c.post(ctx, "/v1/gradualReleaseFirstMessage",
		protocol.FirstMessageRequest{
			Side:         side,
			MasterKeyID:  masterKeyID,
			OrderID:      orderID,
			FirstMessage: firstMessage,
		}, nil)
}

func (c *client) SendSegment(
	ctx context.Context, side, masterKeyID, orderID string,
	proof *protocol.SegmentProof,
) error {
	return c.post(ctx, "/v1/segment", protocol.SegmentRequest{
		Side:         side,
		MasterKeyID:  masterKeyID,
		OrderID:      orderID,
		SegmentProof: proof,
	}, nil)
}

func (c *client) Withdraw(
	ctx context.Context, side, masterKeyID, orderID string,
) (*protocol.WithdrawReply, error) {
	var reply protocol.WithdrawReply
	if err := c.post(ctx, "/v1/withdraw", protocol.WithdrawRequest{
		Side:        side,
		MasterKeyID: masterKeyID,
		OrderID:     orderID,
	}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *client) get(ctx context.Context, path string, reply interface{}) error {
	status, resp, err := httputil.NewHTTPRequest(
		ctx, http.MethodGet, c.baseURL+path, "", nil,
	)
	if err != nil {
		return err
	}
	return parseReply(status, resp, reply)
}

func (c *client) post(
	ctx context.Context, path string, body, reply interface{},
) error {
	rawBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	status, resp, err := httputil.NewHTTPRequest(
		ctx, http.MethodPost, c.baseURL+path, string(rawBody), jsonHeader,
	)
	if err != nil {
		return err
	}
	return parseReply(status, resp, reply)
}

func parseReply(status int, resp string, reply interface{}) error {
	if status == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if status != http.StatusOK {
		var errReply protocol.ErrorReply
		if err := json.Unmarshal([]byte(resp), &errReply); err == nil &&
			errReply.Message != "" {
			return errors.New(errReply.Message)
		}
		return fmt.Errorf("unexpected status %d: %s", status, resp)
	}
	if reply == nil {
		return nil
	}
	return json.Unmarshal([]byte(resp), reply)
}
