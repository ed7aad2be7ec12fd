package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

func TestDecodeMessage(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		raw, err := json.Marshal(protocol.NewMatchMessage(
			"order-id", "deposit-key", "cafe", "enc-key",
		))
		require.NoError(t, err)

		message, err := protocol.DecodeMessage(raw)
		require.NoError(t, err)

		match, ok := message.(*protocol.MatchMessage)
		require.True(t, ok)
		require.Equal(t, "order-id", match.OrderID)
		require.Equal(t, "deposit-key", match.CounterpartyDepositPublicKey)
	})

	t.Run("first_message", func(t *testing.T) {
		raw, err := json.Marshal(protocol.NewFirstMessageMessage(
			"order-id", json.RawMessage(`{"commitments":[]}`),
		))
		require.NoError(t, err)

		message, err := protocol.DecodeMessage(raw)
		require.NoError(t, err)

		first, ok := message.(*protocol.FirstMessageMessage)
		require.True(t, ok)
		require.Equal(t, "order-id", first.OrderID)
		require.JSONEq(t, `{"commitments":[]}`, string(first.FirstMessage))
	})

	t.Run("segment", func(t *testing.T) {
		raw, err := json.Marshal(protocol.NewSegmentMessage(
			"order-id", &protocol.SegmentProof{
				Index:   7,
				Payload: json.RawMessage(`{"ciphertext":"ff"}`),
			},
		))
		require.NoError(t, err)

		message, err := protocol.DecodeMessage(raw)
		require.NoError(t, err)

		segment, ok := message.(*protocol.SegmentMessage)
		require.True(t, ok)
		require.Equal(t, 7, segment.SegmentProof.Index)
	})
}

func TestDecodeMessageRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not_json", "not json"},
		{"unknown_type", `{"type":"rumor","orderId":"order-id"}`},
		{"missing_type", `{"orderId":"order-id"}`},
		{"match_missing_order_id", `{"type":"match"}`},
		{
			"match_unknown_field",
			`{"type":"match","orderId":"order-id","extra":true}`,
		},
		{
			"first_message_missing_payload",
			`{"type":"gradualReleaseFirstMessage","orderId":"order-id"}`,
		},
		{"segment_missing_proof", `{"type":"segment","orderId":"order-id"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.DecodeMessage([]byte(tt.raw))
			require.ErrorIs(t, err, protocol.ErrProtocol)
		})
	}
}

func TestSegmentProofWireIndex(t *testing.T) {
	raw, err := json.Marshal(&protocol.SegmentProof{
		Index:   12,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"k":12,"payload":{}}`, string(raw))
}
