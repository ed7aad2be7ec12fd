package domain_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

func TestNewSwapSession(t *testing.T) {
	session := newMakerSession()

	require.Equal(t, domain.PendingIndexUnset, session.PendingIndex)
	require.Equal(t, domain.CurrencyBTC, session.DepositCurrency())
	require.Equal(t, domain.CurrencyETH, session.WithdrawCurrency())
	require.False(t, session.IsExchanging())

	taker := newTakerSession()
	require.Equal(t, domain.CurrencyETH, taker.DepositCurrency())
	require.Equal(t, domain.CurrencyBTC, taker.WithdrawCurrency())
}

func TestSessionRelease(t *testing.T) {
	session := newMakerSession()

	err := session.BeginRelease(
		json.RawMessage(`{"share":1}`), "counter-enc-key", "counter-dep-key",
	)
	require.NoError(t, err)
	require.Equal(t, domain.PendingIndexAwaitingFirstMessage, session.PendingIndex)
	require.Equal(t, "counter-enc-key", session.CounterpartyEncryptionKey)
	require.False(t, session.IsExchanging())

	err = session.AcceptFirstMessage(json.RawMessage(`{"first":1}`))
	require.NoError(t, err)
	require.Equal(t, 0, session.PendingIndex)
	require.True(t, session.IsExchanging())
}

func TestSessionAppendSegment(t *testing.T) {
	session := newExchangingSession(t)

	t.Run("appending_in_order", func(t *testing.T) {
		for k := 0; k < domain.SegmentCount; k++ {
			require.Equal(t, k, session.PendingIndex)
			err := session.AppendSegment(newProof(k))
			require.NoError(t, err)
		}
		require.True(t, session.IsComplete())
		require.Len(t, session.SegmentProofs, domain.SegmentCount)
	})

	t.Run("failing_append_when_complete", func(t *testing.T) {
		err := session.AppendSegment(newProof(domain.SegmentCount))
		require.ErrorIs(t, err, domain.ErrSessionComplete)
	})
}

func TestSessionRejectsUnexpectedSegment(t *testing.T) {
	session := newExchangingSession(t)

	tests := []int{-1, 1, 2, domain.SegmentCount - 1}
	for _, index := range tests {
		err := session.AppendSegment(newProof(index))
		require.ErrorIs(t, err, domain.ErrUnexpectedSegment)
	}

	require.NoError(t, session.AppendSegment(newProof(0)))

	// A stale duplicate of the segment just appended is rejected too.
	err := session.AppendSegment(newProof(0))
	require.ErrorIs(t, err, domain.ErrUnexpectedSegment)
}

func TestFailedSessionIsPoisoned(t *testing.T) {
	session := newExchangingSession(t)
	session.Fail()

	require.False(t, session.IsExchanging())
	require.ErrorIs(t, session.AppendSegment(newProof(0)), domain.ErrSessionFailed)
	require.ErrorIs(
		t, session.AcceptFirstMessage(json.RawMessage(`{}`)),
		domain.ErrSessionFailed,
	)
	require.ErrorIs(
		t, session.BeginRelease(json.RawMessage(`{}`), "", ""),
		domain.ErrSessionFailed,
	)
}

func TestSessionSettle(t *testing.T) {
	session := newExchangingSession(t)
	session.Settle("txid")

	require.True(t, session.Settled)
	require.Equal(t, "txid", session.WithdrawTxID)
	require.False(t, session.IsExchanging())
}

func newMakerSession() *domain.SwapSession {
	return domain.NewSwapSession(
		"order-id", domain.SideMaker,
		domain.CurrencyBTC, "1000", domain.CurrencyETH, "2000",
		1, "enc-priv", "enc-pub",
	)
}

func newTakerSession() *domain.SwapSession {
	return domain.NewSwapSession(
		"order-id", domain.SideTaker,
		domain.CurrencyBTC, "1000", domain.CurrencyETH, "2000",
		1, "enc-priv", "enc-pub",
	)
}

func newExchangingSession(t *testing.T) *domain.SwapSession {
	session := newMakerSession()
	require.NoError(t, session.BeginRelease(json.RawMessage(`{}`), "", ""))
	require.NoError(t, session.AcceptFirstMessage(json.RawMessage(`{}`)))
	return session
}

func newProof(index int) *protocol.SegmentProof {
	return &protocol.SegmentProof{
		Index:   index,
		Payload: json.RawMessage(fmt.Sprintf(`{"segment":%d}`, index)),
	}
}
