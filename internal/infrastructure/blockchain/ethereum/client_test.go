package ethereum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWeiAmount(t *testing.T) {
	value, err := parseWeiAmount("2000000000000000000")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2000000000000000000), value)

	tests := []struct {
		name   string
		amount string
	}{
		{"fractional", "1000000000000000000.5"},
		{"sub_wei", "0.2"},
		{"zero", "0"},
		{"negative", "-1"},
		{"not_a_number", "wei"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWeiAmount(tt.amount)
			require.Error(t, err)
		})
	}
}
