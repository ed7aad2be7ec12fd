// Package bitcoin implements the bitcoin side of the swap against an esplora
// HTTP endpoint. Amounts are satoshi expressed as decimal strings.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
	"github.com/crosswap-network/crosswap-daemon/pkg/circuitbreaker"
	"github.com/crosswap-network/crosswap-daemon/pkg/httputil"
)

// txFee is the flat fee, in satoshi, paid by every built transaction.
const txFee = 1000

type utxo struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Value int64  `json:"value"`
}

type client struct {
	apiURL  string
	params  *chaincfg.Params
	breaker *gobreaker.CircuitBreaker
}

// NewClient returns a bitcoin client backed by the esplora instance at
// apiURL.
func NewClient(apiURL string, params *chaincfg.Params) (ports.BlockchainClient, error) {
	c := &client{
		apiURL:  apiURL,
		params:  params,
		breaker: circuitbreaker.NewCircuitBreaker("esplora"),
	}

	if err := c.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return c, nil
}

func (c *client) healthCheck() error {
	url := fmt.Sprintf("%s/blocks/tip/height", c.apiURL)
	status, resp, err := c.get(context.Background(), url)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s", resp)
	}
	return nil
}

func (c *client) GetAddress(publicKey []byte) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(publicKey), c.params,
	)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (c *client) GetBalance(
	ctx context.Context, publicKey []byte,
) (decimal.Decimal, error) {
	utxos, err := c.getUnspents(ctx, publicKey)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, u := range utxos {
		balance = balance.Add(decimal.NewFromInt(u.Value))
	}
	return balance, nil
}

// BuildTransaction builds a single-input p2pkh transaction funded by the
// largest unspent of the source address. With AmountAll the whole input minus
// the fee goes to the destination, otherwise the change returns to the
// source.
func (c *client) BuildTransaction(
	ctx context.Context, fromPublicKey []byte, amount string, toPublicKey []byte,
) (ports.Transaction, error) {
	utxos, err := c.getUnspents(ctx, fromPublicKey)
	if err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		return nil, fmt.Errorf("no unspents for source address")
	}
	sort.Slice(utxos, func(i, j int) bool {
		return utxos[i].Value > utxos[j].Value
	})
	funding := utxos[0]

	var sendValue, changeValue int64
	if amount == ports.AmountAll {
		sendValue = funding.Value - txFee
		if sendValue <= 0 {
			return nil, fmt.Errorf("unspent value does not cover the fee")
		}
	} else {
		sendValue, err = parseSatoshiAmount(amount)
		if err != nil {
			return nil, err
		}
		changeValue = funding.Value - sendValue - txFee
		if changeValue < 0 {
			return nil, fmt.Errorf("unspent value does not cover amount and fee")
		}
	}

	prevHash, err := chainhash.NewHashFromStr(funding.TxID)
	if err != nil {
		return nil, err
	}
	fromScript, err := payToPubKeyScript(fromPublicKey, c.params)
	if err != nil {
		return nil, err
	}
	toScript, err := payToPubKeyScript(toPublicKey, c.params)
	if err != nil {
		return nil, err
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(prevHash, funding.Vout), nil, nil,
	))
	msgTx.AddTxOut(wire.NewTxOut(sendValue, toScript))
	if changeValue > 0 {
		msgTx.AddTxOut(wire.NewTxOut(changeValue, fromScript))
	}

	return &transaction{
		msgTx:       msgTx,
		prevScripts: [][]byte{fromScript},
		params:      c.params,
	}, nil
}

func (c *client) SendSignedTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	url := fmt.Sprintf("%s/tx", c.apiURL)
	status, resp, err := c.post(ctx, url, txHex)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("failed to broadcast: %s", resp)
	}
	return resp, nil
}

func (c *client) ParseTransaction(rawTx []byte) (ports.Transaction, error) {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	if err := msgTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, err
	}
	return &transaction{msgTx: msgTx, params: c.params}, nil
}

// parseSatoshiAmount parses a decimal amount string into whole satoshi.
// Fractional and non-positive amounts are rejected, never truncated.
func parseSatoshiAmount(amount string) (int64, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %s", err)
	}
	if !amt.IsInteger() || !amt.IsPositive() {
		return 0, fmt.Errorf(
			"amount must be a positive whole number of satoshi, got %s", amount,
		)
	}
	return amt.IntPart(), nil
}

func (c *client) getUnspents(
	ctx context.Context, publicKey []byte,
) ([]utxo, error) {
	addr, err := c.GetAddress(publicKey)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/address/%s/utxo", c.apiURL, addr)
	status, resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %s", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s", resp)
	}

	var utxos []utxo
	if err := json.Unmarshal([]byte(resp), &utxos); err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %s", err)
	}
	return utxos, nil
}

func (c *client) get(ctx context.Context, url string) (int, string, error) {
	return c.do(ctx, http.MethodGet, url, "")
}

func (c *client) post(ctx context.Context, url, body string) (int, string, error) {
	return c.do(ctx, http.MethodPost, url, body)
}

type httpResponse struct {
	status int
	body   string
}

func (c *client) do(
	ctx context.Context, method, url, body string,
) (int, string, error) {
	resp, err := c.breaker.Execute(func() (interface{}, error) {
		status, respBody, err := httputil.NewHTTPRequest(ctx, method, url, body, nil)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%s", respBody)
		}
		return httpResponse{status, respBody}, nil
	})
	if err != nil {
		return 0, "", err
	}
	httpResp := resp.(httpResponse)
	return httpResp.status, httpResp.body, nil
}
