package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/crosswap-network/crosswap-daemon/internal/config"
	"github.com/crosswap-network/crosswap-daemon/internal/core/application"
	"github.com/crosswap-network/crosswap-daemon/internal/infrastructure/blockchain"
	"github.com/crosswap-network/crosswap-daemon/internal/infrastructure/blockchain/bitcoin"
	"github.com/crosswap-network/crosswap-daemon/internal/infrastructure/blockchain/ethereum"
	devrelease "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/release/dev"
	localsigner "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/signer/local"
	badgerdb "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/storage/badger"
	"github.com/crosswap-network/crosswap-daemon/pkg/matchclient"
)

func main() {
	app := cli.NewApp()
	app.Name = "crosswap CLI"
	app.Usage = "command line interface for atomic cross-chain swaps"
	app.Version = "0.1.0"
	app.Commands = []*cli.Command{
		&balance,
		&address,
		&orders,
		&makeorder,
		&takeorder,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// setup wires the party stack: storage, matching client, dev signer, dev
// release engine and the two chain clients, all configured through the
// CROSSWAP_* environment.
func setup(ctx context.Context) (application.PartyService, string, func(), error) {
	if err := config.InitConfig(); err != nil {
		return nil, "", nil, err
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := badgerdb.NewRepoManager(config.GetDbDir(), nil)
	if err != nil {
		return nil, "", nil, err
	}

	serverURL := config.GetString(config.ServerURLKey)
	client := matchclient.NewClient(serverURL)
	signer := localsigner.NewSigner(client)
	engine := devrelease.NewEngine()

	bitcoinClient, err := bitcoin.NewClient(
		config.GetString(config.EsploraURLKey), config.GetBitcoinNetwork(),
	)
	if err != nil {
		repoManager.Close()
		return nil, "", nil, err
	}
	ethereumClient, err := ethereum.NewClient(
		config.GetString(config.EthereumRPCURLKey),
		int64(config.GetInt(config.EthereumChainIDKey)),
	)
	if err != nil {
		repoManager.Close()
		return nil, "", nil, err
	}
	chains := blockchain.NewManager(bitcoinClient, ethereumClient)

	partySvc := application.NewPartyService(
		repoManager, signer, engine, chains, client,
	)
	if err := partySvc.Init(ctx); err != nil {
		repoManager.Close()
		return nil, "", nil, err
	}

	return partySvc, serverURL, repoManager.Close, nil
}

// waitForSettlement blocks until the given order settles or the push stream
// drops.
func waitForSettlement(
	partySvc application.PartyService, streamErr <-chan error, orderID string,
) error {
	for {
		select {
		case settlement := <-partySvc.Settlements():
			if settlement.OrderID == orderID {
				fmt.Printf(
					"swap settled: withdrew %s with tx %s\n",
					settlement.Currency, settlement.WithdrawTxID,
				)
				return nil
			}
		case err := <-streamErr:
			return err
		}
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[crosswap] %v\n", err)
	os.Exit(1)
}
