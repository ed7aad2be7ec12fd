package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/crosswap-network/crosswap-daemon/internal/config"
	"github.com/crosswap-network/crosswap-daemon/internal/core/application"
	"github.com/crosswap-network/crosswap-daemon/internal/infrastructure/blockchain"
	"github.com/crosswap-network/crosswap-daemon/internal/infrastructure/blockchain/bitcoin"
	"github.com/crosswap-network/crosswap-daemon/internal/infrastructure/blockchain/ethereum"
	"github.com/crosswap-network/crosswap-daemon/internal/infrastructure/pubsub/ws"
	badgerdb "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/storage/badger"
	localvault "github.com/crosswap-network/crosswap-daemon/internal/infrastructure/vault/local"
	"github.com/crosswap-network/crosswap-daemon/internal/interfaces/rest"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := badgerdb.NewRepoManager(config.GetDbDir(), nil)
	if err != nil {
		log.WithError(err).Fatal("failed to open databases")
	}
	defer repoManager.Close()

	vaultStore, err := badgerdb.NewStore(config.GetDbDir(), "vault", nil)
	if err != nil {
		log.WithError(err).Fatal("failed to open vault store")
	}
	defer vaultStore.Close()
	vault := localvault.NewVault(vaultStore)

	bitcoinClient, err := bitcoin.NewClient(
		config.GetString(config.EsploraURLKey), config.GetBitcoinNetwork(),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to esplora")
	}
	ethereumClient, err := ethereum.NewClient(
		config.GetString(config.EthereumRPCURLKey),
		int64(config.GetInt(config.EthereumChainIDKey)),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to ethereum node")
	}
	chains := blockchain.NewManager(bitcoinClient, ethereumClient)

	hub := ws.NewHub()
	matcherSvc := application.NewMatcherService(repoManager, vault, chains, hub)

	address := fmt.Sprintf(":%d", config.GetInt(config.ListeningPortKey))
	restSvc := rest.NewService(address, matcherSvc, hub)

	errChan := make(chan error, 1)
	go func() {
		errChan <- restSvc.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errChan:
		if err != nil {
			log.WithError(err).Fatal("rest interface stopped")
		}
	case <-sigChan:
		log.Info("shutting down")
		restSvc.Stop()
	}
}
