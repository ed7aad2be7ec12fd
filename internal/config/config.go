package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"
)

const (
	// ListeningPortKey is the port the matching server REST interface will
	// listen on.
	ListeningPortKey = "LISTENING_PORT"
	// ServerURLKey is the base url parties use to reach the matching server.
	ServerURLKey = "SERVER_URL"
	// DatadirKey is the local data directory to store the internal state of
	// the daemon.
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the
	// values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// EsploraURLKey is the endpoint of the esplora instance backing the
	// bitcoin client.
	EsploraURLKey = "ESPLORA_URL"
	// BitcoinNetworkKey selects the bitcoin network, one of mainnet, testnet
	// or regtest.
	BitcoinNetworkKey = "BITCOIN_NETWORK"
	// EthereumRPCURLKey is the JSON-RPC endpoint of the ethereum node.
	EthereumRPCURLKey = "ETHEREUM_RPC_URL"
	// EthereumChainIDKey is the chain id used for EIP155 signing.
	EthereumChainIDKey = "ETHEREUM_CHAIN_ID"

	// DbLocation is the subdirectory of the datadir holding the databases.
	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("crosswap-daemon", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("CROSSWAP")
	vip.AutomaticEnv()

	vip.SetDefault(ListeningPortKey, 8000)
	vip.SetDefault(ServerURLKey, "http://localhost:8000")
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(EsploraURLKey, "http://localhost:3001")
	vip.SetDefault(BitcoinNetworkKey, "regtest")
	vip.SetDefault(EthereumRPCURLKey, "http://localhost:8545")
	vip.SetDefault(EthereumChainIDKey, 1337)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetBitcoinNetwork returns the chain parameters of the configured bitcoin
// network.
func GetBitcoinNetwork() *chaincfg.Params {
	switch GetString(BitcoinNetworkKey) {
	case "mainnet":
		return &chaincfg.MainNetParams
	case "testnet":
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.RegressionNetParams
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	port := GetInt(ListeningPortKey)
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid listening port %d", port)
	}

	switch network := GetString(BitcoinNetworkKey); network {
	case "mainnet", "testnet", "regtest":
	default:
		return fmt.Errorf("unknown bitcoin network %s", network)
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(GetDbDir())
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
