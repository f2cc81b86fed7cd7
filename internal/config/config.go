package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/stellar/go/network"
)

type Config struct {
	Port         int
	DatabasePath string

	StellarEnable     bool
	StellarEnableSync bool
	Network           string // pubnet, testnet, futurenet
	RPCURL            string // Soroban RPC URL
	HorizonURL        string
	FactoryAddress    string // story factory contract (C...)
	AssetAdminSecret  string // custodial signing key (S...)

	SyncInterval      time.Duration
	SettleInterval    time.Duration
	SettleMaxAttempts int
	RPCTimeout        time.Duration
}

func Load() *Config {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Port:         getEnvInt("PORT", 8080),
		DatabasePath: getEnv("DATABASE_PATH", "./chainsync.db"),

		StellarEnable:     getEnvBool("STELLAR_ENABLE", true),
		StellarEnableSync: getEnvBool("STELLAR_ENABLE_SYNC", true),
		Network:           getEnv("STELLAR_NETWORK", "pubnet"),
		RPCURL:            getEnv("STELLAR_RPC_URL", ""),
		HorizonURL:        getEnv("STELLAR_HORIZON_URL", ""),
		FactoryAddress:    getEnv("STELLAR_FACTORY_ADDRESS", ""),
		AssetAdminSecret:  getEnv("STELLAR_ASSET_ADMIN", ""),

		SyncInterval:      time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 60)) * time.Second,
		SettleInterval:    time.Duration(getEnvInt("SETTLE_INTERVAL_SECONDS", 10)) * time.Second,
		SettleMaxAttempts: getEnvInt("SETTLE_MAX_ATTEMPTS", 30),
		RPCTimeout:        time.Duration(getEnvInt("RPC_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func (c *Config) NetworkPassphrase() string {
	switch c.Network {
	case "testnet":
		return network.TestNetworkPassphrase
	case "futurenet":
		return network.FutureNetworkPassphrase
	default:
		return network.PublicNetworkPassphrase
	}
}

func (c *Config) StellarRPCURL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	switch c.Network {
	case "testnet":
		return "https://soroban-testnet.stellar.org"
	case "futurenet":
		return "https://rpc-futurenet.stellar.org"
	default:
		return "https://soroban-rpc.mainnet.stellar.gateway.fm"
	}
}

func (c *Config) StellarHorizonURL() string {
	if c.HorizonURL != "" {
		return c.HorizonURL
	}
	switch c.Network {
	case "testnet":
		return "https://horizon-testnet.stellar.org"
	case "futurenet":
		return "https://horizon-futurenet.stellar.org"
	default:
		return "https://horizon.stellar.org"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
