package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars
	envVars := []string{"PORT", "DATABASE_PATH", "STELLAR_ENABLE", "STELLAR_ENABLE_SYNC", "STELLAR_NETWORK",
		"STELLAR_RPC_URL", "STELLAR_HORIZON_URL", "SYNC_INTERVAL_SECONDS", "SETTLE_INTERVAL_SECONDS", "SETTLE_MAX_ATTEMPTS"}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d; want 8080", cfg.Port)
	}
	if cfg.DatabasePath != "./chainsync.db" {
		t.Errorf("DatabasePath = %s; want ./chainsync.db", cfg.DatabasePath)
	}
	if !cfg.StellarEnable {
		t.Error("StellarEnable = false; want true")
	}
	if !cfg.StellarEnableSync {
		t.Error("StellarEnableSync = false; want true")
	}
	if cfg.Network != "pubnet" {
		t.Errorf("Network = %s; want pubnet", cfg.Network)
	}
	if cfg.SyncInterval != 60*time.Second {
		t.Errorf("SyncInterval = %v; want 60s", cfg.SyncInterval)
	}
	if cfg.SettleInterval != 10*time.Second {
		t.Errorf("SettleInterval = %v; want 10s", cfg.SettleInterval)
	}
	if cfg.SettleMaxAttempts != 30 {
		t.Errorf("SettleMaxAttempts = %d; want 30", cfg.SettleMaxAttempts)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("DATABASE_PATH", "/tmp/test.db")
	os.Setenv("STELLAR_ENABLE", "false")
	os.Setenv("STELLAR_NETWORK", "testnet")
	os.Setenv("SYNC_INTERVAL_SECONDS", "5")
	os.Setenv("SETTLE_MAX_ATTEMPTS", "7")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("DATABASE_PATH")
		os.Unsetenv("STELLAR_ENABLE")
		os.Unsetenv("STELLAR_NETWORK")
		os.Unsetenv("SYNC_INTERVAL_SECONDS")
		os.Unsetenv("SETTLE_MAX_ATTEMPTS")
	}()

	cfg := Load()

	if cfg.Port != 9000 {
		t.Errorf("Port = %d; want 9000", cfg.Port)
	}
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("DatabasePath = %s; want /tmp/test.db", cfg.DatabasePath)
	}
	if cfg.StellarEnable {
		t.Error("StellarEnable = true; want false")
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %s; want testnet", cfg.Network)
	}
	if cfg.SyncInterval != 5*time.Second {
		t.Errorf("SyncInterval = %v; want 5s", cfg.SyncInterval)
	}
	if cfg.SettleMaxAttempts != 7 {
		t.Errorf("SettleMaxAttempts = %d; want 7", cfg.SettleMaxAttempts)
	}
}

func TestNetworkPassphrase(t *testing.T) {
	tests := []struct {
		network    string
		passphrase string
	}{
		{"pubnet", "Public Global Stellar Network ; September 2015"},
		{"testnet", "Test SDF Network ; September 2015"},
		{"futurenet", "Test SDF Future Network ; October 2022"},
		{"unknown", "Public Global Stellar Network ; September 2015"}, // defaults to pubnet
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			cfg := &Config{Network: tt.network}
			if got := cfg.NetworkPassphrase(); got != tt.passphrase {
				t.Errorf("NetworkPassphrase() = %s; want %s", got, tt.passphrase)
			}
		})
	}
}

func TestStellarRPCURL(t *testing.T) {
	// Test custom URL override
	cfg := &Config{Network: "pubnet", RPCURL: "https://custom.rpc.example.com"}
	if got := cfg.StellarRPCURL(); got != "https://custom.rpc.example.com" {
		t.Errorf("StellarRPCURL() with custom = %s; want https://custom.rpc.example.com", got)
	}

	// Test defaults
	tests := []struct {
		network string
		url     string
	}{
		{"pubnet", "https://soroban-rpc.mainnet.stellar.gateway.fm"},
		{"testnet", "https://soroban-testnet.stellar.org"},
		{"futurenet", "https://rpc-futurenet.stellar.org"},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			cfg := &Config{Network: tt.network, RPCURL: ""}
			if got := cfg.StellarRPCURL(); got != tt.url {
				t.Errorf("StellarRPCURL() = %s; want %s", got, tt.url)
			}
		})
	}
}

func TestStellarHorizonURL(t *testing.T) {
	cfg := &Config{Network: "testnet"}
	if got := cfg.StellarHorizonURL(); got != "https://horizon-testnet.stellar.org" {
		t.Errorf("StellarHorizonURL() = %s; want testnet horizon", got)
	}

	cfg = &Config{Network: "testnet", HorizonURL: "https://horizon.example.com"}
	if got := cfg.StellarHorizonURL(); got != "https://horizon.example.com" {
		t.Errorf("StellarHorizonURL() with custom = %s; want https://horizon.example.com", got)
	}
}

func TestGetEnvInt_InvalidValue(t *testing.T) {
	os.Setenv("TEST_INT", "not-a-number")
	defer os.Unsetenv("TEST_INT")

	got := getEnvInt("TEST_INT", 42)
	if got != 42 {
		t.Errorf("getEnvInt with invalid value = %d; want 42 (default)", got)
	}
}

func TestGetEnvBool_InvalidValue(t *testing.T) {
	os.Setenv("TEST_BOOL", "maybe")
	defer os.Unsetenv("TEST_BOOL")

	if got := getEnvBool("TEST_BOOL", true); !got {
		t.Error("getEnvBool with invalid value = false; want true (default)")
	}
}
