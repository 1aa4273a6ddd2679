package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable of the bot daemon. Values are read from the
// environment with the DEALFLOW_ prefix and fall back to the defaults below.
type Config struct {
	DatabaseURL string
	Port        uint32
	LogLevel    int

	RPCURL            string
	ChainID           string
	FactoryAddress    string
	TokenAddress      string
	ArbitratorAddress string
	TokenDecimals     int32
	ExplorerURL       string

	PollInterval    time.Duration
	PollConcurrency int
	DispatchTimeout time.Duration
	// InteractionTTL enables garbage collection of pending interactions whose
	// response never arrived. Zero keeps them forever.
	InteractionTTL time.Duration

	GatewayURL    string
	GatewaySecret string
}

var (
	DatabaseURL       = "DATABASE_URL"
	Port              = "PORT"
	LogLevel          = "LOG_LEVEL"
	RPCURL            = "RPC_URL"
	ChainID           = "CHAIN_ID"
	FactoryAddress    = "FACTORY_ADDRESS"
	TokenAddress      = "TOKEN_ADDRESS"
	ArbitratorAddress = "ARBITRATOR_ADDRESS"
	TokenDecimals     = "TOKEN_DECIMALS"
	ExplorerURL       = "EXPLORER_URL"
	PollInterval      = "POLL_INTERVAL"
	PollConcurrency   = "POLL_CONCURRENCY"
	DispatchTimeout   = "DISPATCH_TIMEOUT"
	InteractionTTL    = "INTERACTION_TTL"
	GatewayURL        = "GATEWAY_URL"
	GatewaySecret     = "GATEWAY_SECRET"

	defaultPort            = 5123
	defaultLogLevel        = 4 // logrus.InfoLevel
	defaultRPCURL          = "https://mainnet.base.org"
	defaultChainID         = "8453"
	defaultTokenDecimals   = 6
	defaultExplorerURL     = "https://basescan.org"
	defaultPollInterval    = 10 * time.Second
	defaultPollConcurrency = 4
	defaultDispatchTimeout = 5 * time.Second
)

// Load reads configuration from the environment and validates the required
// fields.
func Load() (*Config, error) {
	viper.SetEnvPrefix("DEALFLOW")
	viper.AutomaticEnv()

	viper.SetDefault(Port, defaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(RPCURL, defaultRPCURL)
	viper.SetDefault(ChainID, defaultChainID)
	viper.SetDefault(TokenDecimals, defaultTokenDecimals)
	viper.SetDefault(ExplorerURL, defaultExplorerURL)
	viper.SetDefault(PollInterval, defaultPollInterval)
	viper.SetDefault(PollConcurrency, defaultPollConcurrency)
	viper.SetDefault(DispatchTimeout, defaultDispatchTimeout)

	cfg := &Config{
		DatabaseURL:       viper.GetString(DatabaseURL),
		Port:              viper.GetUint32(Port),
		LogLevel:          viper.GetInt(LogLevel),
		RPCURL:            viper.GetString(RPCURL),
		ChainID:           viper.GetString(ChainID),
		FactoryAddress:    viper.GetString(FactoryAddress),
		TokenAddress:      viper.GetString(TokenAddress),
		ArbitratorAddress: viper.GetString(ArbitratorAddress),
		TokenDecimals:     viper.GetInt32(TokenDecimals),
		ExplorerURL:       viper.GetString(ExplorerURL),
		PollInterval:      viper.GetDuration(PollInterval),
		PollConcurrency:   viper.GetInt(PollConcurrency),
		DispatchTimeout:   viper.GetDuration(DispatchTimeout),
		InteractionTTL:    viper.GetDuration(InteractionTTL),
		GatewayURL:        viper.GetString(GatewayURL),
		GatewaySecret:     viper.GetString(GatewaySecret),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: %s not provided", DatabaseURL)
	}
	if cfg.FactoryAddress == "" {
		return nil, fmt.Errorf("config: %s not provided", FactoryAddress)
	}
	if cfg.TokenAddress == "" {
		return nil, fmt.Errorf("config: %s not provided", TokenAddress)
	}
	if cfg.ArbitratorAddress == "" {
		return nil, fmt.Errorf("config: %s not provided", ArbitratorAddress)
	}
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("config: %s not provided", GatewayURL)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("config: %s must be positive", PollInterval)
	}

	return cfg, nil
}
