package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"veridraws/internal/logger"
	"veridraws/internal/tracker"
)

const (
	defaultProgramID          = "11111111111111111111111111111111"
	defaultDrawAccountSize    = 200
	defaultSyncSchedule       = "@every 1m"
	defaultSyncEventsExchange = "veridraws.events"
)

// Config holds everything the syncer reads from the environment.
type Config struct {
	ProgramID             string `mapstructure:"PROGRAM_ID"`
	RPCEndpoint           string `mapstructure:"RPC_ENDPOINT"`
	DrawAccountSize       int    `mapstructure:"DRAW_ACCOUNT_SIZE"`
	Commitment            string `mapstructure:"COMMITMENT"`
	WalletKeypairPath     string `mapstructure:"WALLET_KEYPAIR_PATH"`
	DatabasePath          string `mapstructure:"DATABASE_PATH"`
	SyncTimeoutSeconds    int    `mapstructure:"SYNC_TIMEOUT_SECONDS"`
	RetryAttempts         int    `mapstructure:"RETRY_ATTEMPTS"`
	RetryInitialDelayMs   int    `mapstructure:"RETRY_INITIAL_DELAY_MS"`
	RetryMaxDelayMs       int    `mapstructure:"RETRY_MAX_DELAY_MS"`
	ConfirmTimeoutSeconds int    `mapstructure:"CONFIRM_TIMEOUT_SECONDS"`
	SyncSchedule          string `mapstructure:"SYNC_SCHEDULE"`
	ServerPort            string `mapstructure:"SERVER_PORT"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	SyncEventExchange     string `mapstructure:"SYNC_EVENT_EXCHANGE"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	LogFile               string `mapstructure:"LOG_FILE"`
	LogErrorFile          string `mapstructure:"LOG_ERROR_FILE"`
	LogConsole            bool   `mapstructure:"LOG_CONSOLE"`

	programID solana.PublicKey
}

var keys = []string{
	"PROGRAM_ID",
	"RPC_ENDPOINT",
	"DRAW_ACCOUNT_SIZE",
	"COMMITMENT",
	"WALLET_KEYPAIR_PATH",
	"DATABASE_PATH",
	"SYNC_TIMEOUT_SECONDS",
	"RETRY_ATTEMPTS",
	"RETRY_INITIAL_DELAY_MS",
	"RETRY_MAX_DELAY_MS",
	"CONFIRM_TIMEOUT_SECONDS",
	"SYNC_SCHEDULE",
	"SERVER_PORT",
	"RABBITMQ_URL",
	"SYNC_EVENT_EXCHANGE",
	"LOG_LEVEL",
	"LOG_FILE",
	"LOG_ERROR_FILE",
	"LOG_CONSOLE",
}

// LoadConfig reads the optional .env file in dir, then the environment.
// Variables already set in the environment win over the file.
func LoadConfig(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	viper.SetDefault("PROGRAM_ID", defaultProgramID)
	viper.SetDefault("RPC_ENDPOINT", rpc.DevNet_RPC)
	viper.SetDefault("DRAW_ACCOUNT_SIZE", defaultDrawAccountSize)
	viper.SetDefault("COMMITMENT", string(rpc.CommitmentConfirmed))
	viper.SetDefault("WALLET_KEYPAIR_PATH", "")
	viper.SetDefault("DATABASE_PATH", "persistent.db")
	viper.SetDefault("SYNC_TIMEOUT_SECONDS", int(tracker.DefaultSyncTimeout/time.Second))
	viper.SetDefault("RETRY_ATTEMPTS", tracker.DefaultRetryPolicy().Attempts)
	viper.SetDefault("RETRY_INITIAL_DELAY_MS", int(tracker.DefaultRetryPolicy().InitialDelay/time.Millisecond))
	viper.SetDefault("RETRY_MAX_DELAY_MS", int(tracker.DefaultRetryPolicy().MaxDelay/time.Millisecond))
	viper.SetDefault("CONFIRM_TIMEOUT_SECONDS", int(tracker.DefaultConfirmTimeout/time.Second))
	viper.SetDefault("SYNC_SCHEDULE", defaultSyncSchedule)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("SYNC_EVENT_EXCHANGE", defaultSyncEventsExchange)
	viper.SetDefault("LOG_LEVEL", "debug")
	viper.SetDefault("LOG_FILE", "")
	viper.SetDefault("LOG_ERROR_FILE", "")
	viper.SetDefault("LOG_CONSOLE", true)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	programID, err := solana.PublicKeyFromBase58(strings.TrimSpace(config.ProgramID))
	if err != nil {
		return nil, fmt.Errorf("PROGRAM_ID %q: %w", config.ProgramID, err)
	}
	config.programID = programID

	config.applyFallbacks()
	return &config, nil
}

// applyFallbacks replaces unusable numeric values with their defaults.
func (c *Config) applyFallbacks() {
	if c.DrawAccountSize <= 0 {
		c.DrawAccountSize = defaultDrawAccountSize
	}
	if c.SyncTimeoutSeconds <= 0 {
		c.SyncTimeoutSeconds = int(tracker.DefaultSyncTimeout / time.Second)
	}
	if c.ConfirmTimeoutSeconds <= 0 {
		c.ConfirmTimeoutSeconds = int(tracker.DefaultConfirmTimeout / time.Second)
	}

	defaults := tracker.DefaultRetryPolicy()
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaults.Attempts
	}
	if c.RetryInitialDelayMs <= 0 {
		c.RetryInitialDelayMs = int(defaults.InitialDelay / time.Millisecond)
	}
	if c.RetryMaxDelayMs <= 0 {
		c.RetryMaxDelayMs = int(defaults.MaxDelay / time.Millisecond)
	}
	if strings.TrimSpace(c.SyncSchedule) == "" {
		c.SyncSchedule = defaultSyncSchedule
	}
	if strings.TrimSpace(c.SyncEventExchange) == "" {
		c.SyncEventExchange = defaultSyncEventsExchange
	}
	if c.Commitment == "" {
		c.Commitment = string(rpc.CommitmentConfirmed)
	}
}

func (c *Config) ProgramPublicKey() solana.PublicKey {
	return c.programID
}

func (c *Config) RPCCommitment() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

func (c *Config) TrackerOptions() tracker.Options {
	return tracker.Options{
		ProgramID:      c.programID,
		AccountSize:    uint64(c.DrawAccountSize),
		SyncTimeout:    time.Duration(c.SyncTimeoutSeconds) * time.Second,
		ConfirmTimeout: time.Duration(c.ConfirmTimeoutSeconds) * time.Second,
		Retry: tracker.RetryPolicy{
			Attempts:     c.RetryAttempts,
			InitialDelay: time.Duration(c.RetryInitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		},
	}
}

func (c *Config) Logger() logger.Configuration {
	return logger.Configuration{
		LogFile:   c.LogFile,
		ErrorFile: c.LogErrorFile,
		Level:     c.LogLevel,
		Console:   c.LogConsole,
	}
}
