package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"escrowd/ledger"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`
	LogFile        string `toml:"LogFile"`
	ProgramID      string `toml:"ProgramID"`
	TokenProgramID string `toml:"TokenProgramID"`
}

// Load loads the configuration from the given path, writing a default file on
// first run the way the rest of the tooling expects.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if _, err := cfg.Program(); err != nil {
		return nil, err
	}
	if _, err := cfg.TokenProgram(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./escrowd-data"
	}
	if strings.TrimSpace(cfg.ProgramID) == "" {
		cfg.ProgramID = defaultProgramID().String()
	}
	if strings.TrimSpace(cfg.TokenProgramID) == "" {
		cfg.TokenProgramID = defaultTokenProgramID().String()
	}
}

// Program returns the escrow program identity.
func (c *Config) Program() (ledger.Address, error) {
	addr, err := ledger.ParseAddress(strings.TrimSpace(c.ProgramID))
	if err != nil {
		return ledger.Address{}, fmt.Errorf("invalid ProgramID: %w", err)
	}
	return addr, nil
}

// TokenProgram returns the token ledger identity.
func (c *Config) TokenProgram() (ledger.Address, error) {
	addr, err := ledger.ParseAddress(strings.TrimSpace(c.TokenProgramID))
	if err != nil {
		return ledger.Address{}, fmt.Errorf("invalid TokenProgramID: %w", err)
	}
	return addr, nil
}

// The fixed identities of a local deployment. Hosted networks override both
// in their config files.
func defaultProgramID() ledger.Address {
	return ledger.NewAddress(ethcrypto.Keccak256([]byte("escrowd/program/v1")))
}

func defaultTokenProgramID() ledger.Address {
	return ledger.NewAddress(ethcrypto.Keccak256([]byte("escrowd/token-program/v1")))
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
