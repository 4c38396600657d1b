// Package config is the client's JSON configuration file and its data
// directory resolution (spec §6).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"garden.dev/garden/protocol"
)

// NodeConfig names the substrate node the client talks to.
type NodeConfig struct {
	Address   string   `json:"address"`
	Bootstrap []string `json:"bootstrap"`
}

// BlockchainConfig names the chain instance the client projects.
type BlockchainConfig struct {
	Address string `json:"address"`
}

// Config is the client configuration file shape.
type Config struct {
	Node       NodeConfig       `json:"node"`
	Blockchain BlockchainConfig `json:"blockchain"`
}

// DefaultNodeAddr is the client's default substrate listen address.
const DefaultNodeAddr = "[::]:13400"

// DefaultConfig returns the client defaults: the default node address, empty
// bootstrap, and a hard-coded default chain address.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			Address:   DefaultNodeAddr,
			Bootstrap: nil,
		},
		Blockchain: BlockchainConfig{
			Address: protocol.BlockchainAddress{}.Base64(),
		},
	}
}

// Load reads and parses path. A missing file yields DefaultConfig rather
// than an error.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	b = append(b, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, b, 0o600)
}

// Validate checks structural validity of cfg: listen/bootstrap addresses
// must parse as host:port, and the blockchain address must decode.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Node.Address) == "" {
		return errors.New("config: node.address is required")
	}
	if err := validateAddr(cfg.Node.Address); err != nil {
		return fmt.Errorf("config: invalid node.address: %w", err)
	}
	for _, peer := range cfg.Node.Bootstrap {
		if err := validateAddr(peer); err != nil {
			return fmt.Errorf("config: invalid bootstrap address %q: %w", peer, err)
		}
	}
	if _, err := protocol.BlockchainAddressFromBase64(cfg.Blockchain.Address); err != nil {
		return fmt.Errorf("config: invalid blockchain.address: %w", err)
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	_ = host
	return nil
}

// DataDir resolves the client's data directory by consulting, in order,
// GARDEN_DATA_FOLDER, XDG_DATA_HOME, HOME, and USER/USERNAME.
func DataDir() (string, error) {
	if v := os.Getenv("GARDEN_DATA_FOLDER"); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "garden"), nil
	}
	if v := os.Getenv("HOME"); v != "" {
		return filepath.Join(v, ".local", "share", "garden"), nil
	}
	if v := os.Getenv("USER"); v != "" {
		return filepath.Join(string(filepath.Separator), "home", v, ".local", "share", "garden"), nil
	}
	if v := os.Getenv("USERNAME"); v != "" {
		return filepath.Join(string(filepath.Separator), "home", v, ".local", "share", "garden"), nil
	}
	return "", errors.New("config: cannot resolve data directory: none of GARDEN_DATA_FOLDER, XDG_DATA_HOME, HOME, USER, USERNAME is set")
}
