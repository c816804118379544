package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NodeConfig is the persistent configuration for a single DKG authority:
// its identity within the committee, genesis parameters (once known), and
// data directory layout.
type NodeConfig struct {
	AuthorityID   string   `json:"authority_id"`
	DataDir       string   `json:"data_dir"`
	Authorities   []string `json:"authorities,omitempty"`
	Threshold     uint64   `json:"threshold,omitempty"`
	DKGReady      uint64   `json:"dkg_ready,omitempty"`
	ImportTimeout string   `json:"import_timeout,omitempty"`
	LastSavedAt   string   `json:"last_saved_at"`
}

// ConfigManager loads and persists NodeConfig, following the teacher's
// pattern of one JSON config file per node under a dotfile directory,
// guarded by a mutex (config.go's ConfigManager).
type ConfigManager struct {
	configPath string
	config     *NodeConfig
	mu         sync.RWMutex
}

// NewConfigManager creates a manager for authorityID, defaulting the
// config file to ~/.dkgmesh/<authority_id>_config.json with a temp-dir
// fallback if the home directory is unavailable.
func NewConfigManager(authorityID string) *ConfigManager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}

	configDir := filepath.Join(homeDir, ".dkgmesh")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		configDir = os.TempDir()
	}

	configPath := filepath.Join(configDir, fmt.Sprintf("%s_config.json", authorityID))

	return &ConfigManager{
		configPath: configPath,
		config: &NodeConfig{
			AuthorityID: authorityID,
			DataDir:     filepath.Join(configDir, authorityID),
		},
	}
}

// LoadConfig loads configuration from disk, or returns the current
// in-memory default if no file exists yet.
func (cm *ConfigManager) LoadConfig() (*NodeConfig, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		return cm.config, nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", cm.configPath, err)
	}
	if err := json.Unmarshal(data, cm.config); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", cm.configPath, err)
	}
	return cm.config, nil
}

// SaveConfig persists config to disk, stamping LastSavedAt.
func (cm *ConfigManager) SaveConfig(config *NodeConfig) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	config.LastSavedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(cm.configPath, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", cm.configPath, err)
	}

	cm.config = config
	return nil
}

// GetConfig returns a defensive copy of the current configuration.
func (cm *ConfigManager) GetConfig() *NodeConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	cp := *cm.config
	if cm.config.Authorities != nil {
		cp.Authorities = make([]string, len(cm.config.Authorities))
		copy(cp.Authorities, cm.config.Authorities)
	}
	return &cp
}

// SetGenesis records the committee roster, threshold and terminal block
// once the genesis builder has determined them.
func (cm *ConfigManager) SetGenesis(authorities []string, threshold, dkgReady uint64) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.Authorities = append([]string(nil), authorities...)
	cm.config.Threshold = threshold
	cm.config.DKGReady = dkgReady
}
