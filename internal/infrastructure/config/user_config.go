package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UserConfig represents per-user client preferences stored in
// ~/.simcore/config.json. This file stores ONLY preferences, never
// credentials.
type UserConfig struct {
	// Default lockstep server TCP address to connect to when --server is
	// not given on the simcore-client command line.
	DefaultServerAddress string `json:"default_server_address,omitempty"`

	// Default client name presented during the Connect handshake
	// (spec.md §4.11) when --name is not given.
	DefaultClientName string `json:"default_client_name,omitempty"`
}

// UserConfigHandler manages loading and saving user configuration
type UserConfigHandler struct {
	configPath string
}

// NewUserConfigHandler creates a new user config handler
func NewUserConfigHandler() (*UserConfigHandler, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".simcore")
	configPath := filepath.Join(configDir, "config.json")

	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return &UserConfigHandler{
		configPath: configPath,
	}, nil
}

// Load reads the user config from disk
func (h *UserConfigHandler) Load() (*UserConfig, error) {
	// If file doesn't exist, return empty config
	if _, err := os.Stat(h.configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(h.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}

	var config UserConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}

	return &config, nil
}

// Save writes the user config to disk
func (h *UserConfigHandler) Save(config *UserConfig) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(h.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	return nil
}

// SetDefaultServerAddress sets the default server address
func (h *UserConfigHandler) SetDefaultServerAddress(address string) error {
	config, err := h.Load()
	if err != nil {
		return err
	}

	config.DefaultServerAddress = address
	return h.Save(config)
}

// SetDefaultClientName sets the default client name
func (h *UserConfigHandler) SetDefaultClientName(name string) error {
	config, err := h.Load()
	if err != nil {
		return err
	}

	config.DefaultClientName = name
	return h.Save(config)
}

// GetConfigPath returns the path to the user config file
func (h *UserConfigHandler) GetConfigPath() string {
	return h.configPath
}
