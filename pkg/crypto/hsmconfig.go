package crypto

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HSMConfig is the YAML description of an HSM-held signing key, either as
// a standalone file or embedded in a signing profile under "hsm".
type HSMConfig struct {
	// Lib is the path to the PKCS#11 library (.so/.dylib/.dll)
	Lib string `yaml:"lib"`

	// Token identifies the token by label
	Token string `yaml:"token"`

	// TokenSerial identifies the token by serial number
	TokenSerial string `yaml:"token_serial"`

	// Slot identifies the token by slot ID
	Slot *uint `yaml:"slot"`

	// PinEnv names the environment variable holding the user PIN
	PinEnv string `yaml:"pin_env"`

	// KeyLabel and KeyID (hex) select the private key object
	KeyLabel string `yaml:"key_label"`
	KeyID    string `yaml:"key_id"`
}

// PKCS11Config holds the resolved settings used to open a PKCS11Key.
type PKCS11Config struct {
	ModulePath  string
	TokenLabel  string
	TokenSerial string
	SlotID      *uint
	PIN         string
	KeyLabel    string
	KeyID       string
}

// LoadHSMConfig loads an HSM configuration from a YAML file.
func LoadHSMConfig(path string) (*HSMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HSM config file: %w", err)
	}

	var cfg HSMConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse HSM config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid HSM config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the HSM configuration is usable.
func (c *HSMConfig) Validate() error {
	if c.Lib == "" {
		return fmt.Errorf("hsm.lib is required")
	}
	if c.Token == "" && c.TokenSerial == "" && c.Slot == nil {
		return fmt.Errorf("at least one of hsm.token, hsm.token_serial, or hsm.slot is required")
	}
	if c.PinEnv == "" {
		return fmt.Errorf("hsm.pin_env is required (PIN must be provided via environment variable)")
	}
	if c.KeyLabel == "" && c.KeyID == "" {
		return fmt.Errorf("at least one of hsm.key_label or hsm.key_id is required")
	}
	return nil
}

// GetPIN retrieves the PIN from the environment variable.
func (c *HSMConfig) GetPIN() (string, error) {
	pin := os.Getenv(c.PinEnv)
	if pin == "" {
		return "", fmt.Errorf("environment variable %s is not set or empty", c.PinEnv)
	}
	return pin, nil
}

// ToPKCS11Config resolves the PIN and returns the settings for OpenPKCS11Key.
func (c *HSMConfig) ToPKCS11Config() (*PKCS11Config, error) {
	pin, err := c.GetPIN()
	if err != nil {
		return nil, err
	}
	return &PKCS11Config{
		ModulePath:  c.Lib,
		TokenLabel:  c.Token,
		TokenSerial: c.TokenSerial,
		SlotID:      c.Slot,
		PIN:         pin,
		KeyLabel:    c.KeyLabel,
		KeyID:       c.KeyID,
	}, nil
}
