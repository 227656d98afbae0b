package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// minSecretLen is the shortest HS256 secret accepted by ValidateDeep.
const minSecretLen = 32

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including origin patterns, secrets and file accessibility. The configPath
// argument specifies the config file location to validate (empty string skips
// config file check). This calls Validate() first for basic structural
// validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateOrigins(),
		c.validateAuth(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.Server.AllowedOrigins) == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Server",
			Item:     "allowed_origins",
			Message:  "no origin allow-list configured; websocket upgrades are accepted from any origin",
		})
	}

	if !c.Auth.Required {
		warnings = append(warnings, ValidationWarning{
			Category: "Auth",
			Message:  "authentication is optional; user identity is taken from session:start payloads",
		})
	}

	if c.Storage.Driver == StorageMemory {
		warnings = append(warnings, ValidationWarning{
			Category: "Storage",
			Message:  "comments, suggestions and versions are kept in memory and lost on restart",
		})
	}

	return warnings
}

// validateFileAccess checks config file, data directory, and database path.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("storage.path", c.Storage.Path, parentIsDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// validateOrigins checks every allowed origin is a valid glob pattern.
func (c *Config) validateOrigins() error {
	var errs criterio.FieldErrorsBuilder
	for i, pattern := range c.Server.AllowedOrigins {
		if !doublestar.ValidatePattern(pattern) {
			errs = errs.Append(fmt.Sprintf("server.allowed_origins[%d]", i), fmt.Errorf("invalid glob pattern %q", pattern))
		}
	}
	return errs.ToError()
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		return nil
	}
	if len(c.Auth.JWTSecret) < minSecretLen {
		return criterio.NewFieldErrors("auth.jwt_secret", fmt.Errorf("must be at least %d bytes", minSecretLen))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func parentIsDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	return isDirectoryOrNotExist(filepath.Dir(path))
}
