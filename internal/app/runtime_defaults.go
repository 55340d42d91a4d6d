package app

import (
	"fmt"
	"strings"

	"github.com/lguportal/portal/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.Verification.BaseURL) == "" && strings.TrimSpace(cfg.Server.PublicURL) != "" {
		cfg.Auth.Verification.BaseURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/api/auth/verify"
		generated["auth.verification.base_url"] = true
	}

	return generated, nil
}
