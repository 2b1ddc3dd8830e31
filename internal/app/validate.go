package app

import (
	"fmt"
	"os"

	"marianchat/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services.
func validateConfig(eff config.EffectiveConfigResult) error {
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("database path is empty: set --db flag, MARIANCHAT_DB_PATH env, or server.db_path in config")
	}

	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if min, max := eff.Config.Chat.ResubscribeBackoffMin.Duration(), eff.Config.Chat.ResubscribeBackoffMax.Duration(); min > 0 && max > 0 && max < min {
		return fmt.Errorf("chat.resubscribe_backoff_max must be >= chat.resubscribe_backoff_min")
	}

	return nil
}
