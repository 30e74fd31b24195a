package config

import (
	"fmt"
	"os"
	"strings"

	"redub/internal/services"
)

// Credentials holds provider authentication read from the environment.
// Nothing here is ever written to the config file or the manifest.
type Credentials struct {
	ASRAppID    string
	ASRToken    string
	MTAPIKey    string
	TTSAppID    string
	TTSToken    string
	StoreKeyID  string
	StoreSecret string
}

// Environment variable names for provider authentication.
const (
	EnvASRAppID    = "REDUB_ASR_APP_ID"
	EnvASRToken    = "REDUB_ASR_TOKEN"
	EnvMTAPIKey    = "REDUB_MT_API_KEY"
	EnvTTSAppID    = "REDUB_TTS_APP_ID"
	EnvTTSToken    = "REDUB_TTS_TOKEN"
	EnvStoreKeyID  = "REDUB_STORE_ACCESS_KEY"
	EnvStoreSecret = "REDUB_STORE_SECRET_KEY"
)

// LoadCredentials reads provider credentials from the environment.
func LoadCredentials() Credentials {
	get := func(name string) string { return strings.TrimSpace(os.Getenv(name)) }
	return Credentials{
		ASRAppID:    get(EnvASRAppID),
		ASRToken:    get(EnvASRToken),
		MTAPIKey:    get(EnvMTAPIKey),
		TTSAppID:    get(EnvTTSAppID),
		TTSToken:    get(EnvTTSToken),
		StoreKeyID:  get(EnvStoreKeyID),
		StoreSecret: get(EnvStoreSecret),
	}
}

// Require checks that every credential needed by the phases about to run is
// present. The error is a configuration error: the run must not start.
func (c Credentials) Require(needASR, needMT, needTTS bool) error {
	var missing []string
	if needASR {
		if c.ASRAppID == "" {
			missing = append(missing, EnvASRAppID)
		}
		if c.ASRToken == "" {
			missing = append(missing, EnvASRToken)
		}
	}
	if needMT && c.MTAPIKey == "" {
		missing = append(missing, EnvMTAPIKey)
	}
	if needTTS {
		if c.TTSAppID == "" {
			missing = append(missing, EnvTTSAppID)
		}
		if c.TTSToken == "" {
			missing = append(missing, EnvTTSToken)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(
		services.ErrConfiguration,
		"", "credentials",
		fmt.Sprintf("missing environment variables: %s", strings.Join(missing, ", ")),
		nil,
	)
}
