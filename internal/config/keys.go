package config

import "os"

// CredentialSource represents where a credential comes from.
type CredentialSource string

const (
	SourceEnv    CredentialSource = "env"
	SourceConfig CredentialSource = "config"
	SourceNone   CredentialSource = "none"
)

// CredentialStatus represents the status of a credential without exposing it.
type CredentialStatus struct {
	Name   string           `json:"name"`
	Source CredentialSource `json:"source"`
	IsSet  bool             `json:"is_set"`
	Masked string           `json:"masked,omitempty"` // e.g., "edg...com"
}

// CheckCredentials returns the status of every credential-like setting.
func CheckCredentials(cfg *Config) []CredentialStatus {
	return []CredentialStatus{
		checkCredential("SEC User-Agent", cfg.SEC.UserAgent, EnvPrefix+"_SEC_USER_AGENT"),
		checkCredential("SEC contact email", cfg.SEC.Email, EnvPrefix+"_SEC_EMAIL"),
		checkCredential("Redis password", cfg.Cache.RedisPassword, EnvPrefix+"_CACHE_REDIS_PASSWORD"),
	}
}

// checkCredential checks if a value is set and where it came from.
func checkCredential(name, value, envVar string) CredentialStatus {
	status := CredentialStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = SourceEnv
		} else {
			status.Source = SourceConfig
		}
		status.Masked = mask(value)
	} else {
		status.Source = SourceNone
	}

	return status
}

// mask hides a value for display, showing only first 3 and last 3 chars.
func mask(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}
