package csm

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// CredentialDocument is the on-disk shape of one stored credential.
type CredentialDocument struct {
	AppKey    string `json:"appKey"`
	AppSecret string `json:"appSecret"`
	AccountNo string `json:"accountNo"`
	UserID    string `json:"userId"`
}

// CredentialsFile is the full contents of the credentials store.
type CredentialsFile struct {
	CredentialsID string             `json:"credentialsId"`
	UpdatedAt     string             `json:"updatedAt"`
	Provider      string             `json:"provider"`
	Credential    CredentialDocument `json:"credential"`
}

// SettingsFile is the full contents of the settings store.
type SettingsFile struct {
	Version           string   `json:"version"`
	UpdatedAt         string   `json:"updatedAt"`
	WatchSymbols      []string `json:"watchSymbols"`
	Mode              string   `json:"mode"`
	LiveModeConfirmed bool     `json:"liveModeConfirmed"`
	CredentialsRef    string   `json:"credentialsRef"`
	BuyBudget         *string  `json:"buyBudget"`
	MockBaseURL       string   `json:"mockBaseUrl,omitempty"`
	LiveBaseURL       string   `json:"liveBaseUrl,omitempty"`
}

// Repository persists settings and credentials as two atomically-written
// JSON files.
type Repository struct {
	settingsPath    string
	credentialsPath string
}

// NewRepository builds a Repository rooted at the given file paths.
func NewRepository(settingsPath, credentialsPath string) *Repository {
	return &Repository{settingsPath: settingsPath, credentialsPath: credentialsPath}
}

// SettingsPath returns the settings file's on-disk path.
func (r *Repository) SettingsPath() string { return r.settingsPath }

// CredentialsPath returns the credentials file's on-disk path.
func (r *Repository) CredentialsPath() string { return r.credentialsPath }

func atomicWriteJSON(path string, payload any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func readJSON[T any](path string) (T, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// ReadSettings loads the settings file.
func (r *Repository) ReadSettings() (SettingsFile, error) {
	return readJSON[SettingsFile](r.settingsPath)
}

// WriteSettings atomically replaces the settings file.
func (r *Repository) WriteSettings(settings SettingsFile) error {
	return atomicWriteJSON(r.settingsPath, settings)
}

// ReadCredentials loads the credentials file.
func (r *Repository) ReadCredentials() (CredentialsFile, error) {
	return readJSON[CredentialsFile](r.credentialsPath)
}

// WriteCredentials atomically replaces the credentials file.
func (r *Repository) WriteCredentials(credentials CredentialsFile) error {
	return atomicWriteJSON(r.credentialsPath, credentials)
}

// ReadMode satisfies kia.SettingsSource: the currently configured mode, or
// ok=false if no settings file exists yet.
func (r *Repository) ReadMode() (string, bool) {
	settings, err := r.ReadSettings()
	if err != nil {
		return "", false
	}
	return settings.Mode, true
}

// ReadCredential satisfies kia.SettingsSource: the live appKey/appSecret and
// any base-URL overrides, or an empty map if no credentials are stored yet.
func (r *Repository) ReadCredential() map[string]string {
	credentials, err := r.ReadCredentials()
	if err != nil {
		return map[string]string{}
	}
	settings, _ := r.ReadSettings()
	return map[string]string{
		"appKey":      credentials.Credential.AppKey,
		"appSecret":   credentials.Credential.AppSecret,
		"accountNo":   credentials.Credential.AccountNo,
		"userId":      credentials.Credential.UserID,
		"mockBaseUrl": settings.MockBaseURL,
		"liveBaseUrl": settings.LiveBaseURL,
	}
}
