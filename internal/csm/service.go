package csm

import (
	"strings"
	"time"
)

const settingsVersion = "v0.1.0"

// SaveSettingsRequest is the raw ingress payload for saving runtime
// settings plus broker credentials.
type SaveSettingsRequest struct {
	WatchSymbols      []string
	Mode              string
	LiveModeConfirmed bool
	Credential        map[string]string
	BuyBudget         string
}

// SaveSettingsResult is what's returned to the caller — the live credential
// is always masked, never echoed back in the clear.
type SaveSettingsResult struct {
	ConfigVersion     string
	UpdatedAt         string
	WatchSymbols      []string
	Mode              string
	LiveModeConfirmed bool
	BuyBudget         string
	CredentialMasked  MaskedCredential
}

// SwitchModeResult is returned after a successful mode switch.
type SwitchModeResult struct {
	Mode      string
	UpdatedAt string
}

// Service validates and persists runtime settings/credentials and
// arbitrates mode switches against the trading guard.
type Service struct {
	repo  *Repository
	nowFn func() time.Time
}

// NewService builds a Service backed by repo.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, nowFn: time.Now}
}

// SaveSettings validates request, persists credentials then settings (in
// that order, so settings never reference a credentialsRef that wasn't
// durably written first), and returns the masked result.
func (s *Service) SaveSettings(request SaveSettingsRequest) (SaveSettingsResult, error) {
	watchSymbols := NormalizeSymbols(request.WatchSymbols)
	if err := ValidateWatchSymbols(watchSymbols); err != nil {
		return SaveSettingsResult{}, err
	}

	if err := ValidateMode(request.Mode, request.LiveModeConfirmed); err != nil {
		return SaveSettingsResult{}, err
	}

	credential := NormalizeCredential(request.Credential)
	if err := ValidateCredential(credential); err != nil {
		return SaveSettingsResult{}, err
	}

	var buyBudget *string
	if text := strings.ReplaceAll(strings.TrimSpace(request.BuyBudget), ",", ""); text != "" {
		buyBudget = &text
	}

	now := s.nowFn().UTC()
	nowText := now.Format(time.RFC3339)
	credentialsID := "cred-" + now.Format("20060102-150405")

	credentialsFile := CredentialsFile{
		CredentialsID: credentialsID,
		UpdatedAt:     nowText,
		Provider:      "kiwoom-rest",
		Credential: CredentialDocument{
			AppKey:    credential.AppKey,
			AppSecret: credential.AppSecret,
			AccountNo: credential.AccountNo,
			UserID:    credential.UserID,
		},
	}
	settingsFile := SettingsFile{
		Version:           settingsVersion,
		UpdatedAt:         nowText,
		WatchSymbols:      watchSymbols,
		Mode:              request.Mode,
		LiveModeConfirmed: request.LiveModeConfirmed,
		CredentialsRef:    credentialsID,
		BuyBudget:         buyBudget,
	}

	if err := s.repo.WriteCredentials(credentialsFile); err != nil {
		return SaveSettingsResult{}, err
	}
	if err := s.repo.WriteSettings(settingsFile); err != nil {
		return SaveSettingsResult{}, err
	}

	result := SaveSettingsResult{
		ConfigVersion:     settingsFile.Version,
		UpdatedAt:         settingsFile.UpdatedAt,
		WatchSymbols:      settingsFile.WatchSymbols,
		Mode:              settingsFile.Mode,
		LiveModeConfirmed: settingsFile.LiveModeConfirmed,
		CredentialMasked:  ToMaskedCredential(credential),
	}
	if buyBudget != nil {
		result.BuyBudget = *buyBudget
	}
	return result, nil
}

// SwitchMode moves the configured mode, refusing unless the engine is
// fully idle per guard.
func (s *Service) SwitchMode(targetMode string, liveModeConfirmed bool, guard TradingGuardStatus) (SwitchModeResult, error) {
	if err := ValidateMode(targetMode, liveModeConfirmed); err != nil {
		return SwitchModeResult{}, err
	}
	if err := ValidateModeSwitchGuard(guard); err != nil {
		return SwitchModeResult{}, err
	}

	settings, err := s.repo.ReadSettings()
	if err != nil {
		return SwitchModeResult{}, err
	}
	settings.Mode = targetMode
	settings.LiveModeConfirmed = liveModeConfirmed
	settings.UpdatedAt = s.nowFn().UTC().Format(time.RFC3339)

	if err := s.repo.WriteSettings(settings); err != nil {
		return SwitchModeResult{}, err
	}

	return SwitchModeResult{Mode: settings.Mode, UpdatedAt: settings.UpdatedAt}, nil
}
