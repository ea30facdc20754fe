package csm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	dir := t.TempDir()
	repo := NewRepository(filepath.Join(dir, "settings.local.json"), filepath.Join(dir, "credentials.local.json"))
	return NewService(repo), repo
}

func TestSaveSettings_WritesCredentialsThenSettingsAndMasksOutput(t *testing.T) {
	svc, repo := newTestService(t)

	result, err := svc.SaveSettings(SaveSettingsRequest{
		WatchSymbols:      []string{"005930", "000660"},
		Mode:              "mock",
		LiveModeConfirmed: false,
		Credential:        map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
		BuyBudget:         "1,000,000",
	})
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0", result.ConfigVersion)
	assert.Equal(t, "1000000", result.BuyBudget)
	assert.Equal(t, "***masked***", result.CredentialMasked.AppKey)

	settings, err := repo.ReadSettings()
	require.NoError(t, err)
	assert.Equal(t, []string{"005930", "000660"}, settings.WatchSymbols)
	assert.NotEmpty(t, settings.CredentialsRef)

	credentials, err := repo.ReadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "k", credentials.Credential.AppKey)
	assert.Equal(t, settings.CredentialsRef, credentials.CredentialsID)
}

func TestSaveSettings_RejectsLiveModeWithoutConfirmation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SaveSettings(SaveSettingsRequest{
		WatchSymbols: []string{"005930"},
		Mode:         "live",
		Credential:   map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
	})
	assert.Error(t, err)
}

func TestSwitchMode_RefusesWhenEngineNotIdle(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SaveSettings(SaveSettingsRequest{
		WatchSymbols: []string{"005930"},
		Mode:         "mock",
		Credential:   map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
	})
	require.NoError(t, err)

	_, err = svc.SwitchMode("live", true, TradingGuardStatus{OpenOrders: 1, EngineState: "IDLE"})
	assert.Error(t, err)
}

func TestSwitchMode_PersistsNewModeWhenIdle(t *testing.T) {
	svc, repo := newTestService(t)
	_, err := svc.SaveSettings(SaveSettingsRequest{
		WatchSymbols: []string{"005930"},
		Mode:         "mock",
		Credential:   map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
	})
	require.NoError(t, err)

	result, err := svc.SwitchMode("live", true, TradingGuardStatus{EngineState: "IDLE"})
	require.NoError(t, err)
	assert.Equal(t, "live", result.Mode)

	settings, err := repo.ReadSettings()
	require.NoError(t, err)
	assert.Equal(t, "live", settings.Mode)
	assert.True(t, settings.LiveModeConfirmed)
}

func TestRepository_ReadModeAndCredentialSatisfySettingsSource(t *testing.T) {
	svc, repo := newTestService(t)
	_, err := svc.SaveSettings(SaveSettingsRequest{
		WatchSymbols: []string{"005930"},
		Mode:         "mock",
		Credential:   map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
	})
	require.NoError(t, err)

	mode, ok := repo.ReadMode()
	assert.True(t, ok)
	assert.Equal(t, "mock", mode)

	cred := repo.ReadCredential()
	assert.Equal(t, "k", cred["appKey"])
}
