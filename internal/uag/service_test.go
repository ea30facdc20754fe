package uag

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiatrader/internal/csm"
)

func newTestUagService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	svc, err := NewService(
		filepath.Join(dir, "settings.local.json"),
		filepath.Join(dir, "credentials.local.json"),
		filepath.Join(dir, "prp.db"),
	)
	require.NoError(t, err)
	return svc
}

func TestNewService_SeedsDefaultRuntimeFiles(t *testing.T) {
	svc := newTestUagService(t)

	settings, err := svc.repo.ReadSettings()
	require.NoError(t, err)
	assert.Equal(t, []string{"005930"}, settings.WatchSymbols)
	assert.Equal(t, "mock", settings.Mode)
	assert.False(t, settings.LiveModeConfirmed)

	_, err = svc.repo.ReadCredentials()
	require.NoError(t, err)
}

func TestSaveSettings_DelegatesToCsmService(t *testing.T) {
	svc := newTestUagService(t)

	result, err := svc.SaveSettings(csm.SaveSettingsRequest{
		WatchSymbols:      []string{"005930", "000660"},
		Mode:              "mock",
		LiveModeConfirmed: false,
		Credential:        map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"005930", "000660"}, result.WatchSymbols)

	settings, err := svc.repo.ReadSettings()
	require.NoError(t, err)
	assert.Equal(t, []string{"005930", "000660"}, settings.WatchSymbols)
}

func TestSwitchMode_RefusesWhileEngineRunning(t *testing.T) {
	svc := newTestUagService(t)

	_, err := svc.SaveSettings(csm.SaveSettingsRequest{
		WatchSymbols:      []string{"005930"},
		Mode:              "mock",
		LiveModeConfirmed: false,
		Credential:        map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
	})
	require.NoError(t, err)

	svc.mu.Lock()
	svc.state.EngineState = "RUNNING"
	svc.mu.Unlock()

	_, err = svc.SwitchMode("live", true)
	require.Error(t, err)

	status, message := MapCsmError(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, message)
}

func TestStartTrading_RefusesWhenAlreadyRunning(t *testing.T) {
	svc := newTestUagService(t)

	_, err := svc.StartTrading("2026-07-31", true)
	require.NoError(t, err)
	defer svc.Shutdown()

	_, err = svc.StartTrading("2026-07-31", true)
	assert.ErrorIs(t, err, ErrEngineAlreadyRunning)

	status, message := MapCsmError(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, message)
}

func TestStartTrading_RunsQuoteLoopAndShutsDownCleanly(t *testing.T) {
	svc := newTestUagService(t)

	result, err := svc.StartTrading("2026-07-31", true)
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", result.EngineState)
	assert.True(t, result.DryRun)

	assert.Eventually(t, func() bool {
		status, err := svc.MonitorStatus()
		return err == nil && status.QuoteMonitoring.CyclesTotal >= 1
	}, 2*time.Second, 10*time.Millisecond, "quote loop should complete at least one cycle")

	svc.Shutdown()

	status, err := svc.MonitorStatus()
	require.NoError(t, err)
	assert.Equal(t, "IDLE", status.EngineState)
	assert.Equal(t, "STOPPED", status.QuoteMonitoring.LoopState)
}

func TestResolveOrderQuantity_SellAlwaysOne(t *testing.T) {
	svc := newTestUagService(t)
	assert.Equal(t, 1, svc.resolveOrderQuantity("SELL", decimal.RequireFromString("70000")))
}

func TestResolveOrderQuantity_BuyDividesBudgetByPrice(t *testing.T) {
	svc := newTestUagService(t)

	_, err := svc.SaveSettings(csm.SaveSettingsRequest{
		WatchSymbols:      []string{"005930"},
		Mode:              "mock",
		LiveModeConfirmed: false,
		Credential:        map[string]string{"appKey": "k", "appSecret": "s", "accountNo": "12345678", "userId": "alice"},
		BuyBudget:         "1,000,000",
	})
	require.NoError(t, err)

	assert.Equal(t, 14, svc.resolveOrderQuantity("BUY", decimal.RequireFromString("70000")))
}

func TestResolveOrderQuantity_BuyDefaultsToOneShareWithoutBudget(t *testing.T) {
	svc := newTestUagService(t)
	assert.Equal(t, 1, svc.resolveOrderQuantity("BUY", decimal.RequireFromString("70000")))
}

func TestMapCsmError_UnknownErrorMapsToInternalServerError(t *testing.T) {
	status, message := MapCsmError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, message)
}

func TestEnvelopes_MatchExpectedShape(t *testing.T) {
	success := BuildSuccessEnvelope("req-1", map[string]any{"ok": true})
	assert.True(t, success.Success)
	assert.Equal(t, "req-1", success.RequestID)

	failure := BuildErrorEnvelope("req-2", "CSM_MODE_INVALID", "잘못된 모드입니다.", false, nil)
	assert.False(t, failure.Success)
	assert.Equal(t, "UAG", failure.Error.Source)
	assert.Equal(t, "CSM_MODE_INVALID", failure.Error.Code)
}
