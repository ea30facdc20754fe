package csm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWatchSymbols_AcceptsWithinRange(t *testing.T) {
	assert.NoError(t, ValidateWatchSymbols([]string{"005930", "000660"}))
}

func TestValidateWatchSymbols_RejectsEmptyOrTooMany(t *testing.T) {
	assert.Error(t, ValidateWatchSymbols(nil))
	many := make([]string, 21)
	for i := range many {
		many[i] = "005930"
	}
	assert.Error(t, ValidateWatchSymbols(many))
}

func TestValidateWatchSymbols_RejectsBadFormatAndDuplicates(t *testing.T) {
	assert.Error(t, ValidateWatchSymbols([]string{"abcdef"}))
	assert.Error(t, ValidateWatchSymbols([]string{"00593"}))
	assert.Error(t, ValidateWatchSymbols([]string{"005930", "005930"}))
}

func TestValidateMode_RequiresLiveConfirmation(t *testing.T) {
	assert.NoError(t, ValidateMode("mock", false))
	assert.Error(t, ValidateMode("live", false))
	assert.NoError(t, ValidateMode("live", true))
	assert.Error(t, ValidateMode("paper", true))
}

func TestNormalizeCredential_StripsDashesAndWhitespace(t *testing.T) {
	c := NormalizeCredential(map[string]string{"accountNo": " 123-456-789 ", "appKey": " k ", "appSecret": " s ", "userId": " u "})
	assert.Equal(t, "123456789", c.AccountNo)
	assert.Equal(t, "k", c.AppKey)
}

func TestValidateCredential_RequiresAllFieldsAndNumericAccount(t *testing.T) {
	assert.Error(t, ValidateCredential(Credential{}))
	assert.Error(t, ValidateCredential(Credential{AppKey: "k", AppSecret: "s", AccountNo: "abc", UserID: "u"}))
	assert.NoError(t, ValidateCredential(Credential{AppKey: "k", AppSecret: "s", AccountNo: "12345678", UserID: "u"}))
}

func TestValidateModeSwitchGuard_RequiresFullyIdleEngine(t *testing.T) {
	assert.NoError(t, ValidateModeSwitchGuard(TradingGuardStatus{EngineState: "IDLE"}))
	assert.Error(t, ValidateModeSwitchGuard(TradingGuardStatus{OpenOrders: 1, EngineState: "IDLE"}))
	assert.Error(t, ValidateModeSwitchGuard(TradingGuardStatus{EngineState: "RUNNING"}))
}

func TestToMaskedCredential_RedactsSensitiveFields(t *testing.T) {
	masked := ToMaskedCredential(Credential{AppKey: "key", AppSecret: "secret", AccountNo: "123456789", UserID: "alice"})
	assert.Equal(t, "***masked***", masked.AppKey)
	assert.Equal(t, "***masked***", masked.AppSecret)
	assert.Equal(t, "******6789", masked.AccountNo)
	assert.Equal(t, "al***", masked.UserID)
}
