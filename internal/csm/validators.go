package csm

import (
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`^[0-9]{6}$`)

const maxWatchSymbols = 20

// NormalizeSymbols trims whitespace from each entry without otherwise
// altering the list.
func NormalizeSymbols(watchSymbols []string) []string {
	out := make([]string, len(watchSymbols))
	for i, s := range watchSymbols {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// ValidateWatchSymbols enforces the 1..20 count, 6-digit format, and
// no-duplicates invariants.
func ValidateWatchSymbols(watchSymbols []string) error {
	if len(watchSymbols) < 1 || len(watchSymbols) > maxWatchSymbols {
		return newValidationError(codeSymbolCountOutOfRange, "watchSymbols", len(watchSymbols))
	}
	seen := make(map[string]bool, len(watchSymbols))
	for _, symbol := range watchSymbols {
		if symbol == "" || !symbolPattern.MatchString(symbol) {
			return newValidationError(codeSymbolFormatInvalid, "watchSymbols", watchSymbols)
		}
		if seen[symbol] {
			return newValidationError(codeSymbolDuplicated, "watchSymbols", watchSymbols)
		}
		seen[symbol] = true
	}
	return nil
}

// ValidateMode enforces mode ∈ {mock, live} and requires explicit
// confirmation before entering live.
func ValidateMode(mode string, liveModeConfirmed bool) error {
	if mode != string(ModeMock) && mode != string(ModeLive) {
		return newValidationError(codeModeInvalid, "mode", mode)
	}
	if mode == string(ModeLive) && !liveModeConfirmed {
		return newValidationError(codeLiveConfirmRequired, "liveModeConfirmed", liveModeConfirmed)
	}
	return nil
}

// NormalizeCredential trims each field and strips dashes from accountNo.
func NormalizeCredential(raw map[string]string) Credential {
	accountNo := strings.TrimSpace(strings.ReplaceAll(raw["accountNo"], "-", ""))
	return Credential{
		AppKey:    strings.TrimSpace(raw["appKey"]),
		AppSecret: strings.TrimSpace(raw["appSecret"]),
		AccountNo: accountNo,
		UserID:    strings.TrimSpace(raw["userId"]),
	}
}

// ValidateCredential requires every field non-empty and accountNo numeric
// with at least 8 digits.
func ValidateCredential(c Credential) error {
	if c.AppKey == "" {
		return newValidationError(codeCredentialFieldMissing, "appKey", "")
	}
	if c.AppSecret == "" {
		return newValidationError(codeCredentialFieldMissing, "appSecret", "")
	}
	if c.AccountNo == "" {
		return newValidationError(codeCredentialFieldMissing, "accountNo", "")
	}
	if c.UserID == "" {
		return newValidationError(codeCredentialFieldMissing, "userId", "")
	}
	if !isAllDigits(c.AccountNo) || len(c.AccountNo) < 8 {
		return newValidationError(codeCredentialFieldMissing, "accountNo", "not-numeric")
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateModeSwitchGuard requires the engine to be fully idle (no open
// orders/positions, IDLE state) before a mode switch is allowed.
func ValidateModeSwitchGuard(guard TradingGuardStatus) error {
	if guard.OpenOrders != 0 || guard.OpenPositions != 0 || guard.EngineState != "IDLE" {
		return newValidationError(codeModeSwitchPreconditionFail, "guard", guard)
	}
	return nil
}
