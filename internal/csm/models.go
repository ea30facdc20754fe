package csm

type Mode string

const (
	ModeMock Mode = "mock"
	ModeLive Mode = "live"
)

// Credential is a broker credential in its normalized, unmasked form —
// never logged or returned to a caller directly; see ToMaskedCredential.
type Credential struct {
	AppKey    string
	AppSecret string
	AccountNo string
	UserID    string
}

// Settings is the persisted runtime trading configuration.
type Settings struct {
	WatchSymbols     []string
	Mode             Mode
	LiveModeConfirmed bool
}

// TradingGuardStatus is the engine's live state, consulted before allowing
// a mode switch.
type TradingGuardStatus struct {
	OpenOrders    int
	OpenPositions int
	EngineState   string
}
