package uag

// StartTradingResult is returned by StartTrading.
type StartTradingResult struct {
	EngineState string `json:"engineState"`
	AcceptedAt  string `json:"acceptedAt"`
	TradingDate string `json:"tradingDate"`
	DryRun      bool   `json:"dryRun"`
	SafeMode    bool   `json:"safeMode"`
}

// QuoteMonitoringStatus is the quote-loop health block of MonitorStatusResult.
type QuoteMonitoringStatus struct {
	LoopState              string  `json:"loopState"`
	CyclesTotal            int     `json:"cyclesTotal"`
	LastPollCycleID        string  `json:"lastPollCycleId"`
	LastCycleAt            *string `json:"lastCycleAt"`
	LastCyclePartial       bool    `json:"lastCyclePartial"`
	LastQuoteCount         int     `json:"lastQuoteCount"`
	LastErrorCount         int     `json:"lastErrorCount"`
	LastCommandCount       int     `json:"lastCommandCount"`
	LastStrategyEventCount int     `json:"lastStrategyEventCount"`
	LastCycleError         string  `json:"lastCycleError"`
}

// MonitorStatusResult is returned by MonitorStatus.
type MonitorStatusResult struct {
	EngineState     string                `json:"engineState"`
	Mode            string                `json:"mode"`
	WatchSymbols    []string              `json:"watchSymbols"`
	StartedAt       *string               `json:"startedAt"`
	TradingDate     string                `json:"tradingDate"`
	DryRun          bool                  `json:"dryRun"`
	SafeMode        bool                  `json:"safeMode"`
	OpenOrders      int                   `json:"openOrders"`
	OpenPositions   int                   `json:"openPositions"`
	MonitoringRows  []MonitoringRow       `json:"monitoringRows"`
	QuoteMonitoring QuoteMonitoringStatus `json:"quoteMonitoring"`
}

// DailyReportResult is returned by GetDailyReport.
type DailyReportResult struct {
	TradingDate     string          `json:"tradingDate"`
	TotalBuyAmount  string          `json:"totalBuyAmount"`
	TotalSellAmount string          `json:"totalSellAmount"`
	TotalSellTax    string          `json:"totalSellTax"`
	TotalSellFee    string          `json:"totalSellFee"`
	TotalNetPnl     string          `json:"totalNetPnl"`
	TotalReturnRate string          `json:"totalReturnRate"`
	GeneratedAt     string          `json:"generatedAt"`
	Anomalies       []string        `json:"anomalies,omitempty"`
	MonitoringRows  []MonitoringRow `json:"monitoringRows"`
}

// TradeDetailView is one FIFO-matched trade row in a trades report.
type TradeDetailView struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	BuyExecutedAt  string `json:"buyExecutedAt"`
	SellExecutedAt string `json:"sellExecutedAt"`
	Quantity       int    `json:"quantity"`
	BuyPrice       string `json:"buyPrice"`
	SellPrice      string `json:"sellPrice"`
	BuyAmount      string `json:"buyAmount"`
	SellAmount     string `json:"sellAmount"`
	SellTax        string `json:"sellTax"`
	SellFee        string `json:"sellFee"`
	NetPnl         string `json:"netPnl"`
	ReturnRate     string `json:"returnRate"`
}

// TradesReportResult is returned by GetTradesReport.
type TradesReportResult struct {
	TradingDate    string            `json:"tradingDate"`
	Count          int               `json:"count"`
	Items          []TradeDetailView `json:"items"`
	MonitoringRows []MonitoringRow   `json:"monitoringRows"`
}
