package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kiatrader/internal/csm"
	"kiatrader/internal/logging"
	"kiatrader/internal/uag"
)

// Server holds the orchestrator every handler delegates to.
type Server struct {
	uag *uag.Service
}

// NewServer builds a Server around service.
func NewServer(service *uag.Service) *Server {
	return &Server{uag: service}
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, uag.BuildSuccessEnvelope(requestID(c), data))
}

func (s *Server) respondCsmError(c *gin.Context, err error) {
	status, message := uag.MapCsmError(err)
	c.JSON(status, uag.BuildErrorEnvelope(requestID(c), "CSM_VALIDATION_FAILED", message, false, nil))
}

func (s *Server) respondInternalError(c *gin.Context, logContext string, err error) {
	logging.Errorf("api: %s failed: %v", logContext, err)
	c.JSON(http.StatusInternalServerError, uag.BuildErrorEnvelope(
		requestID(c), "UAG_UNKNOWN", "처리 중 오류가 발생했습니다.", true, nil,
	))
}

// saveSettingsRequest is the ingress shape for POST /settings.
type saveSettingsRequest struct {
	WatchSymbols      []string          `json:"watchSymbols" binding:"required"`
	Mode              string            `json:"mode" binding:"required"`
	LiveModeConfirmed bool              `json:"liveModeConfirmed"`
	BuyBudget         string            `json:"buyBudget"`
	Credential        map[string]string `json:"credential" binding:"required"`
}

func (s *Server) handleSaveSettings(c *gin.Context) {
	var request saveSettingsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, uag.BuildErrorEnvelope(requestID(c), "CSM_REQUEST_MALFORMED", "요청 본문이 올바르지 않습니다.", false, nil))
		return
	}

	result, err := s.uag.SaveSettings(csm.SaveSettingsRequest{
		WatchSymbols:      request.WatchSymbols,
		Mode:              request.Mode,
		LiveModeConfirmed: request.LiveModeConfirmed,
		BuyBudget:         request.BuyBudget,
		Credential:        request.Credential,
	})
	if err != nil {
		s.respondCsmError(c, err)
		return
	}

	s.respondSuccess(c, http.StatusOK, result)
}

type switchModeRequest struct {
	TargetMode        string `json:"targetMode" binding:"required"`
	LiveModeConfirmed bool   `json:"liveModeConfirmed"`
}

func (s *Server) handleSwitchMode(c *gin.Context) {
	var request switchModeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, uag.BuildErrorEnvelope(requestID(c), "CSM_REQUEST_MALFORMED", "요청 본문이 올바르지 않습니다.", false, nil))
		return
	}

	result, err := s.uag.SwitchMode(request.TargetMode, request.LiveModeConfirmed)
	if err != nil {
		s.respondCsmError(c, err)
		return
	}

	s.respondSuccess(c, http.StatusOK, result)
}

type startTradingRequest struct {
	TradingDate string `json:"tradingDate"`
	DryRun      bool   `json:"dryRun"`
}

func (s *Server) handleStartTrading(c *gin.Context) {
	var request startTradingRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, uag.BuildErrorEnvelope(requestID(c), "CSM_REQUEST_MALFORMED", "요청 본문이 올바르지 않습니다.", false, nil))
		return
	}

	result, err := s.uag.StartTrading(request.TradingDate, request.DryRun)
	if err != nil {
		if errors.Is(err, uag.ErrEngineAlreadyRunning) {
			status, message := uag.MapCsmError(err)
			c.JSON(status, uag.BuildErrorEnvelope(requestID(c), "UAG_ENGINE_ALREADY_RUNNING", message, false, nil))
			return
		}
		s.respondInternalError(c, "start trading", err)
		return
	}

	s.respondSuccess(c, http.StatusOK, result)
}

func (s *Server) handleMonitorStatus(c *gin.Context) {
	result, err := s.uag.MonitorStatus()
	if err != nil {
		s.respondInternalError(c, "monitor status", err)
		return
	}
	s.respondSuccess(c, http.StatusOK, result)
}

func (s *Server) handleDailyReport(c *gin.Context) {
	tradingDate := c.Param("date")
	result, err := s.uag.GetDailyReport(tradingDate)
	if err != nil {
		s.respondInternalError(c, "daily report", err)
		return
	}
	s.respondSuccess(c, http.StatusOK, result)
}

func (s *Server) handleTradesReport(c *gin.Context) {
	tradingDate := c.Param("date")
	result, err := s.uag.GetTradesReport(tradingDate)
	if err != nil {
		s.respondInternalError(c, "trades report", err)
		return
	}
	s.respondSuccess(c, http.StatusOK, result)
}
