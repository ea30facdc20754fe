package uag

import (
	"errors"
	"net/http"

	"kiatrader/internal/csm"
)

// ErrEngineAlreadyRunning is returned by StartTrading when the engine is
// already RUNNING.
var ErrEngineAlreadyRunning = errors.New("uag: engine is already running")

// MapCsmError translates a csm validation error (or StartTrading's own
// already-running error) into an HTTP status and a user-facing Korean
// message, mirroring the precondition-aware mapping the settings/mode
// endpoints need on top of the generic error envelope.
func MapCsmError(err error) (int, string) {
	if errors.Is(err, ErrEngineAlreadyRunning) {
		return http.StatusConflict, "엔진이 이미 실행 중입니다."
	}

	var validationErr *csm.ValidationError
	if errors.As(err, &validationErr) {
		if validationErr.Code == "CSM_MODE_SWITCH_PRECONDITION_FAILED" {
			return http.StatusConflict, "모드 전환 선행조건이 충족되지 않았습니다."
		}
		return http.StatusBadRequest, "입력값 검증에 실패했습니다."
	}

	return http.StatusInternalServerError, "알 수 없는 오류가 발생했습니다."
}
