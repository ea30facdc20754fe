package kia

import "strings"

// EndpointInfo is a resolved (base URL, path, method) triple for one call.
type EndpointInfo struct {
	BaseURL string
	Path    string
	Method  string
}

// SettingsSource is the minimal slice of CSM's settings/credential
// repository the endpoint resolver needs — kept as a narrow interface here
// instead of importing internal/csm directly, to avoid a cross-package
// dependency cycle.
type SettingsSource interface {
	ReadMode() (mode string, ok bool)
	ReadCredential() map[string]string
}

var routes = map[ServiceType][2]string{
	ServiceAuth:      {"POST", "/oauth2/token"},
	ServiceQuote:     {"POST", "/api/dostk/mrkcond"},
	ServiceChart:     {"POST", "/api/dostk/chart"},
	ServiceOrder:     {"POST", "/api/dostk/ordr"},
	ServiceExecution: {"POST", "/api/dostk/websocket"},
}

// EndpointResolver maps (mode, serviceType) to a concrete HTTP endpoint,
// reading base URL overrides and live credentials from CSM settings.
type EndpointResolver struct {
	settings         SettingsSource
	defaultMockBase  string
	defaultLiveBase  string
}

// NewEndpointResolver builds a resolver. settings may be nil, in which case
// mode always resolves to mock and no live credentials are ever found.
func NewEndpointResolver(settings SettingsSource) *EndpointResolver {
	return &EndpointResolver{
		settings:        settings,
		defaultMockBase: "https://mockapi.kiwoom.com",
		defaultLiveBase: "https://api.kiwoom.com",
	}
}

// Resolve returns the endpoint for (mode, serviceType).
func (r *EndpointResolver) Resolve(mode Mode, serviceType ServiceType) (EndpointInfo, error) {
	route, ok := routes[serviceType]
	if !ok {
		return EndpointInfo{}, NewError("KIA_ROUTE_NOT_FOUND", "라우팅 설정을 찾을 수 없습니다.", false, nil)
	}
	return EndpointInfo{BaseURL: r.resolveBaseURL(mode), Path: route[1], Method: route[0]}, nil
}

// ReadCsmMode resolves the mode configured in CSM settings, defaulting to mock.
func (r *EndpointResolver) ReadCsmMode() Mode {
	if r.settings == nil {
		return ModeMock
	}
	mode, ok := r.settings.ReadMode()
	if !ok {
		return ModeMock
	}
	mode = strings.ToLower(mode)
	if mode != "mock" && mode != "live" {
		return ModeMock
	}
	return Mode(mode)
}

// HasLiveCredentials reports whether an appKey/appSecret pair is configured.
func (r *EndpointResolver) HasLiveCredentials() bool {
	cred := r.readCredential()
	return strings.TrimSpace(cred["appKey"]) != "" && strings.TrimSpace(cred["appSecret"]) != ""
}

// ReadAuthPayload returns the broker auth request body fields.
func (r *EndpointResolver) ReadAuthPayload() map[string]string {
	cred := r.readCredential()
	return map[string]string{
		"appkey":    cred["appKey"],
		"secretkey": cred["appSecret"],
	}
}

func (r *EndpointResolver) readCredential() map[string]string {
	if r.settings == nil {
		return map[string]string{}
	}
	cred := r.settings.ReadCredential()
	if cred == nil {
		return map[string]string{}
	}
	return cred
}

func (r *EndpointResolver) resolveBaseURL(mode Mode) string {
	cred := r.readCredential()
	if mode == ModeMock {
		if v := strings.TrimSpace(cred["mockBaseUrl"]); v != "" {
			return v
		}
		return r.defaultMockBase
	}
	if v := strings.TrimSpace(cred["liveBaseUrl"]); v != "" {
		return v
	}
	return r.defaultLiveBase
}
