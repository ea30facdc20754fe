package kia

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// Transport performs one HTTP call and decodes the JSON body into a
// RawPayload, returning the status code alongside it. Swappable so tests
// can stub transport without touching a network.
type Transport func(method, url string, headers map[string]string, payload RawPayload, query map[string]string, timeout time.Duration) (int, RawPayload, error)

// RestyTransport builds a Transport backed by go-resty, matching the
// broker's "POST JSON, 5s default timeout" transport shape.
func RestyTransport() Transport {
	client := resty.New()
	return func(method, url string, headers map[string]string, payload RawPayload, query map[string]string, timeout time.Duration) (int, RawPayload, error) {
		req := client.R().SetHeaders(headers).SetQueryParams(query)
		if payload != nil {
			req = req.SetBody(map[string]any(payload))
		}
		client.SetTimeout(timeout)

		var result RawPayload
		req = req.SetResult(&result)

		var resp *resty.Response
		var err error
		switch method {
		case "GET":
			resp, err = req.Get(url)
		default:
			resp, err = req.Post(url)
		}
		if err != nil {
			return 0, nil, &timeoutOrTransportErr{err}
		}
		return resp.StatusCode(), result, nil
	}
}

type timeoutOrTransportErr struct{ err error }

func (e *timeoutOrTransportErr) Error() string { return e.err.Error() }
func (e *timeoutOrTransportErr) Timeout() bool { return true }
