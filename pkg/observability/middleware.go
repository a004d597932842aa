package observability

import (
	"net/http"
	"strconv"
)

// InstrumentRoundTripper wraps an outbound transport to record
// deepspeak_http_requests_total for every exchange. Requests that fail
// before a response arrives are recorded with code "error". A nil next
// wraps http.DefaultTransport.
func InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(r)

		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, code).Inc()

		return resp, err
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
