package assistant

import "strings"

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*MockClient)(nil)
)

// New selects the client implementation by mode: "mock" returns the
// in-memory fake, anything else the real HTTP client.
func New(mode, baseURL, apiKey, model string, temperature float64) Client {
	if strings.EqualFold(strings.TrimSpace(mode), "mock") {
		return NewMockClient()
	}
	return NewHTTPClient(baseURL, apiKey, model, temperature)
}
