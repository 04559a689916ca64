package httpx

import "net/http"

// StdClient exposes a Client as *http.Client for SDKs that only accept the
// standard type.
func StdClient(c Client) *http.Client {
	switch v := c.(type) {
	case nil:
		return http.DefaultClient
	case *http.Client:
		return v
	}
	return &http.Client{Transport: roundTripper{c}}
}

type roundTripper struct {
	client Client
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.client.Do(req)
}
