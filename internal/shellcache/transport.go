package shellcache

import "net/http"

// Transport routes a page's requests through its controlling worker, the
// way a browser does for a controlled client. Uncontrolled pages use Base.
type Transport struct {
	Client *Client
	Base   http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Client != nil {
		if w := t.Client.Controller(); w != nil {
			return w.Fetch(req)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
