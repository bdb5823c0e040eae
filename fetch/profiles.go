package fetch

import (
	tls "github.com/refraction-networking/utls"
)

// Profile is one browser impersonation identity: a TLS ClientHello shape plus
// the User-Agent that plausibly accompanies it.
type Profile struct {
	Name       string
	HelloID    tls.ClientHelloID
	UserAgent  string
	AcceptLang string
}

// DefaultProfiles is the rotation order tried by the Fetcher. Current Chrome
// first, an older Chrome second, Safari last; some marketplaces block the
// newest fingerprint while still serving older ones.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:       "chrome",
			HelloID:    tls.HelloChrome_Auto,
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			AcceptLang: "en-US,en;q=0.9",
		},
		{
			Name:       "chrome-legacy",
			HelloID:    tls.HelloChrome_102,
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
			AcceptLang: "en-US,en;q=0.9",
		},
		{
			Name:       "safari",
			HelloID:    tls.HelloSafari_16_0,
			UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.5 Safari/605.1.15",
			AcceptLang: "en-US,en;q=0.5",
		},
	}
}

// helloSpec returns the profile's ClientHelloSpec with ALPN restricted to
// http/1.1. utls can negotiate h2, but Go's http.Transport cannot speak h2
// over a utls connection, so the ALPN extension must never offer it.
func helloSpec(id tls.ClientHelloID) (tls.ClientHelloSpec, error) {
	spec, err := tls.UTLSIdToSpec(id)
	if err != nil {
		return tls.ClientHelloSpec{}, err
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return spec, nil
}
