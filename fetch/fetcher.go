package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/models"
)

// maxBody caps response reads to prevent unbounded memory use.
const maxBody = 10 << 20

// softBlockSignal pairs a challenge phrase with the label reported when it
// triggers. A page can return HTTP 200 and still be a bot interstitial.
type softBlockSignal struct {
	phrase string
	label  string
}

var softBlockSignals = []softBlockSignal{
	{"enter the characters you see below", "captcha challenge"},
	{"api-services-support@amazon.com", "amazon hard block"},
	{"verify you are a human", "human verification"},
	{"access to this page has been denied", "access denied page"},
	{"unusual traffic", "unusual traffic notice"},
}

// Options carries per-call fetch overrides.
type Options struct {
	// Headers override the profile's defaults key by key.
	Headers map[string]string

	// Cookie, if non-empty, is sent as the raw Cookie header.
	Cookie string
}

// Outcome is the typed result of a fetch. Exactly one of Page or a terminal
// Status is populated; Fetch never returns an error to its caller.
type Outcome struct {
	Page   *models.RawPage
	Status models.ScanStatus // StatusBlocked or StatusError when Page is nil
	Detail string
}

// Fetcher retrieves pages over HTTP with browser TLS impersonation, rotating
// through profiles in order until one returns a clean HTTP 200.
// It is safe for concurrent use.
type Fetcher struct {
	cfg      config.FetchConfig
	profiles []Profile
	clients  map[string]*http.Client
	memory   *ProfileMemory
}

// New builds a Fetcher with one pre-configured HTTP client per profile.
// Profiles whose TLS spec cannot be computed are skipped with a warning.
func New(cfg config.FetchConfig, profiles []Profile) *Fetcher {
	f := &Fetcher{
		cfg:      cfg,
		profiles: make([]Profile, 0, len(profiles)),
		clients:  make(map[string]*http.Client, len(profiles)),
		memory:   NewProfileMemory(cfg.ProfileMemoryTTL),
	}
	for _, p := range profiles {
		spec, err := helloSpec(p.HelloID)
		if err != nil {
			slog.Warn("skipping impersonation profile", "profile", p.Name, "error", err)
			continue
		}
		f.profiles = append(f.profiles, p)
		f.clients[p.Name] = newClient(spec, cfg.Proxy)
	}
	return f
}

// Close stops the profile memory's background cleanup.
func (f *Fetcher) Close() {
	f.memory.Stop()
}

// Fetch retrieves the URL, trying impersonation profiles in order. A profile
// that previously worked for the domain is tried first. The outcome is always
// typed: a RawPage on success, StatusBlocked after exhausting profiles on
// 403/503 or soft-block signatures, StatusError for transport-only failures.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) *Outcome {
	domain := hostOf(rawURL)

	var (
		sawBlocked  bool
		blockDetail string
		lastDetail  = "no impersonation profiles configured"
	)

	for i, p := range f.orderFor(domain) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return &Outcome{Status: models.StatusError, Detail: "fetch cancelled: " + ctx.Err().Error()}
			case <-time.After(f.cfg.ProfileBackoff):
			}
		}

		page, blocked, detail := f.attempt(ctx, p, rawURL, opts)
		if page != nil {
			f.memory.Set(domain, p.Name)
			return &Outcome{Page: page}
		}

		slog.Debug("fetch attempt failed", "url", rawURL, "profile", p.Name, "blocked", blocked, "detail", detail)
		if blocked {
			sawBlocked = true
			blockDetail = detail
			f.memory.Delete(domain)
		} else {
			lastDetail = detail
		}
	}

	if sawBlocked {
		return &Outcome{Status: models.StatusBlocked, Detail: blockDetail}
	}
	return &Outcome{Status: models.StatusError, Detail: lastDetail}
}

// attempt performs a single-profile fetch. blocked reports whether the
// failure looked like bot rejection rather than a transport problem.
func (f *Fetcher) attempt(ctx context.Context, p Profile, rawURL string, opts Options) (page *models.RawPage, blocked bool, detail string) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Sprintf("build request: %v", err)
	}

	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", p.AcceptLang)
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Referer", f.cfg.Referer)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.Cookie != "" {
		req.Header.Set("Cookie", opts.Cookie)
	}

	resp, err := f.clients[p.Name].Do(req)
	if err != nil {
		return nil, false, fmt.Sprintf("request failed (%s): %v", p.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, false, fmt.Sprintf("read body (%s): %v", p.Name, err)
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, true, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	if signal, hit := detectSoftBlock(string(body)); hit {
		return nil, true, signal
	}

	return &models.RawPage{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		FinalURL:   resp.Request.URL.String(),
		Profile:    p.Name,
	}, false, ""
}

// orderFor returns the profile rotation for a domain, moving a remembered
// working profile to the front.
func (f *Fetcher) orderFor(domain string) []Profile {
	remembered := f.memory.Get(domain)
	if remembered == "" {
		return f.profiles
	}
	ordered := make([]Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		if p.Name == remembered {
			ordered = append(ordered, p)
		}
	}
	for _, p := range f.profiles {
		if p.Name != remembered {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// detectSoftBlock scans a body for known challenge phrases and returns the
// label of the first match.
func detectSoftBlock(body string) (string, bool) {
	lower := strings.ToLower(body)
	for _, s := range softBlockSignals {
		if strings.Contains(lower, s.phrase) {
			return s.label, true
		}
	}
	return "", false
}

// newClient builds an HTTP client whose TLS handshakes present the given
// ClientHello shape. Redirects are followed up to a limit of 10.
func newClient(spec tls.ClientHelloSpec, proxy string) *http.Client {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("fetch: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// hostOf extracts the hostname from a URL, falling back to the raw string.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
