package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
	"resty.dev/v3"
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultUserAgent    = "NotePilot/1.0 (+https://notepilot.app)"
	defaultMaxPageBytes = 5 << 20
)

// ErrBlockedAddress reports a page host that resolves to a non-public address.
var ErrBlockedAddress = errors.New("ingestion: address not allowed")

// FetcherConfig tunes page downloads.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	// MaxBytes caps the downloaded body. Zero selects defaultMaxPageBytes.
	MaxBytes int64
	// AllowPrivateNetworks permits loopback, private and link-local targets.
	AllowPrivateNetworks bool
}

// Fetcher downloads web pages for website notes.
type Fetcher struct {
	httpClient *resty.Client
	maxBytes   int64
}

// NewFetcher constructs a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	userAgent := cfg.UserAgent
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPageBytes
	}

	dialer := &net.Dialer{}
	if !cfg.AllowPrivateNetworks {
		dialer.Control = guardPublicAddress
	}
	client := resty.NewWithDialer(dialer)
	client.SetTimeout(timeout)
	client.SetResponseBodyLimit(maxBytes)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")
	return &Fetcher{httpClient: client, maxBytes: maxBytes}
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	return f.httpClient.Close()
}

// FetchPage downloads rawURL and extracts its readable text and title.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (Document, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Document{}, fmt.Errorf("%w: invalid url %q", ErrMissingInput, rawURL)
	}

	response, err := f.httpClient.R().
		SetContext(ctx).
		Get(parsed.String())
	switch {
	case errors.Is(err, ErrBlockedAddress):
		return Document{}, fmt.Errorf("%w: fetch %s: %w", ErrRemoteFailure, parsed.Host, ErrBlockedAddress)
	case errors.Is(err, resty.ErrReadExceedsThresholdLimit):
		return Document{}, fmt.Errorf("%w: fetch %s: page exceeds %d bytes", ErrRemoteFailure, parsed.Host, f.maxBytes)
	case err != nil:
		return Document{}, fmt.Errorf("%w: fetch %s: %v", ErrRemoteFailure, parsed.Host, err)
	}
	if response.IsError() {
		return Document{}, fmt.Errorf("%w: fetch %s: status %d", ErrRemoteFailure, parsed.Host, response.StatusCode())
	}

	body := response.String()
	contentType := strings.ToLower(response.Header().Get("Content-Type"))
	if strings.HasPrefix(contentType, "text/plain") {
		return Document{Text: strings.TrimSpace(body)}, nil
	}
	document, err := ParseHTML(body)
	if err != nil {
		return Document{}, err
	}
	document.Title = textutil.Truncate(document.Title, 200)
	return document, nil
}

// guardPublicAddress runs after name resolution, so address always carries
// the IP actually dialed, including redirect targets.
func guardPublicAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s %s", ErrBlockedAddress, network, ip)
	}
	return nil
}
