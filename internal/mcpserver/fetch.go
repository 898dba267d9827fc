package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/erraggy/paramcontract"
)

// maxFetchRedirects bounds the redirect chain of a contract download.
const maxFetchRedirects = 5

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598), which
// net.IP.IsPrivate does not report.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// privateAddress reports whether ip lies outside the public unicast space:
// private, shared, loopback, link-local, multicast or unspecified.
func privateAddress(ip net.IP) bool {
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return true
	}
	addr, ok := netip.AddrFromSlice(ip)
	return ok && sharedAddressSpace.Contains(addr.Unmap())
}

// contractFetcher downloads contract documents named by url inputs.
type contractFetcher struct {
	client  *http.Client
	maxSize int64
}

// newContractFetcher builds a fetcher from the server configuration. Unless
// AllowPrivateIPs is set, every dialed address must be public.
func newContractFetcher(c *serverConfig) *contractFetcher {
	var blocked func(net.IP) bool
	if !c.AllowPrivateIPs {
		blocked = privateAddress
	}
	return &contractFetcher{
		client:  newFetchClient(c.FetchTimeout, blocked),
		maxSize: c.MaxInlineSize,
	}
}

// newFetchClient returns a client bounded by timeout that follows only http
// and https redirects. When blocked is non-nil, connections to addresses it
// reports are refused and proxies are bypassed so the check sees the real peer.
func newFetchClient(timeout time.Duration, blocked func(net.IP) bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if blocked != nil {
		transport.Proxy = nil
		transport.DialContext = guardedDialer(&net.Dialer{Timeout: timeout}, blocked)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
			}
			if len(via) >= maxFetchRedirects {
				return fmt.Errorf("stopped after %d redirects", maxFetchRedirects)
			}
			return nil
		},
	}
}

// guardedDialer resolves the host itself and dials the resolved addresses in
// order, refusing the host when any of them is blocked.
func guardedDialer(dialer *net.Dialer, blocked func(net.IP) bool) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no addresses found for host %s", host)
		}
		for _, ip := range ips {
			if blocked(ip.IP) {
				return nil, fmt.Errorf("blocked contract fetch from non-public address %s (%s)", host, ip.IP)
			}
		}
		var errs []error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			errs = append(errs, err)
		}
		return nil, errors.Join(errs...)
	}
}

// fetch downloads rawURL. Documents larger than the configured inline limit
// are rejected.
func (f *contractFetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", paramcontract.UserAgent())
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching contracts: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching contracts: unexpected status %s", resp.Status)
	}

	limit := f.maxSize
	if limit < math.MaxInt64 {
		limit++
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("fetching contracts: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("fetched document exceeds maximum %d bytes", f.maxSize)
	}
	return data, nil
}
