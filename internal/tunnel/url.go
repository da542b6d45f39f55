package tunnel

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ParseProxyURL parses a proxy URL into a Proxy.
//
// Supported schemes:
//   - socks4://host:port (socks4a:// is an alias; host names always go out as SOCKS4a)
//   - socks5://host:port (socks5h:// is an alias; target names are always sent unresolved)
//   - http://host:port
//
// A default port is applied if the URL host is missing a port. Credentials
// are rejected since proxy authentication is not supported.
func ParseProxyURL(raw string) (*Proxy, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	return proxyFromURL(u)
}

func proxyFromURL(u *url.URL) (*Proxy, error) {
	scheme := strings.ToLower(u.Scheme)

	if u.Path != "" && u.Path != "/" {
		return nil, errors.New("invalid url: path should be empty")
	}
	if u.User != nil {
		return nil, errors.New("invalid url: proxy authentication is not supported")
	}

	var typ ProxyType
	switch scheme {
	case "":
		return nil, errors.New("invalid url: missing scheme")
	case "socks4", "socks4a":
		typ = ProxySOCKS4
	case "socks5", "socks5h":
		typ = ProxySOCKS5
	case "http":
		typ = ProxyHTTP
	default:
		return nil, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, errors.New("invalid url: missing host")
	}

	portStr := u.Port()
	if portStr == "" {
		portStr = defaultPortForType(typ)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid url: bad port %q", portStr)
	}

	return &Proxy{Host: host, Port: port, Type: typ}, nil
}

func defaultPortForType(t ProxyType) string {
	switch t {
	case ProxyHTTP:
		return "80"
	default:
		return "1080"
	}
}

// ProxyFromEnvironment parses ALL_PROXY (or all_proxy). It returns nil and
// no error if neither is set.
func ProxyFromEnvironment() (*Proxy, error) {
	for _, name := range []string{"ALL_PROXY", "all_proxy"} {
		if v := os.Getenv(name); v != "" {
			p, err := ParseProxyURL(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return p, nil
		}
	}
	return nil, nil
}
