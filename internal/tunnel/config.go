package tunnel

import (
	"net"
	"strconv"
)

// ProxyType selects the proxy protocol.
type ProxyType string

const (
	ProxySOCKS4 ProxyType = "socks4"
	ProxySOCKS5 ProxyType = "socks5"
	ProxyHTTP   ProxyType = "http"
)

func (t ProxyType) isSOCKS() bool {
	return t == ProxySOCKS4 || t == ProxySOCKS5
}

// socksVersion returns the protocol version tag sent in the handshake.
func (t ProxyType) socksVersion() int {
	if t == ProxySOCKS4 {
		return 4
	}
	return 5
}

// Proxy describes the intermediary proxy.
type Proxy struct {
	Host string
	Port int
	Type ProxyType
}

// Address returns the proxy's host:port.
func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p *Proxy) String() string {
	return string(p.Type) + "://" + p.Address()
}

// Config is the input of a single tunnel build: the target endpoint and the
// proxy used to reach it.
type Config struct {
	// Host and Port name the target. Host is passed to the proxy verbatim.
	Host string
	Port int

	Proxy *Proxy
}

// Target returns the target's host:port.
func (c *Config) Target() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks that every proxy field is present.
//
// A zero port counts as missing, so does an empty host or type. The first
// missing field is reported as a *ConfigError.
func (c *Config) Validate() error {
	switch {
	case c.Proxy == nil:
		return missingField("proxy")
	case c.Proxy.Host == "":
		return missingField("proxy.host")
	case c.Proxy.Port == 0:
		return missingField("proxy.port")
	case c.Proxy.Type == "":
		return missingField("proxy.type")
	case c.Proxy.Port < 0 || c.Proxy.Port > 65535:
		return &ConfigError{Field: "proxy.port", Reason: "must be between 1 and 65535, got " + strconv.Itoa(c.Proxy.Port)}
	}
	return nil
}

// expectType reports a *ConfigError unless the proxy type is one of want.
// It assumes Validate has passed.
func (c *Config) expectType(want ...ProxyType) error {
	for _, w := range want {
		if c.Proxy.Type == w {
			return nil
		}
	}
	return &ConfigError{Field: "proxy.type", Reason: "expected " + quoteTypes(want) + ", got '" + string(c.Proxy.Type) + "'"}
}

func quoteTypes(types []ProxyType) string {
	s := ""
	for i, t := range types {
		switch {
		case i == 0:
		case i == len(types)-1:
			s += " or "
		default:
			s += ", "
		}
		s += "'" + string(t) + "'"
	}
	return s
}
