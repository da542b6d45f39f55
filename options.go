package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/die-net/proxytunnel/internal/config"
	"github.com/die-net/proxytunnel/internal/logging"
	"github.com/die-net/proxytunnel/internal/ssh"
	"github.com/die-net/proxytunnel/internal/tunnel"
)

type options struct {
	configFile         string
	proxy              string
	dialTimeout        time.Duration
	negotiationTimeout time.Duration
	timeout            time.Duration
	tcpKeepAlive       string
	logLevel           string
	logFormat          string

	sshUser       string
	sshKey        string
	sshKnownHosts string

	// Set by complete.
	proxyCfg  *tunnel.Proxy
	keepAlive net.KeepAliveConfig
	log       *logrus.Logger
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configFile, "config", "c", "", "YAML config file; flags given explicitly override it")
	fs.StringVarP(&o.proxy, "proxy", "x", "", "Proxy URL: socks4://host[:port] | socks5://host[:port] | http://host[:port] (default $ALL_PROXY)")
	fs.DurationVar(&o.dialTimeout, "dial-timeout", 10*time.Second, "Timeout for the TCP connect to the proxy")
	fs.DurationVar(&o.negotiationTimeout, "negotiation-timeout", 10*time.Second, "Timeout for the proxy handshake")
	fs.DurationVar(&o.timeout, "timeout", 0, "Overall limit on establishing the tunnel, 0 for none")
	fs.StringVar(&o.tcpKeepAlive, "tcp-keepalive", "45:45:3", "TCP keepalive to the proxy: on|off|keepidle:keepintvl:keepcnt")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log format on stderr: text|json")
}

// complete merges the config file into every flag not set explicitly, then
// resolves the derived settings.
func (o *options) complete(fs *pflag.FlagSet) error {
	if o.configFile != "" {
		f, err := config.Load(o.configFile)
		if err != nil {
			return err
		}
		o.applyFile(fs, f)
	}

	log, err := logging.New(os.Stderr, o.logLevel, o.logFormat)
	if err != nil {
		return fmt.Errorf("invalid logging flags: %w", err)
	}
	o.log = log

	o.keepAlive, err = parseTCPKeepAlive(o.tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	if o.proxy != "" {
		o.proxyCfg, err = tunnel.ParseProxyURL(o.proxy)
		if err != nil {
			return fmt.Errorf("invalid --proxy: %w", err)
		}
		return nil
	}
	o.proxyCfg, err = tunnel.ProxyFromEnvironment()
	if err != nil {
		return err
	}
	if o.proxyCfg == nil {
		return errors.New("no proxy configured (set --proxy, proxy in the config file, or ALL_PROXY)")
	}
	return nil
}

func (o *options) applyFile(fs *pflag.FlagSet, f *config.File) {
	setString := func(name string, dst *string, v string) {
		if v != "" && !fs.Changed(name) {
			*dst = v
		}
	}
	setDuration := func(name string, dst *time.Duration, v time.Duration) {
		if v != 0 && !fs.Changed(name) {
			*dst = v
		}
	}

	setString("proxy", &o.proxy, f.Proxy)
	setDuration("dial-timeout", &o.dialTimeout, f.DialTimeout)
	setDuration("negotiation-timeout", &o.negotiationTimeout, f.NegotiationTimeout)
	setDuration("timeout", &o.timeout, f.Timeout)
	setString("tcp-keepalive", &o.tcpKeepAlive, f.TCPKeepAlive)
	setString("log-level", &o.logLevel, f.Log.Level)
	setString("log-format", &o.logFormat, f.Log.Format)
	setString("ssh-user", &o.sshUser, f.SSH.User)
	setString("ssh-key", &o.sshKey, f.SSH.Key)
	setString("ssh-known-hosts", &o.sshKnownHosts, f.SSH.KnownHosts)
}

func (o *options) builder() *tunnel.Builder {
	ka := o.keepAlive
	return tunnel.NewBuilder(tunnel.Options{
		DialTimeout:        o.dialTimeout,
		NegotiationTimeout: o.negotiationTimeout,
		KeepAlive:          &ka,
		Logger:             o.log,
	})
}

// tunnelConfig builds the tunnel input for HOST and PORT arguments.
func (o *options) tunnelConfig(host, port string) (tunnel.Config, error) {
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return tunnel.Config{}, fmt.Errorf("invalid port %q", port)
	}
	proxy := *o.proxyCfg
	return tunnel.Config{Host: host, Port: p, Proxy: &proxy}, nil
}

func defaultSSHKey() string {
	if os.Getenv("SSH_AUTH_SOCK") != "" {
		return ssh.AgentKey
	}
	return ""
}

func defaultSSHUser() string {
	for _, name := range []string{"USER", "LOGNAME"} {
		if u := os.Getenv(name); u != "" {
			return u
		}
	}
	return ""
}
