// Package config loads the optional YAML configuration file.
//
// Every setting mirrors a command-line flag; a flag given explicitly on the
// command line wins over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the decoded configuration file.
//
//	proxy: socks5://proxy.example:1080
//	dial_timeout: 5s
//	negotiation_timeout: 5s
//	timeout: 30s
//	tcp_keepalive: "45:45:3"
//	log:
//	  level: info
//	  format: json
//	ssh:
//	  user: deploy
//	  key: ~/.ssh/id_ed25519
//	  known_hosts: ~/.ssh/known_hosts
type File struct {
	Proxy              string        `yaml:"proxy"`
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	NegotiationTimeout time.Duration `yaml:"negotiation_timeout"`
	Timeout            time.Duration `yaml:"timeout"`
	TCPKeepAlive       string        `yaml:"tcp_keepalive"`
	Log                Log           `yaml:"log"`
	SSH                SSH           `yaml:"ssh"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SSH struct {
	User       string `yaml:"user"`
	Key        string `yaml:"key"`
	KnownHosts string `yaml:"known_hosts"`
}

// Load reads and decodes the file at path. Unknown keys are an error so
// typos don't go unnoticed. An empty file yields a zero File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from the command line.
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a configuration document.
func Parse(data []byte) (*File, error) {
	var f File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if f.DialTimeout < 0 || f.NegotiationTimeout < 0 || f.Timeout < 0 {
		return nil, errors.New("timeouts must not be negative")
	}
	return &f, nil
}
