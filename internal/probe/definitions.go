package probe

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"
	"gopkg.in/yaml.v3"
)

// Definition describes one probe in the probes file.
//
//	probes:
//	  - name: marketplace-web
//	    category: web
//	    type: http
//	    target: https://example.com/healthz
//	    warn_ms: 800
//	    critical_ms: 3000
//	    retries: 2
type Definition struct {
	Name       string `yaml:"name"`
	Category   string `yaml:"category"`
	Type       string `yaml:"type"` // http | dns | postgres | redis | s3
	Target     string `yaml:"target"`
	WarnMS     int    `yaml:"warn_ms"`
	CriticalMS int    `yaml:"critical_ms"`
	Retries    int    `yaml:"retries"`

	// s3 only
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type definitionsFile struct {
	Probes []Definition `yaml:"probes"`
}

// LoadDefinitions reads a probes file. A missing file yields no definitions.
func LoadDefinitions(path string) ([]Definition, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read probes file: %w", err)
	}
	return ParseDefinitions(content)
}

func ParseDefinitions(content []byte) ([]Definition, error) {
	var f definitionsFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("parse probes file: %w", err)
	}
	seen := make(map[string]bool, len(f.Probes))
	for i := range f.Probes {
		d := &f.Probes[i]
		d.Type = strings.ToLower(strings.TrimSpace(d.Type))
		if d.Name == "" {
			return nil, fmt.Errorf("probe %d is missing name", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("probe %s is defined twice", d.Name)
		}
		seen[d.Name] = true
		if d.Category == "" {
			d.Category = d.Type
		}
	}
	return f.Probes, nil
}

// BuildDeps carries shared resources definitions may refer to.
type BuildDeps struct {
	// Database answers "postgres" probes that have no target of their own.
	Database       Pinger
	HTTPTimeout    time.Duration
	// DefaultRetries applies to http probes that set no retries of their own.
	DefaultRetries int
	RetryDelay     time.Duration
	Clock          clock.Clock
}

// Build turns a definition into a Checker.
func Build(d Definition, deps BuildDeps) (Checker, error) {
	th := Thresholds{
		Warn:     time.Duration(d.WarnMS) * time.Millisecond,
		Critical: time.Duration(d.CriticalMS) * time.Millisecond,
	}

	var (
		c   Checker
		err error
	)
	switch d.Type {
	case "http":
		if d.Target == "" {
			return nil, fmt.Errorf("probe %s: http needs a target", d.Name)
		}
		timeout := deps.HTTPTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c = NewHTTPChecker(d.Target, timeout, th)
	case "dns":
		if d.Target == "" {
			return nil, fmt.Errorf("probe %s: dns needs a target", d.Name)
		}
		c = NewDNSChecker(d.Target)
	case "postgres":
		if deps.Database == nil {
			return nil, fmt.Errorf("probe %s: no database configured", d.Name)
		}
		c = &PingChecker{Target: deps.Database, Thresholds: th}
	case "redis":
		if d.Target == "" {
			return nil, fmt.Errorf("probe %s: redis needs a target", d.Name)
		}
		c, err = NewRedisChecker(d.Target, th)
	case "s3":
		if d.Target == "" || d.Bucket == "" {
			return nil, fmt.Errorf("probe %s: s3 needs a target and a bucket", d.Name)
		}
		c, err = NewObjectStoreChecker(ObjectStoreConfig{
			Endpoint:  d.Target,
			AccessKey: d.AccessKey,
			SecretKey: d.SecretKey,
			Region:    d.Region,
			UseSSL:    d.UseSSL,
			Bucket:    d.Bucket,
		}, th)
	default:
		return nil, fmt.Errorf("probe %s: unknown type %q", d.Name, d.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", d.Name, err)
	}

	retries := d.Retries
	if retries == 0 && d.Type == "http" {
		retries = deps.DefaultRetries
	}
	if retries > 0 {
		c = &RetryChecker{Inner: c, Attempts: retries + 1, Backoff: deps.RetryDelay, Clock: deps.Clock}
	}
	return c, nil
}

// RegisterAll builds and registers every definition, stopping at the first error.
func RegisterAll(r *Registry, defs []Definition, deps BuildDeps) error {
	for _, d := range defs {
		c, err := Build(d, deps)
		if err != nil {
			return err
		}
		if err := r.Register(d.Name, d.Category, c); err != nil {
			return err
		}
	}
	return nil
}
