package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrNoCredentials is returned when a service has no configured keys.
var ErrNoCredentials = errors.New("no credentials configured")

// Credentials is the ordered set of API keys for one external service.
// Rotation walks the keys in order and wraps back to the first.
type Credentials struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// NewCredentials returns a Credentials positioned at the first key.
func NewCredentials(keys ...string) (*Credentials, error) {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoCredentials
	}
	return &Credentials{keys: clean}, nil
}

// Current returns the active key.
func (c *Credentials) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[c.idx]
}

// Index returns the position of the active key.
func (c *Credentials) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx
}

// Peek returns the key Rotate would move to, without moving.
func (c *Credentials) Peek() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[(c.idx+1)%len(c.keys)]
}

// Rotate advances to the next key and returns it.
func (c *Credentials) Rotate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idx = (c.idx + 1) % len(c.keys)
	return c.keys[c.idx]
}

// Len returns the number of keys.
func (c *Credentials) Len() int {
	return len(c.keys)
}

// Secrets maps service names ("google", "zoopla") to their credentials.
type Secrets struct {
	services map[string]*Credentials
}

// LoadSecrets reads service keys from an optional YAML file:
//
//	google:
//	  api_keys: [key-a, key-b]
//	zoopla:
//	  api_key: key-z
//
// <SERVICE>_API_KEYS (comma separated) and <SERVICE>_API_KEY environment
// variables replace the file's keys for that service.
func LoadSecrets(path string, services ...string) (*Secrets, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load secrets file %s: %w", path, err)
		}
	}

	names := make(map[string]struct{})
	for name := range k.Raw() {
		names[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range services {
		names[strings.ToLower(name)] = struct{}{}
	}

	s := &Secrets{services: make(map[string]*Credentials)}
	for name := range names {
		keys := keysFromEnv(name)
		if len(keys) == 0 {
			keys = append(keys, k.Strings(name+".api_keys")...)
			if single := k.String(name + ".api_key"); single != "" {
				keys = append(keys, single)
			}
		}
		creds, err := NewCredentials(keys...)
		if err != nil {
			continue
		}
		s.services[name] = creds
	}
	return s, nil
}

func keysFromEnv(service string) []string {
	prefix := strings.ToUpper(service)
	if v := os.Getenv(prefix + "_API_KEYS"); v != "" {
		return strings.Split(v, ",")
	}
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		return []string{v}
	}
	return nil
}

// Service returns the credentials for name.
func (s *Secrets) Service(name string) (*Credentials, error) {
	creds, ok := s.services[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("config: service %q: %w", name, ErrNoCredentials)
	}
	return creds, nil
}

// Services lists configured service names in sorted order.
func (s *Secrets) Services() []string {
	out := make([]string, 0, len(s.services))
	for name := range s.services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
