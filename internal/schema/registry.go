// Package schema validates outbound order payloads against per-broker JSON
// schemas before they reach the wire. Schemas live in a yaml file and reload
// on change so a tightened schema does not need a restart.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"traderail/internal/logger"
)

// Definition is one broker's payload schema as declared in the yaml file.
type Definition struct {
	Broker      string         `yaml:"broker"`
	Description string         `yaml:"description"`
	Version     int            `yaml:"version"`
	Schema      map[string]any `yaml:"schema"`

	compiled *jsonschema.Schema
}

type fileConfig struct {
	Payloads map[string]Definition `yaml:"payloads"`
}

// Snapshot is an immutable view of the loaded definitions.
type Snapshot struct {
	Version     int64
	LoadedAt    time.Time
	Definitions map[string]Definition
}

// Registry loads the schema file and watches it for updates.
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewRegistry(path string, watch bool) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("schema registry requires a path")
	}
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read schema config failed: %w", err)
		}
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := r.reload(); err != nil {
				logger.Errorf("schema reload failed: %v", err)
			}
		})
		v.WatchConfig()
		r.v = v
	}
	return r, nil
}

// Snapshot returns the current definition set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Definition returns the schema declared for one broker.
func (r *Registry) Definition(broker string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.snapshot.Definitions[strings.ToLower(strings.TrimSpace(broker))]
	return def, ok
}

// Validate checks an outbound payload body against the broker's schema. A
// broker with no declared schema passes.
func (r *Registry) Validate(broker string, body json.RawMessage) error {
	def, ok := r.Definition(broker)
	if !ok || def.compiled == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("payload is not valid json: %w", err)
	}
	if err := def.compiled.Validate(doc); err != nil {
		return fmt.Errorf("payload rejected by %s schema: %w", broker, err)
	}
	return nil
}

func (r *Registry) reload() error {
	cfg, err := readSchemaFile(r.path)
	if err != nil {
		return err
	}
	defs := make(map[string]Definition)
	for name, def := range cfg.Payloads {
		norm, err := normalizeDefinition(name, def)
		if err != nil {
			return err
		}
		defs[norm.Broker] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:     r.snapshot.Version + 1,
		LoadedAt:    time.Now(),
		Definitions: defs,
	}
	r.mu.Unlock()
	logger.Infof("Schema registry loaded %d payload schemas from %s", len(defs), filepath.Base(r.path))
	return nil
}

func normalizeDefinition(name string, def Definition) (Definition, error) {
	def.Broker = strings.ToLower(strings.TrimSpace(def.Broker))
	if def.Broker == "" {
		def.Broker = strings.ToLower(strings.TrimSpace(name))
	}
	if def.Version <= 0 {
		def.Version = 1
	}
	if len(def.Schema) > 0 {
		compiled, err := compileSchema(def.Schema)
		if err != nil {
			return Definition{}, fmt.Errorf("schema compile failed for %s: %w", def.Broker, err)
		}
		def.compiled = compiled
	}
	return def, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:     src.Version,
		LoadedAt:    src.LoadedAt,
		Definitions: make(map[string]Definition, len(src.Definitions)),
	}
	for broker, def := range src.Definitions {
		dst.Definitions[broker] = def
	}
	return dst
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readSchemaFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read schema config failed: %w", err)
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse schema config failed: %w", err)
	}
	return cfg, nil
}
