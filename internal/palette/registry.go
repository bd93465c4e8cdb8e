package palette

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bandscope/internal/colors"
	"bandscope/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Entry 对应 colors.yaml 中的一行颜色定义。
type Entry struct {
	Name       string   `yaml:"name" json:"name"`
	R          int      `yaml:"r" json:"r"`
	G          int      `yaml:"g" json:"g"`
	B          int      `yaml:"b" json:"b"`
	Value      *int     `yaml:"value,omitempty" json:"value,omitempty"`
	Multiplier *float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	Tolerance  *float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Body       bool     `yaml:"body,omitempty" json:"body,omitempty"`
}

// FileConfig 映射 colors 文件。
type FileConfig struct {
	Colors []Entry `yaml:"colors" json:"colors"`
}

// Snapshot 公开的颜色表快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Source   string
	Table    colors.Table
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// Registry 管理可热更新的颜色表。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

const entrySchema = `{
  "type": "object",
  "required": ["colors"],
  "properties": {
    "colors": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "r", "g", "b"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "r": {"type": "integer", "minimum": 0, "maximum": 255},
          "g": {"type": "integer", "minimum": 0, "maximum": 255},
          "b": {"type": "integer", "minimum": 0, "maximum": 255},
          "value": {"type": "integer", "minimum": 0, "maximum": 9},
          "multiplier": {"type": "number", "exclusiveMinimum": 0},
          "tolerance": {"type": "number", "exclusiveMinimum": 0},
          "body": {"type": "boolean"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

// NewRegistry 读取颜色文件；path 为空时使用内置颜色表。watch 开启后监听文件变更。
func NewRegistry(path string, watch bool) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if r.path == "" {
		r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Source: "builtin", Table: colors.DefaultTable()}
		logger.Infof("Palette registry using built-in table (%d colors)", r.snapshot.Table.Len())
		return r, nil
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if !watch {
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read palette config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("palette reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.v = v
	return r, nil
}

// Snapshot 返回当前快照。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Table returns the current color table; callers fetch it per request.
func (r *Registry) Table() colors.Table {
	return r.Snapshot().Table
}

// OnChange registers fn for future reloads.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Reload re-reads the file and notifies listeners. A built-in registry is a no-op.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}
	if err := r.reload(); err != nil {
		return err
	}
	r.notifyListeners()
	return nil
}

func (r *Registry) reload() error {
	cfg, err := readColorFile(r.path)
	if err != nil {
		return err
	}
	table, err := colors.NewTable(cfg.definitions())
	if err != nil {
		return fmt.Errorf("palette %s: %w", filepath.Base(r.path), err)
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Source:   r.path,
		Table:    table,
	}
	r.mu.Unlock()
	logger.Infof("Palette registry loaded %d colors from %s", table.Len(), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("palette listener")
			cb(snap)
		}(fn)
	}
}

func (c FileConfig) definitions() []colors.Definition {
	defs := make([]colors.Definition, 0, len(c.Colors))
	for _, e := range c.Colors {
		defs = append(defs, colors.Definition{
			Name:       strings.TrimSpace(e.Name),
			RGB:        colors.RGB{R: uint8(e.R), G: uint8(e.G), B: uint8(e.B)},
			Value:      e.Value,
			Multiplier: e.Multiplier,
			Tolerance:  e.Tolerance,
			Body:       e.Body,
		})
	}
	return defs
}

// FromTable renders a table back into the file layout.
func FromTable(t colors.Table) FileConfig {
	entries := t.Entries()
	out := FileConfig{Colors: make([]Entry, 0, len(entries))}
	for _, d := range entries {
		out.Colors = append(out.Colors, Entry{
			Name:       d.Name,
			R:          int(d.RGB.R),
			G:          int(d.RGB.G),
			B:          int(d.RGB.B),
			Value:      d.Value,
			Multiplier: d.Multiplier,
			Tolerance:  d.Tolerance,
			Body:       d.Body,
		})
	}
	return out
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("colors.json", strings.NewReader(entrySchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("colors.json")
	})
	return schemaCompiled, schemaErr
}

func readColorFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read palette config failed: %w", err)
	}
	return parseColors(raw)
}

func parseColors(raw []byte) (FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse palette config failed: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// validateSchema 按 JSON 形式校验，yaml 的整数需先转为 JSON 数字。
func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse palette config failed: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("palette config is not JSON compatible: %w", err)
	}
	var generic any
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return err
	}
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compile palette schema: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("palette config invalid: %w", err)
	}
	return nil
}
