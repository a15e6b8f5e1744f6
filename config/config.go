// Package config provides namespaced key=value lookups over viper.
//
// Input files use the AMReX convention (`incflo.godunov_type = ppm`, list values
// separated by whitespace) and are read with a properties parser; YAML and TOML files
// are accepted as well, selected by extension. Environment variables prefixed
// with AMRKERNEL_ override file values (`AMRKERNEL_INCFLO_GODUNOV_TYPE=weno`).
package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix for overrides.
const EnvPrefix = "AMRKERNEL"

// Config holds all configuration key/value pairs of a run.
type Config struct {
	v *viper.Viper
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// New returns an empty configuration.
func New() *Config {
	return &Config{v: newViper()}
}

// Load reads an inputs file. Files ending in .yaml/.yml/.toml/.json use that
// format, everything else is parsed as AMReX-style key = value lines.
func Load(path string) (*Config, error) {
	format := formatFor(path)
	if format == inputsFormat {
		p, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return nil, fmt.Errorf("read inputs %s: %w", path, err)
		}
		return fromProperties(p)
	}
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType(format)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read inputs %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// FromReader parses configuration in the given format: "inputs" for
// AMReX-style lines, or any format viper decodes.
func FromReader(r io.Reader, format string) (*Config, error) {
	if format == inputsFormat {
		buf, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read inputs: %w", err)
		}
		p, err := properties.Load(buf, properties.UTF8)
		if err != nil {
			return nil, fmt.Errorf("parse inputs: %w", err)
		}
		return fromProperties(p)
	}
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("parse %s config: %w", format, err)
	}
	return &Config{v: v}, nil
}

// FromString parses AMReX-style key = value text.
func FromString(text string) (*Config, error) {
	return FromReader(strings.NewReader(text), inputsFormat)
}

const inputsFormat = "inputs"

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return inputsFormat
	}
}

// fromProperties nests dotted keys (amr.n_cell) into the map viper merges as
// its config layer, so environment overrides keep precedence. A trailing
// "# comment" is dropped from every value.
func fromProperties(p *properties.Properties) (*Config, error) {
	root := map[string]interface{}{}
	for _, key := range p.Keys() {
		if key == "" {
			continue
		}
		val, _ := p.Get(key)
		if i := strings.IndexByte(val, '#'); i >= 0 {
			val = val[:i]
		}
		val = unquote(strings.TrimSpace(val))
		parts := strings.Split(strings.ToLower(key), ".")
		m := root
		for _, part := range parts[:len(parts)-1] {
			next, ok := m[part]
			if !ok {
				child := map[string]interface{}{}
				m[part] = child
				m = child
				continue
			}
			child, ok := next.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("inputs key %s: %s already holds a value", key, part)
			}
			m = child
		}
		leaf := parts[len(parts)-1]
		if _, ok := m[leaf].(map[string]interface{}); ok {
			return nil, fmt.Errorf("inputs key %s: already used as a prefix", key)
		}
		m[leaf] = val
	}
	v := newViper()
	if err := v.MergeConfigMap(root); err != nil {
		return nil, fmt.Errorf("merge inputs: %w", err)
	}
	return &Config{v: v}, nil
}

// unquote strips the quotes of a single quoted token ("ABL").
func unquote(val string) string {
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' && !strings.Contains(val[1:len(val)-1], `"`) {
		return val[1 : len(val)-1]
	}
	return val
}

// Set overrides a fully-qualified key.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Sub returns the namespace rooted at prefix.
func (c *Config) Sub(prefix string) Namespace {
	return Namespace{cfg: c, prefix: prefix}
}

// Keys returns every fully-qualified key known to the configuration.
func (c *Config) Keys() []string {
	return c.v.AllKeys()
}

// Namespace resolves keys relative to a prefix, e.g. Sub("incflo").String("godunov_type", "").
type Namespace struct {
	cfg    *Config
	prefix string
}

// Prefix returns the namespace prefix.
func (ns Namespace) Prefix() string { return ns.prefix }

// Sub returns a nested namespace.
func (ns Namespace) Sub(name string) Namespace {
	return Namespace{cfg: ns.cfg, prefix: ns.key(name)}
}

func (ns Namespace) key(name string) string {
	if ns.prefix == "" {
		return name
	}
	return ns.prefix + "." + name
}

// Contains reports whether the key is present.
func (ns Namespace) Contains(name string) bool {
	return ns.cfg.v.IsSet(ns.key(name))
}

// String returns the value of name or def if absent.
func (ns Namespace) String(name, def string) string {
	if !ns.Contains(name) {
		return def
	}
	return strings.TrimSpace(ns.cfg.v.GetString(ns.key(name)))
}

// Strings returns a whitespace- or list-separated value.
func (ns Namespace) Strings(name string) []string {
	if !ns.Contains(name) {
		return nil
	}
	return ns.cfg.v.GetStringSlice(ns.key(name))
}

// Float returns a real value, def if absent.
func (ns Namespace) Float(name string, def float64) (float64, error) {
	vals, err := ns.Floats(name)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

// Floats returns a list of reals; nil if absent.
func (ns Namespace) Floats(name string) ([]float64, error) {
	raw := ns.Strings(name)
	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a real number", ns.key(name), s)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Int returns an integer value, def if absent.
func (ns Namespace) Int(name string, def int) (int, error) {
	vals, err := ns.Ints(name)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

// Ints returns a list of integers; nil if absent.
func (ns Namespace) Ints(name string) ([]int, error) {
	raw := ns.Strings(name)
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", ns.key(name), s)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Bool returns a boolean value, def if absent.
func (ns Namespace) Bool(name string, def bool) (bool, error) {
	vals, err := ns.Bools(name)
	if err != nil {
		return false, err
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

// Bools returns a list of booleans; nil if absent.
func (ns Namespace) Bools(name string) ([]bool, error) {
	raw := ns.Strings(name)
	out := make([]bool, 0, len(raw))
	for _, s := range raw {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a boolean", ns.key(name), s)
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
