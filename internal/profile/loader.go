package profile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed weapon.schema.json
var weaponSchema []byte

const schemaURL = "weapon.schema.json"

// Candidates lists the document names read from the plugin directory, in
// order of preference.
var Candidates = []string{"weapons.yaml", "weapons.yml", "weapons.json", "weapons.toml"}

// Loader reads the weapon document from a plugin directory.
type Loader struct {
	dir    string
	log    zerolog.Logger
	schema *jsonschema.Schema
}

type entry struct {
	Name            string   `json:"name"`
	DefaultPull     *float64 `json:"defaultPull"`
	InitialDuration *float64 `json:"initialDuration"`
	SteadyPull      *float64 `json:"steadyPull"`
	SleepTime       *float64 `json:"sleepTime"`
	Acceleration    *float64 `json:"acceleration"`
}

// NewLoader compiles the embedded entry schema.
func NewLoader(dir string, log zerolog.Logger) (*Loader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(weaponSchema)); err != nil {
		return nil, fmt.Errorf("add weapon schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile weapon schema: %w", err)
	}
	return &Loader{dir: dir, log: log, schema: schema}, nil
}

func (l *Loader) Dir() string { return l.dir }

// Load reads the first decodable document. Invalid entries are skipped. When
// no document can be read it returns an empty Set and ErrNoProfiles.
func (l *Loader) Load() (*Set, error) {
	for _, name := range Candidates {
		path := filepath.Join(l.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				l.log.Warn().Err(err).Str("path", path).Msg("read profile document")
			}
			continue
		}

		raw, err := decodeDocument(name, data)
		if err != nil {
			l.log.Warn().Err(err).Str("path", path).Msg("decode profile document, trying next format")
			continue
		}

		set := NewSet(l.build(path, raw)...)
		l.log.Info().Str("path", path).Int("profiles", set.Len()).Msg("loaded weapon profiles")
		return set, nil
	}
	return NewSet(), fmt.Errorf("%s: %w", l.dir, ErrNoProfiles)
}

func (l *Loader) build(path string, raw []any) []*Weapon {
	seen := make(map[string]bool, len(raw))
	weapons := make([]*Weapon, 0, len(raw))
	for i, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			l.log.Warn().Str("path", path).Int("index", i).Msgf("skipping weapon entry of type %T", item)
			continue
		}
		w, err := l.parseEntry(fields)
		if err != nil {
			l.log.Warn().Err(err).Str("path", path).Int("index", i).Msg("skipping weapon entry")
			continue
		}
		if seen[w.Name] {
			l.log.Warn().Str("path", path).Str("name", w.Name).Msg("skipping duplicate weapon name")
			continue
		}
		seen[w.Name] = true
		weapons = append(weapons, w)
	}
	return weapons
}

func (l *Loader) parseEntry(item map[string]any) (*Weapon, error) {
	// The schema validator expects values shaped like encoding/json output.
	buf, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("normalize entry: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("normalize entry: %w", err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate entry: %w", err)
	}

	var e entry
	if err := json.Unmarshal(buf, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}

	w := Default()
	w.Name = strings.TrimSpace(e.Name)
	if w.Name == "" {
		return nil, errors.New("blank weapon name")
	}
	if e.DefaultPull != nil {
		w.DefaultPull = *e.DefaultPull
	}
	if e.InitialDuration != nil {
		w.InitialDuration = *e.InitialDuration
	}
	if e.SteadyPull != nil {
		w.SteadyPull = *e.SteadyPull
	}
	if e.SleepTime != nil {
		w.SleepTime = int(*e.SleepTime)
	}
	if e.Acceleration != nil {
		w.Acceleration = *e.Acceleration
	}
	return w, nil
}

func decodeDocument(name string, data []byte) ([]any, error) {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		var doc struct {
			Weapons []any `yaml:"weapons"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
		return doc.Weapons, nil
	case ".toml":
		var doc struct {
			Weapons []any `toml:"weapons"`
		}
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
		return doc.Weapons, nil
	default:
		var doc struct {
			Weapons []any `json:"weapons"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		return doc.Weapons, nil
	}
}
