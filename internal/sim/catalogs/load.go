package catalogs

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://whisperwire.ai/schemas/"

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

func compiledSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		entries, err := fs.ReadDir(schemaFS, "schemas")
		if err != nil {
			schemaErr = err
			return
		}
		var names []string
		for _, e := range entries {
			b, err := schemaFS.ReadFile("schemas/" + e.Name())
			if err != nil {
				schemaErr = err
				return
			}
			if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", e.Name(), err)
				return
			}
			names = append(names, e.Name())
		}
		out := make(map[string]*jsonschema.Schema, len(names))
		for _, n := range names {
			s, err := c.Compile(schemaBase + n)
			if err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", n, err)
				return
			}
			out[n] = s
		}
		schemas = out
	})
	return schemas, schemaErr
}

// ValidateDocument checks raw JSON against one of the embedded schemas
// (e.g. "actors.schema.json").
func ValidateDocument(schemaName string, raw []byte) error {
	all, err := compiledSchemas()
	if err != nil {
		return err
	}
	s, ok := all[schemaName]
	if !ok {
		return fmt.Errorf("no schema %q", schemaName)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// Load reads, schema-validates and compiles the definitions under configDir.
func Load(configDir string) (*Catalogs, error) {
	defs, err := LoadDefinitions(configDir)
	if err != nil {
		return nil, err
	}
	cats, errs := Compile(defs)
	if len(errs) > 0 {
		return nil, errs
	}
	return cats, nil
}

// LoadDefinitions reads the definition files without compiling them:
//
//	actors.json, abilities.json       required
//	combos.json, links.json           optional
//	events/*.json                     one event per file, optional
func LoadDefinitions(configDir string) (Definitions, error) {
	var defs Definitions
	var errs LoadErrors

	if err := loadArray(filepath.Join(configDir, "actors.json"), "actors.schema.json", false, &defs.Actors); err != nil {
		errs = append(errs, err)
	}
	if err := loadArray(filepath.Join(configDir, "abilities.json"), "abilities.schema.json", false, &defs.Abilities); err != nil {
		errs = append(errs, err)
	}
	if err := loadArray(filepath.Join(configDir, "combos.json"), "combos.schema.json", true, &defs.Combos); err != nil {
		errs = append(errs, err)
	}
	if err := loadArray(filepath.Join(configDir, "links.json"), "links.schema.json", true, &defs.Links); err != nil {
		errs = append(errs, err)
	}
	events, evErrs := loadEvents(filepath.Join(configDir, "events"))
	defs.Events = events
	errs = append(errs, evErrs...)

	return defs, errs.Err()
}

func loadArray[T any](path, schemaName string, optional bool, out *[]T) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	base := filepath.Base(path)
	if err := ValidateDocument(schemaName, raw); err != nil {
		return fmt.Errorf("%s: %w", base, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", base, err)
	}
	return nil
}

func loadEvents(dir string) ([]EventDef, LoadErrors) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, LoadErrors{err}
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	var out []EventDef
	var errs LoadErrors
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := ValidateDocument("event.schema.json", raw); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", filepath.Base(p), err))
			continue
		}
		var ev EventDef
		if err := json.Unmarshal(raw, &ev); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", filepath.Base(p), err))
			continue
		}
		out = append(out, ev)
	}
	return out, errs
}
