package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://whisperwire.ai/protocol/"

// inbound maps client message types to their schema file.
var inbound = map[string]string{
	TypeHello: "hello.schema.json",
	TypeAct:   "act.schema.json",
}

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

func compiled() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		out := map[string]*jsonschema.Schema{}
		for typ, name := range inbound {
			b, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemaErr = err
				return
			}
			if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
			s, err := c.Compile(schemaBase + name)
			if err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
			out[typ] = s
		}
		schemas = out
	})
	return schemas, schemaErr
}

// ValidateInbound checks a raw client message against the schema for its type.
func ValidateInbound(typ string, raw []byte) error {
	all, err := compiled()
	if err != nil {
		return err
	}
	s, ok := all[typ]
	if !ok {
		return fmt.Errorf("unexpected message type %q", typ)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
