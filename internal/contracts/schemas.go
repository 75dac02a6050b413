// Package contracts хранит JSON-схемы входящих команд и исходящих событий сервиса
package contracts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed schemas
var schemasFS embed.FS

// Schemas - скомпилированные схемы по ключу "<Type>/<version>", например "SweepCommand/1.0.0"
type Schemas struct {
	compiled map[string]*jsonschema.Schema
}

// Load компилирует все встроенные схемы
func Load() (*Schemas, error) {
	root, err := fs.Sub(schemasFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("schemas dir not embedded: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	var paths []string
	err = fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		file, err := root.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := compiler.AddResource(path, file); err != nil {
			return fmt.Errorf("failed to add schema resource %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking schema resources: %w", err)
	}

	s := &Schemas{compiled: make(map[string]*jsonschema.Schema, len(paths))}
	for _, path := range paths {
		key := keyFromPath(path)
		if key == "" {
			return nil, fmt.Errorf("schema path %s does not follow <kind>/<name>/v<N>.json", path)
		}
		schema, err := compiler.Compile(path)
		if err != nil {
			return nil, fmt.Errorf("could not compile schema %s: %w", path, err)
		}
		s.compiled[key] = schema
	}
	return s, nil
}

// keyFromPath преобразует "events/listings-created/v1.json" в "ListingsCreatedEvent/1.0.0",
// а "commands/sweep/v1.json" в "SweepCommand/1.0.0"
func keyFromPath(path string) string {
	parts := strings.Split(strings.TrimSuffix(path, ".json"), "/")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "v") {
		return ""
	}

	var suffix string
	switch parts[0] {
	case "events":
		suffix = "Event"
	case "commands":
		suffix = "Command"
	default:
		return ""
	}

	caser := cases.Title(language.English)
	var name strings.Builder
	for _, p := range strings.Split(parts[1], "-") {
		name.WriteString(caser.String(p))
	}
	name.WriteString(suffix)

	return fmt.Sprintf("%s/%s.0.0", name.String(), strings.TrimPrefix(parts[2], "v"))
}

// Has сообщает, есть ли схема для типа и версии
func (s *Schemas) Has(messageType, version string) bool {
	_, ok := s.compiled[messageType+"/"+version]
	return ok
}

// Validate проверяет тело сообщения по схеме его типа и версии
func (s *Schemas) Validate(messageType, version string, body []byte) error {
	schema, ok := s.compiled[messageType+"/"+version]
	if !ok {
		return fmt.Errorf("schema for message '%s' version '%s' not found", messageType, version)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("message body is not a valid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}
