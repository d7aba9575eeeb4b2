// Package yamlstore loads profile documents from a directory of YAML files.
//
// Each file holds one profile. The profile identifier is the file name
// without extension (e.g. "ClassRunnerData.Alice.yaml") unless the file sets
// `profile:` explicitly. Packages and includes are lists of string maps; a
// null list item is a deleted object and ends the scan at that index.
//
//	packages:
//	  - artifactId: lib
//	    version: "1.0"
//	    groupId: org.example
//	    packaging: jar
//	includes:
//	  - name: Shared
package yamlstore

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/values"
	"github.com/reglet-dev/classrunner/internal/infrastructure/persistence/memory"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

// profileFile is the on-disk shape of a profile document.
type profileFile struct {
	Profile  string          `yaml:"profile"`
	Packages []memory.Object `yaml:"packages"`
	Includes []memory.Object `yaml:"includes"`
}

// Store is a ProfileRepository backed by YAML files. Documents are read once
// by Open; Reload picks up changes.
type Store struct {
	*memory.ProfileRepository
	dir    string
	schema *jsonschema.Schema
}

// Open loads every *.yaml and *.yml file in dir.
func Open(dir string) (*Store, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	s := &Store{
		ProfileRepository: memory.NewProfileRepository(),
		dir:               dir,
		schema:            schema,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("profile.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add profile schema: %w", err)
	}
	schema, err := compiler.Compile("profile.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile profile schema: %w", err)
	}
	return schema, nil
}

// Dir returns the directory the store reads from.
func (s *Store) Dir() string {
	return s.dir
}

// Reload re-reads the directory. On error the previously loaded documents
// stay in place.
func (s *Store) Reload() error {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return fmt.Errorf("failed to open profile directory: %w", err)
	}
	defer func() {
		_ = root.Close() // Best-effort cleanup
	}()

	entries, err := fs.ReadDir(root.FS(), ".")
	if err != nil {
		return fmt.Errorf("failed to list profile directory: %w", err)
	}

	docs := make(map[values.ProfileRef]*memory.Document)
	origin := make(map[values.ProfileRef]string)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		f, err := root.Open(entry.Name())
		if err != nil {
			return fmt.Errorf("failed to open profile %s: %w", entry.Name(), err)
		}
		ref, doc, err := s.decode(f, strings.TrimSuffix(entry.Name(), ext))
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("profile %s: %w", entry.Name(), err)
		}

		if prev, dup := origin[ref]; dup {
			return fmt.Errorf("profile %s defined by both %s and %s", ref, prev, entry.Name())
		}
		origin[ref] = entry.Name()
		docs[ref] = doc
	}

	s.Replace(docs)
	return nil
}

// decode validates and converts one profile file.
func (s *Store) decode(r io.Reader, fallbackID string) (values.ProfileRef, *memory.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return values.ProfileRef{}, nil, fmt.Errorf("failed to read: %w", err)
	}

	var pf profileFile
	if len(bytes.TrimSpace(data)) > 0 {
		if err := s.validate(data); err != nil {
			return values.ProfileRef{}, nil, err
		}
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return values.ProfileRef{}, nil, fmt.Errorf("failed to decode profile YAML: %w", err)
		}
	}

	id := pf.Profile
	if id == "" {
		id = fallbackID
	}

	doc := memory.NewDocument()
	for _, obj := range pf.Packages {
		doc.Append(entities.PackageClass, obj)
	}
	for _, obj := range pf.Includes {
		doc.Append(entities.IncludeClass, obj)
	}
	return values.ParseProfileRef(id), doc, nil
}

func (s *Store) validate(data []byte) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse profile YAML: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse profile YAML: %w", err)
	}

	if err := s.schema.Validate(doc); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return formatValidationError(validationErr)
		}
		return fmt.Errorf("profile validation failed: %w", err)
	}
	return nil
}

// formatValidationError flattens a schema error into one readable message.
func formatValidationError(err *jsonschema.ValidationError) error {
	var messages []string
	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if e.Message != "" && len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(err)

	if len(messages) == 0 {
		return fmt.Errorf("profile validation failed")
	}
	sort.Strings(messages)
	return fmt.Errorf("profile validation failed:\n    - %s", strings.Join(messages, "\n    - "))
}
