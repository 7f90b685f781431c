// Package resourceconfig loads resource definition files: which resource
// types the store accepts, the JSON paths making up each type's identity,
// and how references to other resources appear in a document body.
//
// Definitions are YAML, validated against an embedded CUE schema before
// decoding, so a malformed file fails with a position-bearing message
// instead of a half-populated configuration.
package resourceconfig

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is a loaded and validated set of resource definitions.
type Config struct {
	ProjectName     string
	ResourceVersion string

	resources map[string]Resource
}

// Resource describes one resource type.
type Resource struct {
	Name                 string         `yaml:"name"`
	IdentityPaths        []string       `yaml:"identityPaths"`
	AllowIdentityUpdates bool           `yaml:"allowIdentityUpdates"`
	IsDescriptor         bool           `yaml:"isDescriptor"`
	Superclass           *SuperclassDef `yaml:"superclass"`
	DocumentReferences   []ReferenceDef `yaml:"documentReferences"`
	DescriptorReferences []ReferenceDef `yaml:"descriptorReferences"`
}

// SuperclassDef declares the abstract identity space a resource also
// participates in, and where in the body each superclass identity value
// comes from.
type SuperclassDef struct {
	ResourceName string            `yaml:"resourceName"`
	IdentityMap  map[string]string `yaml:"identityMap"`
}

// ReferenceDef declares one outgoing reference: the referenced resource and
// the mapping from its identity paths to the local body paths holding the
// referenced values.
type ReferenceDef struct {
	ResourceName string            `yaml:"resourceName"`
	IdentityMap  map[string]string `yaml:"identityMap"`
}

type configFile struct {
	ProjectName     string     `yaml:"projectName"`
	ResourceVersion string     `yaml:"resourceVersion"`
	Resources       []Resource `yaml:"resources"`
}

// Load reads, validates, and decodes the definition file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resource definitions: %w", err)
	}
	return Parse(raw)
}

// Parse validates and decodes definition file contents.
func Parse(raw []byte) (*Config, error) {
	// Decode loosely first so the CUE schema sees the document as data.
	var data any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse resource definitions: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}
	unified := schema.Unify(ctx.Encode(data))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid resource definitions: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode resource definitions: %w", err)
	}

	cfg := &Config{
		ProjectName:     file.ProjectName,
		ResourceVersion: file.ResourceVersion,
		resources:       make(map[string]Resource, len(file.Resources)),
	}
	for _, res := range file.Resources {
		if _, dup := cfg.resources[res.Name]; dup {
			return nil, fmt.Errorf("invalid resource definitions: duplicate resource %q", res.Name)
		}
		cfg.resources[res.Name] = res
	}
	return cfg, nil
}

// Resource returns the definition of the named resource type.
func (c *Config) Resource(name string) (Resource, bool) {
	res, ok := c.resources[name]
	return res, ok
}

// ResourceNames lists the defined resource types in no particular order.
func (c *Config) ResourceNames() []string {
	names := make([]string, 0, len(c.resources))
	for name := range c.resources {
		names = append(names, name)
	}
	return names
}
