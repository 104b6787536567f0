// Package schema loads entity class declarations from HCL files.
//
// A schema file holds any number of class blocks:
//
//	class "Person" {
//	  properties    = ["name", "age"]
//	  relationships = ["friends"]
//	  description   = "A person"
//	}
package schema

import (
	"fmt"

	"neorest/domain/core/classes"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// FileExtension marks schema files inside a schema directory.
const FileExtension = ".hcl"

type hclSchemaFile struct {
	Classes []*hclClassBlock `hcl:"class,block"`
}

type hclClassBlock struct {
	Name          string   `hcl:"name,label"`
	Properties    []string `hcl:"properties,optional"`
	Relationships []string `hcl:"relationships,optional"`
	Description   string   `hcl:"description,optional"`
}

// HCLParser decodes class blocks.
type HCLParser struct{}

func NewHCLParser() *HCLParser {
	return &HCLParser{}
}

// Parse decodes src. A fresh hclparse.Parser is used per call because the
// parser caches files by name and a reloaded file must be read again.
func (p *HCLParser) Parse(src []byte, filename string) ([]classes.ClassDefinition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}

	var parsed hclSchemaFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, diags)
	}

	defs := make([]classes.ClassDefinition, 0, len(parsed.Classes))
	seen := make(map[string]struct{}, len(parsed.Classes))
	for _, block := range parsed.Classes {
		name := classes.Normalize(block.Name)
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%s: class %q declared twice", filename, block.Name)
		}
		seen[name] = struct{}{}
		defs = append(defs, classes.ClassDefinition{
			Name:          name,
			Properties:    block.Properties,
			Relationships: block.Relationships,
			Description:   block.Description,
		})
	}
	return defs, nil
}
