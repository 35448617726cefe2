package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

// routesFile is the YAML layout of a stage route template:
//
//	stages:
//	  - stage: Comment
//	    role: operator
type routesFile struct {
	Stages workflow.RouteTemplate `yaml:"stages"`
}

// LoadRouteTemplate reads the template at path. An empty path yields the
// default template.
func LoadRouteTemplate(path string) (workflow.RouteTemplate, error) {
	if path == "" {
		return workflow.DefaultRouteTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRouteTemplate(data)
}

// ParseRouteTemplate decodes and validates a YAML route template.
func ParseRouteTemplate(data []byte) (workflow.RouteTemplate, error) {
	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse route template: %w", err)
	}
	if err := f.Stages.Validate(); err != nil {
		return nil, err
	}
	return f.Stages, nil
}
