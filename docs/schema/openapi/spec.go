// Package openapi embeds the OpenAPI description of the REST API.
package openapi

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the OpenAPI YAML served at /api/v1/openapi.yaml.
//
//go:embed breadstamp.yaml
var Document []byte

// Spec returns a copy of the embedded document.
func Spec() []byte {
	return append([]byte(nil), Document...)
}

type document struct {
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

// Operations lists "METHOD /path" for every documented operation, sorted.
// Paths use echo's :param form so they compare directly with registered routes.
func Operations() ([]string, error) {
	var doc document
	if err := yaml.Unmarshal(Document, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi: %w", err)
	}
	var ops []string
	for path, item := range doc.Paths {
		route := toRoute(path)
		for method := range item {
			switch method {
			case "get", "put", "post", "patch", "delete":
				ops = append(ops, strings.ToUpper(method)+" "+route)
			}
		}
	}
	sort.Strings(ops)
	return ops, nil
}

func toRoute(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			parts[i] = ":" + strings.TrimSuffix(strings.TrimPrefix(p, "{"), "}")
		}
	}
	return strings.Join(parts, "/")
}
