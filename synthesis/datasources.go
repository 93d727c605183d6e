package synthesis

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/canonical/grafana-k8s-operator/domain/model"
)

type dsEntry struct {
	Access         string            `yaml:"access"`
	IsDefault      bool              `yaml:"isDefault"`
	Name           string            `yaml:"name"`
	OrgID          int               `yaml:"orgId"`
	Type           string            `yaml:"type"`
	UID            string            `yaml:"uid"`
	URL            string            `yaml:"url"`
	JSONData       map[string]string `yaml:"jsonData,omitempty"`
	SecureJSONData map[string]string `yaml:"secureJsonData,omitempty"`
}

type dsDeletion struct {
	Name  string `yaml:"name"`
	OrgID int    `yaml:"orgId"`
}

type dsDocument struct {
	APIVersion        int          `yaml:"apiVersion"`
	Datasources       []dsEntry    `yaml:"datasources"`
	DeleteDatasources []dsDeletion `yaml:"deleteDatasources,omitempty"`
}

// mergeDatasources dedups and normalizes specs for provisioning. Input
// order is canonical (relation id, then unit id), so keeping the first
// spec per (type, url) key keeps the one from the smallest relation id.
// Names must be unique too; a later colliding spec is renamed with its
// relation id as suffix. Every spec ends up with a query timeout of at
// least minTimeout seconds, and exactly one spec is the default.
func mergeDatasources(specs []model.DatasourceSpec, minTimeout int) ([]model.DatasourceSpec, []model.SynthesisNote) {
	var notes []model.SynthesisNote
	seen := make(map[model.DedupKey]string, len(specs))
	names := make(map[string]bool, len(specs))
	merged := make([]model.DatasourceSpec, 0, len(specs))
	haveDefault := false

	for _, ds := range specs {
		if keeper, dup := seen[ds.Dedup()]; dup {
			notes = append(notes, model.SynthesisNote{
				Component: "datasources",
				Message:   fmt.Sprintf("duplicate of %q (same type and url), dropping %q from relation %s", keeper, ds.Name, ds.RelationID),
			})
			continue
		}
		seen[ds.Dedup()] = ds.Name

		if names[ds.Name] {
			renamed := ds.Name + "_" + ds.RelationID
			notes = append(notes, model.SynthesisNote{
				Component: "datasources",
				Message:   fmt.Sprintf("name %q already taken, provisioning as %q", ds.Name, renamed),
			})
			ds.Name = renamed
		}
		names[ds.Name] = true

		ds.JSONData = withTimeoutFloor(ds.JSONData, minTimeout)

		if ds.IsDefault {
			if haveDefault {
				ds.IsDefault = false
				notes = append(notes, model.SynthesisNote{
					Component: "datasources",
					Message:   fmt.Sprintf("%q also claims to be the default datasource, ignoring", ds.Name),
				})
			}
			haveDefault = true
		}
		merged = append(merged, ds)
	}

	if !haveDefault && len(merged) > 0 {
		merged[0].IsDefault = true
	}
	return merged, notes
}

// withTimeoutFloor returns jsonData with the query timeout raised to at
// least minTimeout. The input map is never mutated.
func withTimeoutFloor(jsonData map[string]string, minTimeout int) map[string]string {
	current := 0
	if raw, ok := jsonData["timeout"]; ok {
		current, _ = strconv.Atoi(raw)
	}
	if current >= minTimeout {
		return jsonData
	}
	out := make(map[string]string, len(jsonData)+1)
	for k, v := range jsonData {
		out[k] = v
	}
	out["timeout"] = strconv.Itoa(minTimeout)
	return out
}

// renderDatasourceDoc renders the datasource provisioning document.
// Struct field order and sorted map keys make the output byte-stable.
func renderDatasourceDoc(specs []model.DatasourceSpec, toDelete []string) (string, error) {
	doc := dsDocument{APIVersion: 1, Datasources: []dsEntry{}}
	for _, ds := range specs {
		doc.Datasources = append(doc.Datasources, dsEntry{
			Access:         ds.Access,
			IsDefault:      ds.IsDefault,
			Name:           ds.Name,
			OrgID:          1,
			Type:           ds.Type,
			UID:            ds.UID,
			URL:            ds.URL,
			JSONData:       ds.JSONData,
			SecureJSONData: ds.SecureJSONData,
		})
	}
	for _, name := range toDelete {
		doc.DeleteDatasources = append(doc.DeleteDatasources, dsDeletion{Name: name, OrgID: 1})
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render datasource document: %w", err)
	}
	return string(out), nil
}
