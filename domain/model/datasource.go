package model

// DatasourceSpec describes one provisioned datasource.
type DatasourceSpec struct {
	Name           string
	Type           string
	URL            string
	Access         string
	IsDefault      bool
	UID            string
	JSONData       map[string]string
	SecureJSONData map[string]string

	// RelationID records where the spec came from, used for the
	// deterministic duplicate tie-break.
	RelationID string
}

// DedupKey is the uniqueness key for datasource merging.
type DedupKey struct {
	Type string
	URL  string
}

// Dedup returns the spec's uniqueness key.
func (d DatasourceSpec) Dedup() DedupKey { return DedupKey{Type: d.Type, URL: d.URL} }
