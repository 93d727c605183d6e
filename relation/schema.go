package relation

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/canonical/grafana-k8s-operator/domain/model"
)

// supportedSchemaVersion is the newest record schema this operator knows.
// Records declaring a newer version are still read for the fields we know;
// records without a version are treated as version 1.
const supportedSchemaVersion = 1

// Wire field names per relation kind.
const (
	fieldSourceName     = "source-name"
	fieldSourceType     = "source-type"
	fieldURL            = "url"
	fieldAccess         = "access"
	fieldIsDefault      = "is-default"
	fieldUID            = "uid"
	fieldJSONData       = "json-data"
	fieldSecureJSONData = "secure-json-data"

	fieldOwnerApp = "owner-app"
	fieldContent  = "content"
	fieldChecksum = "checksum"

	fieldClientID      = "client-id"
	fieldClientSecret  = "client-secret"
	fieldIssuerURL     = "issuer-url"
	fieldAuthEndpoint  = "authorization-endpoint"
	fieldTokenEndpoint = "token-endpoint"
	fieldUserinfoEndpt = "userinfo-endpoint"
	fieldAdminGroups   = "admin-groups"
	fieldEditorGroups  = "editor-groups"

	fieldCertificate = "certificate"
	fieldKey         = "key"
	fieldCAChain     = "ca-chain"

	fieldEndpoint = "endpoint"
)

// validate checks a raw record against its kind-specific schema. It never
// mutates the record and reports the first problem found.
func validate(rec model.RelationRecord) error {
	if v, ok := rec.Fields[model.SchemaVersionField]; ok {
		if _, err := strconv.Atoi(v); err != nil {
			return invalid(rec, "schema-version is not numeric: "+v)
		}
	}

	switch rec.Kind {
	case model.RelationDatasource:
		return validateDatasource(rec)
	case model.RelationDashboard:
		return validateDashboard(rec)
	case model.RelationAuth:
		return validateAuth(rec)
	case model.RelationCerts:
		return validateCerts(rec)
	case model.RelationIngress:
		return validateIngress(rec)
	case model.RelationTracing:
		return validateTracing(rec)
	default:
		return invalid(rec, "unknown relation kind")
	}
}

func invalid(rec model.RelationRecord, reason string) *model.ValidationError {
	return &model.ValidationError{
		Kind:       rec.Kind,
		RelationID: rec.RelationID,
		UnitID:     rec.UnitID,
		Reason:     reason,
	}
}

func validateDatasource(rec model.RelationRecord) error {
	for _, f := range []string{fieldSourceType, fieldURL} {
		if rec.Fields[f] == "" {
			return invalid(rec, "missing required field "+f)
		}
	}
	for _, f := range []string{fieldJSONData, fieldSecureJSONData} {
		if raw := rec.Fields[f]; raw != "" {
			var m map[string]string
			if err := json.Unmarshal([]byte(raw), &m); err != nil {
				return invalid(rec, f+" is not a JSON string map")
			}
		}
	}
	if raw := rec.Fields[fieldIsDefault]; raw != "" {
		if _, err := strconv.ParseBool(raw); err != nil {
			return invalid(rec, "is-default is not a boolean: "+raw)
		}
	}
	return nil
}

func validateDashboard(rec model.RelationRecord) error {
	if rec.Fields[fieldOwnerApp] == "" {
		return invalid(rec, "missing required field "+fieldOwnerApp)
	}
	blob := rec.Fields[fieldContent]
	if blob == "" {
		return invalid(rec, "missing required field "+fieldContent)
	}
	if _, err := base64.StdEncoding.DecodeString(blob); err != nil {
		return invalid(rec, "content is not valid base64")
	}
	return nil
}

func validateAuth(rec model.RelationRecord) error {
	for _, f := range []string{fieldClientID, fieldClientSecret, fieldIssuerURL} {
		if rec.Fields[f] == "" {
			return invalid(rec, "missing required field "+f)
		}
	}
	return nil
}

func validateCerts(rec model.RelationRecord) error {
	for _, f := range []string{fieldCertificate, fieldKey} {
		if rec.Fields[f] == "" {
			return invalid(rec, "missing required field "+f)
		}
	}
	return nil
}

func validateIngress(rec model.RelationRecord) error {
	u := rec.Fields[fieldURL]
	if u == "" {
		return invalid(rec, "missing required field "+fieldURL)
	}
	if !strings.Contains(u, "://") {
		return invalid(rec, "url has no scheme: "+u)
	}
	return nil
}

func validateTracing(rec model.RelationRecord) error {
	if rec.Fields[fieldEndpoint] == "" {
		return invalid(rec, "missing required field "+fieldEndpoint)
	}
	return nil
}

// splitGroups turns a comma-separated field into an ordered list, trimming
// whitespace and dropping empty entries.
func splitGroups(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
