// Package relation aggregates raw per-relation records into a consistent
// typed snapshot of the desired external state.
package relation

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
	"github.com/canonical/grafana-k8s-operator/internal/naming"
)

// datasourceUIDNamespace seeds deterministic datasource UIDs so repeated
// syntheses of the same record set produce identical provisioning output.
var datasourceUIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Snapshot is the typed, canonically-ordered view of all currently valid
// relation records. It is the sole input to config synthesis.
type Snapshot struct {
	Datasources         []model.DatasourceSpec
	DatasourcesToDelete []string
	Dashboards          []model.DashboardBundle
	Auth                *model.OAuthProviderInfo
	Roles               model.OAuthRoleConfig
	TLS                 *model.TLSMaterial
	IngressURL          string
	TracingEndpoint     string
}

// Aggregator keeps the latest validated record per relation instance.
// One bad record never aborts aggregation of the others.
type Aggregator struct {
	records map[model.InstanceKey]model.RelationRecord

	// removedSources remembers datasource names that have disappeared so
	// the provisioning document can instruct their deletion.
	removedSources map[string]bool
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		records:        make(map[model.InstanceKey]model.RelationRecord),
		removedSources: make(map[string]bool),
	}
}

// Ingest validates and stores a record, superseding any earlier record
// from the same (relation, unit) instance. A record that fails validation
// is excluded: the error is returned for logging and any previously stored
// record for the instance is dropped, since its latest known state is
// malformed.
func (a *Aggregator) Ingest(ctx context.Context, rec model.RelationRecord) error {
	if err := validate(rec); err != nil {
		a.Remove(ctx, rec.Key(), rec.Kind)
		return err
	}
	a.records[rec.Key()] = rec
	return nil
}

// Remove drops the record for a departed or invalidated relation instance.
// Departed datasources are remembered for deletion from the workload.
func (a *Aggregator) Remove(ctx context.Context, key model.InstanceKey, kind model.RelationKind) {
	rec, ok := a.records[key]
	if !ok {
		return
	}
	if kind == model.RelationDatasource {
		name := datasourceName(rec)
		a.removedSources[name] = true
		logging.FromContext(ctx).Debug(ctx, "datasource removed", "name", name)
	}
	delete(a.records, key)
}

// Snapshot converts the stored records into typed entities in canonical
// order (relationId, then unitId), so synthesis output is independent of
// event arrival order.
func (a *Aggregator) Snapshot(ctx context.Context) *Snapshot {
	logger := logging.FromContext(ctx)

	keys := make([]model.InstanceKey, 0, len(a.records))
	for k := range a.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RelationID != keys[j].RelationID {
			return keys[i].RelationID < keys[j].RelationID
		}
		return keys[i].UnitID < keys[j].UnitID
	})

	snap := &Snapshot{}
	for _, k := range keys {
		rec := a.records[k]
		switch rec.Kind {
		case model.RelationDatasource:
			snap.Datasources = append(snap.Datasources, toDatasource(rec))
		case model.RelationDashboard:
			snap.Dashboards = append(snap.Dashboards, model.DashboardBundle{
				OwnerApp:    rec.Fields[fieldOwnerApp],
				ContentBlob: rec.Fields[fieldContent],
				Checksum:    rec.Fields[fieldChecksum],
			})
		case model.RelationAuth:
			// Singleton relations keep the canonically first record.
			if snap.Auth == nil {
				snap.Auth = toAuth(rec)
				snap.Roles = model.OAuthRoleConfig{
					AdminGroups:  splitGroups(rec.Fields[fieldAdminGroups]),
					EditorGroups: splitGroups(rec.Fields[fieldEditorGroups]),
				}
			} else {
				logger.Warn(ctx, "ignoring extra auth relation record",
					"relation", rec.RelationID, "unit", rec.UnitID)
			}
		case model.RelationCerts:
			if snap.TLS == nil {
				snap.TLS = &model.TLSMaterial{
					Cert:        rec.Fields[fieldCertificate],
					Key:         rec.Fields[fieldKey],
					CAChain:     rec.Fields[fieldCAChain],
					OwnerUnitID: rec.UnitID,
				}
			}
		case model.RelationIngress:
			if snap.IngressURL == "" {
				snap.IngressURL = rec.Fields[fieldURL]
			}
		case model.RelationTracing:
			if snap.TracingEndpoint == "" {
				snap.TracingEndpoint = rec.Fields[fieldEndpoint]
			}
		}
	}

	// Deletions only apply while the name is not re-provided.
	current := make(map[string]bool, len(snap.Datasources))
	for _, ds := range snap.Datasources {
		current[ds.Name] = true
	}
	for name := range a.removedSources {
		if !current[name] {
			snap.DatasourcesToDelete = append(snap.DatasourcesToDelete, name)
		}
	}
	sort.Strings(snap.DatasourcesToDelete)

	return snap
}

func datasourceName(rec model.RelationRecord) string {
	if n := rec.Fields[fieldSourceName]; n != "" {
		return n
	}
	return naming.DatasourceFallbackName(rec.UnitID, rec.RelationID)
}

func toDatasource(rec model.RelationRecord) model.DatasourceSpec {
	ds := model.DatasourceSpec{
		Name:       datasourceName(rec),
		Type:       rec.Fields[fieldSourceType],
		URL:        rec.Fields[fieldURL],
		Access:     rec.Fields[fieldAccess],
		UID:        rec.Fields[fieldUID],
		RelationID: rec.RelationID,
	}
	if ds.Access == "" {
		ds.Access = "proxy"
	}
	if raw := rec.Fields[fieldIsDefault]; raw != "" {
		ds.IsDefault, _ = strconv.ParseBool(raw)
	}
	if ds.UID == "" {
		ds.UID = uuid.NewSHA1(datasourceUIDNamespace, []byte(ds.Type+":"+ds.URL)).String()
	}
	if raw := rec.Fields[fieldJSONData]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &ds.JSONData)
	}
	if raw := rec.Fields[fieldSecureJSONData]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &ds.SecureJSONData)
	}
	return ds
}

func toAuth(rec model.RelationRecord) *model.OAuthProviderInfo {
	issuer := rec.Fields[fieldIssuerURL]
	info := &model.OAuthProviderInfo{
		ClientID:              rec.Fields[fieldClientID],
		ClientSecret:          rec.Fields[fieldClientSecret],
		IssuerURL:             issuer,
		AuthorizationEndpoint: rec.Fields[fieldAuthEndpoint],
		TokenEndpoint:         rec.Fields[fieldTokenEndpoint],
		UserinfoEndpoint:      rec.Fields[fieldUserinfoEndpt],
	}
	// Backward-compatible defaults for senders that only declare the issuer.
	if info.AuthorizationEndpoint == "" {
		info.AuthorizationEndpoint = issuer + "/oauth2/auth"
	}
	if info.TokenEndpoint == "" {
		info.TokenEndpoint = issuer + "/oauth2/token"
	}
	if info.UserinfoEndpoint == "" {
		info.UserinfoEndpoint = issuer + "/userinfo"
	}
	return info
}
