package synthesis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
)

var gzipMagic = []byte{0x1f, 0x8b}

// decodeDashboards turns transported bundles into dashboard documents.
// A bundle that fails to decode is excluded and reported as a note; the
// remaining bundles still provision.
func decodeDashboards(ctx context.Context, bundles []model.DashboardBundle) ([]model.Dashboard, []model.SynthesisNote) {
	logger := logging.FromContext(ctx)
	var (
		dashboards []model.Dashboard
		notes      []model.SynthesisNote
	)
	for _, b := range bundles {
		content, err := decodeBundle(b)
		if err != nil {
			logger.Warn(ctx, "dashboard bundle rejected", "owner", b.OwnerApp, "error", err)
			notes = append(notes, model.SynthesisNote{Component: "dashboards", Message: err.Error()})
			continue
		}
		dashboards = append(dashboards, model.Dashboard{OwnerApp: b.OwnerApp, Content: content})
	}
	return dashboards, notes
}

// decodeBundle reverses the transport encoding: base64, then gzip when
// the payload carries the gzip magic. The result must be a JSON document
// and must match the declared checksum when one is present.
func decodeBundle(b model.DashboardBundle) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b.ContentBlob)
	if err != nil {
		return nil, &model.DecodeError{OwnerApp: b.OwnerApp, Reason: "content is not valid base64"}
	}
	if bytes.HasPrefix(raw, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, &model.DecodeError{OwnerApp: b.OwnerApp, Reason: "gzip header corrupt"}
		}
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, &model.DecodeError{OwnerApp: b.OwnerApp, Reason: "gzip stream corrupt"}
		}
	}
	if !json.Valid(raw) {
		return nil, &model.DecodeError{OwnerApp: b.OwnerApp, Reason: "decoded content is not a JSON document"}
	}
	if b.Checksum != "" {
		sum := sha256.Sum256(raw)
		if hex.EncodeToString(sum[:]) != b.Checksum {
			return nil, &model.DecodeError{OwnerApp: b.OwnerApp, Reason: "checksum mismatch"}
		}
	}
	return raw, nil
}

type dashProvider struct {
	Name                  string            `yaml:"name"`
	OrgID                 int               `yaml:"orgId"`
	Folder                string            `yaml:"folder"`
	Type                  string            `yaml:"type"`
	DisableDeletion       bool              `yaml:"disableDeletion"`
	UpdateIntervalSeconds int               `yaml:"updateIntervalSeconds"`
	AllowUIUpdates        bool              `yaml:"allowUiUpdates"`
	Options               map[string]string `yaml:"options"`
}

type dashProviderDoc struct {
	APIVersion int            `yaml:"apiVersion"`
	Providers  []dashProvider `yaml:"providers"`
}

// renderDashboardProvisioning renders the provider document pointing the
// workload at the dashboards directory.
func renderDashboardProvisioning() (string, error) {
	doc := dashProviderDoc{
		APIVersion: 1,
		Providers: []dashProvider{{
			Name:                  "Default",
			OrgID:                 1,
			Folder:                "",
			Type:                  "file",
			DisableDeletion:       false,
			UpdateIntervalSeconds: 5,
			AllowUIUpdates:        true,
			Options:               map[string]string{"path": DashboardsDir},
		}},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
