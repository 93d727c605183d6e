package model

// DashboardBundle is a dashboard document delivered over a relation.
// Content is gzip-compressed and base64-encoded on the wire; Checksum,
// when present, is the sender's sha256 hex digest of the decoded content.
type DashboardBundle struct {
	OwnerApp    string
	ContentBlob string
	Checksum    string
}

// Dashboard is a decoded dashboard ready for provisioning, namespaced by
// the owning application to avoid identifier collisions.
type Dashboard struct {
	OwnerApp string
	Content  []byte
}
