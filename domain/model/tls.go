package model

// TLSMaterial is certificate material delivered over the certificates
// relation, or generated for peer replication.
type TLSMaterial struct {
	Cert        string
	Key         string
	CAChain     string
	OwnerUnitID string
}

// Complete reports whether the material can actually serve TLS.
func (t TLSMaterial) Complete() bool {
	return t.Cert != "" && t.Key != ""
}
