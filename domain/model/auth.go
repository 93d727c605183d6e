package model

// OAuthScopes is requested from the external identity provider.
const OAuthScopes = "openid email offline_access"

// OAuthProviderInfo is the identity provider metadata delivered over the
// auth relation.
type OAuthProviderInfo struct {
	ClientID              string
	ClientSecret          string
	IssuerURL             string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserinfoEndpoint      string
}

// OAuthRoleConfig holds the ordered group lists used to derive the
// role-attribute-path expression. Entries are already trimmed, with empty
// entries dropped and input order preserved.
type OAuthRoleConfig struct {
	AdminGroups  []string
	EditorGroups []string
}

// Empty reports whether no group mapping is configured at all.
func (c OAuthRoleConfig) Empty() bool {
	return len(c.AdminGroups) == 0 && len(c.EditorGroups) == 0
}
