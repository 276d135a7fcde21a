// Package resources models the identity resources and API scopes a request
// was validated against. The engine only reads these definitions; managing
// them is the job of the configuration store.
package resources

// IdentityResource is a named group of user claims exposed via an identity
// token scope (e.g. "profile" -> name, family_name, ...).
type IdentityResource struct {
	Name       string   `json:"name"`
	ClaimTypes []string `json:"claimTypes"`
}

// APIScope is a scope granting access to an API, optionally declaring claim
// types to embed into access tokens.
type APIScope struct {
	Name       string   `json:"name"`
	ClaimTypes []string `json:"claimTypes"`
}

// APIResource is a named API. Its name becomes an access-token audience when
// one of its scopes is granted.
type APIResource struct {
	Name       string   `json:"name"`
	Scopes     []string `json:"scopes"`
	ClaimTypes []string `json:"claimTypes"`
}

// Resources is the validated resource set for a single request.
type Resources struct {
	Identity      []IdentityResource `json:"identity"`
	APIScopes     []APIScope         `json:"apiScopes"`
	APIResources  []APIResource      `json:"apiResources"`
	OfflineAccess bool               `json:"offlineAccess"`
}

// ScopeNames returns every scope name in the set, identity scopes first.
// offline_access is included when granted.
func (r *Resources) ScopeNames() []string {
	names := make([]string, 0, len(r.Identity)+len(r.APIScopes)+1)
	for _, ir := range r.Identity {
		names = append(names, ir.Name)
	}
	for _, s := range r.APIScopes {
		names = append(names, s.Name)
	}
	if r.OfflineAccess {
		names = append(names, OfflineAccess)
	}
	return names
}

// IdentityClaimTypes returns the union of claim types declared by the
// requested identity resources.
func (r *Resources) IdentityClaimTypes() []string {
	var union []string
	seen := make(map[string]struct{})
	for _, ir := range r.Identity {
		union = appendUnique(union, seen, ir.ClaimTypes)
	}
	return union
}

// APIClaimTypes returns the union of claim types declared by the requested
// API scopes and resources.
func (r *Resources) APIClaimTypes() []string {
	var union []string
	seen := make(map[string]struct{})
	for _, s := range r.APIScopes {
		union = appendUnique(union, seen, s.ClaimTypes)
	}
	for _, ar := range r.APIResources {
		union = appendUnique(union, seen, ar.ClaimTypes)
	}
	return union
}

func appendUnique(dst []string, seen map[string]struct{}, values []string) []string {
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// OfflineAccess is the scope that requests a refresh token.
const OfflineAccess = "offline_access"

// ParsedScope is a raw requested scope split into its name and an optional
// parameter value ("api:read:customer-42" style dynamic scopes carry a value).
type ParsedScope struct {
	Name  string
	Value string
}

// IsParameterized reports whether the scope carries a dynamic parameter.
func (p ParsedScope) IsParameterized() bool {
	return p.Value != ""
}

// Names flattens parsed scopes to their scope names.
func Names(scopes []ParsedScope) []string {
	names := make([]string, 0, len(scopes))
	for _, s := range scopes {
		names = append(names, s.Name)
	}
	return names
}
