package domain

// Identity is a relay tenant as published by the registry. Name is the tag the
// relay writes into its stats and access log (the client "email"); Key is the
// client UUID when the registry knows it.
type Identity struct {
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
}

// Names returns the identity names in registry order.
func Names(ids []Identity) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Name)
	}
	return out
}

// NameSet indexes identities by name for membership checks.
func NameSet(ids []Identity) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id.Name] = struct{}{}
	}
	return set
}
