package domain

// ReferenceToken is an entry from the established-token catalog used by the
// impersonation check. Deployments maps chain id (decimal string) to the
// official contract address (hex).
type ReferenceToken struct {
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Type        string            `json:"type"` // e.g. "coin", "token"
	Deployments map[string]string `json:"deployments"`
}
