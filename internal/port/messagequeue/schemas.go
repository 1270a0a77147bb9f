package messagequeue

import "time"

// SiteChangedPayload is the schema for sites.changed messages. An empty
// TenantID means "everything may have changed".
type SiteChangedPayload struct {
	TenantID  string `json:"tenant_id"`
	Subdomain string `json:"subdomain,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Slug      string `json:"slug,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Diagnostic kinds carried by BlockDiagnosticPayload.
const (
	DiagnosticUnknownType = "unknown_type"
	DiagnosticMalformed   = "malformed"
)

// BlockDiagnosticPayload is the schema for diagnostics.blocks messages.
type BlockDiagnosticPayload struct {
	TenantID   string    `json:"tenant_id"`
	Diagnostic string    `json:"diagnostic"`
	BlockID    string    `json:"block_id,omitempty"`
	BlockType  string    `json:"block_type,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	At         time.Time `json:"at"`
}
