package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch subject {
	case SubjectSitesChanged:
		var p SiteChangedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
	case SubjectDiagnosticsBlocks:
		var p BlockDiagnosticPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.TenantID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("tenant_id is required"))
		}
		if p.Diagnostic != DiagnosticUnknownType && p.Diagnostic != DiagnosticMalformed {
			return fmt.Errorf("schema validation failed for %s: unknown diagnostic %q", subject, p.Diagnostic)
		}
	}
	return nil
}
