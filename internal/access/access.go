// Package access decides which Telegram accounts hold privileged capabilities.
package access

import (
	"errors"
	"strings"
)

// Capability names a privileged action.
type Capability string

const (
	// ClearApplications allows bulk deletion of applications.
	ClearApplications Capability = "clear_applications"
	// ExportApplications allows downloading all applications as a spreadsheet.
	ExportApplications Capability = "export_applications"
	// ViewStats allows reading record counts.
	ViewStats Capability = "view_stats"
)

// ErrForbidden is returned when the caller lacks a capability.
var ErrForbidden = errors.New("permission denied")

// Policy grants every privileged capability to a configured set of handles.
type Policy struct {
	grants map[string]map[Capability]bool
}

// NewPolicy builds a policy where each handle receives all capabilities.
// Handles are matched case-insensitively with any leading @ removed.
func NewPolicy(handles []string) *Policy {
	p := &Policy{grants: make(map[string]map[Capability]bool)}
	for _, handle := range handles {
		p.Grant(handle, ClearApplications, ExportApplications, ViewStats)
	}
	return p
}

// Grant adds capabilities to a handle.
func (p *Policy) Grant(handle string, caps ...Capability) {
	key := normalize(handle)
	if key == "" {
		return
	}

	set, ok := p.grants[key]
	if !ok {
		set = make(map[Capability]bool)
		p.grants[key] = set
	}
	for _, c := range caps {
		set[c] = true
	}
}

// Allows reports whether handle holds capability.
func (p *Policy) Allows(handle string, capability Capability) bool {
	if p == nil {
		return false
	}
	key := normalize(handle)
	if key == "" {
		return false
	}
	return p.grants[key][capability]
}

// Require returns ErrForbidden unless handle holds capability.
func (p *Policy) Require(handle string, capability Capability) error {
	if !p.Allows(handle, capability) {
		return ErrForbidden
	}
	return nil
}

func normalize(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
