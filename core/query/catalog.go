package query

import "strings"

// ControlCatalog resolves control ids to their human readable names.
type ControlCatalog interface {
	Name(id string) (string, bool)
}

// Catalog is an in-memory ControlCatalog.
type Catalog map[string]string

// NewCatalog creates an empty catalog.
func NewCatalog() Catalog {
	return Catalog{}
}

// DefaultCatalog returns the names of the access control family.
func DefaultCatalog() Catalog {
	return Catalog{
		"AC-1":  "Policy and Procedures",
		"AC-2":  "Account Management",
		"AC-3":  "Access Enforcement",
		"AC-4":  "Information Flow Enforcement",
		"AC-5":  "Separation of Duties",
		"AC-6":  "Least Privilege",
		"AC-7":  "Unsuccessful Logon Attempts",
		"AC-8":  "System Use Notification",
		"AC-9":  "Previous Logon Notification",
		"AC-10": "Concurrent Session Control",
		"AC-11": "Device Lock",
		"AC-12": "Session Termination",
		"AC-13": "Supervision and Review",
		"AC-14": "Permitted Actions Without Identification or Authentication",
		"AC-15": "Automated Marking",
		"AC-16": "Security and Privacy Attributes",
		"AC-17": "Remote Access",
		"AC-18": "Wireless Access",
		"AC-19": "Access Control for Mobile Devices",
		"AC-20": "Use of External Systems",
	}
}

// Add registers or replaces the name of a control.
func (c Catalog) Add(id string, name string) {
	id = strings.ToUpper(strings.TrimSpace(id))
	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return
	}
	c[id] = name
}

// Merge adds all entries of names.
func (c Catalog) Merge(names map[string]string) {
	for id, name := range names {
		c.Add(id, name)
	}
}

// Name returns the name of id. Enhancements without an own entry
// resolve to the name of their base control.
func (c Catalog) Name(id string) (string, bool) {
	id = strings.ToUpper(id)
	if name, ok := c[id]; ok {
		return name, true
	}
	name, ok := c[BaseControlID(id)]
	return name, ok
}
