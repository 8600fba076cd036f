// internal/models/prestation.go
package models

import "time"

// Prestation is a benefit offering (prestation_ref) agents can apply for.
type Prestation struct {
	ID          int64      `json:"id"`
	Label       string     `json:"label"`
	Type        string     `json:"type"`
	SchemaKey   string     `json:"schemaKey"`
	Open        bool       `json:"open"`
	DateDu      *time.Time `json:"dateDu,omitempty"`
	DateAu      *time.Time `json:"dateAu,omitempty"`
	NombreLimit int        `json:"nombreLimit"`
	IsAttached  bool       `json:"isAttached"`
}

// InWindow reports whether day falls within [DateDu, DateAu]. A missing bound
// is open. Bounds are compared by calendar day.
func (p *Prestation) InWindow(day time.Time) bool {
	d := truncateDay(day)
	if p.DateDu != nil && d.Before(truncateDay(*p.DateDu)) {
		return false
	}
	if p.DateAu != nil && d.After(truncateDay(*p.DateAu)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
