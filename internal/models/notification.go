// internal/models/notification.go
package models

// Notification delivery outcomes.
const (
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
)

type Notification struct {
	ID        string   `json:"id"`
	DemandeID int64    `json:"demandeId"`
	AgentID   int64    `json:"agentId"`
	Statut    string   `json:"statut"`
	Channels  []string `json:"channels"` // "email", "sms"
	Status    string   `json:"status"`
	SentAt    string   `json:"sentAt"`
}

// NotificationTemplate is the message sent for one demande status. Subject
// and Body are text/template sources.
type NotificationTemplate struct {
	Statut  string `json:"statut"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
