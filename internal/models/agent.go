// internal/models/agent.go
package models

// Agent holds the contact details of an adh_agent row.
type Agent struct {
	ID     int64  `json:"id"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

func (a *Agent) FullName() string {
	switch {
	case a.Prenom == "":
		return a.Nom
	case a.Nom == "":
		return a.Prenom
	}
	return a.Prenom + " " + a.Nom
}
