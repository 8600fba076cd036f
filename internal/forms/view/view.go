// Package view projects a stored demande and its answers for display and
// reporting.
package view

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
)

// DemandeView is the base projection of a demande_prestation row.
type DemandeView struct {
	ID               int64      `json:"id"`
	Statut           string     `json:"statut"`
	DateDemande      time.Time  `json:"dateDemande"`
	DateTraitement   *time.Time `json:"dateTraitement,omitempty"`
	DateFinalisation *time.Time `json:"dateFinalisation,omitempty"`
	Commentaire      string     `json:"commentaire,omitempty"`
	AgentID          int64      `json:"agentId"`
	AgentNom         string     `json:"agentNom,omitempty"`
	PrestationID     int64      `json:"prestationId"`
	PrestationLabel  string     `json:"prestationLabel,omitempty"`
	SchemaKey        string     `json:"schemaKey,omitempty"`
}

// EnhancedView adds the decoded answers. It is derived on demand and never
// stored.
type EnhancedView struct {
	DemandeView
	JSONFields answer.Map `json:"jsonFields"`
}

func NewEnhancedView(base DemandeView, answers answer.Map) *EnhancedView {
	if answers == nil {
		answers = answer.Map{}
	}
	return &EnhancedView{DemandeView: base, JSONFields: answers}
}

// FromStoredAnswers decodes the reponse_json text of a demande.
func FromStoredAnswers(base DemandeView, text string) (*EnhancedView, error) {
	answers, err := answer.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("demande %d: %w", base.ID, err)
	}
	return NewEnhancedView(base, answers), nil
}

// GetJSONField returns the raw answer for key, or nil.
func (v *EnhancedView) GetJSONField(key string) interface{} {
	return v.JSONFields[key]
}

// GetJSONFieldAsString is a display helper: absent and null answers give "".
func (v *EnhancedView) GetJSONFieldAsString(key string) string {
	return format(v.JSONFields[key])
}

// DisplayFields formats the requested keys, or every answer when keys is empty.
func (v *EnhancedView) DisplayFields(keys ...string) map[string]string {
	if len(keys) == 0 {
		keys = v.JSONFields.Keys()
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = v.GetJSONFieldAsString(k)
	}
	return out
}

func format(value interface{}) string {
	if value == nil {
		return ""
	}
	if refs, ok := answer.DocumentRefs(value); ok {
		names := make([]string, 0, len(refs))
		for _, r := range refs {
			names = append(names, r.Filename)
		}
		return strings.Join(names, ", ")
	}
	if n, ok := answer.Number(value); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	switch t := value.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, ", ")
	case map[string]interface{}:
		// file metadata stored without a reference id
		if name, ok := t["filename"].(string); ok && name != "" {
			return name
		}
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, format(item))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(value)
}

// CommonJSONKeys returns, sorted, the answer keys present in every view.
func CommonJSONKeys(views []*EnhancedView) []string {
	if len(views) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, v := range views {
		for k := range v.JSONFields {
			counts[k]++
		}
	}
	var keys []string
	for k, n := range counts {
		if n == len(views) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
