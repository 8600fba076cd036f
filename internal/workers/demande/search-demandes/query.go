// internal/workers/demande/search-demandes/query.go
package searchdemandes

// textFields are searched by the free-text query, best match first.
var textFields = []string{"answersText", "prestationLabel^2", "agentNom^2"}

func buildQuery(input *Input, from, size int) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if input.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  input.Query,
				"fields": textFields,
				"type":   "best_fields",
			},
		})
	}
	if len(input.Statuts) > 0 {
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"statut": input.Statuts},
		})
	}
	if input.PrestationID > 0 {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"prestationId": input.PrestationID},
		})
	}
	if input.AgentID > 0 {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"agentId": input.AgentID},
		})
	}

	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}
	boolQuery := map[string]interface{}{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	q := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"from":  from,
		"size":  size,
	}
	// Relevance first when searching text, newest first otherwise.
	if input.Query == "" {
		q["sort"] = []interface{}{
			map[string]interface{}{"dateDemande": map[string]interface{}{"order": "desc"}},
		}
	}
	return q
}
