// internal/workers/demande/search-demandes/handler.go
package searchdemandes

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/goccy/go-json"

	"github.com/ellaouzi/fos-app-sub002/internal/common/database"
	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
)

const (
	TaskType = "search-demandes"
)

type Searcher interface {
	Search(ctx context.Context, index string, query map[string]interface{}) (*database.SearchResult, error)
}

var _ Searcher = (*database.ElasticsearchClient)(nil)

type Handler struct {
	config       *Config
	search       Searcher
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, search Searcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		search:       search,
		logger:       l,
		errorHandler: apperrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func parseInput(variables string) (*Input, error) {
	res, err := inputValidator.ValidateJSON([]byte(variables))
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Error())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	size := input.Size
	if size <= 0 {
		size = h.config.DefaultSize
	}
	if size > h.config.MaxSize {
		size = h.config.MaxSize
	}
	from := input.From
	if from < 0 {
		from = 0
	}

	res, err := h.search.Search(ctx, h.config.Index, buildQuery(input, from, size))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewSearchTimeoutError(h.config.Index)
		}
		return nil, apperrors.NewSearchQueryFailedError(h.config.Index, err)
	}

	out := &Output{Hits: make([]Hit, 0, len(res.Hits)), Total: res.Total}
	for _, sh := range res.Hits {
		out.Hits = append(out.Hits, toHit(sh))
	}

	h.logger.Debug("demandes searched", map[string]interface{}{
		"query": input.Query,
		"total": out.Total,
		"hits":  len(out.Hits),
	})
	return out, nil
}

func toHit(sh database.SearchHit) Hit {
	hit := Hit{Score: sh.Score}
	hit.DemandeID, _ = strconv.ParseInt(sh.ID, 10, 64)
	hit.Statut, _ = sh.Source["statut"].(string)
	hit.PrestationLabel, _ = sh.Source["prestationLabel"].(string)
	hit.AgentNom, _ = sh.Source["agentNom"].(string)
	hit.DateDemande, _ = sh.Source["dateDemande"].(string)
	hit.Answers, _ = sh.Source["answers"].(map[string]interface{})
	return hit
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
