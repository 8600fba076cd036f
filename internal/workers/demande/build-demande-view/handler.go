// internal/workers/demande/build-demande-view/handler.go
package builddemandeview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/goccy/go-json"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/view"
	"github.com/ellaouzi/fos-app-sub002/internal/workers/demande/queries"
)

const (
	TaskType = "build-demande-view"
)

type Handler struct {
	config       *Config
	db           *sql.DB
	loader       *schema.Loader
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, loader *schema.Loader, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		loader:       loader,
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
	if input == nil || input.DemandeID <= 0 {
		return nil, apperrors.NewInvalidInputError("demandeId is required")
	}

	details, err := queries.GetDemandeDetails(ctx, h.db, input.DemandeID)
	if errors.Is(err, queries.ErrNotFound) {
		return nil, apperrors.NewDemandeNotFoundError(input.DemandeID)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewQueryTimeoutError("select demande")
		}
		return nil, apperrors.NewQueryExecutionFailedError("select demande", err)
	}

	d := details.Demande
	base := view.DemandeView{
		ID:               d.ID,
		Statut:           d.Statut,
		DateDemande:      d.DateDemande,
		DateTraitement:   d.DateTraitement,
		DateFinalisation: d.DateFinalisation,
		AgentID:          d.AgentID,
		AgentNom:         details.Agent.FullName(),
		PrestationID:     d.PrestationID,
		PrestationLabel:  details.Prestation.Label,
		SchemaKey:        details.Prestation.SchemaKey,
	}
	if d.Commentaire != nil {
		base.Commentaire = *d.Commentaire
	}

	v, err := view.FromStoredAnswers(base, d.ReponseJSON)
	if err != nil {
		// A demande with unreadable answers is still shown with its base fields.
		h.logger.Warn("stored answers unreadable", map[string]interface{}{
			"demandeId": d.ID,
			"error":     err.Error(),
		})
		v = view.NewEnhancedView(base, nil)
	}

	return &Output{
		Demande:       v,
		DisplayFields: v.DisplayFields(input.Fields...),
		Labels:        h.labels(ctx, base.SchemaKey),
	}, nil
}

// labels is best effort; a missing schema leaves the answer keys unlabelled.
func (h *Handler) labels(ctx context.Context, schemaKey string) map[string]string {
	out := map[string]string{}
	if schemaKey == "" || h.loader == nil {
		return out
	}
	s, err := h.loader.Load(ctx, schemaKey)
	if err != nil {
		h.logger.Warn("schema unavailable for labels", map[string]interface{}{
			"schemaKey": schemaKey,
			"error":     err.Error(),
		})
		return out
	}
	for _, f := range s.Fields {
		out[f.Name] = f.Label
	}
	return out
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
