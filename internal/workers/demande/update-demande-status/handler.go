// internal/workers/demande/update-demande-status/handler.go
package updatedemandestatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/goccy/go-json"

	"github.com/ellaouzi/fos-app-sub002/internal/common/database"
	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
	"github.com/ellaouzi/fos-app-sub002/internal/models"
	"github.com/ellaouzi/fos-app-sub002/internal/workers/demande/queries"
)

const (
	TaskType = "update-demande-status"
)

// Updater patches search documents. *database.ElasticsearchClient satisfies it.
type Updater interface {
	UpdateDocument(ctx context.Context, index, id string, fields map[string]interface{}) error
}

var _ Updater = (*database.ElasticsearchClient)(nil)

type Handler struct {
	config       *Config
	db           *sql.DB
	index        Updater
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	now          func() time.Time
}

func NewHandler(config *Config, db *sql.DB, index Updater, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		index:        index,
		logger:       l,
		errorHandler: apperrors.NewErrorHandler(l),
		now:          time.Now,
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
	if input == nil || !models.IsKnownStatut(input.Statut) {
		return nil, apperrors.NewInvalidInputError("statut is not a demande status")
	}

	var out *Output
	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		d, err := queries.LockDemande(ctx, tx, input.DemandeID)
		if errors.Is(err, queries.ErrNotFound) {
			return apperrors.NewDemandeNotFoundError(input.DemandeID)
		}
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("lock demande", err)
		}

		previous := d.Statut
		// A replayed job finds the status already applied.
		if previous == input.Statut {
			out = result(d, previous, false)
			return nil
		}
		if !models.CanTransition(previous, input.Statut) {
			return apperrors.NewInvalidStatusTransitionError(previous, input.Statut)
		}

		h.apply(d, input)
		if err := queries.UpdateStatut(ctx, tx, d); err != nil {
			return apperrors.NewQueryExecutionFailedError("update demande", err)
		}
		if err := queries.InsertHistorique(ctx, tx, d.ID, d.Statut, input.Commentaire, h.now().UTC()); err != nil {
			return apperrors.NewQueryExecutionFailedError("insert historique", err)
		}
		out = result(d, previous, true)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Changed {
		h.reindex(ctx, out)
		h.logger.Info("demande status updated", map[string]interface{}{
			"demandeId": out.DemandeID,
			"from":      out.PreviousStatut,
			"to":        out.Statut,
		})
	}
	return out, nil
}

// apply moves d to the requested status and stamps the processing dates.
func (h *Handler) apply(d *models.Demande, input *Input) {
	now := h.now().UTC()
	d.Statut = input.Statut
	if input.Commentaire != "" {
		c := input.Commentaire
		d.Commentaire = &c
	}
	if input.TraitePar > 0 {
		by := input.TraitePar
		d.TraitePar = &by
	}
	if d.DateTraitement == nil {
		d.DateTraitement = &now
	}
	if models.IsFinal(input.Statut) {
		d.DateFinalisation = &now
	}
}

func result(d *models.Demande, previous string, changed bool) *Output {
	return &Output{
		DemandeID:        d.ID,
		PreviousStatut:   previous,
		Statut:           d.Statut,
		DateTraitement:   d.DateTraitement,
		DateFinalisation: d.DateFinalisation,
		Final:            models.IsFinal(d.Statut),
		Changed:          changed,
	}
}

func (h *Handler) reindex(ctx context.Context, out *Output) {
	if h.index == nil {
		return
	}
	fields := map[string]interface{}{"statut": out.Statut}
	if out.DateTraitement != nil {
		fields["dateTraitement"] = out.DateTraitement.Format(time.RFC3339)
	}
	if out.DateFinalisation != nil {
		fields["dateFinalisation"] = out.DateFinalisation.Format(time.RFC3339)
	}
	id := strconv.FormatInt(out.DemandeID, 10)
	if err := h.index.UpdateDocument(ctx, h.config.Index, id, fields); err != nil {
		h.logger.Warn("demande reindex failed", map[string]interface{}{
			"demandeId": out.DemandeID,
			"error":     err,
		})
	}
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
