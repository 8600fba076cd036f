// internal/workers/forms/compare-answers/handler.go
package compareanswers

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
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/diff"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

const (
	TaskType = "compare-answers"
)

type Handler struct {
	config       *Config
	loader       *schema.Loader
	db           *sql.DB
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewHandler builds the handler. db may be nil when jobs always carry
// oldAnswers.
func NewHandler(config *Config, loader *schema.Loader, db *sql.DB, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		loader:       loader,
		db:           db,
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

// parseInput decodes both answer maps the way stored answers are decoded, so
// lists and document references compare the same whichever side they come from.
func parseInput(variables string) (*Input, error) {
	res, err := inputValidator.ValidateJSON([]byte(variables))
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Error())
	}

	var raw rawInput
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	input := &Input{
		SchemaKey:   raw.SchemaKey,
		DemandeID:   raw.DemandeID,
		OnlyChanged: raw.OnlyChanged,
	}
	if input.NewAnswers, err = answer.Decode(string(raw.NewAnswers)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if len(raw.OldAnswers) > 0 && string(raw.OldAnswers) != "null" {
		if input.OldAnswers, err = answer.Decode(string(raw.OldAnswers)); err != nil {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
	}
	return input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	s, err := h.loader.Load(ctx, input.SchemaKey)
	if err != nil {
		return nil, err
	}

	old := input.OldAnswers
	if old == nil && input.DemandeID > 0 {
		if old, err = h.storedAnswers(ctx, input.DemandeID); err != nil {
			return nil, err
		}
	}

	changes := diff.Diff(s, old, input.NewAnswers)
	changed := diff.Changed(changes)
	if input.OnlyChanged {
		changes = changed
	}
	if changes == nil {
		changes = []diff.FieldChange{}
	}

	h.logger.Info("answers compared", map[string]interface{}{
		"schemaKey": s.Key,
		"demandeId": input.DemandeID,
		"changed":   len(changed),
	})

	return &Output{
		Changes:      changes,
		ChangedCount: len(changed),
	}, nil
}

func (h *Handler) storedAnswers(ctx context.Context, demandeID int64) (answer.Map, error) {
	if h.db == nil {
		return nil, apperrors.NewInvalidInputError("oldAnswers is required")
	}
	var text sql.NullString
	err := h.db.QueryRowContext(ctx,
		`SELECT reponse_json FROM demande_prestation WHERE id = $1`, demandeID,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDemandeNotFoundError(demandeID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select reponse_json", err)
	}
	answers, err := answer.Decode(text.String)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("decode reponse_json", err)
	}
	return answers, nil
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
