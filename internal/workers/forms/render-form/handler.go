// internal/workers/forms/render-form/handler.go
package renderform

import (
	"bytes"
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/goccy/go-json"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/render"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

const (
	TaskType = "render-form"
)

type Handler struct {
	config       *Config
	loader       *schema.Loader
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, loader *schema.Loader, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
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

func (h *Handler) resolve(ctx context.Context, input *Input) (*schema.FormSchema, error) {
	if input.SchemaJSON != "" {
		return schema.Parse(input.SchemaJSON)
	}
	if input.SchemaKey == "" {
		return nil, apperrors.NewInvalidInputError("schemaKey or schemaJson is required")
	}
	return h.loader.Load(ctx, input.SchemaKey)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	s, err := h.resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	form, err := render.Build(s, nil)
	if err != nil {
		return nil, err
	}

	// Stale or hand-edited values must not block display; they are reported
	// and the control keeps its default.
	invalid := form.Fill(input.Values)
	if invalid == nil {
		invalid = []render.FieldError{}
	}

	action := input.Action
	if action == "" {
		action = h.config.Action
	}
	var buf bytes.Buffer
	if err := form.Render(&buf, action); err != nil {
		return nil, fmt.Errorf("render form %s: %w", s.Key, err)
	}

	metrics.FormsRendered.WithLabelValues(s.Key).Inc()
	h.logger.Info("form rendered", map[string]interface{}{
		"schemaKey":     s.Key,
		"controls":      len(form.Controls()),
		"invalidFields": len(invalid),
	})

	return &Output{
		SchemaKey:     s.Key,
		Title:         s.Title,
		HTML:          buf.String(),
		Fields:        form.Describe(),
		InvalidFields: invalid,
	}, nil
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
