// internal/workers/demande/notify-demande-status/handler.go
package notifydemandestatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ellaouzi/fos-app-sub002/internal/common/aws"
	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
	"github.com/ellaouzi/fos-app-sub002/internal/models"
	"github.com/ellaouzi/fos-app-sub002/internal/workers/demande/queries"
)

const (
	TaskType = "notify-demande-status"
)

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, text, html string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

var (
	_ Mailer    = (*aws.SESClient)(nil)
	_ SMSSender = (*aws.SNSClient)(nil)
)

type Handler struct {
	config       *Config
	db           *sql.DB
	mailer       Mailer
	sms          SMSSender
	templates    templateSet
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	now          func() time.Time
}

// NewHandler wires the senders. A nil sender disables its channel.
func NewHandler(config *Config, db *sql.DB, mailer Mailer, sms SMSSender, log logger.Logger) (*Handler, error) {
	templates, err := compileTemplates(defaultTemplates)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		mailer:       mailer,
		sms:          sms,
		templates:    templates,
		logger:       l,
		errorHandler: apperrors.NewErrorHandler(l),
		now:          time.Now,
	}, nil
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
	agent, err := queries.GetAgent(ctx, h.db, input.AgentID)
	if errors.Is(err, queries.ErrNotFound) {
		return nil, apperrors.NewRecipientNotFoundError(input.AgentID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get agent", err)
	}

	msg, err := h.templates.render(input.Statut, templateData{
		DemandeID:   input.DemandeID,
		Agent:       agent.FullName(),
		Prestation:  input.PrestationLabel,
		Commentaire: input.Commentaire,
	})
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	n := models.Notification{
		ID:        uuid.New().String(),
		DemandeID: input.DemandeID,
		AgentID:   agent.ID,
		Statut:    input.Statut,
		Channels:  []string{},
		Status:    models.NotificationDisabled,
		SentAt:    h.now().UTC().Format(time.RFC3339),
	}

	if h.emailEnabled() && agent.Email != "" {
		if _, err := h.mailer.SendEmail(ctx, agent.Email, msg.Subject, msg.Text, msg.HTML); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"demandeId": input.DemandeID,
				"error":     err,
			})
			return nil, apperrors.NewNotificationSendFailedError(ChannelEmail, err)
		}
		n.Channels = append(n.Channels, ChannelEmail)
	}

	// SMS only for final outcomes.
	if h.smsEnabled() && agent.Phone != "" && models.IsFinal(input.Statut) {
		if _, err := h.sms.SendSMS(ctx, agent.Phone, msg.Subject); err != nil {
			if len(n.Channels) == 0 {
				return nil, apperrors.NewNotificationSendFailedError(ChannelSMS, err)
			}
			h.logger.Warn("sms send failed", map[string]interface{}{
				"demandeId": input.DemandeID,
				"error":     err,
			})
		} else {
			n.Channels = append(n.Channels, ChannelSMS)
		}
	}

	if len(n.Channels) > 0 {
		n.Status = models.NotificationSent
	}
	h.logger.Info("demande notification processed", map[string]interface{}{
		"demandeId":      input.DemandeID,
		"notificationId": n.ID,
		"status":         n.Status,
		"channels":       n.Channels,
	})
	return &Output{Notification: n}, nil
}

func (h *Handler) emailEnabled() bool {
	return h.config.EmailEnabled && h.mailer != nil
}

func (h *Handler) smsEnabled() bool {
	return h.config.SMSEnabled && h.sms != nil
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
