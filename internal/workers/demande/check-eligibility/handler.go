// internal/workers/demande/check-eligibility/handler.go
package checkeligibility

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
	"github.com/redis/go-redis/v9"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
	"github.com/ellaouzi/fos-app-sub002/internal/models"
	"github.com/ellaouzi/fos-app-sub002/internal/workers/demande/queries"
)

const (
	TaskType = "check-eligibility"
)

// consumed are the statuses that use up a place of a limited prestation.
var consumed = []string{
	models.StatutSoumise,
	models.StatutEnCours,
	models.StatutAcceptee,
	models.StatutTerminee,
}

type Handler struct {
	config       *Config
	db           *sql.DB
	redis        redis.Cmdable
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	now          func() time.Time
}

// NewHandler builds the handler. rdb may be nil to disable the prestation
// cache.
func NewHandler(config *Config, db *sql.DB, rdb redis.Cmdable, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		redis:        rdb,
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
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	p, err := h.prestation(ctx, input.PrestationID)
	if err != nil {
		return nil, err
	}

	out := &Output{Eligible: true, SchemaKey: p.SchemaKey, Prestation: p}
	reject := func(reason string) (*Output, error) {
		out.Eligible = false
		out.Reason = reason
		h.logger.Info("agent not eligible", map[string]interface{}{
			"agentId":      input.AgentID,
			"prestationId": p.ID,
			"reason":       reason,
		})
		return out, nil
	}

	if !p.Open {
		return reject(ReasonClosed)
	}
	if !p.InWindow(h.now()) {
		return reject(ReasonOutOfPeriod)
	}

	if p.NombreLimit > 0 {
		n, err := queries.CountDemandes(ctx, h.db, p.ID, consumed)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("count demandes", err)
		}
		if n >= p.NombreLimit {
			return reject(ReasonQuotaReached)
		}
	}

	active, err := queries.HasActiveDemande(ctx, h.db, input.AgentID, p.ID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("active demande", err)
	}
	if active {
		return reject(ReasonActive)
	}

	return out, nil
}

// prestation reads through the Redis cache. Cache failures fall back to
// Postgres.
func (h *Handler) prestation(ctx context.Context, id int64) (*models.Prestation, error) {
	key := h.config.CachePrefix + strconv.FormatInt(id, 10)

	if h.redis != nil {
		cached, err := h.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var p models.Prestation
			if jerr := json.Unmarshal(cached, &p); jerr == nil {
				return &p, nil
			}
		case !errors.Is(err, redis.Nil):
			h.logger.Warn("prestation cache read failed", map[string]interface{}{
				"prestationId": id,
				"error":        err.Error(),
			})
		}
	}

	p, err := queries.GetPrestation(ctx, h.db, id)
	if errors.Is(err, queries.ErrNotFound) {
		return nil, apperrors.NewPrestationNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select prestation", err)
	}

	if h.redis != nil {
		if b, err := json.Marshal(p); err == nil {
			if err := h.redis.Set(ctx, key, b, h.config.CacheTTL).Err(); err != nil {
				h.logger.Warn("prestation cache write failed", map[string]interface{}{
					"prestationId": id,
					"error":        err.Error(),
				})
			}
		}
	}
	return p, nil
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
