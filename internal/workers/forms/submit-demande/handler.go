// internal/workers/forms/submit-demande/handler.go
package submitdemande

import (
	"context"
	"database/sql"
	"encoding/base64"
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
	"github.com/ellaouzi/fos-app-sub002/internal/common/storage"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/render"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/view"
	"github.com/ellaouzi/fos-app-sub002/internal/models"
	"github.com/ellaouzi/fos-app-sub002/internal/workers/demande/queries"
)

const (
	TaskType = "submit-demande"
)

// Indexer stores search documents. *database.ElasticsearchClient satisfies it.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

var _ Indexer = (*database.ElasticsearchClient)(nil)

type Handler struct {
	config       *Config
	loader       *schema.Loader
	db           *sql.DB
	store        *storage.DocumentStore
	index        Indexer
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	now          func() time.Time
}

func NewHandler(config *Config, loader *schema.Loader, db *sql.DB, store *storage.DocumentStore, index Indexer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		loader:       loader,
		db:           db,
		store:        store,
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

// submission tracks what one job has written so it can be undone.
type submission struct {
	upload  *storage.Upload
	stored  []*storage.StoredObject
	invalid []render.FieldError
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	s, err := h.loader.Load(ctx, input.SchemaKey)
	if err != nil {
		return nil, err
	}

	var submitted answer.Map
	form, err := render.Build(s, func(answers answer.Map) { submitted = answers })
	if err != nil {
		return nil, err
	}

	sub := &submission{upload: h.store.NewUpload(input.AgentID)}
	sub.invalid = append(sub.invalid, form.Fill(input.Values)...)

	if err := h.attachFiles(ctx, form, sub, input.Files); err != nil {
		h.cleanup(sub)
		return nil, err
	}

	if len(sub.invalid) > 0 {
		return h.reject(s.Key, sub, sub.invalid), nil
	}

	result := form.Submit()
	if !result.Accepted {
		return h.reject(s.Key, sub, result.Errors), nil
	}

	documents := documentsOf(s, submitted)
	h.discardUnreferenced(sub, documents)

	demandeID, submittedAt, err := h.persist(ctx, input, submitted, documents)
	if err != nil {
		h.cleanup(sub)
		return nil, err
	}

	h.indexDemande(ctx, demandeID, submittedAt, input, s.Key, submitted)

	metrics.FormSubmissions.WithLabelValues(s.Key, "accepted").Inc()
	h.logger.Info("demande submitted", map[string]interface{}{
		"demandeId":    demandeID,
		"schemaKey":    s.Key,
		"agentId":      input.AgentID,
		"prestationId": input.PrestationID,
		"documents":    len(documents),
	})

	return &Output{
		Accepted:      true,
		DemandeID:     demandeID,
		Statut:        models.StatutSoumise,
		Answers:       submitted,
		Documents:     documents,
		InvalidFields: []render.FieldError{},
	}, nil
}

// attachFiles stores each upload and attaches its reference to the named
// control. Rejections become field errors; storage failures abort.
func (h *Handler) attachFiles(ctx context.Context, form *render.Form, sub *submission, files []FileUpload) error {
	for _, f := range files {
		content, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			sub.invalid = append(sub.invalid, render.FieldError{
				Field:   f.Field,
				Code:    render.CodeFileRejected,
				Message: fmt.Sprintf("%s: content is not base64", f.Filename),
			})
			continue
		}
		if err := h.store.Check(f.Filename, int64(len(content))); err != nil {
			sub.invalid = append(sub.invalid, render.FieldError{
				Field:   f.Field,
				Code:    render.CodeFileRejected,
				Message: apperrors.Normalize(err).Details,
			})
			continue
		}

		obj, err := sub.upload.Put(ctx, f.Filename, f.ContentType, content)
		if err != nil {
			return err
		}
		sub.stored = append(sub.stored, obj)

		ref := answer.DocumentRef{
			ID:          obj.Key,
			Filename:    obj.OriginalFilename,
			ContentType: obj.ContentType,
			Size:        obj.Size,
		}
		if err := form.AttachFile(f.Field, ref); err != nil {
			sub.invalid = append(sub.invalid, fieldError(f.Field, err))
		}
	}
	return nil
}

func fieldError(name string, err error) render.FieldError {
	var fe *render.FieldError
	if errors.As(err, &fe) {
		return *fe
	}
	return render.FieldError{Field: name, Code: render.CodeInvalidValue, Message: err.Error()}
}

func (h *Handler) reject(schemaKey string, sub *submission, errs []render.FieldError) *Output {
	h.cleanup(sub)
	metrics.FormSubmissions.WithLabelValues(schemaKey, "rejected").Inc()
	h.logger.Info("demande rejected", map[string]interface{}{
		"schemaKey":     schemaKey,
		"invalidFields": len(errs),
	})
	return &Output{
		Accepted:      false,
		Documents:     []answer.DocumentRef{},
		InvalidFields: errs,
	}
}

// cleanup removes the objects written for a submission that was not kept.
func (h *Handler) cleanup(sub *submission) {
	h.remove(sub.stored)
	sub.stored = nil
}

// discardUnreferenced removes the uploads the accepted answers do not point
// to, such as files sent for a field hidden by its condition.
func (h *Handler) discardUnreferenced(sub *submission, documents []answer.DocumentRef) {
	kept := make(map[string]bool, len(documents))
	for _, d := range documents {
		kept[d.ID] = true
	}
	var used, unused []*storage.StoredObject
	for _, obj := range sub.stored {
		if kept[obj.Key] {
			used = append(used, obj)
		} else {
			unused = append(unused, obj)
		}
	}
	h.remove(unused)
	sub.stored = used
}

// remove runs on a fresh context so an expired job deadline does not leak
// files.
func (h *Handler) remove(objs []*storage.StoredObject) {
	if len(objs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, obj := range objs {
		if err := h.store.Remove(ctx, obj.Key); err != nil {
			h.logger.Warn("failed to remove orphaned document", map[string]interface{}{
				"key":   obj.Key,
				"error": err,
			})
		}
	}
}

// documentsOf collects the references held by file fields, in field order.
func documentsOf(s *schema.FormSchema, answers answer.Map) []answer.DocumentRef {
	docs := []answer.DocumentRef{}
	for _, f := range s.Sorted() {
		if !f.IsDocument() {
			continue
		}
		if refs, ok := answer.DocumentRefs(answers[f.Name]); ok {
			docs = append(docs, refs...)
		}
	}
	return docs
}

func (h *Handler) persist(ctx context.Context, input *Input, answers answer.Map, documents []answer.DocumentRef) (int64, time.Time, error) {
	reponse, err := answer.Encode(answers)
	if err != nil {
		return 0, time.Time{}, apperrors.NewDatabaseInsertFailedError(err)
	}
	docs, err := json.Marshal(documents)
	if err != nil {
		return 0, time.Time{}, apperrors.NewDatabaseInsertFailedError(err)
	}
	submittedAt := h.now().UTC()

	var demandeID int64
	err = database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		if err := h.admit(ctx, tx, input, submittedAt); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO demande_prestation (
				agent_id, prestation_id, statut, reponse_json, documents_json, date_demande
			) VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			input.AgentID,
			input.PrestationID,
			models.StatutSoumise,
			reponse,
			string(docs),
			submittedAt,
		).Scan(&demandeID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO demande_historique (demande_id, statut, commentaire, date_changement)
			VALUES ($1, $2, $3, $4)`,
			demandeID, models.StatutSoumise, "Demande soumise", submittedAt,
		)
		return err
	})
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return 0, time.Time{}, stdErr
	}
	if err != nil {
		return 0, time.Time{}, apperrors.NewDatabaseInsertFailedError(err)
	}
	return demandeID, submittedAt, nil
}

// admit locks the prestation row and checks that it still takes demandes
// answered with the submitted schema.
func (h *Handler) admit(ctx context.Context, tx *sql.Tx, input *Input, at time.Time) error {
	p, err := queries.LockPrestation(ctx, tx, input.PrestationID)
	if errors.Is(err, queries.ErrNotFound) {
		return apperrors.NewPrestationNotFoundError(input.PrestationID)
	}
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("select prestation", err)
	}
	if p.SchemaKey != input.SchemaKey {
		return apperrors.NewInvalidInputError(fmt.Sprintf(
			"schema %q does not belong to prestation %d (expects %q)",
			input.SchemaKey, p.ID, p.SchemaKey))
	}
	if !p.Open {
		return apperrors.NewPrestationClosedError(p.ID, "closed")
	}
	if !p.InWindow(at) {
		return apperrors.NewPrestationClosedError(p.ID, "outside its application period")
	}
	return nil
}

// indexDemande is best effort: the row is the record, the index can be rebuilt.
func (h *Handler) indexDemande(ctx context.Context, demandeID int64, at time.Time, input *Input, schemaKey string, answers answer.Map) {
	if h.index == nil {
		return
	}
	v := view.NewEnhancedView(view.DemandeView{
		ID:           demandeID,
		Statut:       models.StatutSoumise,
		DateDemande:  at,
		AgentID:      input.AgentID,
		PrestationID: input.PrestationID,
		SchemaKey:    schemaKey,
	}, answers)

	id := strconv.FormatInt(demandeID, 10)
	if err := h.index.IndexDocument(ctx, h.config.Index, id, v.SearchDocument()); err != nil {
		h.logger.Warn("demande indexing failed", map[string]interface{}{
			"demandeId": demandeID,
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
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":   job.Key,
		"accepted": output.Accepted,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
