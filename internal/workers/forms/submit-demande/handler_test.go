package submitdemande

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/storage"
	"github.com/ellaouzi/fos-app-sub002/internal/common/storage/storagetest"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/render"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeIndexer struct {
	mu   sync.Mutex
	docs map[string]interface{}
	err  error
}

func (f *fakeIndexer) IndexDocument(_ context.Context, index, id string, doc interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.docs == nil {
		f.docs = map[string]interface{}{}
	}
	f.docs[index+"/"+id] = doc
	return nil
}

type fixture struct {
	handler *Handler
	mock    sqlmock.Sqlmock
	bucket  *storagetest.MemBucket
	index   *fakeIndexer
}

func setupHandler(t *testing.T) *fixture {
	return setupHandlerWith(t, schema.NewBundledSource())
}

func setupHandlerWith(t *testing.T, source schema.Source) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bucket := storagetest.NewMemBucket()
	store := storage.NewDocumentStore(bucket, "demandes", 10*1024*1024,
		[]string{"pdf", "doc", "docx", "jpg", "jpeg", "png", "gif"})
	index := &fakeIndexer{}

	loader := schema.NewLoader(source, logger.NewNoOpLogger())
	cfg := LoadConfig(config.WorkerConfig{Timeout: 5000}, config.ElasticsearchConfig{})
	h := NewHandler(cfg, loader, db, store, index, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }

	return &fixture{handler: h, mock: mock, bucket: bucket, index: index}
}

var prestationCols = []string{
	"id", "label", "type", "schema_key", "open", "date_du", "date_au", "nombre_limit", "is_attached",
}

func prestationRow(id int64, schemaKey string, open bool, du, au interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(prestationCols).
		AddRow(id, "Prestation", "AIDE", schemaKey, open, du, au, nil, false)
}

func expectPrestation(mock sqlmock.Sqlmock, prestationID int64, schemaKey string) {
	mock.ExpectQuery(`FROM prestation_ref\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(prestationID).
		WillReturnRows(prestationRow(prestationID, schemaKey, true, nil, nil))
}

func expectInsert(mock sqlmock.Sqlmock, schemaKey string, agentID, prestationID, demandeID int64) {
	mock.ExpectBegin()
	expectPrestation(mock, prestationID, schemaKey)
	mock.ExpectQuery(`INSERT INTO demande_prestation`).
		WithArgs(agentID, prestationID, "SOUMISE", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(demandeID))
	mock.ExpectExec(`INSERT INTO demande_historique`).
		WithArgs(demandeID, "SOUMISE", "Demande soumise", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func encoded(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_AideJeunes(t *testing.T) {
	f := setupHandler(t)
	expectInsert(f.mock, "aide_jeunes", 7, 3, 17)

	output, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "aide_jeunes",
		AgentID:      7,
		PrestationID: 3,
		Values: answer.Map{
			"age":             28.0,
			"projet":          "Plantation d'oliviers",
			"montant_demande": 50000.0,
		},
	})
	require.NoError(t, err)

	assert.True(t, output.Accepted)
	assert.Equal(t, int64(17), output.DemandeID)
	assert.Equal(t, "SOUMISE", output.Statut)
	assert.Equal(t, 28.0, output.Answers["age"])
	assert.Equal(t, "Plantation d'oliviers", output.Answers["projet"])
	assert.Empty(t, output.Documents)
	assert.Empty(t, output.InvalidFields)

	doc, ok := f.index.docs["demandes/17"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "aide_jeunes", doc["schemaKey"])
	assert.Contains(t, doc["answersText"], "Plantation d'oliviers")

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandler_Execute_WithDocuments(t *testing.T) {
	f := setupHandler(t)
	expectInsert(f.mock, "consultation_technique", 7, 5, 21)

	output, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "consultation_technique",
		AgentID:      7,
		PrestationID: 5,
		Values: answer.Map{
			"problematique": "Feuilles jaunies sur les agrumes",
			"superficie":    2.5,
		},
		Files: []FileUpload{
			{Field: "photos", Filename: "Parcelle 1.JPG", ContentType: "image/jpeg", Content: encoded("jpeg-1")},
			{Field: "photos", Filename: "Parcelle 1.JPG", ContentType: "image/jpeg", Content: encoded("jpeg-2")},
		},
	})
	require.NoError(t, err)
	require.True(t, output.Accepted)

	require.Len(t, output.Documents, 2)
	first, second := output.Documents[0], output.Documents[1]
	assert.Equal(t, "Parcelle 1.JPG", first.Filename)
	assert.True(t, strings.HasSuffix(first.ID, "/Parcelle_1.jpg"), first.ID)
	assert.True(t, strings.HasSuffix(second.ID, "/Parcelle_1_1.jpg"), second.ID)
	assert.True(t, strings.HasPrefix(first.ID, "2025/"), "folder starts with the upload year")
	assert.Contains(t, first.ID, "/agent_7/pending_")

	content, ok := f.bucket.Object(second.ID)
	require.True(t, ok)
	assert.Equal(t, "jpeg-2", string(content))

	refs, ok := answer.DocumentRefs(output.Answers["photos"])
	require.True(t, ok)
	assert.Equal(t, output.Documents, refs)
	assert.Equal(t, false, output.Answers["urgence"])

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// ==========================
// Rejection Tests
// ==========================

func TestHandler_Execute_MissingRequired(t *testing.T) {
	f := setupHandler(t)

	output, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "consultation_technique",
		AgentID:      7,
		PrestationID: 5,
		Values:       answer.Map{"superficie": 2.5},
		Files: []FileUpload{
			{Field: "photos", Filename: "a.png", ContentType: "image/png", Content: encoded("png")},
		},
	})
	require.NoError(t, err)

	assert.False(t, output.Accepted)
	require.Len(t, output.InvalidFields, 1)
	assert.Equal(t, "problematique", output.InvalidFields[0].Field)
	assert.Equal(t, render.CodeMissingRequired, output.InvalidFields[0].Code)

	assert.Empty(t, f.bucket.Keys(), "uploads of a rejected submission are removed")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandler_Execute_FileRejections(t *testing.T) {
	tests := []struct {
		name string
		file FileUpload
	}{
		{"extension not allowed anywhere", FileUpload{Field: "photos", Filename: "script.exe", Content: encoded("x")}},
		{"extension not accepted by field", FileUpload{Field: "photos", Filename: "rapport.pdf", Content: encoded("%PDF")}},
		{"empty file", FileUpload{Field: "photos", Filename: "vide.png", Content: ""}},
		{"not base64", FileUpload{Field: "photos", Filename: "a.png", Content: "***"}},
		{"unknown field", FileUpload{Field: "inconnu", Filename: "a.png", Content: encoded("png")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupHandler(t)

			output, err := f.handler.Execute(context.Background(), &Input{
				SchemaKey:    "consultation_technique",
				AgentID:      7,
				PrestationID: 5,
				Values:       answer.Map{"problematique": "Irrigation"},
				Files:        []FileUpload{tt.file},
			})
			require.NoError(t, err)

			assert.False(t, output.Accepted)
			require.Len(t, output.InvalidFields, 1)
			assert.Equal(t, tt.file.Field, output.InvalidFields[0].Field)
			assert.Empty(t, f.bucket.Keys())
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_TooManyFiles(t *testing.T) {
	f := setupHandler(t)

	files := make([]FileUpload, 6)
	for i := range files {
		files[i] = FileUpload{Field: "photos", Filename: "p.jpg", Content: encoded("jpeg")}
	}
	output, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "consultation_technique",
		AgentID:      7,
		PrestationID: 5,
		Values:       answer.Map{"problematique": "Irrigation"},
		Files:        files,
	})
	require.NoError(t, err)

	assert.False(t, output.Accepted)
	require.Len(t, output.InvalidFields, 1)
	assert.Equal(t, render.CodeTooManyFiles, output.InvalidFields[0].Code)
	assert.Empty(t, f.bucket.Keys())
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_InsertFailureRemovesUploads(t *testing.T) {
	f := setupHandler(t)
	f.mock.ExpectBegin()
	expectPrestation(f.mock, 5, "consultation_technique")
	f.mock.ExpectQuery(`INSERT INTO demande_prestation`).
		WillReturnError(errors.New("connection reset"))
	f.mock.ExpectRollback()

	_, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "consultation_technique",
		AgentID:      7,
		PrestationID: 5,
		Values:       answer.Map{"problematique": "Irrigation"},
		Files: []FileUpload{
			{Field: "photos", Filename: "a.png", ContentType: "image/png", Content: encoded("png")},
		},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseInsertFailed, apperrors.CodeOf(err))
	assert.Empty(t, f.bucket.Keys())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandler_Execute_StorageFailure(t *testing.T) {
	f := setupHandler(t)
	f.bucket.PutErr = errors.New("bucket unreachable")

	_, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "consultation_technique",
		AgentID:      7,
		PrestationID: 5,
		Values:       answer.Map{"problematique": "Irrigation"},
		Files: []FileUpload{
			{Field: "photos", Filename: "a.png", Content: encoded("png")},
		},
	})
	assert.Equal(t, apperrors.ErrCodeDocumentStorageFailed, apperrors.CodeOf(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandler_Execute_IndexFailureIsNotFatal(t *testing.T) {
	f := setupHandler(t)
	f.index.err = errors.New("cluster red")
	expectInsert(f.mock, "aide_jeunes", 7, 3, 18)

	output, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "aide_jeunes",
		AgentID:      7,
		PrestationID: 3,
		Values:       answer.Map{"age": 30.0, "projet": "Serre", "montant_demande": 1000.0},
	})
	require.NoError(t, err)
	assert.True(t, output.Accepted)
	assert.Equal(t, int64(18), output.DemandeID)
}

func TestHandler_Execute_PrestationChecks(t *testing.T) {
	past := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		rows     *sqlmock.Rows
		wantCode apperrors.ErrorCode
	}{
		{"unknown prestation", sqlmock.NewRows(prestationCols), apperrors.ErrCodePrestationNotFound},
		{"other schema", prestationRow(3, "formation_agriculture", true, nil, nil), apperrors.ErrCodeInvalidInput},
		{"closed", prestationRow(3, "aide_jeunes", false, nil, nil), apperrors.ErrCodePrestationClosed},
		{"period over", prestationRow(3, "aide_jeunes", true, nil, past), apperrors.ErrCodePrestationClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupHandler(t)
			f.mock.ExpectBegin()
			f.mock.ExpectQuery(`FROM prestation_ref`).WithArgs(int64(3)).WillReturnRows(tt.rows)
			f.mock.ExpectRollback()

			_, err := f.handler.Execute(context.Background(), &Input{
				SchemaKey:    "aide_jeunes",
				AgentID:      7,
				PrestationID: 3,
				Values:       answer.Map{"age": 30.0, "projet": "Serre", "montant_demande": 1000.0},
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Empty(t, f.index.docs)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_HiddenFileFieldLeavesNoUpload(t *testing.T) {
	const text = `{"key":"justificatif","title":"Justificatif","fields":[
		{"name":"has_doc","label":"Avec justificatif","type":"checkbox","order":1},
		{"name":"justif","label":"Justificatif","type":"file","order":2,
		 "condition":{"field":"has_doc","operator":"eq","value":"true"}}
	]}`
	f := setupHandlerWith(t, schema.NewFSSource(fstest.MapFS{
		"justificatif.json": {Data: []byte(text)},
	}))
	expectInsert(f.mock, "justificatif", 7, 4, 30)

	output, err := f.handler.Execute(context.Background(), &Input{
		SchemaKey:    "justificatif",
		AgentID:      7,
		PrestationID: 4,
		Values:       answer.Map{"has_doc": false},
		Files: []FileUpload{
			{Field: "justif", Filename: "a.pdf", ContentType: "application/pdf", Content: encoded("pdf")},
		},
	})
	require.NoError(t, err)
	require.True(t, output.Accepted)
	assert.Empty(t, output.Documents)
	assert.NotContains(t, output.Answers, "justif")
	assert.Empty(t, f.bucket.Keys())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandler_Execute_SchemaNotFound(t *testing.T) {
	f := setupHandler(t)

	_, err := f.handler.Execute(context.Background(), &Input{SchemaKey: "absent", AgentID: 1, PrestationID: 1})
	assert.Equal(t, apperrors.ErrCodeSchemaNotFound, apperrors.CodeOf(err))
}

func TestParseInput(t *testing.T) {
	_, err := parseInput(`{"schemaKey":"aide_jeunes","agentId":0,"prestationId":3}`)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	input, err := parseInput(`{"schemaKey":"aide_jeunes","agentId":7,"prestationId":3,
		"files":[{"field":"photos","filename":"a.png","content":"cG5n"}]}`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), input.AgentID)
	require.Len(t, input.Files, 1)
	assert.Equal(t, "cG5n", input.Files[0].Content)
}
