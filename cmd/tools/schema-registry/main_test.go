package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
	"github.com/ellaouzi/fos-app-sub002/pkg/registry"
)

const olivesSchema = `{"key":"olives","title":"Olives","fields":[
	{"name":"surface","label":"Surface (ha)","type":"number","required":true,"order":1}
]}`

func setupCatalog(t *testing.T, files map[string]string, entries ...registry.Entry) (*registry.Catalog, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return &registry.Catalog{Version: "1", Schemas: entries}, dir
}

func TestValidateCatalog(t *testing.T) {
	c, dir := setupCatalog(t,
		map[string]string{
			"olives.json":    olivesSchema,
			"carte.json":     `{"key":"carte","fields":[{"name":"zone","type":"map"}]}`,
			"mauvais.json":   `{"key":"autre","fields":[]}`,
			"illisible.json": `{"key":`,
		},
		registry.Entry{Key: "olives", File: "olives.json", Status: registry.StatusPublished},
	)
	assert.NoError(t, validateCatalog(c, dir))

	c.Schemas = append(c.Schemas,
		registry.Entry{Key: "carte", File: "carte.json", Status: registry.StatusDraft},
		registry.Entry{Key: "mauvais", File: "mauvais.json", Status: registry.StatusDraft},
		registry.Entry{Key: "illisible", File: "illisible.json", Status: registry.StatusDraft},
	)
	err := validateCatalog(c, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carte:")
	assert.Contains(t, err.Error(), `mauvais: file declares key "autre"`)
	assert.Contains(t, err.Error(), "illisible:")
	assert.NotContains(t, err.Error(), "olives")
}

func TestSelectEntries(t *testing.T) {
	c := &registry.Catalog{Schemas: []registry.Entry{
		{Key: "a", Status: registry.StatusPublished},
		{Key: "b", Status: registry.StatusDraft},
	}}

	all, err := selectEntries(c, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Key)

	one, err := selectEntries(c, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", one[0].Key)

	_, err = selectEntries(c, "z")
	assert.ErrorIs(t, err, registry.ErrEntryNotFound)
}

func TestPublish(t *testing.T) {
	c, dir := setupCatalog(t,
		map[string]string{"olives.json": olivesSchema},
		registry.Entry{Key: "olives", File: "olives.json", Status: registry.StatusPublished},
	)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE prestation_ref SET form_schema_json`).
		WithArgs("olives", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	loader := schema.NewLoader(schema.NewPostgresSource(db), logger.NewTestLogger(t))
	require.NoError(t, publish(context.Background(), loader, c.Published(), dir))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_NoPrestation(t *testing.T) {
	c, dir := setupCatalog(t,
		map[string]string{"olives.json": olivesSchema},
		registry.Entry{Key: "olives", File: "olives.json", Status: registry.StatusPublished},
	)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(`UPDATE prestation_ref`).WillReturnResult(sqlmock.NewResult(0, 0))

	loader := schema.NewLoader(schema.NewPostgresSource(db), logger.NewNoOpLogger())
	err = publish(context.Background(), loader, c.Published(), dir)
	assert.True(t, errors.Is(err, schema.ErrSchemaTextNotFound))
	assert.False(t, apperrors.HasCode(err, apperrors.ErrCodeSchemaMalformed))
}
