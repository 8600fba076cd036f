// Package queries holds the SQL shared by the demande workers.
package queries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/ellaouzi/fos-app-sub002/internal/models"
)

var ErrNotFound = errors.New("not found")

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DemandeDetails is a demande joined with its agent and prestation.
type DemandeDetails struct {
	Demande    models.Demande
	Agent      models.Agent
	Prestation models.Prestation
}

const demandeColumns = `
	d.id, d.prestation_id, d.agent_id, d.reponse_json, d.documents_json, d.statut,
	d.commentaire, d.date_demande, d.date_traitement, d.date_finalisation, d.traite_par`

type demandeScan struct {
	reponse     sql.NullString
	documents   sql.NullString
	commentaire sql.NullString
	traitement  sql.NullTime
	finalise    sql.NullTime
	traitePar   sql.NullInt64
}

func (s *demandeScan) targets(d *models.Demande) []interface{} {
	return []interface{}{
		&d.ID, &d.PrestationID, &d.AgentID, &s.reponse, &s.documents, &d.Statut,
		&s.commentaire, &d.DateDemande, &s.traitement, &s.finalise, &s.traitePar,
	}
}

func (s *demandeScan) apply(d *models.Demande) {
	d.ReponseJSON = s.reponse.String
	d.DocumentsJSON = nullString(s.documents)
	d.Commentaire = nullString(s.commentaire)
	d.DateTraitement = nullTime(s.traitement)
	d.DateFinalisation = nullTime(s.finalise)
	if s.traitePar.Valid {
		v := s.traitePar.Int64
		d.TraitePar = &v
	}
}

// GetDemandeDetails loads one demande with the names of its agent and
// prestation.
func GetDemandeDetails(ctx context.Context, q Querier, id int64) (*DemandeDetails, error) {
	var out DemandeDetails
	var scan demandeScan
	var schemaKey sql.NullString

	targets := append(scan.targets(&out.Demande),
		&out.Agent.ID, &out.Agent.Nom, &out.Agent.Prenom,
		&out.Prestation.ID, &out.Prestation.Label, &out.Prestation.Type, &schemaKey,
	)
	err := q.QueryRowContext(ctx, `
		SELECT`+demandeColumns+`,
		       a.id, a.nom, a.prenom,
		       p.id, p.label, p.type, p.schema_key
		FROM demande_prestation d
		JOIN adh_agent a ON a.id = d.agent_id
		JOIN prestation_ref p ON p.id = d.prestation_id
		WHERE d.id = $1`, id).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	scan.apply(&out.Demande)
	out.Prestation.SchemaKey = schemaKey.String
	return &out, nil
}

// LockDemande reads a demande row for update inside a transaction.
func LockDemande(ctx context.Context, q Querier, id int64) (*models.Demande, error) {
	var d models.Demande
	var scan demandeScan
	err := q.QueryRowContext(ctx, `
		SELECT`+demandeColumns+`
		FROM demande_prestation d
		WHERE d.id = $1
		FOR UPDATE`, id).Scan(scan.targets(&d)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	scan.apply(&d)
	return &d, nil
}

// UpdateStatut writes the status columns of d.
func UpdateStatut(ctx context.Context, q Querier, d *models.Demande) error {
	_, err := q.ExecContext(ctx, `
		UPDATE demande_prestation
		SET statut = $2, commentaire = $3, date_traitement = $4,
		    date_finalisation = $5, traite_par = $6
		WHERE id = $1`,
		d.ID, d.Statut, d.Commentaire, d.DateTraitement, d.DateFinalisation, d.TraitePar,
	)
	return err
}

func InsertHistorique(ctx context.Context, q Querier, demandeID int64, statut, commentaire string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO demande_historique (demande_id, statut, commentaire, date_changement)
		VALUES ($1, $2, $3, $4)`,
		demandeID, statut, commentaire, at,
	)
	return err
}

func GetPrestation(ctx context.Context, q Querier, id int64) (*models.Prestation, error) {
	return scanPrestation(q.QueryRowContext(ctx, `
		SELECT`+prestationColumns+`
		FROM prestation_ref
		WHERE id = $1`, id))
}

// LockPrestation reads a prestation row for update inside a transaction, so
// that it cannot close while a demande is being recorded against it.
func LockPrestation(ctx context.Context, q Querier, id int64) (*models.Prestation, error) {
	return scanPrestation(q.QueryRowContext(ctx, `
		SELECT`+prestationColumns+`
		FROM prestation_ref
		WHERE id = $1
		FOR UPDATE`, id))
}

const prestationColumns = `
	id, label, type, schema_key, open, date_du, date_au, nombre_limit, is_attached`

func scanPrestation(row *sql.Row) (*models.Prestation, error) {
	var p models.Prestation
	var schemaKey sql.NullString
	var du, au sql.NullTime
	var limit sql.NullInt64

	err := row.Scan(
		&p.ID, &p.Label, &p.Type, &schemaKey, &p.Open, &du, &au, &limit, &p.IsAttached,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.SchemaKey = schemaKey.String
	p.DateDu = nullTime(du)
	p.DateAu = nullTime(au)
	p.NombreLimit = int(limit.Int64)
	return &p, nil
}

// CountDemandes counts the demandes of a prestation in any of statuts.
func CountDemandes(ctx context.Context, q Querier, prestationID int64, statuts []string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM demande_prestation
		WHERE prestation_id = $1 AND statut = ANY($2)`,
		prestationID, pq.Array(statuts),
	).Scan(&n)
	return n, err
}

// HasActiveDemande reports whether the agent already has a demande in
// progress for the prestation.
func HasActiveDemande(ctx context.Context, q Querier, agentID, prestationID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM demande_prestation
			WHERE agent_id = $1 AND prestation_id = $2 AND statut = ANY($3)
		)`,
		agentID, prestationID, pq.Array([]string{models.StatutSoumise, models.StatutEnCours}),
	).Scan(&exists)
	return exists, err
}

func GetAgent(ctx context.Context, q Querier, id int64) (*models.Agent, error) {
	var a models.Agent
	var email, phone sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, nom, prenom, email, num_tel
		FROM adh_agent
		WHERE id = $1`, id).Scan(&a.ID, &a.Nom, &a.Prenom, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Email = email.String
	a.Phone = phone.String
	return &a, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
