package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

type Patient struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	MRN       string    `json:"mrn"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Note struct {
	ID           int64     `json:"id"`
	PatientID    int64     `json:"patient_id"`
	NoteType     string    `json:"note_type"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	IsFlagged    bool      `json:"is_flagged"`
	AnomalyScore *float64  `json:"anomaly_score"`
}

type Store struct {
	conn *sql.DB
	now  func() time.Time
}

func Open(path string) (*Store, error) {
	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	return &Store{conn: conn, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.MRN = strings.TrimSpace(p.MRN)
	if p.FirstName == "" || p.LastName == "" || p.MRN == "" {
		return Patient{}, fmt.Errorf("patient requires first name, last name and mrn")
	}
	if p.Status == "" {
		p.Status = "Active"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO patients(first_name, last_name, mrn, status, created_at) VALUES(?,?,?,?,?)`,
		p.FirstName, p.LastName, p.MRN, p.Status, p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return Patient{}, fmt.Errorf("patient last insert id: %w", err)
	}
	return p, nil
}

func (s *Store) GetPatient(ctx context.Context, id int64) (Patient, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, mrn, status, created_at FROM patients WHERE id = ?`, id)
	var p Patient
	var created int64
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.MRN, &p.Status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Patient{}, fmt.Errorf("patient %d: %w", id, ErrNotFound)
		}
		return Patient{}, fmt.Errorf("scan patient: %w", err)
	}
	p.CreatedAt = time.Unix(0, created)
	return p, nil
}

// ListPatients returns every patient ordered by last then first name.
func (s *Store) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, first_name, last_name, mrn, status, created_at FROM patients ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()
	out := []Patient{}
	for rows.Next() {
		var p Patient
		var created int64
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.MRN, &p.Status, &created); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		p.CreatedAt = time.Unix(0, created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) InsertNote(ctx context.Context, n Note) (Note, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.IsFlagged = false
	n.AnomalyScore = nil
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO case_notes(patient_id, note_type, title, content, created_at) VALUES(?,?,?,?,?)`,
		n.PatientID, n.NoteType, n.Title, n.Content, n.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	n.ID, err = res.LastInsertId()
	if err != nil {
		return Note{}, fmt.Errorf("note last insert id: %w", err)
	}
	return n, nil
}

const noteColumns = `id, patient_id, note_type, title, content, created_at, is_flagged, anomaly_score`

func (s *Store) GetNote(ctx context.Context, id int64) (Note, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM case_notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Note{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
		}
		return Note{}, err
	}
	return n, nil
}

// ListNotes returns a patient's notes oldest first.
func (s *Store) ListNotes(ctx context.Context, patientID int64) ([]Note, error) {
	return s.queryNotes(ctx,
		`SELECT `+noteColumns+` FROM case_notes WHERE patient_id = ? ORDER BY created_at, id`, patientID)
}

// PreviousNotes returns up to limit notes of the same patient written
// strictly before n, most recent first.
func (s *Store) PreviousNotes(ctx context.Context, n Note, limit int) ([]Note, error) {
	created := n.CreatedAt.UnixNano()
	return s.queryNotes(ctx, `
		SELECT `+noteColumns+` FROM case_notes
		WHERE patient_id = ? AND id != ? AND (created_at < ? OR (created_at = ? AND id < ?))
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		n.PatientID, n.ID, created, created, n.ID, limit)
}

func (s *Store) UpdateAnomaly(ctx context.Context, noteID int64, flagged bool, score float64) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE case_notes SET is_flagged = ?, anomaly_score = ? WHERE id = ?`, flagged, score, noteID)
	if err != nil {
		return fmt.Errorf("update anomaly: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update anomaly rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("note %d: %w", noteID, ErrNotFound)
	}
	return nil
}

// FlaggedNotes returns every flagged note, highest score first.
func (s *Store) FlaggedNotes(ctx context.Context) ([]Note, error) {
	return s.queryNotes(ctx,
		`SELECT `+noteColumns+` FROM case_notes WHERE is_flagged = 1 ORDER BY anomaly_score DESC, id`)
}

// NoteIDs returns note ids oldest first, optionally restricted to one patient.
func (s *Store) NoteIDs(ctx context.Context, patientID *int64) ([]int64, error) {
	query := `SELECT id FROM case_notes ORDER BY created_at, id`
	args := []any{}
	if patientID != nil {
		query = `SELECT id FROM case_notes WHERE patient_id = ? ORDER BY created_at, id`
		args = append(args, *patientID)
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query note ids: %w", err)
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan note id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "patients", "case_notes":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	row := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	return count, nil
}

func (s *Store) CountFlagged(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM case_notes WHERE is_flagged = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan flagged count: %w", err)
	}
	return count, nil
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()
	out := []Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (Note, error) {
	var n Note
	var created int64
	var score sql.NullFloat64
	if err := row.Scan(&n.ID, &n.PatientID, &n.NoteType, &n.Title, &n.Content, &created, &n.IsFlagged, &score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Note{}, err
		}
		return Note{}, fmt.Errorf("scan note: %w", err)
	}
	n.CreatedAt = time.Unix(0, created)
	if score.Valid {
		v := score.Float64
		n.AnomalyScore = &v
	}
	return n, nil
}
