package absence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists absences and justifications in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertRecord writes a new absence record.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO absences (id, student_id, student_name, group_name, date, start_time, end_time, hours, subject, teacher_name, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.StudentName, rec.GroupName, rec.Date, rec.StartTime, rec.EndTime, rec.Hours, rec.Subject, rec.TeacherName, rec.Notes, rec.Status)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// GetRecord returns a single absence by id.
func (r *Repository) GetRecord(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, student_name, group_name, date, start_time, end_time, hours, subject, teacher_name, notes, status, created_at
		FROM absences WHERE id = $1
	`, id)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.GroupName, &rec.Date, &rec.StartTime, &rec.EndTime, &rec.Hours, &rec.Subject, &rec.TeacherName, &rec.Notes, &rec.Status, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpdateRecordStatus sets an absence's justification status.
func (r *Repository) UpdateRecordStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE absences SET status = $2 WHERE id = $1`, id, status)
	return err
}

// ListRecords returns absences with basic filters, newest first.
func (r *Repository) ListRecords(ctx context.Context, f ListFilter) ([]Record, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT id, student_id, student_name, group_name, date, start_time, end_time, hours, subject, teacher_name, notes, status, created_at FROM absences`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		clauses = append(clauses, "student_id = $"+itoa(len(args)+1))
		args = append(args, f.StudentID)
	}
	if f.Group != "" {
		clauses = append(clauses, "group_name = $"+itoa(len(args)+1))
		args = append(args, f.Group)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = $"+itoa(len(args)+1))
		args = append(args, f.Status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.GroupName, &rec.Date, &rec.StartTime, &rec.EndTime, &rec.Hours, &rec.Subject, &rec.TeacherName, &rec.Notes, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListStudentSummaries returns every student with their summed absence hours.
// Students without absences come back with zero hours.
func (r *Repository) ListStudentSummaries(ctx context.Context) ([]StudentSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.first_name || ' ' || s.last_name, s.group_name, COALESCE(SUM(a.hours), 0)
		FROM students s
		LEFT JOIN absences a ON a.student_id = s.id
		GROUP BY s.id, s.first_name, s.last_name, s.group_name
		ORDER BY s.group_name, s.last_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StudentSummary
	for rows.Next() {
		var s StudentSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.GroupName, &s.TotalAbsenceHours); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// InsertJustification files a justification for an absence.
func (r *Repository) InsertJustification(ctx context.Context, j Justification) (Justification, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = ReviewPending
	}
	if j.SubmittedAt.IsZero() {
		j.SubmittedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO justifications (id, absence_id, reason, file_name, file_type, file_url, status, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, j.ID, j.AbsenceID, j.Reason, j.FileName, j.FileType, j.FileURL, j.Status, j.SubmittedAt)
	if err != nil {
		return Justification{}, err
	}
	return j, nil
}

// GetJustification returns a justification joined with its absence, or nil when absent.
func (r *Repository) GetJustification(ctx context.Context, id string) (*Justification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT j.id, j.absence_id, a.student_name, a.date, a.hours, j.reason, j.file_name, j.file_type, j.file_url, j.status, j.submitted_at
		FROM justifications j
		JOIN absences a ON a.id = j.absence_id
		WHERE j.id = $1
	`, id)
	var j Justification
	if err := row.Scan(&j.ID, &j.AbsenceID, &j.StudentName, &j.Date, &j.Hours, &j.Reason, &j.FileName, &j.FileType, &j.FileURL, &j.Status, &j.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

// ListJustifications returns justifications, optionally filtered by status.
func (r *Repository) ListJustifications(ctx context.Context, status string) ([]Justification, error) {
	query := `
		SELECT j.id, j.absence_id, a.student_name, a.date, a.hours, j.reason, j.file_name, j.file_type, j.file_url, j.status, j.submitted_at
		FROM justifications j
		JOIN absences a ON a.id = j.absence_id`
	args := []any{}
	if status != "" {
		query += ` WHERE j.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY j.submitted_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Justification
	for rows.Next() {
		var j Justification
		if err := rows.Scan(&j.ID, &j.AbsenceID, &j.StudentName, &j.Date, &j.Hours, &j.Reason, &j.FileName, &j.FileType, &j.FileURL, &j.Status, &j.SubmittedAt); err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// StudentIDForJustification resolves the student behind a justification.
func (r *Repository) StudentIDForJustification(ctx context.Context, id string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT a.student_id
		FROM justifications j
		JOIN absences a ON a.id = j.absence_id
		WHERE j.id = $1
	`, id)
	var studentID string
	if err := row.Scan(&studentID); err != nil {
		return "", err
	}
	return studentID, nil
}

// UpdateJustificationStatus records a review outcome.
func (r *Repository) UpdateJustificationStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE justifications SET status = $2 WHERE id = $1`, id, status)
	return err
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
