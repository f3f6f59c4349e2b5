package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Anupam-Kumar2505/djsce-resources/types"
)

const fileColumns = "id, file_url, remote_key, name, subject, type, year, approved, created_at, updated_at"

// FileRepository handles persistence for catalogue file records.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Get(ctx context.Context, id int) (types.File, error) {
	const query = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE id = $1`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

// ListYears returns the distinct set of years present in the catalogue.
func (r *FileRepository) ListYears(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT year FROM files ORDER BY year`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	years := make([]string, 0, len(types.Years))
	for rows.Next() {
		var year string
		if err := rows.Scan(&year); err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	return years, rows.Err()
}

// ListByYear returns the year's records partitioned by approval state,
// each newest first.
func (r *FileRepository) ListByYear(ctx context.Context, year string) (approved, pending []types.File, err error) {
	const query = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE year = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, year)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	approved = []types.File{}
	pending = []types.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, nil, err
		}
		if file.Approved {
			approved = append(approved, file)
		} else {
			pending = append(pending, file)
		}
	}
	return approved, pending, rows.Err()
}

// ListApprovedByYear returns only the year's approved records, newest first.
func (r *FileRepository) ListApprovedByYear(ctx context.Context, year string) ([]types.File, error) {
	const query = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE year = $1 AND approved = TRUE
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []types.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// ListPending returns all unapproved records, newest first.
func (r *FileRepository) ListPending(ctx context.Context) ([]types.File, error) {
	const query = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE approved = FALSE
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []types.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// Create inserts a new record with the approval flag forced to false.
// Returns ErrConflict when the remote URL is already catalogued.
func (r *FileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	now := time.Now()
	file.CreatedAt = now
	file.UpdatedAt = now
	file.Approved = false

	const query = `
		INSERT INTO files (file_url, remote_key, name, subject, type, year, approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		file.FileURL,
		file.RemoteKey,
		file.Name,
		file.Subject,
		file.Type,
		file.Year,
		file.Approved,
		file.CreatedAt,
		file.UpdatedAt,
	).Scan(&file.ID); err != nil {
		if isUniqueViolation(err) {
			return types.File{}, ErrConflict
		}
		return types.File{}, err
	}
	return file, nil
}

// UpdateFields merges the provided name/subject/type values into the record.
// URL and year are immutable. Empty strings leave the stored value untouched.
func (r *FileRepository) UpdateFields(ctx context.Context, id int, name, subject, fileType string) (types.File, error) {
	const query = `
		UPDATE files
		SET name = COALESCE(NULLIF($1, ''), name),
			subject = COALESCE(NULLIF($2, ''), subject),
			type = COALESCE(NULLIF($3, ''), type),
			updated_at = $4
		WHERE id = $5
		RETURNING ` + fileColumns
	file, err := scanFile(r.db.QueryRowContext(ctx, query,
		strings.TrimSpace(name),
		strings.TrimSpace(subject),
		strings.TrimSpace(fileType),
		time.Now(),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

// Approve flips the approval flag and returns the updated record.
func (r *FileRepository) Approve(ctx context.Context, id int) (types.File, error) {
	const query = `
		UPDATE files
		SET approved = TRUE, updated_at = $1
		WHERE id = $2
		RETURNING ` + fileColumns
	file, err := scanFile(r.db.QueryRowContext(ctx, query, time.Now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

func (r *FileRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM files WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (types.File, error) {
	var file types.File
	err := row.Scan(
		&file.ID,
		&file.FileURL,
		&file.RemoteKey,
		&file.Name,
		&file.Subject,
		&file.Type,
		&file.Year,
		&file.Approved,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	return file, err
}
