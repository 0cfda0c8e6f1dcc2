package registers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/primaria-digitala/registru/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for registers,
// entries and attached files.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registerColumns = `id, primaria_id, department_id, name, year, next_number, is_open, created_at, updated_at`

// List returns the registers of one primarie, newest year first.
func (r *Repository) List(ctx context.Context, primariaID int64) ([]Register, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+registerColumns+`
		FROM registers WHERE primaria_id = $1 ORDER BY year DESC, name`, primariaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Register
	for rows.Next() {
		reg, err := scanRegister(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// Get fetches a register by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Register, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+registerColumns+` FROM registers WHERE id = $1`, id)
	reg, err := scanRegister(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Register{}, ErrNotFound
	}
	return reg, err
}

// Insert opens a new register with numbering starting at 1.
func (r *Repository) Insert(ctx context.Context, in CreateRegisterInput) (Register, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO registers (primaria_id, department_id, name, year, next_number, is_open, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, TRUE, NOW(), NOW())
		RETURNING `+registerColumns,
		in.PrimariaID, in.DepartmentID, in.Name, in.Year)
	return scanRegister(row)
}

// SetOpen opens or closes a register.
func (r *Repository) SetOpen(ctx context.Context, id int64, open bool) (Register, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE registers SET is_open = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+registerColumns, id, open)
	reg, err := scanRegister(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Register{}, ErrNotFound
	}
	return reg, err
}

// CreateEntry allocates the next number of the register and inserts
// the entry in the same transaction. The register row is locked for
// update so concurrent writers cannot take the same number.
func (r *Repository) CreateEntry(ctx context.Context, in CreateEntryInput) (RecordEntry, error) {
	var entry RecordEntry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			number int64
			isOpen bool
		)
		err := tx.QueryRow(ctx, `
			SELECT next_number, is_open FROM registers
			WHERE id = $1 FOR UPDATE`, in.RegisterID).Scan(&number, &isOpen)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !isOpen {
			return ErrRegisterClosed
		}
		if _, err := tx.Exec(ctx, `
			UPDATE registers SET next_number = next_number + 1, updated_at = NOW()
			WHERE id = $1`, in.RegisterID); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO record_entries (register_id, number, subject, petitioner, created_by_id, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id, register_id, number, subject, petitioner, created_by_id, created_at`,
			in.RegisterID, number, in.Subject, in.Petitioner, in.CreatedByID)
		var createdAt pgtype.Timestamptz
		if err := row.Scan(&entry.ID, &entry.RegisterID, &entry.Number, &entry.Subject,
			&entry.Petitioner, &entry.CreatedByID, &createdAt); err != nil {
			return err
		}
		entry.CreatedAt = createdAt.Time
		return nil
	})
	if err != nil {
		return RecordEntry{}, err
	}
	return entry, nil
}

// ListEntries returns the entries of a register in numbering order.
func (r *Repository) ListEntries(ctx context.Context, registerID int64, limit, offset int) ([]RecordEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, register_id, number, subject, petitioner, created_by_id, created_at
		FROM record_entries WHERE register_id = $1
		ORDER BY number LIMIT $2 OFFSET $3`, registerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecordEntry
	for rows.Next() {
		var (
			e         RecordEntry
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.RegisterID, &e.Number, &e.Subject,
			&e.Petitioner, &e.CreatedByID, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEntry fetches a single entry.
func (r *Repository) GetEntry(ctx context.Context, id int64) (RecordEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, register_id, number, subject, petitioner, created_by_id, created_at
		FROM record_entries WHERE id = $1`, id)
	var (
		e         RecordEntry
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(&e.ID, &e.RegisterID, &e.Number, &e.Subject,
		&e.Petitioner, &e.CreatedByID, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RecordEntry{}, ErrNotFound
	}
	if err != nil {
		return RecordEntry{}, err
	}
	e.CreatedAt = createdAt.Time
	return e, nil
}

// InsertFile records the metadata of an uploaded document.
func (r *Repository) InsertFile(ctx context.Context, f RecordFile) (RecordFile, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO record_files (record_id, file_name, content_type, size_bytes, storage_path, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`,
		f.RecordID, f.FileName, f.ContentType, f.SizeBytes, f.StoragePath, f.UploadedBy)
	var createdAt pgtype.Timestamptz
	if err := row.Scan(&f.ID, &createdAt); err != nil {
		return RecordFile{}, err
	}
	f.CreatedAt = createdAt.Time
	return f, nil
}

// ListFiles returns the files attached to an entry.
func (r *Repository) ListFiles(ctx context.Context, recordID int64) ([]RecordFile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, file_name, content_type, size_bytes, storage_path, uploaded_by, created_at
		FROM record_files WHERE record_id = $1 ORDER BY created_at`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecordFile
	for rows.Next() {
		var (
			f         RecordFile
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&f.ID, &f.RecordID, &f.FileName, &f.ContentType,
			&f.SizeBytes, &f.StoragePath, &f.UploadedBy, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt = createdAt.Time
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanRegister(row interface{ Scan(dest ...any) error }) (Register, error) {
	var (
		reg       Register
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&reg.ID, &reg.PrimariaID, &reg.DepartmentID, &reg.Name, &reg.Year,
		&reg.NextNumber, &reg.IsOpen, &createdAt, &updatedAt); err != nil {
		return Register{}, err
	}
	reg.CreatedAt = createdAt.Time
	reg.UpdatedAt = updatedAt.Time
	return reg, nil
}
