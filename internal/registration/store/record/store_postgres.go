package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/platform/tx"
)

// PostgresRecordStore persists education records in PostgreSQL. Choice fields
// are stored in the external integer schema; the codec in this package is the
// only place that mapping exists.
type PostgresRecordStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

const recordColumns = `id, member_number, account_id, graduation_year, institution_name,
	institution_region, country, degree_type, works_in_industry, category, created_at`

func (s *PostgresRecordStore) Create(ctx context.Context, record *models.EducationRecord) (*models.EducationRecord, error) {
	if record.ID.IsNil() {
		record.ID = id.NewRecordID()
	}
	region, degree, cat, err := encodeChoices(record)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO education_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID.String(), record.MemberNumber.String(), record.AccountID.String(),
		record.GraduationYear, record.InstitutionName, region, record.Country,
		degree, record.WorksInIndustry, cat, record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("create record: %w", err)
	}
	out := *record
	return &out, nil
}

func (s *PostgresRecordStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.EducationRecord, error) {
	row := tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM education_records
		WHERE id = $1`,
		recordID.String(),
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return record, nil
}

func (s *PostgresRecordStore) FindByFilter(ctx context.Context, filter models.RecordFilter) ([]*models.EducationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM education_records WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if !filter.MemberNumber.IsEmpty() {
		query += ` AND member_number = ` + arg(filter.MemberNumber.String())
	}
	if !filter.AccountID.IsEmpty() {
		query += ` AND account_id = ` + arg(filter.AccountID.String())
	}
	if !filter.ExcludeID.IsNil() {
		query += ` AND id <> ` + arg(filter.ExcludeID.String())
	}
	if filter.YearFrom != 0 {
		query += ` AND graduation_year >= ` + arg(filter.YearFrom)
	}
	if filter.YearTo != 0 {
		query += ` AND graduation_year <= ` + arg(filter.YearTo)
	}

	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	defer rows.Close()

	var out []*models.EducationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	return out, nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, record *models.EducationRecord) (*models.EducationRecord, error) {
	region, degree, cat, err := encodeChoices(record)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE education_records
		SET member_number = $2, account_id = $3, graduation_year = $4,
		    institution_name = $5, institution_region = $6, country = $7,
		    degree_type = $8, works_in_industry = $9, category = $10
		WHERE id = $1`,
		record.ID.String(), record.MemberNumber.String(), record.AccountID.String(),
		record.GraduationYear, record.InstitutionName, region, record.Country,
		degree, record.WorksInIndustry, cat,
	)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrNotFound
	}
	out := *record
	return &out, nil
}

func (s *PostgresRecordStore) Delete(ctx context.Context, recordID id.RecordID) error {
	result, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `DELETE FROM education_records WHERE id = $1`, recordID.String())
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func encodeChoices(record *models.EducationRecord) (region, degree, category int, err error) {
	region, err = encodeRegion(record.InstitutionRegion)
	if err != nil {
		return 0, 0, 0, err
	}
	degree, err = encodeDegree(record.DegreeType)
	if err != nil {
		return 0, 0, 0, err
	}
	category, err = encodeCategory(record.Category)
	if err != nil {
		return 0, 0, 0, err
	}
	return region, degree, category, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.EducationRecord, error) {
	var (
		record                      models.EducationRecord
		rawID, member, account      string
		regionCode, degreeCode, cat int
	)
	err := row.Scan(&rawID, &member, &account, &record.GraduationYear,
		&record.InstitutionName, &regionCode, &record.Country, &degreeCode,
		&record.WorksInIndustry, &cat, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.ID, err = id.ParseRecordID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	record.MemberNumber = id.MemberNumber(member)
	record.AccountID = id.AccountID(account)
	record.InstitutionRegion, err = decodeRegion(regionCode)
	if err != nil {
		return nil, err
	}
	record.DegreeType, err = decodeDegree(degreeCode)
	if err != nil {
		return nil, err
	}
	record.Category, err = decodeCategory(cat)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
