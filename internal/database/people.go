package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authkit/internal/util"

	"github.com/jackc/pgx/v5"
)

type Person struct {
	ID        int64
	UserID    int64
	FirstName string
	LastName  string
	Phone     string
	Address   string
	BirthDate util.Optional[time.Time]
	Gender    string
	CreatedBy util.Optional[int64]
	UpdatedBy util.Optional[int64]
	DeletedBy util.Optional[int64]
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt util.Optional[time.Time]
}

// FullName concatenates first and last name, trimming when either is empty.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age computes full years since birth date as of now; unset birth dates
// yield an unset age.
func (p Person) Age(now time.Time) util.Optional[int] {
	if !p.BirthDate.IsSet {
		return util.None[int]()
	}
	b := p.BirthDate.Val
	years := now.Year() - b.Year()
	anniversary := time.Date(now.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	if now.Before(anniversary) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return util.Some(years)
}

const personColumns = `id, user_id, first_name, last_name, phone, address, birth_date, gender, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`

func scanPerson(row pgx.Row) (Person, error) {
	var p Person
	err := row.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.Phone, &p.Address,
		&p.BirthDate, &p.Gender, &p.CreatedBy, &p.UpdatedBy, &p.DeletedBy,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return p, err
}

var personSortColumns = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"created_at": "created_at",
}

type ListPeopleParams struct {
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (db *Database) ListPeople(ctx context.Context, params ListPeopleParams) ([]Person, int, error) {
	var where strings.Builder
	where.WriteString(` WHERE deleted_at IS NULL`)
	var args []any
	argNum := 1

	if params.Search != "" {
		where.WriteString(fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR phone ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+params.Search+"%")
		argNum++
	}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_person`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count people: %w", err)
	}

	order := sortClause(personSortColumns, params.SortBy, params.SortOrder, "last_name")
	query := fmt.Sprintf(`SELECT %s FROM tbl_person%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		personColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list people: %w", err)
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan person: %w", err)
		}
		people = append(people, person)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate people: %w", err)
	}

	return people, total, nil
}

type CreatePersonParams struct {
	UserID    int64
	FirstName string
	LastName  string
	Phone     string
	Address   string
	BirthDate util.Optional[time.Time]
	Gender    string
	CreatedBy util.Optional[int64]
}

func (db *Database) CreatePerson(ctx context.Context, params CreatePersonParams) (Person, error) {
	return db.createPerson(ctx, db.Pool, params)
}

func (db *Database) createPerson(ctx context.Context, q rowQuerier, params CreatePersonParams) (Person, error) {
	now := time.Now().UTC()
	person := Person{
		UserID:    params.UserID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Phone:     params.Phone,
		Address:   params.Address,
		BirthDate: params.BirthDate,
		Gender:    params.Gender,
		CreatedBy: params.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := q.QueryRow(ctx, `INSERT INTO tbl_person (user_id, first_name, last_name, phone, address, birth_date, gender, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		person.UserID, person.FirstName, person.LastName, person.Phone, person.Address,
		person.BirthDate, person.Gender, person.CreatedBy, person.CreatedAt, person.UpdatedAt).Scan(&person.ID)
	if err != nil {
		if isUniqueViolation(err) {
			// At most one person per user.
			return person, ErrDuplicateAssignment
		}
		return person, fmt.Errorf("database: failed to insert person (user_id=%d): %w", person.UserID, err)
	}
	return person, nil
}

func (db *Database) GetPersonByID(ctx context.Context, id int64) (Person, error) {
	person, err := scanPerson(db.Pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM tbl_person WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return person, ErrPersonNotFound
		}
		return person, fmt.Errorf("database: failed to scan person: %w", err)
	}
	return person, nil
}

func (db *Database) GetPersonByUserID(ctx context.Context, userID int64) (Person, error) {
	person, err := scanPerson(db.Pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM tbl_person WHERE user_id = $1 AND deleted_at IS NULL`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return person, ErrPersonNotFound
		}
		return person, fmt.Errorf("database: failed to scan person: %w", err)
	}
	return person, nil
}

type UpdatePersonParams struct {
	FirstName util.Optional[string]
	LastName  util.Optional[string]
	Phone     util.Optional[string]
	Address   util.Optional[string]
	BirthDate util.Optional[time.Time]
	Gender    util.Optional[string]
	UpdatedBy util.Optional[int64]
}

func (db *Database) UpdatePerson(ctx context.Context, id int64, params UpdatePersonParams) (Person, error) {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_person SET `)
	var args []any
	argNum := 1

	set := func(col string, val any) {
		query.WriteString(fmt.Sprintf("%s = $%d, ", col, argNum))
		args = append(args, val)
		argNum++
	}
	if params.FirstName.IsSet {
		set("first_name", params.FirstName.Val)
	}
	if params.LastName.IsSet {
		set("last_name", params.LastName.Val)
	}
	if params.Phone.IsSet {
		set("phone", params.Phone.Val)
	}
	if params.Address.IsSet {
		set("address", params.Address.Val)
	}
	if params.BirthDate.IsSet {
		set("birth_date", params.BirthDate.Val)
	}
	if params.Gender.IsSet {
		set("gender", params.Gender.Val)
	}
	query.WriteString(fmt.Sprintf("updated_by = $%d, updated_at = $%d WHERE id = $%d AND deleted_at IS NULL RETURNING %s",
		argNum, argNum+1, argNum+2, personColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	person, err := scanPerson(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return person, ErrPersonNotFound
		}
		return person, fmt.Errorf("database: failed to update person (id=%d): %w", id, err)
	}
	return person, nil
}

func (db *Database) SoftDeletePerson(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_person SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete person (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func (db *Database) RestorePerson(ctx context.Context, id int64) (Person, error) {
	existing, err := scanPerson(db.Pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM tbl_person WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return existing, ErrPersonNotFound
		}
		return existing, fmt.Errorf("database: failed to scan person: %w", err)
	}
	if !existing.DeletedAt.IsSet {
		return existing, ErrNotDeleted
	}

	person, err := scanPerson(db.Pool.QueryRow(ctx,
		`UPDATE tbl_person SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+personColumns,
		time.Now().UTC(), id))
	if err != nil {
		return person, fmt.Errorf("database: failed to restore person (id=%d): %w", id, err)
	}
	return person, nil
}
