package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smallbiznis/decisionlog/internal/domain"
)

// DB is the subset of pgxpool.Pool used by the repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time interface assertions.
var (
	_ UserRepository     = (*PostgresUserRepo)(nil)
	_ DecisionRepository = (*PostgresDecisionRepo)(nil)
	_ OptionRepository   = (*PostgresOptionRepo)(nil)
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func mapNoRows(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db DB
}

func NewPostgresUserRepo(db DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id::text, email, role, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, mapNoRows("get user", err)
	}
	return u, nil
}

const insertUserSQL = `INSERT INTO users (id, email, role)
VALUES ($1, $2, $3)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}
	created, err := scanUser(r.db.QueryRow(ctx, insertUserSQL, user.ID, user.Email, role))
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id, role string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns, id, role))
	if err != nil {
		return domain.User{}, mapNoRows("update user role", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) Count(ctx context.Context, role string) (int64, error) {
	var n int64
	var err error
	if role == "" {
		err = r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	} else {
		err = r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE role = $1`, role).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// PostgresDecisionRepo implements DecisionRepository.
type PostgresDecisionRepo struct {
	db DB
}

func NewPostgresDecisionRepo(db DB) *PostgresDecisionRepo {
	return &PostgresDecisionRepo{db: db}
}

const decisionColumns = `id::text, owner_id::text, title, description, created_at, updated_at, is_active`

func scanDecision(row pgx.Row) (domain.Decision, error) {
	var d domain.Decision
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Description, &d.CreatedAt, &d.UpdatedAt, &d.IsActive)
	return d, err
}

const insertDecisionSQL = `INSERT INTO decisions (id, owner_id, title, description, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + decisionColumns

func (r *PostgresDecisionRepo) Create(ctx context.Context, decision domain.Decision) (domain.Decision, error) {
	created, err := scanDecision(r.db.QueryRow(ctx, insertDecisionSQL,
		decision.ID,
		decision.OwnerID,
		decision.Title,
		decision.Description,
		decision.IsActive,
	))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("create decision: %w", err)
	}
	return created, nil
}

func (r *PostgresDecisionRepo) GetByID(ctx context.Context, id string) (domain.Decision, error) {
	d, err := scanDecision(r.db.QueryRow(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id = $1`, id))
	if err != nil {
		return domain.Decision{}, mapNoRows("get decision", err)
	}
	return d, nil
}

func (r *PostgresDecisionRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Decision, error) {
	rows, err := r.db.Query(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]domain.Decision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return decisions, nil
}

const updateDecisionSQL = `UPDATE decisions SET
	title = COALESCE($3::text, title),
	description = CASE WHEN $4::boolean THEN $5::text ELSE description END,
	is_active = COALESCE($6::boolean, is_active),
	updated_at = now()
WHERE id = $1 AND owner_id = $2
RETURNING ` + decisionColumns

func (r *PostgresDecisionRepo) Update(ctx context.Context, id, ownerID string, patch domain.DecisionPatch) (domain.Decision, error) {
	d, err := scanDecision(r.db.QueryRow(ctx, updateDecisionSQL, id, ownerID,
		patch.Title, patch.Description.Set, patch.Description.Value, patch.IsActive))
	if err != nil {
		return domain.Decision{}, mapNoRows("update decision", err)
	}
	return d, nil
}

func (r *PostgresDecisionRepo) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM decisions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete decision: %w", ErrNotFound)
	}
	return nil
}

func (r *PostgresDecisionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

// PostgresOptionRepo implements OptionRepository.
type PostgresOptionRepo struct {
	db DB
}

func NewPostgresOptionRepo(db DB) *PostgresOptionRepo {
	return &PostgresOptionRepo{db: db}
}

const optionColumns = `id::text, decision_id::text, option_text, rating, created_at, updated_at`

func scanOption(row pgx.Row) (domain.Option, error) {
	var o domain.Option
	var rating *int16
	if err := row.Scan(&o.ID, &o.DecisionID, &o.OptionText, &rating, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Option{}, err
	}
	if rating != nil {
		v := int(*rating)
		o.Rating = &v
	}
	return o, nil
}

func ratingArg(rating *int) *int16 {
	if rating == nil {
		return nil
	}
	v := int16(*rating)
	return &v
}

const insertOptionSQL = `INSERT INTO decision_options (id, decision_id, option_text, rating)
VALUES ($1, $2, $3, $4)
RETURNING ` + optionColumns

func (r *PostgresOptionRepo) Create(ctx context.Context, option domain.Option) (domain.Option, error) {
	created, err := scanOption(r.db.QueryRow(ctx, insertOptionSQL,
		option.ID,
		option.DecisionID,
		option.OptionText,
		ratingArg(option.Rating),
	))
	if err != nil {
		return domain.Option{}, fmt.Errorf("create option: %w", err)
	}
	return created, nil
}

func (r *PostgresOptionRepo) GetByID(ctx context.Context, id string) (domain.Option, error) {
	o, err := scanOption(r.db.QueryRow(ctx, `SELECT `+optionColumns+` FROM decision_options WHERE id = $1`, id))
	if err != nil {
		return domain.Option{}, mapNoRows("get option", err)
	}
	return o, nil
}

func (r *PostgresOptionRepo) ListByDecision(ctx context.Context, decisionID string) ([]domain.Option, error) {
	rows, err := r.db.Query(ctx, `SELECT `+optionColumns+` FROM decision_options WHERE decision_id = $1 ORDER BY created_at`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	options := make([]domain.Option, 0)
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	return options, nil
}

const updateOptionSQL = `UPDATE decision_options SET
	option_text = COALESCE($2::text, option_text),
	rating = CASE WHEN $3::boolean THEN $4::smallint ELSE rating END,
	updated_at = now()
WHERE id = $1
RETURNING ` + optionColumns

func (r *PostgresOptionRepo) Update(ctx context.Context, id string, patch domain.OptionPatch) (domain.Option, error) {
	o, err := scanOption(r.db.QueryRow(ctx, updateOptionSQL, id,
		patch.OptionText, patch.Rating.Set, ratingArg(patch.Rating.Value)))
	if err != nil {
		return domain.Option{}, mapNoRows("update option", err)
	}
	return o, nil
}

func (r *PostgresOptionRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM decision_options WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete option: %w", ErrNotFound)
	}
	return nil
}

func (r *PostgresOptionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM decision_options`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count options: %w", err)
	}
	return n, nil
}
