package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
)

// ReferenceRepository handles database operations for file references.
type ReferenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository creates a new reference repository.
func NewReferenceRepository(pool *pgxpool.Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

const selectReference = `
	SELECT ref.uid, ref.uid_local, ref.crop,
	       COALESCE(file.identifier, ''), COALESCE(file.extension, ''), COALESCE(file.mime_type, ''),
	       COALESCE(meta.width, 0), COALESCE(meta.height, 0),
	       COALESCE(meta.alternative, ''), COALESCE(meta.title, '')
	FROM sys_file_reference ref
	JOIN sys_file file ON file.uid = ref.uid_local
	LEFT JOIN sys_file_metadata meta ON meta.file = ref.uid_local`

func scanReference(row pgx.Row) (*domain.Reference, error) {
	var ref domain.Reference
	err := row.Scan(&ref.ID, &ref.FileID, &ref.Crop,
		&ref.ObjectKey, &ref.Extension, &ref.MimeType,
		&ref.Width, &ref.Height, &ref.Alternative, &ref.Title)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetByID retrieves a file reference by ID.
func (r *ReferenceRepository) GetByID(ctx context.Context, id int64) (*domain.Reference, error) {
	ref, err := scanReference(r.pool.QueryRow(ctx, selectReference+` WHERE ref.uid = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference: %w", err)
	}
	return ref, nil
}

// ListByIDs retrieves the file references with the given IDs, ordered by ID.
func (r *ReferenceRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Reference, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, selectReference+` WHERE ref.uid = ANY($1) ORDER BY ref.uid`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	defer rows.Close()

	var refs []*domain.Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	return refs, nil
}

// UpdateCrop stores a new crop configuration if the stored one still equals
// old. It reports false when another writer changed the record first.
func (r *ReferenceRepository) UpdateCrop(ctx context.Context, id int64, old *string, crop string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sys_file_reference SET crop = $2 WHERE uid = $1 AND crop IS NOT DISTINCT FROM $3
	`, id, crop, old)
	if err != nil {
		return false, fmt.Errorf("failed to update crop: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ForeignUIDs returns the IDs of the records related through an inline or
// file field.
func (r *ReferenceRepository) ForeignUIDs(ctx context.Context, q domain.RelationQuery) ([]int64, error) {
	sql, args, err := buildRelationQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s relations: %w", q.ForeignTable, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s relations: %w", q.ForeignTable, err)
	}
	return ids, nil
}

func buildRelationQuery(q domain.RelationQuery) (string, []any, error) {
	if q.LocalTable == "" || q.ForeignTable == "" || q.ForeignField == "" {
		return "", nil, fmt.Errorf("incomplete relation %s -> %s", q.LocalTable, q.ForeignTable)
	}
	col := func(alias, name string) string {
		return alias + "." + pgx.Identifier{name}.Sanitize()
	}

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	for _, m := range q.MatchFields {
		where = append(where, col("f", m[0])+" = "+arg(m[1]))
	}
	if q.ForeignTableField != "" {
		where = append(where, col("f", q.ForeignTableField)+" = "+arg(q.LocalTable))
	}
	if q.ParentIDs != nil {
		where = append(where, col("f", q.ForeignField)+" = ANY("+arg(q.ParentIDs)+")")
	}
	if q.TypeField != "" && q.LocalType != "" {
		where = append(where, col("l", q.TypeField)+" = "+arg(q.LocalType))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT f.uid FROM %s f JOIN %s l ON %s = l.uid",
		pgx.Identifier{q.ForeignTable}.Sanitize(),
		pgx.Identifier{q.LocalTable}.Sanitize(),
		col("f", q.ForeignField))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY f.uid")
	return b.String(), args, nil
}
