package query

import (
	"context"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
)

// FetchMaps runs the query and returns every row keyed by column alias
func (b *Builder) FetchMaps(ctx context.Context) ([]map[string]interface{}, error) {
	query, args, err := b.Compile()
	if err != nil {
		return nil, err
	}
	b.log(query, args)

	rows := make([]map[string]interface{}, 0)
	if err := sqlscan.Select(ctx, b.db, &rows, query, args...); err != nil {
		return nil, &StatementError{Query: query, Err: err}
	}
	return rows, nil
}

// Hydrator builds an entity from one result row
type Hydrator func(row map[string]interface{}) entity.Entity

// FetchAllAsEntities runs the query and builds one entity per row
func (b *Builder) FetchAllAsEntities(ctx context.Context, hydrate Hydrator) ([]entity.Entity, error) {
	rows, err := b.FetchMaps(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		result = append(result, hydrate(row))
	}
	return result, nil
}

// FetchOneAsEntity returns the first row as an entity, or nil when the
// query matches nothing
func (b *Builder) FetchOneAsEntity(ctx context.Context, hydrate Hydrator) (entity.Entity, error) {
	b.SetMaxResults(1)
	entities, err := b.FetchAllAsEntities(ctx, hydrate)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	return entities[0], nil
}

// FetchColumn returns the first column of every row
func (b *Builder) FetchColumn(ctx context.Context) ([]interface{}, error) {
	query, args, err := b.Compile()
	if err != nil {
		return nil, err
	}
	b.log(query, args)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StatementError{Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &StatementError{Query: query, Err: err}
	}

	values := make([]interface{}, 0)
	for rows.Next() {
		dest := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &StatementError{Query: query, Err: err}
		}
		values = append(values, dest[0])
	}
	if err := rows.Err(); err != nil {
		return nil, &StatementError{Query: query, Err: err}
	}
	return values, nil
}
