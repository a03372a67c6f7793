// Package store provides generic collection operations over the embedded
// key-value layer.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/errors"
)

// ErrNotFound is returned when a key or id has no record.
var ErrNotFound = apperrors.New(apperrors.ErrNotFound, "record not found")

// Record is one stored item. ID is set for auto-id collections, Key for
// keyed collections. Data is the item's JSON representation.
type Record struct {
	ID   int64
	Key  string
	Data json.RawMessage
}

// Decode unmarshals the record data into out.
func (r *Record) Decode(out interface{}) error {
	return json.Unmarshal(r.Data, out)
}

// IndexQuery selects records through a secondary index. Exactly one of
// Equals or a Lower/Upper range should be set; a zero query matches all
// records ordered by primary key.
type IndexQuery struct {
	// Index is the indexed field to query on.
	Index string

	// Equals matches records whose indexed value equals this value.
	Equals interface{}

	// Lower and Upper bound an inclusive range scan. Either may be nil.
	Lower interface{}
	Upper interface{}

	// Descending reverses the result order.
	Descending bool

	// Limit caps the number of returned records (0 = no limit).
	Limit int
}

// Collection is a handle to one collection. Every operation is its own
// atomic transaction scoped to this collection; no cross-collection
// atomicity is provided.
type Collection struct {
	db  *sql.DB
	def CollectionDef
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.def.Name
}

// Add inserts an item into an auto-id collection and returns the
// store-assigned monotonic id.
func (c *Collection) Add(ctx context.Context, item interface{}) (int64, error) {
	if !c.def.AutoID {
		return 0, fmt.Errorf("collection %q is keyed; use Put", c.def.Name)
	}

	data, idxVals, err := c.encode(item)
	if err != nil {
		return 0, err
	}

	cols := []string{"data"}
	args := []interface{}{string(data)}
	for _, idx := range c.def.Indexes {
		cols = append(cols, idx.column())
		args = append(args, idxVals[idx.Field])
	}

	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		c.def.Name, strings.Join(cols, ", "), placeholders(len(cols)))
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStore, "insert failed", err)
	}
	return res.LastInsertId()
}

// Put upserts a keyed item.
func (c *Collection) Put(ctx context.Context, key string, item interface{}) error {
	if c.def.AutoID {
		return fmt.Errorf("collection %q is auto-id; use Add or PutID", c.def.Name)
	}

	data, idxVals, err := c.encode(item)
	if err != nil {
		return err
	}

	cols := []string{"key", "data"}
	args := []interface{}{key, string(data)}
	var updates []string
	updates = append(updates, "data=excluded.data")
	for _, idx := range c.def.Indexes {
		cols = append(cols, idx.column())
		args = append(args, idxVals[idx.Field])
		updates = append(updates, fmt.Sprintf("%s=excluded.%s", idx.column(), idx.column()))
	}

	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s) ON CONFLICT(key) DO UPDATE SET %s",
		c.def.Name, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(updates, ", "))
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "upsert failed", err)
	}
	return nil
}

// PutID replaces an existing auto-id record in place.
func (c *Collection) PutID(ctx context.Context, id int64, item interface{}) error {
	if !c.def.AutoID {
		return fmt.Errorf("collection %q is keyed; use Put", c.def.Name)
	}

	data, idxVals, err := c.encode(item)
	if err != nil {
		return err
	}

	var sets []string
	args := []interface{}{string(data)}
	sets = append(sets, "data = ?")
	for _, idx := range c.def.Indexes {
		sets = append(sets, fmt.Sprintf("%s = ?", idx.column()))
		args = append(args, idxVals[idx.Field])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %q SET %s WHERE id = ?", c.def.Name, strings.Join(sets, ", "))
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "update failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a keyed record.
func (c *Collection) Get(ctx context.Context, key string) (*Record, error) {
	if c.def.AutoID {
		return nil, fmt.Errorf("collection %q is auto-id; use GetID", c.def.Name)
	}

	var data string
	query := fmt.Sprintf("SELECT data FROM %q WHERE key = ?", c.def.Name)
	err := c.db.QueryRowContext(ctx, query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "get failed", err)
	}
	return &Record{Key: key, Data: json.RawMessage(data)}, nil
}

// GetID retrieves an auto-id record.
func (c *Collection) GetID(ctx context.Context, id int64) (*Record, error) {
	if !c.def.AutoID {
		return nil, fmt.Errorf("collection %q is keyed; use Get", c.def.Name)
	}

	var data string
	query := fmt.Sprintf("SELECT data FROM %q WHERE id = ?", c.def.Name)
	err := c.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "get failed", err)
	}
	return &Record{ID: id, Data: json.RawMessage(data)}, nil
}

// GetAll retrieves records, optionally filtered through a secondary index.
func (c *Collection) GetAll(ctx context.Context, q *IndexQuery) ([]Record, error) {
	query, args, err := c.buildSelect("", q)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "query failed", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var data string
		if c.def.AutoID {
			if err := rows.Scan(&rec.ID, &data); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrStore, "scan failed", err)
			}
		} else {
			if err := rows.Scan(&rec.Key, &data); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrStore, "scan failed", err)
			}
		}
		rec.Data = json.RawMessage(data)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "iteration failed", err)
	}
	return records, nil
}

// Count returns the number of records matching the query.
func (c *Collection) Count(ctx context.Context, q *IndexQuery) (int, error) {
	query, args, err := c.buildSelect("COUNT(*)", q)
	if err != nil {
		return 0, err
	}

	var n int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStore, "count failed", err)
	}
	return n, nil
}

// Delete removes a keyed record. Deleting a missing key is not an error.
func (c *Collection) Delete(ctx context.Context, key string) error {
	if c.def.AutoID {
		return fmt.Errorf("collection %q is auto-id; use DeleteID", c.def.Name)
	}
	query := fmt.Sprintf("DELETE FROM %q WHERE key = ?", c.def.Name)
	if _, err := c.db.ExecContext(ctx, query, key); err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "delete failed", err)
	}
	return nil
}

// DeleteID removes an auto-id record. Deleting a missing id is not an error.
func (c *Collection) DeleteID(ctx context.Context, id int64) error {
	if !c.def.AutoID {
		return fmt.Errorf("collection %q is keyed; use Delete", c.def.Name)
	}
	query := fmt.Sprintf("DELETE FROM %q WHERE id = ?", c.def.Name)
	if _, err := c.db.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "delete failed", err)
	}
	return nil
}

// buildSelect renders a SELECT for GetAll/Count. With projection empty the
// primary key and data columns are selected.
func (c *Collection) buildSelect(projection string, q *IndexQuery) (string, []interface{}, error) {
	pk := "id"
	if !c.def.AutoID {
		pk = "key"
	}
	if projection == "" {
		projection = fmt.Sprintf("%s, data", pk)
	}

	var b strings.Builder
	var args []interface{}
	fmt.Fprintf(&b, "SELECT %s FROM %q", projection, c.def.Name)

	orderCol := pk
	if q != nil && q.Index != "" {
		idx, ok := c.def.indexFor(q.Index)
		if !ok {
			return "", nil, fmt.Errorf("no index on field %q in collection %q", q.Index, c.def.Name)
		}
		orderCol = idx.column()

		var conds []string
		if q.Equals != nil {
			conds = append(conds, fmt.Sprintf("%s = ?", idx.column()))
			args = append(args, q.Equals)
		} else {
			if q.Lower != nil {
				conds = append(conds, fmt.Sprintf("%s >= ?", idx.column()))
				args = append(args, q.Lower)
			}
			if q.Upper != nil {
				conds = append(conds, fmt.Sprintf("%s <= ?", idx.column()))
				args = append(args, q.Upper)
			}
		}
		if len(conds) > 0 {
			b.WriteString(" WHERE " + strings.Join(conds, " AND "))
		}
	}

	if !strings.HasPrefix(projection, "COUNT") {
		direction := "ASC"
		if q != nil && q.Descending {
			direction = "DESC"
		}
		// Secondary order by primary key keeps scans deterministic
		fmt.Fprintf(&b, " ORDER BY %s %s, %s %s", orderCol, direction, pk, direction)
		if q != nil && q.Limit > 0 {
			fmt.Fprintf(&b, " LIMIT %d", q.Limit)
		}
	}

	return b.String(), args, nil
}

// encode marshals the item and extracts its indexed field values.
func (c *Collection) encode(item interface{}) (json.RawMessage, map[string]interface{}, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInvalid, "item is not serializable", err)
	}

	idxVals := make(map[string]interface{}, len(c.def.Indexes))
	if len(c.def.Indexes) > 0 {
		var fields map[string]interface{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrInvalid, "item must be a JSON object", err)
		}
		for _, idx := range c.def.Indexes {
			idxVals[idx.Field] = indexValue(fields[idx.Field], idx.Numeric)
		}
	}

	return data, idxVals, nil
}

// indexValue normalizes a decoded JSON value for storage in an index column.
func indexValue(v interface{}, numeric bool) interface{} {
	if v == nil {
		return nil
	}
	if numeric {
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int64:
			return n
		case int:
			return int64(n)
		default:
			return nil
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// placeholders renders n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
