package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-pjlink/internal/infrastructure/database"
)

// persistTimeout bounds each write issued by the SQLite sink.
const persistTimeout = 5 * time.Second

// Repository persists slot definitions and values in SQLite so slots
// created at runtime, such as extra lamps, survive a restart.
type Repository struct {
	db     *database.DB
	logger Logger
}

// NewRepository creates a repository on an opened, migrated database.
func NewRepository(db *database.DB, logger Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Load reads every stored slot.
func (r *Repository) Load(ctx context.Context) ([]Definition, map[string]Value, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, role, unit, readable, writable, states_json, value_json, ack, updated_at
		FROM slots ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	values := make(map[string]Value)

	for rows.Next() {
		var (
			def        Definition
			statesJSON sql.NullString
			valueJSON  sql.NullString
			ack        bool
			updatedAt  sql.NullInt64
		)
		if err := rows.Scan(&def.ID, &def.Name, &def.Type, &def.Role, &def.Unit,
			&def.Read, &def.Write, &statesJSON, &valueJSON, &ack, &updatedAt); err != nil {
			return nil, nil, fmt.Errorf("scanning slot: %w", err)
		}

		if statesJSON.Valid && statesJSON.String != "" {
			if err := json.Unmarshal([]byte(statesJSON.String), &def.States); err != nil {
				return nil, nil, fmt.Errorf("decoding states of %s: %w", def.ID, err)
			}
		}
		defs = append(defs, def)

		if valueJSON.Valid {
			var val any
			if err := json.Unmarshal([]byte(valueJSON.String), &val); err != nil {
				return nil, nil, fmt.Errorf("decoding value of %s: %w", def.ID, err)
			}
			v := Value{Val: val, Ack: ack}
			if updatedAt.Valid {
				v.TS = time.UnixMilli(updatedAt.Int64)
			}
			values[def.ID] = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating slots: %w", err)
	}

	return defs, values, nil
}

// SaveDefinition upserts a slot definition, keeping any stored value.
func (r *Repository) SaveDefinition(ctx context.Context, def Definition) error {
	var states any
	if len(def.States) > 0 {
		b, err := json.Marshal(def.States)
		if err != nil {
			return fmt.Errorf("encoding states: %w", err)
		}
		states = string(b)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO slots (id, name, type, role, unit, readable, writable, states_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			role = excluded.role,
			unit = excluded.unit,
			readable = excluded.readable,
			writable = excluded.writable,
			states_json = excluded.states_json`,
		def.ID, def.Name, def.Type, def.Role, def.Unit, def.Read, def.Write, states)
	if err != nil {
		return fmt.Errorf("saving slot %s: %w", def.ID, err)
	}
	return nil
}

// SaveValue stores the latest value of a slot.
func (r *Repository) SaveValue(ctx context.Context, change Change) error {
	b, err := json.Marshal(change.Value.Val)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE slots SET value_json = ?, ack = ?, updated_at = ? WHERE id = ?`,
		string(b), change.Value.Ack, change.Value.TS.UnixMilli(), change.ID)
	if err != nil {
		return fmt.Errorf("saving value of %s: %w", change.ID, err)
	}
	return nil
}

// DefinitionChanged implements Sink.
func (r *Repository) DefinitionChanged(def Definition) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.SaveDefinition(ctx, def); err != nil && r.logger != nil {
		r.logger.Error("persisting slot definition failed", "slot", def.ID, "error", err)
	}
}

// ValueChanged implements Sink. Only device-confirmed values are stored;
// a pending user request is not state worth restoring.
func (r *Repository) ValueChanged(_ Definition, change Change) {
	if !change.Value.Ack {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.SaveValue(ctx, change); err != nil && r.logger != nil {
		r.logger.Error("persisting slot value failed", "slot", change.ID, "error", err)
	}
}
