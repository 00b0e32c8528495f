// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeep/internal/platform/database/schema"
)

// PostgresSink writes events to system.auditlog.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates a new PostgreSQL audit sink.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

var insertAuditQuery = fmt.Sprintf(`
	INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	schema.SystemAuditLog.Table,
	schema.SystemAuditLog.ID, schema.SystemAuditLog.ActorID, schema.SystemAuditLog.Action,
	schema.SystemAuditLog.Outcome, schema.SystemAuditLog.Reason, schema.SystemAuditLog.Subject,
	schema.SystemAuditLog.IPAddress, schema.SystemAuditLog.UserAgent, schema.SystemAuditLog.CreatedAt,
)

// Write implements [Sink]. Empty optional fields are stored as NULL.
func (repository *PostgresSink) Write(context context.Context, event Event) error {
	_, err := repository.pool.Exec(context, insertAuditQuery,
		event.ID,
		nullable(event.ActorID),
		string(event.Action),
		string(event.Outcome),
		nullable(event.Reason),
		nullable(event.Subject),
		nullable(event.IPAddress),
		nullable(event.UserAgent),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_audit_sink_write_failed: %w", err)
	}
	return nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
