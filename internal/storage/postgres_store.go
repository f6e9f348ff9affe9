package storage

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/taxi-admin/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveAssignment(ev models.AssignmentEvent) error {
	_, err := p.db.Exec(`INSERT INTO assignment_audit(hire_id, driver_id, request_id, request_marked, assigned_at) VALUES($1,$2,$3,$4,$5)`,
		ev.HireID, ev.DriverID, ev.RequestID, ev.RequestMarked, ev.AssignedAt)
	return err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
