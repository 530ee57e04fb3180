package storage

import (
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/lib/pq"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) Migrate(dir string) error {
	return RunMigrations(p.db, dir)
}

func (p *Postgres) SaveAggregation(content []byte) (string, error) {
	if !json.Valid(content) {
		return "", errors.New("content is not valid JSON")
	}
	id := newID()
	_, err := p.db.Exec(`INSERT INTO aggregations (id, content) VALUES ($1, $2)`, id, string(content))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) GetAggregation(id string) ([]byte, bool, error) {
	var content string
	err := p.db.QueryRow(`SELECT content FROM aggregations WHERE id = $1`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(content), true, nil
}
