// Package catalog is a flat registry of persisted containers: a table
// (id, path, shape, chunk_shape, block_shape, dtype, created_at) so a
// process can enumerate known datasets without re-opening every file's
// footer. It is entirely optional plumbing around Container.Close/
// from_file — the core container type never depends on it.
//
// Backend selection is by DSN scheme, grounded on
// internal/database/database.go's multi-driver DBConnection dispatch:
// sqlite://, postgres://, mysql://, sqlserver://.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// Record is one catalog row describing a persisted container.
type Record struct {
	ID         string
	Path       string
	Shape      []int
	ChunkShape []int
	BlockShape []int
	DType      ishape.DType
	CreatedAt  time.Time
}

// driverFor maps a DSN scheme to its database/sql driver name and
// strips the scheme prefix, matching DBConnection.Type's mysql/
// postgres/sqlite3/sqlserver vocabulary.
func driverFor(dsn string) (driver, dataSource string, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "postgres://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "sqlserver", dsn, nil
	default:
		return "", "", ierrors.NewInvalidArgument("catalog: unrecognized DSN scheme %q", dsn)
	}
}

func open(dsn string) (*sql.DB, string, error) {
	driver, dataSource, err := driverFor(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, "", ierrors.NewFailed("catalog: open %s: %v", driver, err)
	}
	if _, err := db.Exec(createTableSQL(driver)); err != nil {
		db.Close()
		return nil, "", ierrors.NewFailed("catalog: create table: %v", err)
	}
	return db, driver, nil
}

// rebind rewrites `?` placeholders for drivers that don't use them
// natively (lib/pq wants $1, $2, ...; the others accept `?`).
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func createTableSQL(driver string) string {
	idType := "TEXT"
	if driver == "mysql" {
		idType = "VARCHAR(64)"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS iarray_containers (
		id %s PRIMARY KEY,
		path TEXT NOT NULL,
		shape TEXT NOT NULL,
		chunk_shape TEXT NOT NULL,
		block_shape TEXT NOT NULL,
		dtype INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`, idType)
}

// Register inserts a new catalog row for a just-persisted container and
// returns its generated id.
func Register(ctx context.Context, dsn string, path string, shape, chunkShape, blockShape []int, dtype ishape.DType) (string, error) {
	db, driver, err := open(dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()

	id := uuid.New().String()
	query := rebind(driver, `INSERT INTO iarray_containers (id, path, shape, chunk_shape, block_shape, dtype, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err = db.ExecContext(ctx, query,
		id, path, encodeInts(shape), encodeInts(chunkShape), encodeInts(blockShape), int(dtype), time.Now().Format(time.RFC3339))
	if err != nil {
		return "", ierrors.NewFailed("catalog: register: %v", err)
	}
	return id, nil
}

// List returns every registered container.
func List(ctx context.Context, dsn string) ([]Record, error) {
	db, _, err := open(dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, path, shape, chunk_shape, block_shape, dtype, created_at FROM iarray_containers ORDER BY created_at`)
	if err != nil {
		return nil, ierrors.NewFailed("catalog: list: %v", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var shapeStr, chunkStr, blockStr, createdStr string
		var dtype int
		if err := rows.Scan(&r.ID, &r.Path, &shapeStr, &chunkStr, &blockStr, &dtype, &createdStr); err != nil {
			return nil, ierrors.NewFailed("catalog: scan: %v", err)
		}
		r.Shape = decodeInts(shapeStr)
		r.ChunkShape = decodeInts(chunkStr)
		r.BlockShape = decodeInts(blockStr)
		r.DType = ishape.DType(dtype)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Forget deletes a catalog row by id. Idempotent: forgetting an unknown
// id is not an error.
func Forget(ctx context.Context, dsn string, id string) error {
	db, driver, err := open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, rebind(driver, `DELETE FROM iarray_containers WHERE id = ?`), id)
	if err != nil {
		return ierrors.NewFailed("catalog: forget: %v", err)
	}
	return nil
}

func encodeInts(d []int) string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func decodeInts(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i], _ = strconv.Atoi(p)
	}
	return out
}
