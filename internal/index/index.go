// Package index is a read-only client for the site dataset index:
// a SQLite database recording which datasets exist per product and
// grid cell. The generate stage queries it to enumerate work.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/example/stackctl/internal/taskdesc"
	_ "modernc.org/sqlite"
)

// Cell is a grid cell identified by its integer coordinates.
type Cell struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("%d_%d", c.X, c.Y)
}

// Index wraps the dataset index database.
type Index struct {
	db *sql.DB
}

// Open opens the index read-only. The file must already exist; this
// client never creates or migrates the index.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open dataset index: %w", err)
	}
	// modernc.org/sqlite understands URI parameters in a "file:" DSN.
	u := url.URL{Scheme: "file", Path: path}
	q := u.Query()
	q.Set("mode", "ro")
	q.Set("_busy_timeout", "5000")
	u.RawQuery = q.Encode()
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Cells returns the distinct cells holding datasets for the product
// within the time range, ordered by (x, y) for a stable task order.
func (ix *Index) Cells(ctx context.Context, product string, tr taskdesc.TimeRange) ([]Cell, error) {
	query := `SELECT DISTINCT cell_x, cell_y FROM datasets WHERE product = ?`
	args := []any{product}
	query, args = withTimeRange(query, args, tr)
	query += ` ORDER BY cell_x, cell_y`
	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cells for %s: %w", product, err)
	}
	defer rows.Close()
	var cells []Cell
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.X, &c.Y); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// CountDatasets returns how many datasets the product has in the cell
// within the time range.
func (ix *Index) CountDatasets(ctx context.Context, product string, cell Cell, tr taskdesc.TimeRange) (int, error) {
	query := `SELECT COUNT(*) FROM datasets WHERE product = ? AND cell_x = ? AND cell_y = ?`
	args := []any{product, cell.X, cell.Y}
	query, args = withTimeRange(query, args, tr)
	var count int
	if err := ix.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count datasets for %s %s: %w", product, cell, err)
	}
	return count, nil
}

func withTimeRange(query string, args []any, tr taskdesc.TimeRange) (string, []any) {
	if tr.IsZero() {
		return query, args
	}
	query += ` AND acquired >= ? AND acquired < ?`
	args = append(args, tr.Start.UTC().Format(time.RFC3339), tr.End.UTC().Format(time.RFC3339))
	return query, args
}
