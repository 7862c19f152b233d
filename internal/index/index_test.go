package index

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/stackctl/internal/taskdesc"
	_ "modernc.org/sqlite"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datacube.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer db.Close()
	schema := `CREATE TABLE datasets (
		id INTEGER PRIMARY KEY,
		product TEXT NOT NULL,
		cell_x INTEGER NOT NULL,
		cell_y INTEGER NOT NULL,
		acquired TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	rows := []struct {
		product  string
		x, y     int
		acquired string
	}{
		{"ls5_nbar_albers", 15, -40, "2010-03-01T00:12:00Z"},
		{"ls5_nbar_albers", 15, -40, "2010-06-11T00:15:00Z"},
		{"ls5_nbar_albers", 16, -40, "2010-07-02T00:30:00Z"},
		{"ls5_nbar_albers", 16, -40, "2011-02-14T00:08:00Z"}, // outside 2010
		{"ls8_nbar_albers", 15, -40, "2010-04-20T00:22:00Z"}, // other product
	}
	for _, r := range rows {
		if _, err := db.Exec(
			`INSERT INTO datasets (product, cell_x, cell_y, acquired) VALUES (?, ?, ?, ?)`,
			r.product, r.x, r.y, r.acquired,
		); err != nil {
			t.Fatalf("seed row: %v", err)
		}
	}
	return path
}

func TestOpenMissingIndex(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Fatalf("expected error for missing index file")
	}
}

func TestCellsFiltersProductAndTime(t *testing.T) {
	ix, err := Open(seedIndex(t))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer ix.Close()

	cells, err := ix.Cells(context.Background(), "ls5_nbar_albers", taskdesc.YearRange(2010))
	if err != nil {
		t.Fatalf("cells query: %v", err)
	}
	want := []Cell{{X: 15, Y: -40}, {X: 16, Y: -40}}
	if len(cells) != len(want) {
		t.Fatalf("got %d cells, want %d: %v", len(cells), len(want), cells)
	}
	for i, c := range want {
		if cells[i] != c {
			t.Fatalf("cell %d: got %v, want %v", i, cells[i], c)
		}
	}
}

func TestCountDatasetsRespectsRange(t *testing.T) {
	ix, err := Open(seedIndex(t))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer ix.Close()

	ctx := context.Background()
	n, err := ix.CountDatasets(ctx, "ls5_nbar_albers", Cell{X: 16, Y: -40}, taskdesc.YearRange(2010))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("2010 count for 16_-40: got %d, want 1", n)
	}
	n, err = ix.CountDatasets(ctx, "ls5_nbar_albers", Cell{X: 16, Y: -40}, taskdesc.TimeRange{})
	if err != nil {
		t.Fatalf("count unbounded: %v", err)
	}
	if n != 2 {
		t.Fatalf("unbounded count for 16_-40: got %d, want 2", n)
	}
}

func TestCellsEmptyForUnknownProduct(t *testing.T) {
	ix, err := Open(seedIndex(t))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer ix.Close()
	cells, err := ix.Cells(context.Background(), "no_such_product", taskdesc.TimeRange{Start: time.Unix(0, 0).UTC(), End: time.Now().UTC()})
	if err != nil {
		t.Fatalf("cells query: %v", err)
	}
	if len(cells) != 0 {
		t.Fatalf("expected no cells, got %v", cells)
	}
}
