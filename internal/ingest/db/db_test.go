package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/bakemark/invrpt/internal/dibol/data"
)

// openTestDB opens a fresh database in a temporary directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleHeaders() []data.Row {
	return []data.Row{
		{
			"ivhnum": int64(100001), "ivhdat": int64(20240315), "ivhcus": int64(4711),
			"ivhcnm": "CORNER MARKET", "ivhord": int64(555), "ivhdue": decimal.New(123456, -2),
			"ivhtax": decimal.New(990, -2),
		},
		{
			"ivhnum": int64(100002), "ivhdat": int64(20240315), "ivhcus": int64(4712),
			"ivhcnm": "MAIN ST DELI",
		},
	}
}

func sampleDetails() []data.Row {
	return []data.Row{
		{
			"invnum": int64(100001), "invdat": int64(20240315), "invcus": int64(4711), "invlin": int64(1),
			"invitm": int64(20001), "invdsc": "SOURDOUGH LOAF", "invqty": int64(12), "invsel": decimal.New(199, -2),
		},
		{
			"invnum": int64(100001), "invdat": int64(20240315), "invcus": int64(4711), "invlin": int64(2),
			"invitm": int64(20002), "invdsc": "RYE LOAF", "invqty": int64(6),
		},
	}
}

func TestOpen_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "invrpt.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	for _, table := range []string{"branches", "invoice_headers", "invoice_details"} {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := db.conn.QueryRow(query, table).Scan(&count); err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.InitSchema(); err != nil {
		t.Fatalf("second InitSchema() failed: %v", err)
	}
}

func TestClose_Twice(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		n, err := db.UpsertHeaders(ctx, sampleHeaders(), "12")
		if err != nil {
			t.Fatalf("run %d: UpsertHeaders failed: %v", run, err)
		}
		if n != 2 {
			t.Errorf("run %d: UpsertHeaders wrote %d rows, want 2", run, n)
		}

		n, err = db.UpsertDetails(ctx, sampleDetails(), "12")
		if err != nil {
			t.Fatalf("run %d: UpsertDetails failed: %v", run, err)
		}
		if n != 2 {
			t.Errorf("run %d: UpsertDetails wrote %d rows, want 2", run, n)
		}
	}

	headers, err := db.HeaderCount(ctx, "12")
	if err != nil {
		t.Fatalf("HeaderCount failed: %v", err)
	}
	details, err := db.DetailCount(ctx, "12")
	if err != nil {
		t.Fatalf("DetailCount failed: %v", err)
	}
	if headers != 2 || details != 2 {
		t.Errorf("counts = %d headers, %d details; want 2 and 2", headers, details)
	}
}

func TestUpsert_UpdatesNonKeyColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rows := sampleHeaders()[:1]
	if _, err := db.UpsertHeaders(ctx, rows, "12"); err != nil {
		t.Fatalf("UpsertHeaders failed: %v", err)
	}

	rows[0]["ivhcnm"] = "CORNER MARKET #2"
	rows[0]["ivhdue"] = decimal.New(1, -2)
	if _, err := db.UpsertHeaders(ctx, rows, "12"); err != nil {
		t.Fatalf("UpsertHeaders failed: %v", err)
	}

	var (
		name   string
		amount decimal.Decimal
	)
	err := db.conn.QueryRow(
		`SELECT customer_name, invoice_amount FROM invoice_headers WHERE branch_id = ? AND invoice_number = ?`,
		"12", 100001,
	).Scan(&name, &amount)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if name != "CORNER MARKET #2" {
		t.Errorf("customer_name = %q", name)
	}
	if !amount.Equal(decimal.New(1, -2)) {
		t.Errorf("invoice_amount = %s, want 0.01", amount)
	}
}

func TestUpsert_KeepsDecimalsExact(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertDetails(ctx, sampleDetails(), "12"); err != nil {
		t.Fatalf("UpsertDetails failed: %v", err)
	}

	var price string
	err := db.conn.QueryRow(
		`SELECT unit_price FROM invoice_details WHERE branch_id = ? AND line_number = 1`, "12",
	).Scan(&price)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if price != "1.99" {
		t.Errorf("unit_price = %q, want 1.99", price)
	}
}

func TestUpsert_BranchesAreSeparate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertHeaders(ctx, sampleHeaders(), "12"); err != nil {
		t.Fatalf("UpsertHeaders failed: %v", err)
	}
	if _, err := db.UpsertHeaders(ctx, sampleHeaders(), "14"); err != nil {
		t.Fatalf("UpsertHeaders failed: %v", err)
	}

	n, err := db.HeaderCount(ctx, "14")
	if err != nil {
		t.Fatalf("HeaderCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("HeaderCount(14) = %d, want 2", n)
	}
}

func TestUpsert_Empty(t *testing.T) {
	db := openTestDB(t)

	n, err := db.UpsertHeaders(context.Background(), nil, "12")
	if err != nil || n != 0 {
		t.Errorf("UpsertHeaders(nil) = %d, %v; want 0, nil", n, err)
	}
}

func TestBranches(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	branches := []*Branch{
		{ID: "14", Name: "Eastside", Active: false, Host: "ftp.east", Username: "u", Password: "p", RemoteFilename: "INVPRT.DAT"},
		{ID: "12", Name: "Downtown", Active: true, Host: "ftp.down", Username: "u", Password: "p", RemoteFilename: "EXPORT/INVPRT.DAT"},
	}
	for _, b := range branches {
		if err := db.UpsertBranch(ctx, b); err != nil {
			t.Fatalf("UpsertBranch(%s) failed: %v", b.ID, err)
		}
	}

	got, err := db.GetBranch(ctx, "12")
	if err != nil {
		t.Fatalf("GetBranch failed: %v", err)
	}
	if diff := cmp.Diff(branches[1].Credentials(), got.Credentials()); diff != "" {
		t.Errorf("credentials mismatch (-want +got):\n%s", diff)
	}
	if got.LastProcessed != nil {
		t.Errorf("LastProcessed = %v, want nil", got.LastProcessed)
	}

	all, err := db.ListBranches(ctx, false)
	if err != nil {
		t.Fatalf("ListBranches failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "12" || all[1].ID != "14" {
		t.Errorf("ListBranches(false) returned unexpected branches: %+v", all)
	}

	active, err := db.ListBranches(ctx, true)
	if err != nil {
		t.Fatalf("ListBranches failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "12" {
		t.Errorf("ListBranches(true) returned unexpected branches: %+v", active)
	}

	if err := db.TouchLastProcessed(ctx, "12"); err != nil {
		t.Fatalf("TouchLastProcessed failed: %v", err)
	}
	got, err = db.GetBranch(ctx, "12")
	if err != nil {
		t.Fatalf("GetBranch failed: %v", err)
	}
	if got.LastProcessed == nil {
		t.Error("LastProcessed not set")
	}
}

func TestGetBranch_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetBranch(context.Background(), "99")
	if !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("expected ErrBranchNotFound, got %v", err)
	}
}

func TestUpsertBranch_RequiresID(t *testing.T) {
	db := openTestDB(t)

	if err := db.UpsertBranch(context.Background(), &Branch{Name: "x"}); err == nil {
		t.Error("expected error for empty branch id")
	}
}
