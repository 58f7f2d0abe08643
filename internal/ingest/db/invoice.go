package db

import (
	"context"
	"fmt"
	"time"

	"github.com/bakemark/invrpt/internal/dibol/data"
)

// column maps a decoded field to a table column. def is used when the
// field is absent from the row.
type column struct {
	name  string
	field string
	def   any
}

var headerColumns = []column{
	{"invoice_number", "ivhnum", int64(0)},
	{"invoice_date", "ivhdat", int64(0)},
	{"customer_number", "ivhcus", int64(0)},
	{"customer_name", "ivhcnm", ""},
	{"order_number", "ivhord", int64(0)},
	{"invoice_amount", "ivhdue", int64(0)},
	{"tax_amount", "ivhtax", int64(0)},
	{"salesman_number", "ivhslm", int64(0)},
	{"warehouse_number", "ivhwhe", int64(0)},
	{"transaction_code", "ivhtrc", int64(0)},
	{"terms_code", "ivhtrm", int64(0)},
	{"total_cases", "ivhtcs", int64(0)},
	{"total_pieces", "ivhtpc", int64(0)},
	{"route", "ivhrut", int64(0)},
}

var detailColumns = []column{
	{"invoice_number", "invnum", int64(0)},
	{"invoice_date", "invdat", int64(0)},
	{"customer_number", "invcus", int64(0)},
	{"line_number", "invlin", int64(0)},
	{"item_number", "invitm", int64(0)},
	{"item_description", "invdsc", ""},
	{"quantity", "invqty", int64(0)},
	{"unit_price", "invsel", int64(0)},
	{"extended_amount", "invlam", int64(0)},
	{"vendor_number", "invven", int64(0)},
	{"brand", "invbrn", ""},
	{"pack", "invpak", ""},
	{"unit", "invunt", ""},
}

const upsertHeaderSQL = `
	INSERT INTO invoice_headers (
		branch_id, invoice_number, invoice_date, customer_number,
		customer_name, order_number, invoice_amount, tax_amount,
		salesman_number, warehouse_number, transaction_code, terms_code,
		total_cases, total_pieces, route, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(branch_id, invoice_number, invoice_date, customer_number) DO UPDATE SET
		customer_name = excluded.customer_name,
		order_number = excluded.order_number,
		invoice_amount = excluded.invoice_amount,
		tax_amount = excluded.tax_amount,
		salesman_number = excluded.salesman_number,
		warehouse_number = excluded.warehouse_number,
		transaction_code = excluded.transaction_code,
		terms_code = excluded.terms_code,
		total_cases = excluded.total_cases,
		total_pieces = excluded.total_pieces,
		route = excluded.route,
		updated_at = excluded.updated_at
	`

const upsertDetailSQL = `
	INSERT INTO invoice_details (
		branch_id, invoice_number, invoice_date, customer_number,
		line_number, item_number, item_description, quantity,
		unit_price, extended_amount, vendor_number, brand, pack, unit, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(branch_id, invoice_number, invoice_date, customer_number, line_number) DO UPDATE SET
		item_number = excluded.item_number,
		item_description = excluded.item_description,
		quantity = excluded.quantity,
		unit_price = excluded.unit_price,
		extended_amount = excluded.extended_amount,
		vendor_number = excluded.vendor_number,
		brand = excluded.brand,
		pack = excluded.pack,
		unit = excluded.unit,
		updated_at = excluded.updated_at
	`

// UpsertHeaders writes invoice headers for a branch in one transaction and
// returns the number of rows written. An empty batch is a no-op.
func (db *DB) UpsertHeaders(ctx context.Context, rows []data.Row, branchID string) (int, error) {
	return db.upsert(ctx, upsertHeaderSQL, headerColumns, rows, branchID)
}

// UpsertDetails writes invoice detail lines for a branch in one transaction.
func (db *DB) UpsertDetails(ctx context.Context, rows []data.Row, branchID string) (int, error) {
	return db.upsert(ctx, upsertDetailSQL, detailColumns, rows, branchID)
}

func (db *DB) upsert(ctx context.Context, query string, cols []column, rows []data.Row, branchID string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	args := make([]any, 0, len(cols)+2)
	for i, row := range rows {
		args = append(args[:0], branchID)
		for _, c := range cols {
			args = append(args, valueOf(row, c))
		}
		args = append(args, now)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to upsert row %d for branch %s: %w", i+1, branchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(rows), nil
}

// valueOf returns the row's value for c. Scaled decimals bind as their exact
// text through decimal.Decimal's driver.Valuer.
func valueOf(row data.Row, c column) any {
	v, ok := row[c.field]
	if !ok || v == nil {
		return c.def
	}
	return v
}

// HeaderCount returns the number of stored headers for a branch.
func (db *DB) HeaderCount(ctx context.Context, branchID string) (int, error) {
	return db.count(ctx, "invoice_headers", branchID)
}

// DetailCount returns the number of stored detail lines for a branch.
func (db *DB) DetailCount(ctx context.Context, branchID string) (int, error) {
	return db.count(ctx, "invoice_details", branchID)
}

func (db *DB) count(ctx context.Context, table, branchID string) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE branch_id = ?", table)
	if err := db.conn.QueryRowContext(ctx, query, branchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
