package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sagarc03/guestbook"
)

type columnInfo struct {
	dataType   string
	isNullable bool
}

func validateTableSchema(ctx context.Context, db *sql.DB, tableName string, expectedSchema map[string]columnInfo) error {
	if !guestbook.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	exists, err := tableExists(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	// SQLite uses PRAGMA table_info to get column information
	query := fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(tableName))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var dfltValue sql.NullString

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			dataType:   strings.ToLower(dataType),
			isNullable: notNull == 0,
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	return compareColumns(tableName, expectedSchema, actualColumns)
}

func compareColumns(tableName string, expected, actual map[string]columnInfo) error {
	var missingColumns []string
	var mismatchedColumns []string

	for colName, want := range expected {
		got, exists := actual[colName]
		if !exists {
			missingColumns = append(missingColumns, colName)
			continue
		}

		if got.dataType != want.dataType {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected %s, got %s", colName, want.dataType, got.dataType))
		}

		if got.isNullable != want.isNullable {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, want.isNullable, got.isNullable))
		}
	}

	if len(missingColumns) == 0 && len(mismatchedColumns) == 0 {
		return nil
	}

	sort.Strings(missingColumns)
	sort.Strings(mismatchedColumns)

	var errMsg strings.Builder
	fmt.Fprintf(&errMsg, "table %s schema validation failed:\n", tableName)

	if len(missingColumns) > 0 {
		fmt.Fprintf(&errMsg, "  missing columns: %s\n", strings.Join(missingColumns, ", "))
	}

	if len(mismatchedColumns) > 0 {
		fmt.Fprintf(&errMsg, "  mismatched columns:\n")
		for _, msg := range mismatchedColumns {
			fmt.Fprintf(&errMsg, "    - %s\n", msg)
		}
	}

	return errors.New(errMsg.String())
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name=?`
	err := db.QueryRowContext(ctx, query, tableName).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return true, nil
}

var greetingsTableSchema = map[string]columnInfo{
	"id":             {"text", false},
	"guestbook_name": {"text", false},
	"author_id":      {"text", true},
	"author_email":   {"text", true},
	"content":        {"text", false},
	"created_at":     {"text", false},
}

var blobInfosTableSchema = map[string]columnInfo{
	"blob_key":     {"text", false},
	"filename":     {"text", false},
	"content_type": {"text", false},
	"size_bytes":   {"integer", false},
	"etag":         {"text", false},
	"created_at":   {"text", false},
}

var filesTableSchema = map[string]columnInfo{
	"id":         {"text", false},
	"blob_key":   {"text", false},
	"user_id":    {"text", true},
	"user_email": {"text", true},
	"created_at": {"text", false},
}

var uploadSessionsTableSchema = map[string]columnInfo{
	"id":            {"text", false},
	"callback_path": {"text", false},
	"created_at":    {"text", false},
	"expires_at":    {"text", false},
	"used_at":       {"text", true},
}

type tableValidation struct {
	tableName      string
	expectedSchema map[string]columnInfo
}

func getTableValidations(tables guestbook.Tables) []tableValidation {
	return []tableValidation{
		{tables.Greetings, greetingsTableSchema},
		{tables.BlobInfos, blobInfosTableSchema},
		{tables.Files, filesTableSchema},
		{tables.UploadSessions, uploadSessionsTableSchema},
	}
}

func ValidateSchema(ctx context.Context, db *sql.DB, tables guestbook.Tables) error {
	for _, validation := range getTableValidations(tables) {
		if err := validateTableSchema(ctx, db, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}

	return nil
}
