package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/guestbook"
)

type columnInfo struct {
	dataType   string
	isNullable bool
}

func validateTableSchema(ctx context.Context, pool *pgxpool.Pool, tableName string, expectedSchema map[string]columnInfo) error {
	if !guestbook.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	exists, err := tableExists(ctx, pool, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := pool.Query(ctx, query, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer rows.Close()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			dataType:   strings.ToLower(dataType),
			isNullable: nullable == "YES",
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	var missingColumns []string
	var mismatchedColumns []string

	for colName, expected := range expectedSchema {
		actual, exists := actualColumns[colName]
		if !exists {
			missingColumns = append(missingColumns, colName)
			continue
		}

		if actual.dataType != expected.dataType {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected %s, got %s", colName, expected.dataType, actual.dataType))
		}

		if actual.isNullable != expected.isNullable {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, expected.isNullable, actual.isNullable))
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

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`
	if err := pool.QueryRow(ctx, query, tableName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}

const timestamptz = "timestamp with time zone"

var greetingsTableSchema = map[string]columnInfo{
	"id":             {"uuid", false},
	"guestbook_name": {"text", false},
	"author_id":      {"text", true},
	"author_email":   {"text", true},
	"content":        {"text", false},
	"created_at":     {timestamptz, false},
}

var blobInfosTableSchema = map[string]columnInfo{
	"blob_key":     {"text", false},
	"filename":     {"text", false},
	"content_type": {"text", false},
	"size_bytes":   {"bigint", false},
	"etag":         {"text", false},
	"created_at":   {timestamptz, false},
}

var filesTableSchema = map[string]columnInfo{
	"id":         {"uuid", false},
	"blob_key":   {"text", false},
	"user_id":    {"text", true},
	"user_email": {"text", true},
	"created_at": {timestamptz, false},
}

var uploadSessionsTableSchema = map[string]columnInfo{
	"id":            {"uuid", false},
	"callback_path": {"text", false},
	"created_at":    {timestamptz, false},
	"expires_at":    {timestamptz, false},
	"used_at":       {timestamptz, true},
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

func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables guestbook.Tables) error {
	for _, validation := range getTableValidations(tables) {
		if err := validateTableSchema(ctx, pool, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}

	return nil
}
