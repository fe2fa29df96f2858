// Package ddl synthesizes DDL statements from table metadata for the
// query-details view.
package ddl

import (
	"fmt"
	"strings"

	"github.com/bq-insights/backend/internal/warehouse"
)

// ForTable renders a CREATE statement for the table: views reproduce their
// defining query, plain tables get a column list from the schema.
func ForTable(meta *warehouse.TableMeta) string {
	fullID := meta.Ref.FullID()

	if meta.ViewQuery != "" {
		return fmt.Sprintf("CREATE OR REPLACE VIEW `%s` AS\n%s", fullID, meta.ViewQuery)
	}

	columns := make([]string, 0, len(meta.Fields))
	for _, field := range meta.Fields {
		columns = append(columns, fmt.Sprintf("  `%s` %s", field.Name, field.Type))
	}
	return fmt.Sprintf("CREATE TABLE `%s` (\n%s\n)", fullID, strings.Join(columns, ",\n"))
}

// ErrorComment embeds a per-table lookup failure into the DDL output instead
// of failing the whole request.
func ErrorComment(ref warehouse.TableRef, err error) string {
	return fmt.Sprintf("/* ERROR fetching DDL for %s: %v */", ref.FullID(), err)
}

// Join concatenates the per-table statements with the separator the frontend
// splits on.
func Join(statements []string) string {
	return strings.Join(statements, "\n\n---\n\n")
}
