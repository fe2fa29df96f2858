package ddl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bq-insights/backend/internal/warehouse"
)

func TestForTableRendersView(t *testing.T) {
	meta := &warehouse.TableMeta{
		Ref:       warehouse.TableRef{ProjectID: "p", DatasetID: "d", TableID: "v"},
		ViewQuery: "SELECT id FROM d.base",
	}

	got := ForTable(meta)

	assert.Equal(t, "CREATE OR REPLACE VIEW `p.d.v` AS\nSELECT id FROM d.base", got)
}

func TestForTableRendersSchema(t *testing.T) {
	meta := &warehouse.TableMeta{
		Ref: warehouse.TableRef{ProjectID: "p", DatasetID: "d", TableID: "t"},
		Fields: []warehouse.Field{
			{Name: "id", Type: "INT64"},
			{Name: "name", Type: "STRING"},
		},
	}

	got := ForTable(meta)

	assert.Equal(t, "CREATE TABLE `p.d.t` (\n  `id` INT64,\n  `name` STRING\n)", got)
}

func TestErrorComment(t *testing.T) {
	ref := warehouse.TableRef{ProjectID: "p", DatasetID: "d", TableID: "t"}

	got := ErrorComment(ref, errors.New("not found"))

	assert.Equal(t, "/* ERROR fetching DDL for p.d.t: not found */", got)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join(nil))
	assert.Equal(t, "a", Join([]string{"a"}))
	assert.Equal(t, "a\n\n---\n\nb", Join([]string{"a", "b"}))
}
