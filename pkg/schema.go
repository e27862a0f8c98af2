package vortex

import (
	"github.com/apache/arrow/go/v17/arrow"

	"github.com/vortexdata/vortex-go/pkg/contracts"
	"github.com/vortexdata/vortex-go/pkg/internal"
)

// NewSchema creates a new schema from an Arrow schema.
func NewSchema(schema *arrow.Schema) (contracts.ISchema, error) {
	return internal.NewSchema(schema)
}

func NewSchemaBuilder() contracts.ISchemaBuilder {
	return internal.NewSchemaBuilder()
}
