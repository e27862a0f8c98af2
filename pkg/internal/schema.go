// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/vortexdata/vortex-go/pkg/contracts"
)

// Schema wraps an Arrow schema as the table schema description: an ordered
// list of field name/type pairs.
type Schema struct {
	schema *arrow.Schema
}

var _ contracts.ISchema = (*Schema)(nil)

// NewSchema creates a schema from an Arrow schema.
func NewSchema(schema *arrow.Schema) (contracts.ISchema, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	return &Schema{schema: schema}, nil
}

func (s *Schema) Fields() []arrow.Field {
	return s.schema.Fields()
}

func (s *Schema) NumFields() int {
	return s.schema.NumFields()
}

func (s *Schema) Field(index int) (arrow.Field, error) {
	if index < 0 || index >= s.schema.NumFields() {
		return arrow.Field{}, fmt.Errorf("field index %d out of range", index)
	}
	return s.schema.Field(index), nil
}

func (s *Schema) FieldByName(name string) (arrow.Field, error) {
	for _, field := range s.schema.Fields() {
		if field.Name == name {
			return field, nil
		}
	}
	return arrow.Field{}, fmt.Errorf("field %q not found", name)
}

func (s *Schema) HasField(name string) bool {
	_, err := s.FieldByName(name)
	return err == nil
}

func (s *Schema) Equal(other contracts.ISchema) bool {
	if other == nil || other.ToArrowSchema() == nil {
		return false
	}
	return s.schema.Equal(other.ToArrowSchema())
}

func (s *Schema) String() string {
	return s.schema.String()
}

func (s *Schema) ToArrowSchema() *arrow.Schema {
	return s.schema
}

// SchemaBuilder provides a fluent interface for building schemas.
type SchemaBuilder struct {
	fields []arrow.Field
}

var _ contracts.ISchemaBuilder = (*SchemaBuilder)(nil)

func NewSchemaBuilder() contracts.ISchemaBuilder {
	return &SchemaBuilder{}
}

func (sb *SchemaBuilder) AddField(name string, dataType arrow.DataType, nullable bool) contracts.ISchemaBuilder {
	sb.fields = append(sb.fields, arrow.Field{
		Name:     name,
		Type:     dataType,
		Nullable: nullable,
	})
	return sb
}

// AddVectorField adds a fixed-size-list field holding embedding vectors of
// the given dimension.
func (sb *SchemaBuilder) AddVectorField(name string, dimension int, dataType contracts.VectorDataType, nullable bool) contracts.ISchemaBuilder {
	itemType := vectorItemType(dataType)
	return sb.AddField(name, arrow.FixedSizeListOf(int32(dimension), itemType), nullable)
}

func (sb *SchemaBuilder) AddInt32Field(name string, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, arrow.PrimitiveTypes.Int32, nullable)
}

func (sb *SchemaBuilder) AddInt64Field(name string, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, arrow.PrimitiveTypes.Int64, nullable)
}

func (sb *SchemaBuilder) AddFloat32Field(name string, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, arrow.PrimitiveTypes.Float32, nullable)
}

func (sb *SchemaBuilder) AddFloat64Field(name string, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, arrow.PrimitiveTypes.Float64, nullable)
}

func (sb *SchemaBuilder) AddStringField(name string, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, arrow.BinaryTypes.String, nullable)
}

func (sb *SchemaBuilder) AddBinaryField(name string, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, arrow.BinaryTypes.Binary, nullable)
}

func (sb *SchemaBuilder) AddBooleanField(name string, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, arrow.FixedWidthTypes.Boolean, nullable)
}

func (sb *SchemaBuilder) AddTimestampField(name string, unit arrow.TimeUnit, nullable bool) contracts.ISchemaBuilder {
	return sb.AddField(name, &arrow.TimestampType{Unit: unit}, nullable)
}

func (sb *SchemaBuilder) Build() (contracts.ISchema, error) {
	if len(sb.fields) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	return NewSchema(arrow.NewSchema(sb.fields, nil))
}

func vectorItemType(dataType contracts.VectorDataType) arrow.DataType {
	switch dataType {
	case contracts.VectorDataTypeFloat64:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.PrimitiveTypes.Float32
	}
}
