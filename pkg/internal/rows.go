// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// recordToRows converts an Arrow record into one map per row, keyed by
// column name. Null cells become nil values.
func recordToRows(record arrow.Record) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, record.NumRows())
	for i := range rows {
		rows[i] = make(map[string]interface{}, record.Schema().NumFields())
	}

	for colIdx, field := range record.Schema().Fields() {
		if err := columnToRows(record.Column(colIdx), field, rows); err != nil {
			return nil, fmt.Errorf("failed to convert column %s: %w", field.Name, err)
		}
	}
	return rows, nil
}

//nolint:gocyclo
func columnToRows(column arrow.Array, field arrow.Field, rows []map[string]interface{}) error {
	name := field.Name

	set := func(i int, v interface{}) {
		if column.IsNull(i) {
			rows[i][name] = nil
		} else {
			rows[i][name] = v
		}
	}

	switch arr := column.(type) {
	case *array.Int8:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Int16:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Int32:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Int64:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Float32:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Float64:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Boolean:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.String:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Binary:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.Timestamp:
		for i := 0; i < arr.Len(); i++ {
			set(i, arr.Value(i))
		}
	case *array.FixedSizeList:
		listType := field.Type.(*arrow.FixedSizeListType)
		width := int(listType.Len())
		switch values := arr.ListValues().(type) {
		case *array.Float32:
			for i := 0; i < arr.Len(); i++ {
				if arr.IsNull(i) {
					rows[i][name] = nil
					continue
				}
				vec := make([]float32, width)
				for j := 0; j < width; j++ {
					vec[j] = values.Value(i*width + j)
				}
				rows[i][name] = vec
			}
		case *array.Float64:
			for i := 0; i < arr.Len(); i++ {
				if arr.IsNull(i) {
					rows[i][name] = nil
					continue
				}
				vec := make([]float64, width)
				for j := 0; j < width; j++ {
					vec[j] = values.Value(i*width + j)
				}
				rows[i][name] = vec
			}
		default:
			return fmt.Errorf("unsupported fixed size list element type: %s", listType.Elem())
		}
	default:
		return fmt.Errorf("unsupported Arrow type: %s", field.Type)
	}
	return nil
}

// rowsToRecord rebuilds an Arrow record from row maps. Missing keys and nil
// values become nulls. Values are coerced from any Go numeric type, so rows
// assembled by callers (e.g. Update values) round-trip as well as rows
// produced by recordToRows.
func rowsToRecord(schema *arrow.Schema, rows []map[string]interface{}) (arrow.Record, error) {
	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for colIdx, field := range schema.Fields() {
		fb := builder.Field(colIdx)
		for _, row := range rows {
			value, ok := row[field.Name]
			if !ok || value == nil {
				fb.AppendNull()
				continue
			}
			if err := appendValue(fb, field, value); err != nil {
				return nil, fmt.Errorf("column %s: %w", field.Name, err)
			}
		}
	}

	return builder.NewRecord(), nil
}

//nolint:gocyclo
func appendValue(fb array.Builder, field arrow.Field, value interface{}) error {
	switch b := fb.(type) {
	case *array.Int8Builder:
		v, ok := toInt64(value)
		if !ok {
			return typeError(value, field)
		}
		b.Append(int8(v))
	case *array.Int16Builder:
		v, ok := toInt64(value)
		if !ok {
			return typeError(value, field)
		}
		b.Append(int16(v))
	case *array.Int32Builder:
		v, ok := toInt64(value)
		if !ok {
			return typeError(value, field)
		}
		b.Append(int32(v))
	case *array.Int64Builder:
		v, ok := toInt64(value)
		if !ok {
			return typeError(value, field)
		}
		b.Append(v)
	case *array.Float32Builder:
		v, ok := toFloat64(value)
		if !ok {
			return typeError(value, field)
		}
		b.Append(float32(v))
	case *array.Float64Builder:
		v, ok := toFloat64(value)
		if !ok {
			return typeError(value, field)
		}
		b.Append(v)
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return typeError(value, field)
		}
		b.Append(v)
	case *array.StringBuilder:
		v, ok := value.(string)
		if !ok {
			return typeError(value, field)
		}
		b.Append(v)
	case *array.BinaryBuilder:
		v, ok := value.([]byte)
		if !ok {
			return typeError(value, field)
		}
		b.Append(v)
	case *array.TimestampBuilder:
		v, ok := toInt64(value)
		if !ok {
			return typeError(value, field)
		}
		b.Append(arrow.Timestamp(v))
	case *array.FixedSizeListBuilder:
		listType := field.Type.(*arrow.FixedSizeListType)
		b.Append(true)
		switch vb := b.ValueBuilder().(type) {
		case *array.Float32Builder:
			vec, err := toFloat32Slice(value, int(listType.Len()))
			if err != nil {
				return err
			}
			vb.AppendValues(vec, nil)
		case *array.Float64Builder:
			vec, err := toFloat64Slice(value, int(listType.Len()))
			if err != nil {
				return err
			}
			vb.AppendValues(vec, nil)
		default:
			return fmt.Errorf("unsupported fixed size list element type: %s", listType.Elem())
		}
	default:
		return fmt.Errorf("unsupported Arrow type: %s", field.Type)
	}
	return nil
}

func typeError(value interface{}, field arrow.Field) error {
	return fmt.Errorf("cannot store %T into %s column", value, field.Type)
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	case arrow.Timestamp:
		return int64(v), true
	default:
		return 0, false
	}
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case arrow.Timestamp:
		return float64(v), true
	default:
		return 0, false
	}
}

func toFloat32Slice(value interface{}, width int) ([]float32, error) {
	var vec []float32
	switch v := value.(type) {
	case []float32:
		vec = v
	case []float64:
		vec = make([]float32, len(v))
		for i, f := range v {
			vec[i] = float32(f)
		}
	case []interface{}:
		vec = make([]float32, len(v))
		for i, e := range v {
			f, ok := toFloat64(e)
			if !ok {
				return nil, fmt.Errorf("cannot store %T as vector element", e)
			}
			vec[i] = float32(f)
		}
	default:
		return nil, fmt.Errorf("cannot store %T as vector value", value)
	}
	if len(vec) != width {
		return nil, fmt.Errorf("vector has %d elements, column expects %d", len(vec), width)
	}
	return vec, nil
}

func toFloat64Slice(value interface{}, width int) ([]float64, error) {
	var vec []float64
	switch v := value.(type) {
	case []float64:
		vec = v
	case []float32:
		vec = make([]float64, len(v))
		for i, f := range v {
			vec[i] = float64(f)
		}
	case []interface{}:
		vec = make([]float64, len(v))
		for i, e := range v {
			f, ok := toFloat64(e)
			if !ok {
				return nil, fmt.Errorf("cannot store %T as vector element", e)
			}
			vec[i] = f
		}
	default:
		return nil, fmt.Errorf("cannot store %T as vector value", value)
	}
	if len(vec) != width {
		return nil, fmt.Errorf("vector has %d elements, column expects %d", len(vec), width)
	}
	return vec, nil
}
