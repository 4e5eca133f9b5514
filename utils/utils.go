// Package utils holds conversion helpers shared by request descriptors and
// application code: turning typed request structs into column-keyed rows for
// write dispatch, and query result rows back into typed values.
package utils

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var rowJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// RowFromStruct converts a struct (or pointer to struct) into a column-keyed
// row map, respecting json tags. Nil-valued optional fields marked omitempty
// are left out, which makes the result directly usable for patch dispatch.
func RowFromStruct[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("record cannot be a nil pointer")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record must be a struct or pointer to struct, got %s", val.Kind())
	}

	data, err := rowJSON.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var row map[string]any
	if err := rowJSON.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal record to row: %w", err)
	}
	return row, nil
}

// RowToStruct converts a column-keyed result row into a new instance of T,
// the inverse of RowFromStruct.
func RowToStruct[T any](row map[string]any) (T, error) {
	var zero T
	if row == nil {
		return zero, fmt.Errorf("row cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("target type must be a struct or pointer to struct")
	}

	data, err := rowJSON.Marshal(row)
	if err != nil {
		return zero, fmt.Errorf("marshal row: %w", err)
	}
	var result T
	if err := rowJSON.Unmarshal(data, &result); err != nil {
		return zero, fmt.Errorf("unmarshal row to struct: %w", err)
	}
	return result, nil
}
