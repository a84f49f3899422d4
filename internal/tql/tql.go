// Package tql maps postgres query results onto Go values. Queries take
// either positional $n arguments or a single map/struct argument whose
// values are bound to :name placeholders.
package tql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func QueryFirstOrDefault[T any](ctx context.Context, q Querier, def T, query string, params ...any) (T, error) {
	result, err := QueryFirst[T](ctx, q, query, params...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return def, nil
	case err != nil:
		return result, err
	default:
		return result, nil
	}
}

// QueryFirst returns the first row, or sql.ErrNoRows.
func QueryFirst[T any](ctx context.Context, q Querier, query string, params ...any) (T, error) {
	var result T

	results, err := Query[T](ctx, q, query, params...)
	if err != nil {
		return result, err
	}

	if len(results) == 0 {
		return result, sql.ErrNoRows
	}

	return results[0], nil
}

func Query[T any](ctx context.Context, q Querier, query string, params ...any) (result []T, err error) {
	result = make([]T, 0)

	boundQuery, args, err := bind(query, params)
	if err != nil {
		return result, err
	}

	rows, err := q.QueryContext(ctx, boundQuery, args...)
	if err != nil {
		return result, err
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close rows: %w", closeErr)
		}
	}()

	var (
		cols     []string
		byColumn = scansByColumn[T]()
	)
	for rows.Next() {
		var current T

		if byColumn {
			if cols == nil {
				if cols, err = rows.Columns(); err != nil {
					return result, err
				}
			}

			dest, err := destinations(&current, cols)
			if err != nil {
				return result, err
			}

			if err := rows.Scan(dest...); err != nil {
				return result, err
			}
		} else if err := rows.Scan(&current); err != nil {
			return result, err
		}

		result = append(result, current)
	}

	return result, rows.Err()
}

// scansByColumn reports whether T is a row struct rather than a single
// scannable value.
func scansByColumn[T any]() bool {
	var zero T
	switch any(&zero).(type) {
	case sql.Scanner, *time.Time:
		return false
	}

	t := reflect.TypeOf(zero)
	return t != nil && t.Kind() == reflect.Struct
}

func Exec(ctx context.Context, e Executor, query string, params ...any) (sql.Result, error) {
	boundQuery, args, err := bind(query, params)
	if err != nil {
		return nil, err
	}

	return e.ExecContext(ctx, boundQuery, args...)
}

// bind rewrites :name placeholders to $n when params is a single map or
// struct. Any other params are passed through as positional arguments.
func bind(query string, params []any) (string, []any, error) {
	if len(params) != 1 {
		return query, params, nil
	}

	named, ok, err := namedParameters(params[0])
	if err != nil || !ok {
		return query, params, err
	}

	return parameterize(query, named)
}

func namedParameters(p any) (map[string]any, bool, error) {
	switch p.(type) {
	case driver.Valuer, time.Time, *time.Time:
		return nil, false, nil
	}

	if m, ok := p.(map[string]any); ok {
		return m, true, nil
	}

	val := reflect.Indirect(reflect.ValueOf(p))
	if val.Kind() != reflect.Struct {
		return nil, false, nil
	}

	fields, err := fieldIndices(val.Type())
	if err != nil {
		return nil, false, err
	}

	parameters := make(map[string]any, len(fields))
	for tag, idx := range fields {
		parameters[tag] = val.Field(idx).Interface()
	}

	return parameters, true, nil
}

func isNameStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isNameChar(c byte) bool {
	return isNameStart(c) || unicode.IsDigit(rune(c))
}

// parameterize skips string literals and :: casts. A name used twice is
// bound once.
func parameterize(query string, parameters map[string]any) (string, []any, error) {
	var (
		result    strings.Builder
		args      = make([]any, 0, len(parameters))
		positions = make(map[string]int, len(parameters))
		inLiteral bool
	)

	result.Grow(len(query))

	for i := 0; i < len(query); i++ {
		c := query[i]

		switch {
		case c == '\'':
			inLiteral = !inLiteral
			result.WriteByte(c)

		case inLiteral || c != ':':
			result.WriteByte(c)

		case i+1 < len(query) && query[i+1] == ':':
			result.WriteString("::")
			i++

		case i+1 < len(query) && isNameStart(query[i+1]):
			end := i + 1
			for end < len(query) && isNameChar(query[end]) {
				end++
			}

			name := query[i+1 : end]
			pos, seen := positions[name]
			if !seen {
				arg, found := parameters[name]
				if !found {
					return "", nil, fmt.Errorf("query parameter '%s' not found in provided parameters", name)
				}

				args = append(args, arg)
				pos = len(args)
				positions[name] = pos
			}

			result.WriteByte('$')
			result.WriteString(strconv.Itoa(pos))
			i = end - 1

		default:
			result.WriteByte(c)
		}
	}

	return result.String(), args, nil
}

var (
	fieldCacheMu sync.RWMutex
	fieldCache   = make(map[reflect.Type]map[string]int)
)

// fieldIndices maps 'db' tags to field indices of a struct type.
func fieldIndices(t reflect.Type) (map[string]int, error) {
	fieldCacheMu.RLock()
	indices, found := fieldCache[t]
	fieldCacheMu.RUnlock()
	if found {
		return indices, nil
	}

	indices = make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag, found := field.Tag.Lookup("db")
		if !found || tag == "-" {
			continue
		}

		if _, dup := indices[tag]; dup {
			return nil, fmt.Errorf("duplicate 'db' tag '%s' on %s", tag, t.Name())
		}
		indices[tag] = i
	}

	fieldCacheMu.Lock()
	fieldCache[t] = indices
	fieldCacheMu.Unlock()

	return indices, nil
}

func destinations(source any, columns []string) ([]any, error) {
	value := reflect.ValueOf(source).Elem()

	indices, err := fieldIndices(value.Type())
	if err != nil {
		return nil, err
	}

	dest := make([]any, len(columns))
	for i, c := range columns {
		idx, found := indices[c]
		if !found {
			return nil, fmt.Errorf("no matching field found for column: %s", c)
		}
		dest[i] = value.Field(idx).Addr().Interface()
	}

	return dest, nil
}
