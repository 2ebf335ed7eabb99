package reader

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/filerift/internal/coerce"
)

// Get converts cell i of the current row to T, which may be any type
// coerce.KindOf accepts, including pointer types for nullable reads. Null
// and blank cells yield the zero value.
func Get[T any](r *Reader, i int) (T, error) {
	var zero T
	c, err := r.GetValue(i)
	if err != nil {
		return zero, err
	}

	var out T
	if err := coerce.Assign(reflect.ValueOf(&out).Elem(), c, r.opts.DateFormats); err != nil {
		return zero, fmt.Errorf("reader: row %d column %d: %w", r.number, i, err)
	}
	return out, nil
}

// GetByName is Get for the named column.
func GetByName[T any](r *Reader, name string) (T, error) {
	i, err := r.GetOrdinal(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return Get[T](r, i)
}

// GetInt parses cell i as a base 10 int.
func (r *Reader) GetInt(i int) (int, error) { return Get[int](r, i) }

// GetInt16 parses cell i as a base 10 int16.
func (r *Reader) GetInt16(i int) (int16, error) { return Get[int16](r, i) }

// GetInt32 parses cell i as a base 10 int32.
func (r *Reader) GetInt32(i int) (int32, error) { return Get[int32](r, i) }

// GetInt64 parses cell i as a base 10 int64.
func (r *Reader) GetInt64(i int) (int64, error) { return Get[int64](r, i) }

// GetByte parses cell i as a number from 0 to 255.
func (r *Reader) GetByte(i int) (byte, error) { return Get[byte](r, i) }

// GetBool parses cell i as a boolean; yes/no and y/n are accepted.
func (r *Reader) GetBool(i int) (bool, error) { return Get[bool](r, i) }

// GetFloat32 parses cell i as a float32.
func (r *Reader) GetFloat32(i int) (float32, error) { return Get[float32](r, i) }

// GetFloat64 parses cell i as a float64.
func (r *Reader) GetFloat64(i int) (float64, error) { return Get[float64](r, i) }

// GetDecimal parses cell i as an exact decimal.
func (r *Reader) GetDecimal(i int) (pgtype.Numeric, error) { return Get[pgtype.Numeric](r, i) }

// GetUUID parses cell i in any form uuid.Parse accepts.
func (r *Reader) GetUUID(i int) (uuid.UUID, error) { return Get[uuid.UUID](r, i) }

// GetChar returns the single character in cell i. An empty cell gives 0.
func (r *Reader) GetChar(i int) (coerce.Char, error) { return Get[coerce.Char](r, i) }

// GetTime parses cell i with the configured date formats, or the default
// layouts when none were configured.
func (r *Reader) GetTime(i int) (time.Time, error) { return Get[time.Time](r, i) }
