package lazyq

import (
	"fmt"
	"hash/crc32"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

// Field weights accepted by Weight and Meta.Weights.
const (
	MinWeight = 1
	MaxWeight = 10
)

// DefaultGroupSort is the group ordering used when GroupBy gets no sort.
const DefaultGroupSort = "-@group"

// Converter turns a caller-supplied filter value into the integer the search
// server compares against.
type Converter func(v any) (int64, error)

// GroupBy names the attribute results are grouped on and how groups sort.
type GroupBy struct {
	Attr string
	Sort []string
}

// Meta describes how an entity type is indexed.
type Meta struct {
	// Index is the search index name. Required.
	Index string
	// Ordering is the default order_by when a query sets none.
	Ordering []string
	// Weights are default per-field weights; query weights override them.
	Weights map[string]int
	// IDField names the attribute holding the entity id. Empty means the
	// document id is the entity id.
	IDField string
	// FilterMapping converts filter values per field. Fields without an
	// entry accept integers and decimal strings.
	FilterMapping map[string]Converter
	// GroupBy is applied when a query does not call GroupBy itself.
	GroupBy *GroupBy
	// Excerpt holds defaults for highlight options left unset.
	Excerpt protocol.ExcerptOptions
}

func (m Meta) validate() error {
	if m.Index == "" {
		return fmt.Errorf("%w: meta index is required", ErrInvalidArgument)
	}
	if err := checkWeights(m.Weights); err != nil {
		return fmt.Errorf("meta weights: %w", err)
	}
	if m.GroupBy != nil && m.GroupBy.Attr == "" {
		return fmt.Errorf("%w: meta group_by attribute is required", ErrInvalidArgument)
	}
	return nil
}

func (m Meta) converter(field string) Converter {
	if c, ok := m.FilterMapping[field]; ok && c != nil {
		return c
	}
	return ToInt64
}

func checkWeights(w map[string]int) error {
	for field, v := range w {
		if v < MinWeight || v > MaxWeight {
			return fmt.Errorf("%w: weight %d for field %q is outside of range %d to %d",
				ErrInvalidArgument, v, field, MinWeight, MaxWeight)
		}
	}
	return nil
}

// ToInt64 is the default filter value converter. It accepts integer kinds,
// bools and base-10 strings.
func ToInt64(v any) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrInvalidArgument, u)
		}
		return int64(u), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.String:
		n, err := strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidArgument, rv.String())
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to an integer", ErrInvalidArgument, v)
	}
}

// CRC32 converts strings to their unsigned CRC-32 (IEEE) checksum, matching
// string attributes indexed as crc32 ints. Other values go through ToInt64.
func CRC32(v any) (int64, error) {
	switch s := v.(type) {
	case string:
		return int64(crc32.ChecksumIEEE([]byte(s))), nil
	case []byte:
		return int64(crc32.ChecksumIEEE(s)), nil
	case fmt.Stringer:
		return int64(crc32.ChecksumIEEE([]byte(s.String()))), nil
	default:
		return ToInt64(v)
	}
}
