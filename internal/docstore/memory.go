package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDuplicateKey is returned by the in-process store when a unique field
// collides; the Mongo implementation surfaces the driver's own error instead.
var ErrDuplicateKey = errors.New("docstore: duplicate key")

// Memory is an in-process Collection used by tests. Field filtering, sorting,
// and updates resolve struct fields through their bson tags, mirroring how
// the Mongo implementation addresses them.
type Memory[T any, PT Doc[T]] struct {
	mu   sync.Mutex
	docs map[string]T
	ids  []string // insertion order, keeps unsorted finds deterministic

	// Unique lists bson field names that must not collide across records.
	Unique []string

	// Queries counts FindByID/Find/Count calls; tests assert on it to prove
	// a read was served from cache.
	Queries atomic.Int64
}

// NewMemory creates an empty in-process collection.
func NewMemory[T any, PT Doc[T]](unique ...string) *Memory[T, PT] {
	return &Memory[T, PT]{
		docs:   make(map[string]T),
		Unique: unique,
	}
}

func (m *Memory[T, PT]) Insert(_ context.Context, record PT) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.DocumentID() == "" {
		record.SetDocumentID(fmt.Sprintf("mem-%d", len(m.ids)+1))
	}
	id := record.DocumentID()
	if _, exists := m.docs[id]; exists {
		return fmt.Errorf("%w: _id %q", ErrDuplicateKey, id)
	}
	for _, field := range m.Unique {
		want := fieldValue(reflect.ValueOf(record).Elem(), field)
		for _, other := range m.docs {
			if reflect.DeepEqual(fieldValue(reflect.ValueOf(&other).Elem(), field), want) {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, field)
			}
		}
	}

	m.docs[id] = *record
	m.ids = append(m.ids, id)
	return nil
}

func (m *Memory[T, PT]) FindByID(_ context.Context, id string) (PT, error) {
	m.Queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	out := doc
	return PT(&out), nil
}

func (m *Memory[T, PT]) Find(_ context.Context, q Query) ([]PT, error) {
	m.Queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := m.match(q.Filter)
	if q.Sort != nil {
		field, desc := q.Sort.Field, q.Sort.Desc
		sort.SliceStable(matched, func(i, j int) bool {
			less := compareValues(
				fieldValue(reflect.ValueOf(&matched[i]).Elem(), field),
				fieldValue(reflect.ValueOf(&matched[j]).Elem(), field),
			) < 0
			if desc {
				return !less
			}
			return less
		})
	}

	if q.Skip > 0 {
		if q.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[q.Skip:]
		}
	}
	if q.Limit > 0 && int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}

	result := make([]PT, len(matched))
	for i := range matched {
		out := matched[i]
		result[i] = PT(&out)
	}
	return result, nil
}

func (m *Memory[T, PT]) Count(_ context.Context, filter map[string]any) (int64, error) {
	m.Queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.match(filter))), nil
}

func (m *Memory[T, PT]) UpdateByID(_ context.Context, id string, fields map[string]any) (PT, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	v := reflect.ValueOf(&doc).Elem()
	for name, value := range fields {
		if err := setField(v, name, value); err != nil {
			return nil, err
		}
	}
	m.docs[id] = doc
	out := doc
	return PT(&out), nil
}

func (m *Memory[T, PT]) DeleteByID(_ context.Context, id string) (PT, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	delete(m.docs, id)
	for i, existing := range m.ids {
		if existing == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	out := doc
	return PT(&out), nil
}

// match returns copies of every record matching the filter, in insertion
// order. Callers must hold mu.
func (m *Memory[T, PT]) match(filter map[string]any) []T {
	var matched []T
	for _, id := range m.ids {
		doc := m.docs[id]
		v := reflect.ValueOf(&doc).Elem()
		ok := true
		for name, want := range filter {
			if !reflect.DeepEqual(fieldValue(v, name), want) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, doc)
		}
	}
	return matched
}

// fieldValue resolves a struct field by its bson tag (falling back to the
// lowercased field name) and returns its value as any.
func fieldValue(v reflect.Value, name string) any {
	f := structField(v, name)
	if !f.IsValid() {
		return nil
	}
	return f.Interface()
}

func setField(v reflect.Value, name string, value any) error {
	f := structField(v, name)
	if !f.IsValid() || !f.CanSet() {
		return fmt.Errorf("no settable field for %q", name)
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(f.Type()) {
		if !rv.Type().ConvertibleTo(f.Type()) {
			return fmt.Errorf("cannot assign %T to field %q", value, name)
		}
		rv = rv.Convert(f.Type())
	}
	f.Set(rv)
	return nil
}

func structField(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("bson")
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag == name || (tag == "" && strings.EqualFold(field.Name, name)) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case int:
		return av - b.(int)
	case int64:
		return int(av - b.(int64))
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}
