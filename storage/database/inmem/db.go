// Package inmemdb keeps every repository in memory. It backs the tests and local development,
// and enforces the same constraints as the postgres schema.
package inmemdb

import (
	"cmp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
	"github.com/truonghoc/backend/core/improvement"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
)

type (
	DB struct {
		user               *table[user.User]
		subject            *table[subject.Subject]
		period             *table[period.ReportingPeriod]
		component          *table[grade.Component]
		correction         *table[grade.Correction]
		improvementPeriod  *table[improvement.Period]
		improvementRequest *table[improvement.Request]
	}

	// table holds rows in insertion order.
	table[T any] struct {
		rows  []T
		mutex sync.RWMutex
	}

	// comparators compares two rows on the named field.
	comparators[T any] map[string]func(a, b T) int
)

func Open() *DB {
	return &DB{
		user:               new(table[user.User]),
		subject:            new(table[subject.Subject]),
		period:             new(table[period.ReportingPeriod]),
		component:          new(table[grade.Component]),
		correction:         new(table[grade.Correction]),
		improvementPeriod:  new(table[improvement.Period]),
		improvementRequest: new(table[improvement.Request]),
	}
}

func newID() string {
	return uuid.New().String()
}

// find returns the index of the first row matching pred, or -1.
func (t *table[T]) find(pred func(T) bool) int {
	for i, row := range t.rows {
		if pred(row) {
			return i
		}
	}
	return -1
}

func (t *table[T]) filter(pred func(T) bool) []T {
	res := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if pred(row) {
			res = append(res, row)
		}
	}
	return res
}

// orderBy sorts rows by ordering, ignoring unknown fields.
func orderBy[T any](rows []T, ordering []core.DBOrdering, cmps comparators[T]) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			compare, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			if c := compare(rows[i], rows[j]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return false
	})
}

func compareTime(a, b time.Time) int {
	return a.Compare(b)
}

func compareDate(a, b core.Date) int {
	return a.Time().Compare(b.Time())
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func compareFold(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	val := *v
	return &val
}
