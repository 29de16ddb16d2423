package option

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type queryOptionFunc func(stmt *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB { return f(stmt) }

type SortBy struct {
	Column string
	Desc   bool
}

// WithQuerySortBy whitelists the requested column. Unknown columns fall back
// to created_at, unknown directions to descending.
func WithQuerySortBy(column, order string, allowed map[string]bool) SortBy {
	column = strings.ToLower(strings.TrimSpace(column))
	if !allowed[column] {
		column = "created_at"
	}
	return SortBy{
		Column: column,
		Desc:   !strings.EqualFold(strings.TrimSpace(order), "asc"),
	}
}

func WithSortBy(sort SortBy) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		dir := "DESC"
		if !sort.Desc {
			dir = "ASC"
		}
		return stmt.Order(fmt.Sprintf("%s %s", sort.Column, dir)).Order("id " + dir)
	})
}

func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return stmt
		}
		return stmt.Limit(limit)
	})
}

func ApplyAll(stmt *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}

// WithKeysetBefore continues a (created_at, id) descending listing after the
// given row.
func WithKeysetBefore(createdAt time.Time, id int64) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		return stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	})
}
