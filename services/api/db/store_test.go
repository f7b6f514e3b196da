package db

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunFilterWhere(t *testing.T) {
	since := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   RunFilter
		wantSQL  string
		wantArgs []any
	}{
		{name: "empty", filter: RunFilter{}, wantSQL: "", wantArgs: nil},
		{
			name:     "project and since",
			filter:   RunFilter{Project: "tag-2016", Since: &since},
			wantSQL:  "WHERE r.project = $1 AND r.started_at >= $2",
			wantArgs: []any{"tag-2016", since},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.filter.where(nil)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBaselineQuerySQL(t *testing.T) {
	since := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args := BaselineQuery{PairID: "2201-2202", Since: &since, Limit: 10}.sql()
	assert.True(t, strings.HasSuffix(sql, " AND ts >= $2 ORDER BY ts, range_ms LIMIT $3"), sql)
	assert.Equal(t, []any{"2201-2202", since, 10}, args)

	sql, args = BaselineQuery{PairID: "2201-2202", Limit: 5, Latest: true}.sql()
	assert.Contains(t, sql, "ORDER BY ts DESC, range_ms DESC LIMIT $2")
	assert.True(t, strings.HasSuffix(sql, ") latest ORDER BY ts, range_ms"), sql)
	assert.Equal(t, []any{"2201-2202", 5}, args)
}
