package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"", []string{"p.created_at DESC", "p.id ASC"}, false},
		{"views:desc", []string{"p.views DESC", "p.id ASC"}, false},
		{"company, deadline:asc", []string{"c.name ASC", "p.deadline ASC", "p.id ASC"}, false},
		{"Salary:DESC", []string{"p.salary DESC", "p.id ASC"}, false},
		{"password", nil, true},
		{"views:sideways", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSort(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%back%`, likePattern("back"))
	assert.Equal(t, `%100\%\_off%`, likePattern("100%_off"))
}

func TestListFilter_Conditions(t *testing.T) {
	sql, args, err := ListFilter{LocationID: 3, SectorID: 4, Keyword: "go"}.conditions().ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "fl.location_id = ?")
	assert.Contains(t, sql, "fs.sector_id = ?")
	assert.Contains(t, sql, "p.title ILIKE ? OR c.name ILIKE ?")
	assert.Equal(t, []interface{}{uint64(3), uint64(4), "%go%", "%go%"}, args)
}

func TestQuery_List_InvalidPage(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewQuery(db, newTestLogger())

	_, _, err := s.List(context.Background(), ListFilter{Page: 0})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_List_NoMatches(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewQuery(db, newTestLogger())

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM postings p JOIN companies c`).
		WithArgs("%nothing%", "%nothing%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := s.List(context.Background(), ListFilter{Page: 1, Keyword: "nothing"})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "no matching postings", MessageOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_List_PageOutOfRange(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewQuery(db, newTestLogger())

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))

	_, _, err := s.List(context.Background(), ListFilter{Page: 3})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_List(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewQuery(db, newTestLogger())

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("%acme%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`WHERE \(c.name ILIKE \$1\) ORDER BY p.views DESC, p.id ASC LIMIT 20 OFFSET 20`).
		WithArgs("%acme%").
		WillReturnRows(addSummary(summaryRows(), 21, "Backend"))

	postings, pagination, err := s.List(context.Background(), ListFilter{Page: 2, Company: "acme", Sort: "views:desc"})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, []string{"Seoul"}, []string(postings[0].Locations))
	assert.Empty(t, postings[0].EmploymentTypes)
	assert.Equal(t, models.Pagination{CurrentPage: 2, TotalPages: 2, PageSize: 20, TotalItems: 21}, pagination)
	assert.NoError(t, mock.ExpectationsWereMet())
}
