package service

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
)

const defaultSort = "created:desc"

// sortable fields and the columns they order by
var sortColumns = map[string]string{
	"created":  "p.created_at",
	"deadline": "p.deadline",
	"views":    "p.views",
	"title":    "p.title",
	"company":  "c.name",
	"modified": "p.last_modified",
	"salary":   "p.salary",
}

type (
	// ListFilter narrows a posting listing. Zero values mean "no filter".
	ListFilter struct {
		Page         int
		LocationID   uint64
		ExperienceID uint64
		SectorID     uint64
		Keyword      string
		Company      string
		Sort         string
	}

	Query struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}
)

func NewQuery(db *gorm.DB, l *zap.SugaredLogger) *Query {
	return &Query{
		db:     db,
		logger: l,
	}
}

func (s *Query) List(ctx context.Context, f ListFilter) ([]models.PostingSummary, models.Pagination, error) {
	if err := checkPage(f.Page); err != nil {
		return nil, models.Pagination{}, err
	}
	orderBy, err := parseSort(f.Sort)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	where := f.conditions()

	countSQL, countArgs, err := squirrel.
		Select("COUNT(*)").
		From("postings p").
		Join("companies c ON c.id = p.company_id").
		Where(where).
		ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}

	var total int64
	if err := s.db.WithContext(ctx).Raw(countSQL, countArgs...).Row().Scan(&total); err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "count postings")
	}
	if total == 0 {
		return nil, models.Pagination{}, ErrNoMatchingPostings
	}
	pagination, err := paginate(f.Page, total)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	query, args, err := selectSummaries().
		Where(where).
		OrderBy(orderBy...).
		Limit(PageSize).
		Offset(offset(f.Page)).
		ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}

	postings := make([]models.PostingSummary, 0, PageSize)
	if res := s.db.WithContext(ctx).Raw(query, args...).Scan(&postings); res.Error != nil {
		return nil, models.Pagination{}, errors.Wrap(res.Error, "scan postings")
	}

	return postings, pagination, nil
}

func (f ListFilter) conditions() squirrel.And {
	where := squirrel.And{}
	if f.LocationID != 0 {
		where = append(where, squirrel.Expr(
			"EXISTS (SELECT 1 FROM posting_locations fl WHERE fl.posting_id = p.id AND fl.location_id = ?)", f.LocationID))
	}
	if f.ExperienceID != 0 {
		where = append(where, squirrel.Expr(
			"EXISTS (SELECT 1 FROM posting_experience_levels fe WHERE fe.posting_id = p.id AND fe.experience_level_id = ?)", f.ExperienceID))
	}
	if f.SectorID != 0 {
		where = append(where, squirrel.Expr(
			"EXISTS (SELECT 1 FROM posting_sectors fs WHERE fs.posting_id = p.id AND fs.sector_id = ?)", f.SectorID))
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := likePattern(kw)
		where = append(where, squirrel.Or{
			squirrel.ILike{"p.title": pattern},
			squirrel.ILike{"c.name": pattern},
		})
	}
	if company := strings.TrimSpace(f.Company); company != "" {
		where = append(where, squirrel.ILike{"c.name": likePattern(company)})
	}
	return where
}

// parseSort turns "field[:asc|desc],..." into ORDER BY terms, always ending
// with the id so pages are stable.
func parseSort(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		s = defaultSort
	}

	terms := make([]string, 0, 2)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		column, ok := sortColumns[strings.ToLower(strings.TrimSpace(field))]
		if !ok {
			return nil, validationError("unknown sort field: " + field)
		}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
			terms = append(terms, column+" ASC")
		case "desc":
			terms = append(terms, column+" DESC")
		default:
			return nil, validationError("unknown sort direction: " + dir)
		}
	}
	return append(terms, "p.id ASC"), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
