package service

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
)

const (
	// salaries are quoted in units of 10,000 won
	salaryUnitSuffix = "만원"
	minAnnualSalary  = 1000
)

// only "[연봉 ]N[,NNN]* 만원": hourly, daily and monthly figures carry other prefixes
var annualSalary = regexp.MustCompile(`^(?:연봉\s*)?(\d{1,3}(?:,\d{3})+|\d+)\s*만원$`)

type Recommender struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewRecommender(db *gorm.DB, l *zap.SugaredLogger) *Recommender {
	return &Recommender{
		db:     db,
		logger: l,
	}
}

// ParseAnnualSalary extracts the amount from an annual salary in 만원.
func ParseAnnualSalary(s string) (int, bool) {
	m := annualSalary.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Preferred recommends postings sharing a sector with anything the user
// bookmarked or applied to, minus postings already applied to.
func (s *Recommender) Preferred(ctx context.Context, userID uint64, page int) ([]models.PostingSummary, models.Pagination, error) {
	if err := checkPage(page); err != nil {
		return nil, models.Pagination{}, err
	}

	sectorIDs := make([]uint64, 0)
	res := s.db.WithContext(ctx).Raw(`SELECT DISTINCT ps.sector_id FROM posting_sectors ps
		WHERE ps.posting_id IN (
			SELECT posting_id FROM bookmarks WHERE user_id = ?
			UNION
			SELECT posting_id FROM applications WHERE user_id = ?
		)`, userID, userID).Scan(&sectorIDs)
	if res.Error != nil {
		return nil, models.Pagination{}, errors.Wrap(res.Error, "preferred sectors")
	}
	if len(sectorIDs) == 0 {
		return nil, models.Pagination{}, ErrNoPreference
	}

	sharesSector, sharesArgs, err := squirrel.
		Select("1").From("posting_sectors rs").
		Where("rs.posting_id = p.id").
		Where(squirrel.Eq{"rs.sector_id": sectorIDs}).
		ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}
	where := squirrel.And{
		squirrel.Expr("EXISTS ("+sharesSector+")", sharesArgs...),
		squirrel.Expr("NOT EXISTS (SELECT 1 FROM applications a WHERE a.posting_id = p.id AND a.user_id = ?)", userID),
	}

	return s.page(ctx, where, page, "p.id ASC")
}

// Popular ranks viewed postings by views; equal counts come back shuffled.
func (s *Recommender) Popular(ctx context.Context, page int) ([]models.PostingSummary, models.Pagination, error) {
	if err := checkPage(page); err != nil {
		return nil, models.Pagination{}, err
	}
	return s.page(ctx, squirrel.Gt{"p.views": 0}, page, "p.views DESC", "random()")
}

// BySalary ranks postings with an annual salary of at least 1000만원, highest first.
func (s *Recommender) BySalary(ctx context.Context, page int) ([]models.PostingSummary, models.Pagination, error) {
	if err := checkPage(page); err != nil {
		return nil, models.Pagination{}, err
	}

	type candidate struct {
		ID     uint64
		Salary string
		amount int
	}
	rows := make([]candidate, 0)
	res := s.db.WithContext(ctx).
		Raw("SELECT id, salary FROM postings WHERE salary LIKE ?", "%"+salaryUnitSuffix).
		Scan(&rows)
	if res.Error != nil {
		return nil, models.Pagination{}, errors.Wrap(res.Error, "salary candidates")
	}

	ranked := rows[:0]
	for _, r := range rows {
		amount, ok := ParseAnnualSalary(r.Salary)
		if !ok || amount < minAnnualSalary {
			continue
		}
		r.amount = amount
		ranked = append(ranked, r)
	}
	if len(ranked) == 0 {
		return nil, models.Pagination{}, ErrNothingToRecommend
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].amount != ranked[j].amount {
			return ranked[i].amount > ranked[j].amount
		}
		return ranked[i].ID < ranked[j].ID
	})

	pagination, err := paginate(page, int64(len(ranked)))
	if err != nil {
		return nil, models.Pagination{}, err
	}
	start := int(offset(page))
	end := start + PageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	ids := make([]uint64, 0, end-start)
	for _, r := range ranked[start:end] {
		ids = append(ids, r.ID)
	}

	query, args, err := selectSummaries().Where(squirrel.Eq{"p.id": ids}).ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}
	fetched := make([]models.PostingSummary, 0, len(ids))
	if res := s.db.WithContext(ctx).Raw(query, args...).Scan(&fetched); res.Error != nil {
		return nil, models.Pagination{}, errors.Wrap(res.Error, "scan postings")
	}

	byID := make(map[uint64]models.PostingSummary, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	postings := make([]models.PostingSummary, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			postings = append(postings, p)
		}
	}

	return postings, pagination, nil
}

func (s *Recommender) page(ctx context.Context, where squirrel.Sqlizer, page int, orderBy ...string) ([]models.PostingSummary, models.Pagination, error) {
	countSQL, countArgs, err := squirrel.Select("COUNT(*)").From("postings p").Where(where).ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}
	var total int64
	if err := s.db.WithContext(ctx).Raw(countSQL, countArgs...).Row().Scan(&total); err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "count recommendations")
	}
	if total == 0 {
		return nil, models.Pagination{}, ErrNothingToRecommend
	}
	pagination, err := paginate(page, total)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	query, args, err := selectSummaries().
		Where(where).
		OrderBy(orderBy...).
		Limit(PageSize).
		Offset(offset(page)).
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
