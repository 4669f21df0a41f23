package service

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/metrics"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/normalize"
)

const relatedLimit = 5

var whitespace = regexp.MustCompile(`\s+`)

type Postings struct {
	db      *gorm.DB
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewPostings(db *gorm.DB, l *zap.SugaredLogger, m *metrics.Metrics) *Postings {
	return &Postings{
		db:      db,
		logger:  l,
		metrics: m,
	}
}

// Ingest stores a scraped record owned by ownerID. A record whose link hash is
// already stored is skipped: inserted is false and err is nil.
func (s *Postings) Ingest(ctx context.Context, ownerID uint64, rec normalize.Record) (id uint64, inserted bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, inserted, err = writePosting(ctx, tx, ownerID, rec)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return id, inserted, nil
}

func (s *Postings) Create(ctx context.Context, userID uint64, req models.PostingReq) (*models.PostingDetail, error) {
	rec, err := recordFromReq(req)
	if err != nil {
		return nil, err
	}

	var id uint64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup, err := hasDuplicate(ctx, tx, rec.Title, rec.Link)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicatePosting
		}

		var inserted bool
		id, inserted, err = writePosting(ctx, tx, userID, rec)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrDuplicatePosting
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("posting created", "postingID", id, "userID", userID)
	return s.load(ctx, s.db, id)
}

func (s *Postings) Update(ctx context.Context, userID, postingID uint64, req models.PostingUpdateReq) (*models.PostingDetail, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwned(ctx, tx, postingID, userID); err != nil {
			return err
		}

		now := time.Now().UTC()
		q := squirrel.Update("postings").
			Set("updated_at", now).
			Set("last_modified", now.Truncate(24*time.Hour)).
			Where(squirrel.Eq{"id": postingID})

		if req.Company != nil {
			companyID, err := ResolveID(ctx, tx, DimCompany, *req.Company)
			if err != nil {
				return err
			}
			q = q.Set("company_id", companyID)
		}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return validationError("title must not be empty")
			}
			q = q.Set("title", title)
		}
		if req.Link != nil {
			link := strings.TrimSpace(*req.Link)
			if link == "" {
				return validationError("link must not be empty")
			}
			q = q.Set("link", link).Set("link_hash", normalize.LinkHash(link))
		}
		if req.EducationLevel != nil {
			eduID, err := optionalID(ctx, tx, DimEducationLevel, *req.EducationLevel)
			if err != nil {
				return err
			}
			q = q.Set("education_level_id", eduID)
		}
		if req.Deadline != nil {
			q = q.Set("deadline", nullable(*req.Deadline))
		}
		if req.Salary != nil {
			q = q.Set("salary", nullable(*req.Salary))
		}
		if req.EmploymentType != nil {
			etID, err := optionalID(ctx, tx, DimEmploymentType, *req.EmploymentType)
			if err != nil {
				return err
			}
			q = q.Set("employment_type_id", etID)
			if err := Relink(ctx, tx, DimEmploymentType, JunctionEmploymentTypes, postingID, []string{*req.EmploymentType}); err != nil {
				return err
			}
		}

		query, args, err := q.ToSql()
		if err != nil {
			return errors.Wrap(err, "build sql")
		}
		if res := tx.Exec(query, args...); res.Error != nil {
			return storageErr(res.Error, "update posting", ErrDuplicatePosting)
		}

		if req.Locations != nil {
			if err := Relink(ctx, tx, DimLocation, JunctionLocations, postingID, req.Locations); err != nil {
				return err
			}
		}
		if req.Sectors != nil {
			if err := Relink(ctx, tx, DimSector, JunctionSectors, postingID, req.Sectors); err != nil {
				return err
			}
		}
		if req.ExperienceLevels != nil {
			if err := Relink(ctx, tx, DimExperienceLevel, JunctionExperienceLevels, postingID, req.ExperienceLevels); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.load(ctx, s.db, postingID)
}

func (s *Postings) Delete(ctx context.Context, userID, postingID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwned(ctx, tx, postingID, userID); err != nil {
			return err
		}

		for _, j := range junctions {
			if err := Unlink(ctx, tx, j, postingID); err != nil {
				return err
			}
		}
		for _, table := range []string{"bookmarks", "applications"} {
			if res := tx.Exec("DELETE FROM "+table+" WHERE posting_id = ?", postingID); res.Error != nil {
				return errors.Wrapf(res.Error, "delete %s", table)
			}
		}
		if res := tx.Exec("DELETE FROM postings WHERE id = ?", postingID); res.Error != nil {
			return errors.Wrap(res.Error, "delete posting")
		}
		return nil
	})
}

// Detail counts one view and returns the posting with up to five related ones.
func (s *Postings) Detail(ctx context.Context, postingID uint64) (*models.PostingDetail, error) {
	var id uint64
	err := s.db.WithContext(ctx).
		Raw("UPDATE postings SET views = views + 1 WHERE id = ? RETURNING id", postingID).
		Row().Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostingNotFound
		}
		return nil, errors.Wrap(err, "count view")
	}
	s.metrics.PostingViews.Inc()

	detail, err := s.load(ctx, s.db, postingID)
	if err != nil {
		return nil, err
	}

	related, err := s.related(ctx, postingID)
	if err != nil {
		return nil, err
	}
	detail.Related = related

	return detail, nil
}

func (s *Postings) load(ctx context.Context, db *gorm.DB, postingID uint64) (*models.PostingDetail, error) {
	query, args, err := selectDetail().Where(squirrel.Eq{"p.id": postingID}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	detail := models.PostingDetail{}
	res := db.WithContext(ctx).Raw(query, args...).Scan(&detail)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan posting")
	}
	if res.RowsAffected == 0 {
		return nil, ErrPostingNotFound
	}
	return &detail, nil
}

// related samples postings of the same company or sharing a sector, in random order.
func (s *Postings) related(ctx context.Context, postingID uint64) ([]models.PostingSummary, error) {
	query, args, err := selectSummaries().
		Where(squirrel.NotEq{"p.id": postingID}).
		Where(squirrel.Or{
			squirrel.Expr("p.company_id = (SELECT company_id FROM postings WHERE id = ?)", postingID),
			squirrel.Expr("EXISTS (SELECT 1 FROM posting_sectors rs WHERE rs.posting_id = p.id "+
				"AND rs.sector_id IN (SELECT sector_id FROM posting_sectors WHERE posting_id = ?))", postingID),
		}).
		OrderBy("random()").
		Limit(relatedLimit).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	related := make([]models.PostingSummary, 0, relatedLimit)
	if res := s.db.WithContext(ctx).Raw(query, args...).Scan(&related); res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan related")
	}
	return related, nil
}

// writePosting inserts rec and its associations unless its link hash is already stored.
func writePosting(ctx context.Context, tx *gorm.DB, ownerID uint64, rec normalize.Record) (uint64, bool, error) {
	companyID, err := ResolveID(ctx, tx, DimCompany, rec.Company)
	if err != nil {
		return 0, false, err
	}
	eduID, err := optionalID(ctx, tx, DimEducationLevel, rec.EducationLevel)
	if err != nil {
		return 0, false, err
	}
	etID, err := optionalID(ctx, tx, DimEmploymentType, rec.EmploymentType)
	if err != nil {
		return 0, false, err
	}

	linkHash := rec.LinkHash
	if linkHash == "" {
		linkHash = normalize.LinkHash(rec.Link)
	}
	now := time.Now().UTC()

	query, args, err := squirrel.
		Insert("postings").
		Columns("title", "link", "link_hash", "salary", "deadline", "last_modified", "views",
			"user_id", "company_id", "education_level_id", "employment_type_id", "created_at", "updated_at").
		Values(rec.Title, rec.Link, linkHash, nullable(rec.Salary), nullable(rec.Deadline), rec.LastModified, 0,
			ownerID, companyID, eduID, etID, now, now).
		Suffix("ON CONFLICT (link_hash) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, false, errors.Wrap(err, "build sql")
	}

	var id uint64
	if err := tx.WithContext(ctx).Raw(query, args...).Row().Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, storageErr(err, "insert posting", ErrDuplicatePosting)
	}

	links := []struct {
		dim    Dimension
		j      Junction
		labels []string
	}{
		{DimExperienceLevel, JunctionExperienceLevels, rec.ExperienceLevels},
		{DimLocation, JunctionLocations, rec.Locations},
		{DimSector, JunctionSectors, rec.Sectors},
		{DimEmploymentType, JunctionEmploymentTypes, rec.EmploymentTypes},
	}
	for _, l := range links {
		ids, err := ResolveIDs(ctx, tx, l.dim, l.labels)
		if err != nil {
			return 0, false, err
		}
		if err := Link(ctx, tx, l.j, id, ids); err != nil {
			return 0, false, err
		}
	}

	return id, true, nil
}

// hasDuplicate matches on title with all whitespace removed plus the exact link.
func hasDuplicate(ctx context.Context, tx *gorm.DB, title, link string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Raw(`SELECT COUNT(*) FROM postings WHERE regexp_replace(title, '\s+', '', 'g') = ? AND link = ?`,
			whitespace.ReplaceAllString(title, ""), link).
		Row().Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "check duplicate")
	}
	return count > 0, nil
}

// lockOwned locks the posting row and checks that userID owns it.
func lockOwned(ctx context.Context, tx *gorm.DB, postingID, userID uint64) error {
	var owner sql.NullInt64
	err := tx.WithContext(ctx).
		Raw("SELECT user_id FROM postings WHERE id = ? FOR UPDATE", postingID).
		Row().Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPostingNotFound
		}
		return errors.Wrap(err, "lock posting")
	}
	if !owner.Valid || uint64(owner.Int64) != userID {
		return ErrNotPostingOwner
	}
	return nil
}

// optionalID resolves label, mapping an empty label to NULL.
func optionalID(ctx context.Context, tx *gorm.DB, dim Dimension, label string) (*uint64, error) {
	if strings.TrimSpace(label) == "" {
		return nil, nil
	}
	id, err := ResolveID(ctx, tx, dim, label)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func recordFromReq(req models.PostingReq) (normalize.Record, error) {
	rec := normalize.Record{
		Company:          strings.TrimSpace(req.Company),
		Title:            strings.TrimSpace(req.Title),
		Link:             strings.TrimSpace(req.Link),
		Locations:        req.Locations,
		ExperienceLevels: req.ExperienceLevels,
		Sectors:          req.Sectors,
	}
	switch {
	case rec.Company == "":
		return rec, validationError("company is required")
	case rec.Title == "":
		return rec, validationError("title is required")
	case rec.Link == "":
		return rec, validationError("link is required")
	}

	rec.LinkHash = normalize.LinkHash(rec.Link)
	if req.EducationLevel != nil {
		rec.EducationLevel = *req.EducationLevel
	}
	if req.Deadline != nil {
		rec.Deadline = *req.Deadline
	}
	if req.Salary != nil {
		rec.Salary = *req.Salary
	}
	if req.EmploymentType != nil && strings.TrimSpace(*req.EmploymentType) != "" {
		rec.EmploymentType = strings.TrimSpace(*req.EmploymentType)
		rec.EmploymentTypes = []string{rec.EmploymentType}
	}
	return rec, nil
}
