package service

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/events"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
)

type Bookmarks struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	events events.Publisher
}

func NewBookmarks(db *gorm.DB, l *zap.SugaredLogger, p events.Publisher) *Bookmarks {
	return &Bookmarks{
		db:     db,
		logger: l,
		events: p,
	}
}

// Toggle removes the bookmark if present and adds it otherwise. It reports
// whether the posting is bookmarked afterwards.
func (s *Bookmarks) Toggle(ctx context.Context, userID, postingID uint64) (bool, error) {
	var bookmarked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := postingExists(ctx, tx, postingID); err != nil {
			return err
		}

		res := tx.Exec("DELETE FROM bookmarks WHERE user_id = ? AND posting_id = ?", userID, postingID)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete bookmark")
		}
		if res.RowsAffected > 0 {
			bookmarked = false
			return nil
		}

		res = tx.Exec(`INSERT INTO bookmarks (user_id, posting_id, created_at, updated_at)
			VALUES (?, ?, NOW(), NOW())
			ON CONFLICT (user_id, posting_id) DO NOTHING`, userID, postingID)
		if res.Error != nil {
			return refErr(res.Error, "insert bookmark", ErrPostingNotFound)
		}
		bookmarked = true
		return nil
	})
	if err != nil {
		return false, err
	}

	s.events.Publish(ctx, events.Event{
		Type:       events.TypeBookmarkToggled,
		UserID:     userID,
		PostingID:  postingID,
		Bookmarked: &bookmarked,
	})
	return bookmarked, nil
}

// List returns the user's bookmarks, newest first. No bookmarks is an empty page.
func (s *Bookmarks) List(ctx context.Context, userID uint64, page int) ([]models.BookmarkResp, models.Pagination, error) {
	if err := checkPage(page); err != nil {
		return nil, models.Pagination{}, err
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM bookmarks WHERE user_id = ?", userID).
		Row().Scan(&total); err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "count bookmarks")
	}
	pagination, err := paginateOrEmpty(page, total)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	bookmarks := make([]models.BookmarkResp, 0)
	if total == 0 {
		return bookmarks, pagination, nil
	}

	query, args, err := squirrel.
		Select("b.id", "b.posting_id", "p.title", "c.name AS company", "b.created_at").
		From("bookmarks b").
		Join("postings p ON p.id = b.posting_id").
		Join("companies c ON c.id = p.company_id").
		Where(squirrel.Eq{"b.user_id": userID}).
		OrderBy("b.created_at DESC", "b.id DESC").
		Limit(PageSize).
		Offset(offset(page)).
		ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}
	if res := s.db.WithContext(ctx).Raw(query, args...).Scan(&bookmarks); res.Error != nil {
		return nil, models.Pagination{}, errors.Wrap(res.Error, "scan bookmarks")
	}
	return bookmarks, pagination, nil
}

func postingExists(ctx context.Context, tx *gorm.DB, postingID uint64) error {
	var exists bool
	if err := tx.WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM postings WHERE id = ?)", postingID).
		Row().Scan(&exists); err != nil {
		return errors.Wrap(err, "check posting")
	}
	if !exists {
		return ErrPostingNotFound
	}
	return nil
}
