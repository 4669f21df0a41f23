package service

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/events"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
)

type ApplicationStatus string

const (
	StatusApplying  ApplicationStatus = "applying"
	StatusCancelled ApplicationStatus = "cancelled"
	StatusHired     ApplicationStatus = "hired"
	StatusRejected  ApplicationStatus = "rejected"
)

// hired and rejected are terminal
var statusTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusApplying:  {StatusCancelled, StatusHired, StatusRejected},
	StatusCancelled: {StatusApplying},
}

func ParseStatus(s string) (ApplicationStatus, error) {
	switch st := ApplicationStatus(s); st {
	case StatusApplying, StatusCancelled, StatusHired, StatusRejected:
		return st, nil
	}
	return "", validationError("unknown application status: " + s)
}

func IsTransitionAllowed(from, to ApplicationStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Applications struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	events events.Publisher
}

func NewApplications(db *gorm.DB, l *zap.SugaredLogger, p events.Publisher) *Applications {
	return &Applications{
		db:     db,
		logger: l,
		events: p,
	}
}

// Apply creates the application, or reactivates a cancelled one keeping its id.
func (s *Applications) Apply(ctx context.Context, userID, postingID uint64) (*models.ApplicationResp, error) {
	if err := postingExists(ctx, s.db, postingID); err != nil {
		return nil, err
	}

	var id uint64
	err := s.db.WithContext(ctx).Raw(`INSERT INTO applications (user_id, posting_id, status, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON CONFLICT (user_id, posting_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
		WHERE applications.status = ?
		RETURNING id`, userID, postingID, StatusApplying, StatusCancelled).Row().Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyApplied
		}
		// the posting can vanish between the existence check and the insert
		return nil, refErr(err, "apply", ErrPostingNotFound)
	}

	s.publish(ctx, userID, postingID, id, StatusApplying)
	return s.get(ctx, id)
}

// Cancel withdraws the caller's own active application.
func (s *Applications) Cancel(ctx context.Context, userID, applicationID uint64) (*models.ApplicationResp, error) {
	var postingID uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			applicant uint64
			status    ApplicationStatus
		)
		err := tx.Raw("SELECT user_id, posting_id, status FROM applications WHERE id = ? FOR UPDATE", applicationID).
			Row().Scan(&applicant, &postingID, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrApplicationNotFound
			}
			return errors.Wrap(err, "lock application")
		}
		if applicant != userID {
			return ErrNotApplicant
		}
		if !IsTransitionAllowed(status, StatusCancelled) {
			return validationError("application is not active")
		}
		return moveStatus(tx, applicationID, status, StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, userID, postingID, applicationID, StatusCancelled)
	return s.get(ctx, applicationID)
}

// SetStatus lets the posting owner decide an application.
func (s *Applications) SetStatus(ctx context.Context, ownerID, applicationID uint64, status string) (*models.ApplicationResp, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if to != StatusHired && to != StatusRejected {
		return nil, validationError("status must be hired or rejected")
	}

	var applicant, postingID uint64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			from  ApplicationStatus
			owner sql.NullInt64
		)
		err := tx.Raw(`SELECT a.user_id, a.posting_id, a.status, p.user_id
			FROM applications a JOIN postings p ON p.id = a.posting_id
			WHERE a.id = ? FOR UPDATE OF a`, applicationID).
			Row().Scan(&applicant, &postingID, &from, &owner)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrApplicationNotFound
			}
			return errors.Wrap(err, "lock application")
		}
		if !owner.Valid || uint64(owner.Int64) != ownerID {
			return ErrNotPostingOwner
		}
		if !IsTransitionAllowed(from, to) {
			return validationError("cannot move application from " + string(from) + " to " + string(to))
		}
		return moveStatus(tx, applicationID, from, to)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, applicant, postingID, applicationID, to)
	return s.get(ctx, applicationID)
}

// List pages through the user's applications, optionally of one status.
func (s *Applications) List(ctx context.Context, userID uint64, status string, page int) ([]models.ApplicationResp, models.Pagination, error) {
	if err := checkPage(page); err != nil {
		return nil, models.Pagination{}, err
	}
	where := squirrel.Eq{"a.user_id": userID}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, models.Pagination{}, err
		}
		where["a.status"] = st
	}

	countSQL, countArgs, err := squirrel.Select("COUNT(*)").From("applications a").Where(where).ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}
	var total int64
	if err := s.db.WithContext(ctx).Raw(countSQL, countArgs...).Row().Scan(&total); err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "count applications")
	}
	pagination, err := paginateOrEmpty(page, total)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	applications := make([]models.ApplicationResp, 0)
	if total == 0 {
		return applications, pagination, nil
	}

	query, args, err := selectApplications().
		Where(where).
		OrderBy("a.updated_at DESC", "a.id DESC").
		Limit(PageSize).
		Offset(offset(page)).
		ToSql()
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "build sql")
	}
	if res := s.db.WithContext(ctx).Raw(query, args...).Scan(&applications); res.Error != nil {
		return nil, models.Pagination{}, errors.Wrap(res.Error, "scan applications")
	}
	return applications, pagination, nil
}

func (s *Applications) get(ctx context.Context, applicationID uint64) (*models.ApplicationResp, error) {
	query, args, err := selectApplications().Where(squirrel.Eq{"a.id": applicationID}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}
	app := models.ApplicationResp{}
	res := s.db.WithContext(ctx).Raw(query, args...).Scan(&app)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan application")
	}
	if res.RowsAffected == 0 {
		return nil, ErrApplicationNotFound
	}
	return &app, nil
}

func (s *Applications) publish(ctx context.Context, userID, postingID, applicationID uint64, status ApplicationStatus) {
	s.events.Publish(ctx, events.Event{
		Type:          events.TypeApplicationStatusChanged,
		UserID:        userID,
		PostingID:     postingID,
		ApplicationID: applicationID,
		Status:        string(status),
	})
}

// moveStatus updates only if the row is still in from.
func moveStatus(tx *gorm.DB, applicationID uint64, from, to ApplicationStatus) error {
	res := tx.Exec("UPDATE applications SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?",
		to, applicationID, from)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update application status")
	}
	if res.RowsAffected == 0 {
		return errors.New("application status changed concurrently")
	}
	return nil
}

func selectApplications() squirrel.SelectBuilder {
	return squirrel.
		Select("a.id", "a.posting_id", "p.title", "c.name AS company", "a.status", "a.created_at", "a.updated_at").
		From("applications a").
		Join("postings p ON p.id = a.posting_id").
		Join("companies c ON c.id = p.company_id")
}
