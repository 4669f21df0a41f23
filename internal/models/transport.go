package models

import (
	"time"

	"github.com/lib/pq"
)

type (
	RegisterReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8,max=72"`
		Name     string `json:"name" validate:"required"`
	}

	LoginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	RefreshReq struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	ProfileUpdateReq struct {
		Name     *string `json:"name" validate:"omitempty,min=1"`
		Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	}

	TokenResp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	UserResp struct {
		ID        uint64    `json:"id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	PostingReq struct {
		Company          string   `json:"company" validate:"required"`
		Title            string   `json:"title" validate:"required"`
		Link             string   `json:"link" validate:"required,url"`
		EducationLevel   *string  `json:"educationLevel"`
		Deadline         *string  `json:"deadline"`
		Locations        []string `json:"locations"`
		ExperienceLevels []string `json:"experienceLevels"`
		Sectors          []string `json:"sectors"`
		EmploymentType   *string  `json:"employmentType"`
		Salary           *string  `json:"salary"`
	}

	// PostingUpdateReq carries only the fields to change. A nil slice leaves
	// the association untouched, an empty one clears it.
	PostingUpdateReq struct {
		Company          *string  `json:"company" validate:"omitempty,min=1"`
		Title            *string  `json:"title" validate:"omitempty,min=1"`
		Link             *string  `json:"link" validate:"omitempty,url"`
		EducationLevel   *string  `json:"educationLevel"`
		Deadline         *string  `json:"deadline"`
		Locations        []string `json:"locations"`
		ExperienceLevels []string `json:"experienceLevels"`
		Sectors          []string `json:"sectors"`
		EmploymentType   *string  `json:"employmentType"`
		Salary           *string  `json:"salary"`
	}

	BookmarkReq struct {
		PostingID uint64 `json:"postingId" validate:"required"`
	}

	BookmarkToggleResp struct {
		PostingID  uint64 `json:"postingId"`
		Bookmarked bool   `json:"bookmarked"`
	}

	BookmarkResp struct {
		ID        uint64    `json:"id"`
		PostingID uint64    `json:"postingId"`
		Title     string    `json:"title"`
		Company   string    `json:"company"`
		CreatedAt time.Time `json:"createdAt"`
	}

	ApplicationReq struct {
		PostingID uint64 `json:"postingId" validate:"required"`
	}

	ApplicationStatusReq struct {
		Status string `json:"status" validate:"required,oneof=hired rejected"`
	}

	ApplicationResp struct {
		ID        uint64    `json:"id"`
		PostingID uint64    `json:"postingId"`
		Title     string    `json:"title"`
		Company   string    `json:"company"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	PostingSummary struct {
		ID              uint64         `json:"id"`
		Title           string         `json:"title"`
		Link            string         `json:"link"`
		Company         string         `json:"company"`
		Salary          *string        `json:"salary"`
		Deadline        *string        `json:"deadline"`
		LastModified    *time.Time     `json:"lastModified"`
		Views           uint64         `json:"views"`
		CreatedAt       time.Time      `json:"createdAt"`
		Locations       pq.StringArray `json:"locations" gorm:"type:text[]"`
		Sectors         pq.StringArray `json:"sectors" gorm:"type:text[]"`
		EmploymentTypes pq.StringArray `json:"employmentTypes" gorm:"type:text[]"`
	}

	PostingDetail struct {
		PostingSummary
		UserID           *uint64          `json:"userId"`
		EducationLevel   *string          `json:"educationLevel"`
		EmploymentType   *string          `json:"employmentType"`
		ExperienceLevels pq.StringArray   `json:"experienceLevels" gorm:"type:text[]"`
		UpdatedAt        time.Time        `json:"updatedAt"`
		Related          []PostingSummary `json:"related" gorm:"-"`
	}

	Pagination struct {
		CurrentPage int   `json:"currentPage"`
		TotalPages  int   `json:"totalPages"`
		PageSize    int   `json:"pageSize"`
		TotalItems  int64 `json:"totalItems"`
	}
)
