package service

import "github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"

const PageSize = 20

func checkPage(page int) error {
	if page <= 0 {
		return ErrInvalidPage
	}
	return nil
}

func totalPages(total int64) int {
	return int((total + PageSize - 1) / PageSize)
}

// paginate validates page against total, which must already be known to be non-zero.
func paginate(page int, total int64) (models.Pagination, error) {
	pages := totalPages(total)
	if page > pages {
		return models.Pagination{}, ErrPageOutOfRange
	}
	return models.Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		PageSize:    PageSize,
		TotalItems:  total,
	}, nil
}

// paginateOrEmpty is paginate for lists where no rows is a valid answer.
func paginateOrEmpty(page int, total int64) (models.Pagination, error) {
	if total == 0 {
		return models.Pagination{CurrentPage: page, PageSize: PageSize}, nil
	}
	return paginate(page, total)
}

func offset(page int) uint64 {
	return uint64((page - 1) * PageSize)
}
