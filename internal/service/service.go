package service

import "github.com/campusregistry/registrar-api/internal/models"

// buildPagination normalises the page inputs echoed back in list responses.
func buildPagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
