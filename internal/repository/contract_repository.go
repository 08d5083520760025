package repository

import (
	"context"
	"strings"
	"time"

	"github.com/sjperalta/eventra-api/internal/models"
	"gorm.io/gorm"
)

// ContractRepository defines the interface for contract data access
type ContractRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Contract, error)
	FindBySlug(ctx context.Context, slug string) (*models.Contract, error)
	FindByToken(ctx context.Context, token string) (*models.Contract, error)
	Create(ctx context.Context, contract *models.Contract) error
	Update(ctx context.Context, contract *models.Contract) error
	// UpdateIfStatus applies fields only when the row still holds
	// expectedStatus, returning ErrConflict otherwise. This is the sole
	// concurrency safeguard for the confirmation step.
	UpdateIfStatus(ctx context.Context, id uint, expectedStatus string, fields map[string]interface{}) error
	List(ctx context.Context, query *ContractQuery) ([]models.Contract, int64, error)
	FindStalePreviews(ctx context.Context, olderThan time.Duration) ([]models.Contract, error)
	GetStats(ctx context.Context) (*ContractStats, error)
}

// ContractQuery extends ListQuery with contract-specific filters
type ContractQuery struct {
	*ListQuery
	Status string
}

// ContractStats holds contract counts per signing state
type ContractStats struct {
	Total       int64 `json:"total"`
	Draft       int64 `json:"draft"`
	Sent        int64 `json:"sent"`
	DraftSigned int64 `json:"draft_signed"`
	Signed      int64 `json:"signed"`
	Completed   int64 `json:"completed"`
	Cancelled   int64 `json:"cancelled"`
}

type contractRepository struct {
	db *gorm.DB
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) FindByID(ctx context.Context, id uint) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).First(&contract, id).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) FindBySlug(ctx context.Context, slug string) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).Where("public_slug = ?", slug).First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) FindByToken(ctx context.Context, token string) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).Where("public_token = ?", token).First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *contractRepository) Update(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Save(contract).Error
}

func (r *contractRepository) UpdateIfStatus(ctx context.Context, id uint, expectedStatus string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *contractRepository) List(ctx context.Context, query *ContractQuery) ([]models.Contract, int64, error) {
	var contracts []models.Contract
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Contract{})

	// Apply status filter (single or multiple via status_in)
	if query.Filters != nil {
		if val, ok := query.Filters["status_in"]; ok && val != "" {
			statuses := strings.Split(val, ",")
			for i, s := range statuses {
				statuses[i] = strings.TrimSpace(s)
			}
			if len(statuses) > 0 {
				db = db.Where("contracts.status IN ?", statuses)
			}
		}
	}
	if query.Filters == nil || query.Filters["status_in"] == "" {
		if query.Status != "" {
			db = db.Where("contracts.status = ?", query.Status)
		}
	}

	// Apply signed_at date filters
	if query.Filters != nil {
		if val, ok := query.Filters["signed_from"]; ok && val != "" {
			db = db.Where("contracts.signed_at >= ?", val)
		}
		if val, ok := query.Filters["signed_to"]; ok && val != "" {
			// Include the full day if only a date is provided
			if len(val) == 10 { // YYYY-MM-DD
				val += " 23:59:59"
			}
			db = db.Where("contracts.signed_at <= ?", val)
		}
	}

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("contracts.client_name ILIKE ? OR contracts.client_email ILIKE ? OR contracts.event_type ILIKE ? OR contracts.public_slug ILIKE ?",
			search, search, search, search)
	}

	// Count using a separate session so the main query is not altered by Count()
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("contracts.created_at DESC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Find(&contracts).Error
	return contracts, total, err
}

func (r *contractRepository) FindStalePreviews(ctx context.Context, olderThan time.Duration) ([]models.Contract, error) {
	var contracts []models.Contract
	cutoff := time.Now().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("status = ? AND signature_drawn_at < ?", models.ContractStatusDraftSigned, cutoff).
		Order("signature_drawn_at ASC").
		Find(&contracts).Error
	return contracts, err
}

func (r *contractRepository) GetStats(ctx context.Context) (*ContractStats, error) {
	stats := &ContractStats{}

	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, rw := range rows {
		stats.Total += rw.Count
		switch rw.Status {
		case models.ContractStatusDraft:
			stats.Draft = rw.Count
		case models.ContractStatusSent:
			stats.Sent = rw.Count
		case models.ContractStatusDraftSigned:
			stats.DraftSigned = rw.Count
		case models.ContractStatusSigned:
			stats.Signed = rw.Count
		case models.ContractStatusCompleted:
			stats.Completed = rw.Count
		case models.ContractStatusCancelled:
			stats.Cancelled = rw.Count
		}
	}

	return stats, nil
}
