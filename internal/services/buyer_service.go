package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/leadvault/leadvault/pkg/errors"
	"github.com/leadvault/leadvault/pkg/metrics"

	"github.com/leadvault/leadvault/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	historyPreview  = 5
)

// sortColumns whitelists sortable fields and maps wire names to columns.
var sortColumns = map[string]string{
	"fullName":     "full_name",
	"phone":        "phone",
	"email":        "email",
	"city":         "city",
	"propertyType": "property_type",
	"status":       "status",
	"timeline":     "timeline",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
}

// ListOptions carries the filter, sort, and pagination parameters for listing
// and exporting leads. Zero values fall back to defaults during normalization.
type ListOptions struct {
	Page         int
	Limit        int
	Search       string
	City         string
	PropertyType string
	Status       string
	Timeline     string
	SortBy       string
	SortOrder    string
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = defaultPageSize
	}
	if o.Limit > maxPageSize {
		o.Limit = maxPageSize
	}
	if _, ok := sortColumns[o.SortBy]; !ok {
		o.SortBy = "updatedAt"
	}
	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}
	return o
}

// ListResult is a page of leads with pagination totals.
type ListResult struct {
	Buyers     []models.Buyer
	Page       int
	Limit      int
	TotalCount int64
}

// BuyerService implements lead CRUD with ownership enforcement, optimistic
// concurrency on update, and an append-only per-field change history.
type BuyerService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBuyerService constructs a buyer service backed by the provided database.
func NewBuyerService(db *gorm.DB) (*BuyerService, error) {
	if db == nil {
		return nil, errors.New("buyer service: db is required")
	}
	return &BuyerService{db: db, now: time.Now}, nil
}

// List returns one page of leads matching the filters. Sorting is stable
// across pages: the requested column plus id as a tie-break.
func (s *BuyerService) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	opts = opts.normalized()

	query := s.filtered(ctx, opts)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(err, "Failed to count leads")
	}

	var buyers []models.Buyer
	err := query.
		Order(fmt.Sprintf("%s %s, id ASC", sortColumns[opts.SortBy], strings.ToUpper(opts.SortOrder))).
		Offset((opts.Page - 1) * opts.Limit).
		Limit(opts.Limit).
		Find(&buyers).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to list leads")
	}

	return &ListResult{
		Buyers:     buyers,
		Page:       opts.Page,
		Limit:      opts.Limit,
		TotalCount: total,
	}, nil
}

// ListAll returns every lead matching the filters in the requested order,
// ignoring pagination. The CSV exporter uses it.
func (s *BuyerService) ListAll(ctx context.Context, opts ListOptions) ([]models.Buyer, error) {
	opts = opts.normalized()

	var buyers []models.Buyer
	err := s.filtered(ctx, opts).
		Order(fmt.Sprintf("%s %s, id ASC", sortColumns[opts.SortBy], strings.ToUpper(opts.SortOrder))).
		Find(&buyers).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to list leads")
	}
	return buyers, nil
}

func (s *BuyerService) filtered(ctx context.Context, opts ListOptions) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Buyer{})

	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(full_name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if opts.City != "" {
		query = query.Where("city = ?", opts.City)
	}
	if opts.PropertyType != "" {
		query = query.Where("property_type = ?", opts.PropertyType)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.Timeline != "" {
		query = query.Where("timeline = ?", opts.Timeline)
	}

	return query
}

// Get fetches a lead and its most recent history entries, newest first.
func (s *BuyerService) Get(ctx context.Context, id string) (*models.Buyer, []models.BuyerHistory, error) {
	var buyer models.Buyer
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&buyer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.ErrNotFound.WithMessage("Lead not found")
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "Failed to fetch lead")
	}

	var history []models.BuyerHistory
	err = s.db.WithContext(ctx).
		Where("buyer_id = ?", id).
		Order("changed_at DESC, id DESC").
		Limit(historyPreview).
		Find(&history).Error
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "Failed to fetch lead history")
	}

	return &buyer, history, nil
}

// Create validates the input and persists the lead together with its
// "created" history row in one transaction.
func (s *BuyerService) Create(ctx context.Context, ownerID string, in *BuyerInput) (*models.Buyer, error) {
	if fields := ValidateBuyerInput(in); len(fields) > 0 {
		return nil, apperrors.NewValidation(fields)
	}

	buyer := in.model(ownerID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(buyer).Error; err != nil {
			return err
		}
		return tx.Create(&models.BuyerHistory{
			BuyerID:   buyer.ID,
			ChangedBy: ownerID,
			Diff:      markerDiff("created"),
		}).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to create lead")
	}

	return buyer, nil
}

// Update applies the input to an existing lead. Only the owner may update.
// When the caller supplies the updatedAt it last observed, a mismatch with
// the stored value aborts with a conflict carrying the current timestamp.
// A history row records the per-field diff; a no-op update writes nothing.
func (s *BuyerService) Update(ctx context.Context, ownerID, id string, in *BuyerInput, expectedUpdatedAt *time.Time) (*models.Buyer, error) {
	if fields := ValidateBuyerInput(in); len(fields) > 0 {
		return nil, apperrors.NewValidation(fields)
	}

	var buyer models.Buyer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&buyer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("Lead not found")
			}
			return err
		}

		if buyer.OwnerID != ownerID {
			return apperrors.ErrForbidden
		}

		if expectedUpdatedAt != nil && !sameInstant(buyer.UpdatedAt, *expectedUpdatedAt) {
			return apperrors.NewConflict(buyer.UpdatedAt)
		}

		next := in.model(ownerID)
		if next.Status == "" {
			next.Status = buyer.Status
		}

		diff := diffBuyers(&buyer, next)
		if len(diff) == 0 {
			return nil
		}

		next.ID = buyer.ID
		next.CreatedAt = buyer.CreatedAt
		if err := tx.Save(next).Error; err != nil {
			return err
		}
		buyer = *next

		return tx.Create(&models.BuyerHistory{
			BuyerID:   buyer.ID,
			ChangedBy: ownerID,
			Diff:      datatypes.NewJSONType(diff),
		}).Error
	})
	if err != nil {
		if appErr := asAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, apperrors.Wrap(err, "Failed to update lead")
	}

	return &buyer, nil
}

// Delete removes a lead owned by the requester; history rows cascade.
func (s *BuyerService) Delete(ctx context.Context, ownerID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var buyer models.Buyer
		if err := tx.Where("id = ?", id).Take(&buyer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("Lead not found")
			}
			return err
		}
		if buyer.OwnerID != ownerID {
			return apperrors.ErrForbidden
		}
		return tx.Delete(&buyer).Error
	})
	if err != nil {
		if appErr := asAppError(err); appErr != nil {
			return appErr
		}
		return apperrors.Wrap(err, "Failed to delete lead")
	}
	return nil
}

// ImportMany persists pre-validated leads in one transaction, writing an
// "imported" history row for each. Either every row lands or none do.
func (s *BuyerService) ImportMany(ctx context.Context, ownerID string, inputs []*BuyerInput) ([]string, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(inputs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			buyer := in.model(ownerID)
			if err := tx.Create(buyer).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.BuyerHistory{
				BuyerID:   buyer.ID,
				ChangedBy: ownerID,
				Diff:      markerDiff("imported"),
			}).Error; err != nil {
				return err
			}
			ids = append(ids, buyer.ID)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to import leads")
	}

	metrics.LeadsImported.Add(float64(len(ids)))

	return ids, nil
}

// diffBuyers compares the mutable fields of two leads and returns the wire
// name keyed set of changes. Tags compare by serialized value.
func diffBuyers(old, next *models.Buyer) models.Diff {
	diff := make(models.Diff)

	compare := func(field string, oldVal, newVal any) {
		if oldVal != newVal {
			diff[field] = models.FieldChange{Old: oldVal, New: newVal}
		}
	}

	compare("fullName", old.FullName, next.FullName)
	compare("email", strPtrValue(old.Email), strPtrValue(next.Email))
	compare("phone", old.Phone, next.Phone)
	compare("city", old.City, next.City)
	compare("propertyType", old.PropertyType, next.PropertyType)
	compare("bhk", strPtrValue(old.BHK), strPtrValue(next.BHK))
	compare("purpose", old.Purpose, next.Purpose)
	compare("budgetMin", intPtrValue(old.BudgetMin), intPtrValue(next.BudgetMin))
	compare("budgetMax", intPtrValue(old.BudgetMax), intPtrValue(next.BudgetMax))
	compare("timeline", old.Timeline, next.Timeline)
	compare("source", old.Source, next.Source)
	compare("status", old.Status, next.Status)
	compare("notes", strPtrValue(old.Notes), strPtrValue(next.Notes))

	oldTags, _ := json.Marshal([]string(old.Tags))
	newTags, _ := json.Marshal([]string(next.Tags))
	if string(oldTags) != string(newTags) {
		diff["tags"] = models.FieldChange{Old: []string(old.Tags), New: []string(next.Tags)}
	}

	return diff
}

func markerDiff(action string) datatypes.JSONType[models.Diff] {
	return datatypes.NewJSONType(models.Diff{action: {Old: nil, New: true}})
}

func strPtrValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtrValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// sameInstant compares timestamps at millisecond precision so values that
// round-tripped through JSON still match their stored counterparts.
func sameInstant(a, b time.Time) bool {
	return a.UnixMilli() == b.UnixMilli()
}

func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
