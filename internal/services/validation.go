package services

import (
	"fmt"
	"strings"

	apperrors "github.com/leadvault/leadvault/pkg/errors"
	"github.com/leadvault/leadvault/pkg/validator"

	"github.com/leadvault/leadvault/internal/models"
)

// BuyerInput is the validated payload for creating or updating a lead. The
// JSON handlers bind it directly; the CSV importer builds it from row cells.
type BuyerInput struct {
	FullName     string   `json:"fullName" validate:"required,min=2,max=80"`
	Email        string   `json:"email" validate:"omitempty,email"`
	Phone        string   `json:"phone" validate:"required,phone"`
	City         string   `json:"city" validate:"required,oneof=Chandigarh Mohali Zirakpur Panchkula Other"`
	PropertyType string   `json:"propertyType" validate:"required,oneof=Apartment Villa Plot Office Retail"`
	BHK          string   `json:"bhk" validate:"omitempty,oneof=1 2 3 4 Studio"`
	Purpose      string   `json:"purpose" validate:"required,oneof=Buy Rent"`
	BudgetMin    *int64   `json:"budgetMin" validate:"omitempty,min=0"`
	BudgetMax    *int64   `json:"budgetMax" validate:"omitempty,min=0"`
	Timeline     string   `json:"timeline" validate:"required,oneof=0-3m 3-6m >6m Exploring"`
	Source       string   `json:"source" validate:"required,oneof=Website Referral Walk-in Call Other"`
	Status       string   `json:"status" validate:"omitempty,oneof=New Qualified Contacted Visited Negotiation Converted Dropped"`
	Notes        string   `json:"notes" validate:"omitempty,max=1000"`
	Tags         []string `json:"tags" validate:"omitempty,dive,required,max=40"`
}

// ValidateBuyerInput runs tag-level and cross-field rules and reports every
// failure as a field/message pair.
func ValidateBuyerInput(in *BuyerInput) []apperrors.FieldError {
	var fields []apperrors.FieldError

	// Length rules apply to the trimmed name, which is also what persists.
	in.FullName = strings.TrimSpace(in.FullName)

	if err := validator.ValidateStruct(in); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				fields = append(fields, apperrors.FieldError{
					Field:   fe.Field,
					Message: buyerRuleMessage(fe),
				})
			}
		} else {
			fields = append(fields, apperrors.FieldError{Field: "input", Message: err.Error()})
		}
	}

	if models.RequiresBHK(in.PropertyType) && in.BHK == "" {
		fields = append(fields, apperrors.FieldError{
			Field:   "bhk",
			Message: "bhk is required for Apartment and Villa properties",
		})
	}

	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMax < *in.BudgetMin {
		fields = append(fields, apperrors.FieldError{
			Field:   "budgetMax",
			Message: "budgetMax must be greater than or equal to budgetMin",
		})
	}

	return fields
}

func buyerRuleMessage(fe validator.ValidationError) string {
	switch fe.Tag {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field)
	case "min":
		if fe.Field == "budgetMin" || fe.Field == "budgetMax" {
			return fmt.Sprintf("%s must be non-negative", fe.Field)
		}
		return fmt.Sprintf("%s must be at least %s characters", fe.Field, fe.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field, fe.Param)
	case "email":
		return "email must be a valid email address"
	case "phone":
		return "phone must be 10-15 digits"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field, strings.Join(strings.Fields(fe.Param), ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field)
	}
}

// model converts the validated input into a persistable record, mapping empty
// optional strings to NULL.
func (in *BuyerInput) model(ownerID string) *models.Buyer {
	buyer := &models.Buyer{
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        in.Phone,
		City:         in.City,
		PropertyType: in.PropertyType,
		Purpose:      in.Purpose,
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
		Timeline:     in.Timeline,
		Source:       in.Source,
		Status:       in.Status,
		OwnerID:      ownerID,
	}

	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		buyer.Email = &email
	}
	if in.BHK != "" {
		bhk := in.BHK
		buyer.BHK = &bhk
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		buyer.Notes = &notes
	}
	if len(in.Tags) > 0 {
		buyer.Tags = append(buyer.Tags, in.Tags...)
	}

	return buyer
}
