package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/leadvault/leadvault/pkg/errors"

	"github.com/leadvault/leadvault/internal/database/testutil"
	"github.com/leadvault/leadvault/internal/models"
)

func seedOwner(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email}
	require.NoError(t, db.Create(user).Error)
	return user
}

func validInput() *BuyerInput {
	budget := int64(5000000)
	return &BuyerInput{
		FullName:     "Ravi Kumar",
		Email:        "ravi@example.com",
		Phone:        "9876543210",
		City:         "Chandigarh",
		PropertyType: "Apartment",
		BHK:          "2",
		Purpose:      "Buy",
		BudgetMin:    &budget,
		Timeline:     "0-3m",
		Source:       "Website",
		Notes:        "prefers sector 17",
		Tags:         []string{"hot", "follow-up"},
	}
}

func mustCreate(t *testing.T, service *BuyerService, ownerID string, in *BuyerInput) *models.Buyer {
	t.Helper()
	buyer, err := service.Create(context.Background(), ownerID, in)
	require.NoError(t, err)
	return buyer
}

func TestBuyerCreateWritesHistory(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	buyer := mustCreate(t, service, owner.ID, validInput())
	require.Equal(t, models.StatusNew, buyer.Status)
	require.Equal(t, owner.ID, buyer.OwnerID)
	require.NotNil(t, buyer.Email)

	var history []models.BuyerHistory
	require.NoError(t, db.Where("buyer_id = ?", buyer.ID).Find(&history).Error)
	require.Len(t, history, 1)
	require.Equal(t, owner.ID, history[0].ChangedBy)
	require.Contains(t, history[0].Diff.Data(), "created")
}

func TestBuyerCreateEmptyOptionalsAreNull(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	in := validInput()
	in.Email = ""
	in.Notes = "  "
	buyer := mustCreate(t, service, owner.ID, in)
	require.Nil(t, buyer.Email)
	require.Nil(t, buyer.Notes)
}

func TestBuyerCreateValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	in := validInput()
	in.FullName = "R"
	in.Phone = "12ab"
	in.City = "Delhi"
	_, err = service.Create(context.Background(), owner.ID, in)
	require.Error(t, err)

	appErr := apperrors.FromError(err)
	require.Equal(t, 400, appErr.StatusCode)
	fields := map[string]bool{}
	for _, fe := range appErr.Fields {
		fields[fe.Field] = true
	}
	require.True(t, fields["fullName"])
	require.True(t, fields["phone"])
	require.True(t, fields["city"])
}

func TestBuyerCreateTrimsFullNameBeforeValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	// Padding must not rescue a name that is too short once trimmed.
	in := validInput()
	in.FullName = " R "
	_, err = service.Create(context.Background(), owner.ID, in)
	appErr := apperrors.FromError(err)
	require.Equal(t, 400, appErr.StatusCode)
	require.Equal(t, "fullName", appErr.Fields[0].Field)

	in = validInput()
	in.FullName = "  Ravi Kumar  "
	buyer, err := service.Create(context.Background(), owner.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Ravi Kumar", buyer.FullName)
}

func TestBuyerCreateBHKConditional(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	in := validInput()
	in.PropertyType = "Villa"
	in.BHK = ""
	_, err = service.Create(context.Background(), owner.ID, in)
	appErr := apperrors.FromError(err)
	require.Len(t, appErr.Fields, 1)
	require.Equal(t, "bhk", appErr.Fields[0].Field)

	// bhk optional for non-residential types.
	in = validInput()
	in.PropertyType = "Plot"
	in.BHK = ""
	_, err = service.Create(context.Background(), owner.ID, in)
	require.NoError(t, err)
}

func TestBuyerCreateBudgetRange(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	in := validInput()
	low, high := int64(100), int64(50)
	in.BudgetMin = &low
	in.BudgetMax = &high
	_, err = service.Create(context.Background(), owner.ID, in)
	appErr := apperrors.FromError(err)
	require.Len(t, appErr.Fields, 1)
	require.Equal(t, "budgetMax", appErr.Fields[0].Field)
}

func TestBuyerListSearchAndFilters(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	a := validInput()
	a.FullName = "Amit Sharma"
	a.Phone = "9000000001"
	a.Email = "amit@example.com"
	mustCreate(t, service, owner.ID, a)

	b := validInput()
	b.FullName = "Bela Verma"
	b.Phone = "9000000002"
	b.Email = "bela@example.com"
	b.City = "Mohali"
	b.PropertyType = "Plot"
	b.BHK = ""
	mustCreate(t, service, owner.ID, b)

	result, err := service.List(context.Background(), ListOptions{Search: "SHARMA"})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.TotalCount)
	require.Equal(t, "Amit Sharma", result.Buyers[0].FullName)

	result, err = service.List(context.Background(), ListOptions{Search: "9000000002"})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.TotalCount)

	result, err = service.List(context.Background(), ListOptions{City: "Mohali", PropertyType: "Plot"})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.TotalCount)
	require.Equal(t, "Bela Verma", result.Buyers[0].FullName)

	result, err = service.List(context.Background(), ListOptions{City: "Panchkula"})
	require.NoError(t, err)
	require.Equal(t, int64(0), result.TotalCount)
	require.Empty(t, result.Buyers)
}

func TestBuyerListPaginationDeterministic(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	// Identical status forces the id tie-break to order pages.
	for i := 0; i < 5; i++ {
		in := validInput()
		in.Phone = "900000000" + string(rune('0'+i))
		in.Email = ""
		mustCreate(t, service, owner.ID, in)
	}

	seen := map[string]bool{}
	for page := 1; page <= 3; page++ {
		result, err := service.List(context.Background(), ListOptions{
			Page: page, Limit: 2, SortBy: "status", SortOrder: "asc",
		})
		require.NoError(t, err)
		for _, buyer := range result.Buyers {
			require.False(t, seen[buyer.ID], "buyer repeated across pages")
			seen[buyer.ID] = true
		}
	}
	require.Len(t, seen, 5)
}

func TestBuyerListSortOrder(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		in := validInput()
		in.FullName = name
		in.Email = ""
		mustCreate(t, service, owner.ID, in)
	}

	result, err := service.List(context.Background(), ListOptions{SortBy: "fullName", SortOrder: "asc"})
	require.NoError(t, err)
	require.Equal(t, "Alpha", result.Buyers[0].FullName)
	require.Equal(t, "Charlie", result.Buyers[2].FullName)

	// Unknown sort column falls back to the default instead of erroring.
	_, err = service.List(context.Background(), ListOptions{SortBy: "id; DROP TABLE buyers"})
	require.NoError(t, err)
}

func TestBuyerGetWithHistory(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	buyer := mustCreate(t, service, owner.ID, validInput())

	// Seven status changes; only the five newest come back.
	statuses := []string{"Qualified", "Contacted", "Visited", "Negotiation", "Converted", "Dropped", "New"}
	for _, status := range statuses {
		in := validInput()
		in.Status = status
		_, err := service.Update(context.Background(), owner.ID, buyer.ID, in, nil)
		require.NoError(t, err)
	}

	got, history, err := service.Get(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Equal(t, buyer.ID, got.ID)
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		require.False(t, history[i].ChangedAt.After(history[i-1].ChangedAt))
	}

	_, _, err = service.Get(context.Background(), "missing-id")
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestBuyerUpdateDiffAndHistory(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	buyer := mustCreate(t, service, owner.ID, validInput())

	in := validInput()
	in.Status = "Qualified"
	in.Notes = ""
	in.Tags = []string{"hot"}
	updated, err := service.Update(context.Background(), owner.ID, buyer.ID, in, nil)
	require.NoError(t, err)
	require.Equal(t, "Qualified", updated.Status)
	require.Nil(t, updated.Notes)

	var history []models.BuyerHistory
	require.NoError(t, db.Where("buyer_id = ?", buyer.ID).Order("changed_at ASC").Find(&history).Error)
	require.Len(t, history, 2)

	diff := history[1].Diff.Data()
	require.Contains(t, diff, "status")
	require.Equal(t, "New", diff["status"].Old)
	require.Equal(t, "Qualified", diff["status"].New)
	require.Contains(t, diff, "notes")
	require.Contains(t, diff, "tags")
	require.NotContains(t, diff, "fullName")
}

func TestBuyerUpdateNoChangeWritesNothing(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	buyer := mustCreate(t, service, owner.ID, validInput())

	updated, err := service.Update(context.Background(), owner.ID, buyer.ID, validInput(), nil)
	require.NoError(t, err)
	require.Equal(t, buyer.UpdatedAt.UnixMilli(), updated.UpdatedAt.UnixMilli())

	var count int64
	require.NoError(t, db.Model(&models.BuyerHistory{}).Where("buyer_id = ?", buyer.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestBuyerUpdateOwnership(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	intruder := seedOwner(t, db, "intruder@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	buyer := mustCreate(t, service, owner.ID, validInput())

	in := validInput()
	in.Status = "Dropped"
	_, err = service.Update(context.Background(), intruder.ID, buyer.ID, in, nil)
	require.Equal(t, 403, apperrors.FromError(err).StatusCode)

	_, err = service.Update(context.Background(), owner.ID, "missing-id", in, nil)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestBuyerUpdateOptimisticConcurrency(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	buyer := mustCreate(t, service, owner.ID, validInput())
	observed := buyer.UpdatedAt

	in := validInput()
	in.Status = "Qualified"
	updated, err := service.Update(context.Background(), owner.ID, buyer.ID, in, &observed)
	require.NoError(t, err)

	// The first writer moved updatedAt; a second writer holding the old
	// timestamp must get a conflict carrying the current value.
	stale := observed.Add(-time.Second)
	in = validInput()
	in.Status = "Dropped"
	_, err = service.Update(context.Background(), owner.ID, buyer.ID, in, &stale)
	appErr := apperrors.FromError(err)
	require.Equal(t, 409, appErr.StatusCode)
	require.NotNil(t, appErr.CurrentUpdatedAt)
	require.Equal(t, updated.UpdatedAt.UnixMilli(), appErr.CurrentUpdatedAt.UnixMilli())

	// Omitting the timestamp skips the check entirely.
	_, err = service.Update(context.Background(), owner.ID, buyer.ID, in, nil)
	require.NoError(t, err)
}

func TestBuyerDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	intruder := seedOwner(t, db, "intruder@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	buyer := mustCreate(t, service, owner.ID, validInput())

	err = service.Delete(context.Background(), intruder.ID, buyer.ID)
	require.Equal(t, 403, apperrors.FromError(err).StatusCode)

	require.NoError(t, service.Delete(context.Background(), owner.ID, buyer.ID))

	_, _, err = service.Get(context.Background(), buyer.ID)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.BuyerHistory{}).Where("buyer_id = ?", buyer.ID).Count(&count).Error)
	require.Equal(t, int64(0), count)

	err = service.Delete(context.Background(), owner.ID, buyer.ID)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestBuyerImportMany(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedOwner(t, db, "owner@example.com")
	service, err := NewBuyerService(db)
	require.NoError(t, err)

	first := validInput()
	second := validInput()
	second.FullName = "Second Lead"
	second.Phone = "9111111111"
	second.Email = ""

	ids, err := service.ImportMany(context.Background(), owner.ID, []*BuyerInput{first, second})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	var histories []models.BuyerHistory
	require.NoError(t, db.Find(&histories).Error)
	require.Len(t, histories, 2)
	for _, h := range histories {
		require.Contains(t, h.Diff.Data(), "imported")
	}
}
