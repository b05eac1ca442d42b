package services

import (
	"errors"
	"testing"

	"actify-backend/models"
)

func TestBalanceIsLedgerSum(t *testing.T) {
	db := setupDB(t)
	svc := NewPointService(db)
	user := createProfile(t, db, models.RoleUser, "taro")

	if err := svc.grant(user.ID, 500, "signup bonus"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.grant(user.ID, 300, "mission reward"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.redeem(user.ID, 200, "Amazonギフト券"); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	balance, err := svc.Balance(user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 600 {
		t.Fatalf("balance = %d, want 600", balance)
	}

	var sum int64
	if err := db.Model(&models.PointHistory{}).
		Where("user_id = ?", user.ID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		t.Fatalf("sum ledger: %v", err)
	}
	if balance != sum {
		t.Fatalf("balance %d != ledger sum %d", balance, sum)
	}
}

func TestRedeemInsufficientBalanceAppendsNothing(t *testing.T) {
	db := setupDB(t)
	svc := NewPointService(db)
	user := createProfile(t, db, models.RoleUser, "hanako")

	if err := svc.grant(user.ID, 100, "bonus"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	err := svc.redeem(user.ID, 101, "gift card")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("redeem err = %v, want ErrInsufficientBalance", err)
	}

	var count int64
	if err := db.Model(&models.PointHistory{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledger has %d entries, want 1 (failed redeem must append nothing)", count)
	}

	balance, _ := svc.Balance(user.ID)
	if balance != 100 {
		t.Fatalf("balance = %d, want 100", balance)
	}
}

func TestGrantThenRedeemRoundTrip(t *testing.T) {
	db := setupDB(t)
	svc := NewPointService(db)
	user := createProfile(t, db, models.RoleUser, "jiro")

	before, err := svc.Balance(user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	if err := svc.grant(user.ID, 100, "bonus"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.redeem(user.ID, 100, "gift"); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	after, err := svc.Balance(user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if after != before {
		t.Fatalf("balance changed: before=%d after=%d", before, after)
	}

	var entries []models.PointHistory
	if err := db.Where("user_id = ?", user.ID).Order("created_at ASC").Find(&entries).Error; err != nil {
		t.Fatalf("find entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger has %d entries, want 2", len(entries))
	}
	if entries[0].Amount != 100 || entries[1].Amount != -100 {
		t.Fatalf("entries = %+d, %+d, want +100, -100", entries[0].Amount, entries[1].Amount)
	}
}

func TestGrantRejectsNonPositiveAmount(t *testing.T) {
	db := setupDB(t)
	svc := NewPointService(db)
	user := createProfile(t, db, models.RoleUser, "saburo")

	var verr *ValidationError
	if err := svc.grant(user.ID, 0, "nothing"); !errors.As(err, &verr) {
		t.Fatalf("grant(0) err = %v, want ValidationError", err)
	}
	if err := svc.grant(user.ID, -50, "negative"); !errors.As(err, &verr) {
		t.Fatalf("grant(-50) err = %v, want ValidationError", err)
	}

	var count int64
	_ = db.Model(&models.PointHistory{}).Where("user_id = ?", user.ID).Count(&count).Error
	if count != 0 {
		t.Fatalf("ledger has %d entries, want 0", count)
	}
}

func TestRedeemReasonNamesItem(t *testing.T) {
	db := setupDB(t)
	svc := NewPointService(db)
	user := createProfile(t, db, models.RoleUser, "shiro")

	if err := svc.grant(user.ID, 1000, "bonus"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.redeem(user.ID, 500, "Amazonギフト券500円分"); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	var entry models.PointHistory
	if err := db.Where("user_id = ? AND amount < 0", user.ID).First(&entry).Error; err != nil {
		t.Fatalf("find redeem entry: %v", err)
	}
	if entry.Reason != "Amazonギフト券500円分と交換" {
		t.Fatalf("reason = %q", entry.Reason)
	}
}
