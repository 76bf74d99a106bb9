package referral

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/settings"
	"gorm.io/gorm"
)

func setupReferralDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:referral_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func TestGenerateCodeShapeAndAlphabet(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, errGen := GenerateCode()
		if errGen != nil {
			t.Fatalf("generate: %v", errGen)
		}
		if len(code) != codeLength {
			t.Fatalf("len(%q) = %d, want %d", code, len(code), codeLength)
		}
		for _, r := range code {
			if r == '0' || r == 'O' || r == '1' || r == 'I' || r == 'L' {
				t.Fatalf("ambiguous character in %q", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 40 {
		t.Fatalf("codes look non-random: %d unique of 50", len(seen))
	}
}

func TestResolveFindsOwnerCaseInsensitive(t *testing.T) {
	db := setupReferralDB(t)
	owner := models.User{Mobile: "09123456789", Password: "x", ReferralCode: "AB23CD"}
	if errCreate := db.Create(&owner).Error; errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	svc := NewService(db)

	got, errResolve := svc.Resolve(context.Background(), " ab23cd ")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if got.ID != owner.ID {
		t.Fatalf("resolved id = %d, want %d", got.ID, owner.ID)
	}

	if _, errResolve = svc.Resolve(context.Background(), "ZZZZZZ"); errResolve != ErrCodeNotFound {
		t.Fatalf("expected ErrCodeNotFound, got %v", errResolve)
	}
}

func TestCreditRewardsBothSides(t *testing.T) {
	db := setupReferralDB(t)
	referrer := models.User{Mobile: "09123456789", Password: "x", ReferralCode: "AAAAAA"}
	referee := models.User{Mobile: "09350000000", Password: "x", ReferralCode: "BBBBBB"}
	if errCreate := db.Create(&referrer).Error; errCreate != nil {
		t.Fatalf("create referrer: %v", errCreate)
	}
	if errCreate := db.Create(&referee).Error; errCreate != nil {
		t.Fatalf("create referee: %v", errCreate)
	}
	svc := NewService(db)

	if errCredit := svc.Credit(context.Background(), referrer.ID, referee.ID); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}

	wantMin := time.Now().UTC().AddDate(0, 0, settings.DefaultReferralBonusDays-1)
	for _, id := range []uint64{referrer.ID, referee.ID} {
		var user models.User
		if errFind := db.First(&user, id).Error; errFind != nil {
			t.Fatalf("find %d: %v", id, errFind)
		}
		if user.SubscriptionExpiresAt == nil || user.SubscriptionExpiresAt.Before(wantMin) {
			t.Fatalf("user %d not credited: %v", id, user.SubscriptionExpiresAt)
		}
	}
}

func TestCreditRejectsSelfReferral(t *testing.T) {
	svc := NewService(setupReferralDB(t))
	if errCredit := svc.Credit(context.Background(), 7, 7); errCredit != ErrSelfReferral {
		t.Fatalf("expected ErrSelfReferral, got %v", errCredit)
	}
}
