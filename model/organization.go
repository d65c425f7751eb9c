package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

const (
	RetentionAll  = "all"
	RetentionNone = "none"
)

// Organization owns projects and carries the credit balance. Credits may go
// negative between request dispatch and the worker sweep; the admission check
// only observes the possibly stale balance.
type Organization struct {
	Id                 string  `json:"id" gorm:"primaryKey"`
	Name               string  `json:"name"`
	Plan               string  `json:"plan" gorm:"default:'free'"`
	Credits            float64 `json:"credits" gorm:"type:decimal(20,10);default:0"`
	AutoTopUpEnabled   bool    `json:"auto_top_up_enabled" gorm:"default:false"`
	AutoTopUpThreshold float64 `json:"auto_top_up_threshold" gorm:"type:decimal(20,10);default:0"`
	AutoTopUpAmount    float64 `json:"auto_top_up_amount" gorm:"type:decimal(20,10);default:0"`
	StripeCustomerId   string  `json:"stripe_customer_id" gorm:"default:''"`
	RetentionLevel     string  `json:"retention_level" gorm:"default:'all'"`
	CreatedAt          int64   `json:"created_at" gorm:"bigint"`
	UpdatedAt          int64   `json:"updated_at" gorm:"bigint;autoUpdateTime:milli"`
}

func GetOrganizationById(id string) (*Organization, error) {
	if id == "" {
		return nil, errors.New("organization id is empty")
	}
	var org Organization
	if err := DB.Where("id = ?", id).First(&org).Error; err != nil {
		return nil, errors.Wrapf(err, "get organization %s", id)
	}
	return &org, nil
}

// DeductCredits subtracts the swept amount inside the worker transaction.
func DeductCredits(tx *gorm.DB, orgId string, amount float64) error {
	if amount == 0 {
		return nil
	}
	err := tx.Model(&Organization{}).Where("id = ?", orgId).
		Update("credits", gorm.Expr("credits - ?", amount)).Error
	return errors.Wrapf(err, "deduct %f credits from organization %s", amount, orgId)
}

// AddCredits is used by top-up flows (and tests) to increase the balance.
func AddCredits(orgId string, amount float64) error {
	err := DB.Model(&Organization{}).Where("id = ?", orgId).
		Update("credits", gorm.Expr("credits + ?", amount)).Error
	return errors.Wrapf(err, "add %f credits to organization %s", amount, orgId)
}

// GetAutoTopUpCandidates returns organizations below their top-up threshold.
func GetAutoTopUpCandidates() ([]*Organization, error) {
	var orgs []*Organization
	err := DB.Where("auto_top_up_enabled = ? AND credits < auto_top_up_threshold", true).
		Find(&orgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "query auto top-up candidates")
	}
	return orgs, nil
}
