package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/llmgateway/llmgateway/common/helper"
	"github.com/llmgateway/llmgateway/common/random"
)

const (
	TransactionTypeCreditTopup = "credit_topup"

	TransactionStatusPending   = "pending"
	TransactionStatusSucceeded = "succeeded"
	TransactionStatusFailed    = "failed"
)

// Transaction records a credit top-up attempt. CreditAmount is the gross
// credited value; Fees holds the processing surcharge that was added on top
// of it when charging the card.
type Transaction struct {
	Id              string  `json:"id" gorm:"primaryKey"`
	OrganizationId  string  `json:"organization_id" gorm:"index"`
	Type            string  `json:"type" gorm:"default:'credit_topup'"`
	Status          string  `json:"status" gorm:"index;default:'pending'"`
	CreditAmount    float64 `json:"credit_amount" gorm:"type:decimal(20,10);default:0"`
	Fees            float64 `json:"fees" gorm:"type:decimal(20,10);default:0"`
	TotalCharged    float64 `json:"total_charged" gorm:"type:decimal(20,10);default:0"`
	StripePaymentId string  `json:"stripe_payment_id" gorm:"default:''"`
	Description     string  `json:"description" gorm:"default:''"`
	CreatedAt       int64   `json:"created_at" gorm:"bigint"`
	UpdatedAt       int64   `json:"updated_at" gorm:"bigint;autoUpdateTime:milli"`
}

// CreateTransaction inserts a pending top-up record and returns it.
func CreateTransaction(t *Transaction) error {
	if t.Id == "" {
		t.Id = random.GetUUID()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = helper.GetTimestamp()
	}
	return errors.Wrap(DB.Create(t).Error, "create transaction")
}

// UpdateTransactionStatus moves the record to its terminal state.
func UpdateTransactionStatus(id, status, stripePaymentId string) error {
	updates := map[string]any{"status": status}
	if stripePaymentId != "" {
		updates["stripe_payment_id"] = stripePaymentId
	}
	err := DB.Model(&Transaction{}).Where("id = ?", id).Updates(updates).Error
	return errors.Wrapf(err, "update transaction %s to %s", id, status)
}

// GetRecentTopup returns the most recent credit top-up created at or after
// since, or nil when there is none.
func GetRecentTopup(orgId string, since int64) (*Transaction, error) {
	var t Transaction
	err := DB.Where("organization_id = ? AND type = ? AND created_at >= ?",
		orgId, TransactionTypeCreditTopup, since).
		Order("created_at DESC").First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get recent topup for %s", orgId)
	}
	return &t, nil
}

// HasPendingTopup reports whether the organization already has an in-flight
// top-up, which suppresses a second auto charge.
func HasPendingTopup(orgId string) (bool, error) {
	var count int64
	err := DB.Model(&Transaction{}).
		Where("organization_id = ? AND type = ? AND status = ?",
			orgId, TransactionTypeCreditTopup, TransactionStatusPending).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrapf(err, "count pending topups for %s", orgId)
	}
	return count > 0, nil
}
