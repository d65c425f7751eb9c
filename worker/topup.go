package worker

import (
	"fmt"
	"math"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/helper"
	"github.com/llmgateway/llmgateway/common/logger"
	"github.com/llmgateway/llmgateway/model"
)

const (
	topupLockKey = "auto_topup_check"

	// topupCooldownSeconds suppresses a new charge while a recent attempt is
	// still pending or just failed.
	topupCooldownSeconds = 3600
)

// ProcessAutoTopUp charges the card on file for every organization that fell
// below its top-up threshold. Credits are added by the Stripe webhook once the
// payment settles; this pass only creates the PaymentIntent.
func ProcessAutoTopUp(owner string) error {
	if config.StripeSecretKey == "" {
		return nil
	}
	stripe.Key = config.StripeSecretKey

	return model.WithLock(topupLockKey, owner, func() error {
		orgs, err := model.GetAutoTopUpCandidates()
		if err != nil {
			return errors.Wrap(err, "query top-up candidates")
		}
		for _, org := range orgs {
			if err := topUpOrganization(org); err != nil {
				logger.Logger.Error("auto top-up failed",
					zap.String("organization", org.Id), zap.Error(err))
			}
		}
		return nil
	})
}

func topUpOrganization(org *model.Organization) error {
	if org.StripeCustomerId == "" || org.AutoTopUpAmount <= 0 {
		return nil
	}

	since := helper.GetTimestamp() - topupCooldownSeconds
	recent, err := model.GetRecentTopup(org.Id, since)
	if err != nil {
		return err
	}
	if recent != nil && (recent.Status == model.TransactionStatusPending ||
		recent.Status == model.TransactionStatusFailed) {
		logger.Logger.Debug("skipping top-up, recent attempt in cooldown",
			zap.String("organization", org.Id), zap.String("status", recent.Status))
		return nil
	}

	fees := CalculateFees(org.AutoTopUpAmount, false)
	txn := &model.Transaction{
		OrganizationId: org.Id,
		Type:           model.TransactionTypeCreditTopup,
		Status:         model.TransactionStatusPending,
		CreditAmount:   org.AutoTopUpAmount,
		Fees:           fees.Total,
		TotalCharged:   org.AutoTopUpAmount + fees.Total,
		Description:    fmt.Sprintf("Auto top-up of $%.2f", org.AutoTopUpAmount),
	}
	if err := model.CreateTransaction(txn); err != nil {
		return err
	}

	params := &stripe.PaymentIntentParams{
		Amount:     stripe.Int64(toCents(txn.TotalCharged)),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Customer:   stripe.String(org.StripeCustomerId),
		Confirm:    stripe.Bool(true),
		OffSession: stripe.Bool(true),
	}
	params.AddMetadata("transaction_id", txn.Id)
	params.AddMetadata("organization_id", org.Id)

	pi, err := paymentintent.New(params)
	if err != nil {
		if updateErr := model.UpdateTransactionStatus(txn.Id,
			model.TransactionStatusFailed, ""); updateErr != nil {
			logger.Logger.Error("failed to mark transaction failed",
				zap.String("transaction", txn.Id), zap.Error(updateErr))
		}
		return errors.Wrapf(err, "create payment intent for %s", org.Id)
	}

	if err := model.UpdateTransactionStatus(txn.Id,
		model.TransactionStatusPending, pi.ID); err != nil {
		return err
	}
	logger.Logger.Info("auto top-up initiated",
		zap.String("organization", org.Id),
		zap.String("payment_intent", pi.ID),
		zap.Float64("amount", org.AutoTopUpAmount))
	return nil
}

func toCents(usd float64) int64 {
	return int64(math.Round(usd * 100))
}
