package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// Generator builds vouchers and TTUM artefacts from a matching result.
type Generator struct {
	accounts   *Accounts
	issuer     IssuerActions
	epsilon    decimal.Decimal
	categories map[Category]bool
	log        logger.Logger
}

// Option adjusts a Generator.
type Option func(*Generator)

// WithIssuerActions installs the per-RRN override map.
func WithIssuerActions(actions IssuerActions) Option {
	return func(g *Generator) {
		g.issuer = actions
	}
}

// WithCategories restricts TTUM file emission to the named categories.
// An empty list keeps all six.
func WithCategories(categories []Category) Option {
	return func(g *Generator) {
		if len(categories) == 0 {
			return
		}
		g.categories = make(map[Category]bool, len(categories))
		for _, c := range categories {
			g.categories[c] = true
		}
	}
}

// WithEpsilon overrides the amount-agreement tolerance used by the NTSL
// cross-check.
func WithEpsilon(epsilon decimal.Decimal) Option {
	return func(g *Generator) {
		g.epsilon = epsilon
	}
}

// NewGenerator creates a Generator over the given account map.
func NewGenerator(accounts *Accounts, opts ...Option) (*Generator, error) {
	if accounts == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "gl_accounts", nil,
			fmt.Errorf("generator needs an account map"))
	}
	if err := accounts.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "gl_accounts", nil, err)
	}

	g := &Generator{
		accounts: accounts,
		issuer:   IssuerActions{},
		epsilon:  models.DefaultAmountEpsilon,
		log:      logger.GetGlobalLogger().WithComponent("settlement"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// BuildVouchers creates one voucher per money-moving record: a PAYMENT
// voucher for every matched record, a SETTLEMENT voucher for partials
// and orphans. Self-matched and settlement-lump records net to zero
// inside a single source and get no voucher. Voucher IDs are assigned
// in record order, so identical inputs produce identical IDs.
func (g *Generator) BuildVouchers(result *matcher.Result) ([]*models.Voucher, error) {
	if result == nil {
		return nil, errors.EngineError(errors.CodeDataInconsistent, "build vouchers",
			fmt.Errorf("nil matching result"))
	}

	var vouchers []*models.Voucher
	seq := 0
	for _, rec := range result.OrderedRecords() {
		voucherType, pair, ok := g.voucherShape(rec)
		if !ok {
			continue
		}
		amount := rec.Amount()
		if amount.IsZero() {
			g.log.WithFields(logger.Fields{
				"key":    rec.Key,
				"status": rec.Status,
			}).Debug("Skipping zero-amount record in voucher generation")
			continue
		}

		seq++
		v := &models.Voucher{
			VoucherID:       fmt.Sprintf("VCH-%s-%04d", result.CycleID, seq),
			Type:            voucherType,
			Amount:          amount,
			TransactionDate: rec.TranDate(),
			Status:          models.VoucherGenerated,
			RRN:             rec.RRN,
			GLEntries: []models.GLEntry{
				{Account: pair.Debit.Code, AccountName: pair.Debit.Name, Debit: amount},
				{Account: pair.Credit.Code, AccountName: pair.Credit.Name, Credit: amount},
			},
		}
		if err := v.Validate(); err != nil {
			return nil, errors.EngineError(errors.CodeUnbalancedVoucher, v.VoucherID, err)
		}
		vouchers = append(vouchers, v)
	}

	g.log.WithFields(logger.Fields{
		"cycle_id": result.CycleID,
		"vouchers": len(vouchers),
	}).Info("Vouchers generated")
	return vouchers, nil
}

// voucherShape decides whether a record gets a voucher, and of which kind.
func (g *Generator) voucherShape(rec *models.ReconRecord) (models.VoucherType, AccountPair, bool) {
	switch {
	case rec.Status.IsMatched():
		if rec.ExceptionType == models.ExcSelfMatched || rec.ExceptionType == models.ExcSettlementEntry {
			return "", AccountPair{}, false
		}
		return models.VoucherPayment, AccountPair{
			Debit:  g.accounts.Bank,
			Credit: g.accounts.SettlementReceivable,
		}, true

	case rec.Status == models.StatusPartialMatch,
		rec.Status == models.StatusPartialMismatch,
		rec.Status == models.StatusOrphan:
		return models.VoucherSettlement, AccountPair{
			Debit:  g.accounts.Suspense,
			Credit: g.accounts.SettlementPayable,
		}, true
	}
	return "", AccountPair{}, false
}

// PostVouchers walks generated vouchers and flips them to POSTED; a
// voucher that fails validation at posting time flips to FAILED instead.
// Returns the posted and failed counts.
func (g *Generator) PostVouchers(vouchers []*models.Voucher) (posted, failed int) {
	for _, v := range vouchers {
		if v.Status != models.VoucherGenerated {
			continue
		}
		if err := v.Validate(); err != nil {
			v.Status = models.VoucherFailed
			failed++
			g.log.WithError(err).WithFields(logger.Fields{
				"voucher_id": v.VoucherID,
			}).Error("Voucher failed posting")
			continue
		}
		v.Status = models.VoucherPosted
		posted++
	}

	g.log.WithFields(logger.Fields{
		"posted": posted,
		"failed": failed,
	}).Info("Vouchers posted")
	return posted, failed
}
