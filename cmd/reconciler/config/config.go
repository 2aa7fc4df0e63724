// Package config bridges the recognised viper keys to the engine and
// service configurations.
//
// Scalar keys (amount_epsilon, date_tolerance_days, cut_off_hour,
// cut_off_minute, max_audit_entries_per_file, ttum_types,
// exception_matrix, matching_configs) override the engine defaults in
// place; gl_accounts and issuer_actions name JSON files loaded through
// the settlement package. upload_dir, output_dir and
// rollback_lock_timeout_ms are consumed by the commands directly.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/reconciler"
	"upi-reconciliation-service/internal/settlement"
	"upi-reconciliation-service/pkg/errors"
)

// MatchingConfigSpec mirrors one entry of the matching_configs key: a
// named key-set listing the fields that must agree across sources.
type MatchingConfigSpec struct {
	Name           string            `mapstructure:"name"`
	RequiredFields []string          `mapstructure:"required_fields"`
	Params         map[string]string `mapstructure:"params"`
}

// CreateMatchingConfig builds the engine configuration from the defaults
// and whatever recognised keys are set.
func CreateMatchingConfig() (*matcher.Config, error) {
	config := matcher.DefaultConfig()

	if viper.IsSet("amount_epsilon") {
		epsilon := viper.GetFloat64("amount_epsilon")
		if epsilon <= 0 {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
				"amount_epsilon", epsilon,
				fmt.Errorf("amount epsilon must be positive"))
		}
		config.AmountEpsilon = decimal.NewFromFloat(epsilon)
	}
	if viper.IsSet("date_tolerance_days") {
		config.DateToleranceDays = viper.GetInt("date_tolerance_days")
	}
	if viper.IsSet("cut_off_hour") {
		config.CutOffHour = viper.GetInt("cut_off_hour")
	}
	if viper.IsSet("cut_off_minute") {
		config.CutOffMinute = viper.GetInt("cut_off_minute")
	}

	if viper.IsSet("matching_configs") {
		var specs []MatchingConfigSpec
		if err := viper.UnmarshalKey("matching_configs", &specs); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
				"matching_configs", nil, err)
		}
		keySets, err := keySetsFromSpecs(specs)
		if err != nil {
			return nil, err
		}
		config.KeySets = keySets
	}

	if viper.IsSet("exception_matrix") {
		config.MatrixOverrides = viper.GetStringMapString("exception_matrix")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
			"matching_configs", nil, err)
	}
	return config, nil
}

// keySetsFromSpecs converts matching_configs entries into engine key-sets,
// preserving their order: the first spec is tried first.
func keySetsFromSpecs(specs []MatchingConfigSpec) ([]matcher.KeySet, error) {
	keySets := make([]matcher.KeySet, 0, len(specs))
	for _, spec := range specs {
		fields := make([]matcher.MatchField, 0, len(spec.RequiredFields))
		for _, name := range spec.RequiredFields {
			field := matcher.MatchField(canonicalFieldName(name))
			if !field.IsValid() {
				return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
					"matching_configs", name,
					fmt.Errorf("matching config %q: unknown field %q", spec.Name, name)).
					WithSuggestion("Valid fields are RRN, UPI_TRAN_ID, AMOUNT and DATE")
			}
			fields = append(fields, field)
		}

		dateMode, err := matcher.ParseDateMode(strings.ToLower(strings.TrimSpace(spec.Params["date_mode"])))
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
				"matching_configs", spec.Params["date_mode"],
				fmt.Errorf("matching config %q: %w", spec.Name, err))
		}

		keySets = append(keySets, matcher.KeySet{
			Name:     spec.Name,
			Fields:   fields,
			DateMode: dateMode,
		})
	}
	return keySets, nil
}

// canonicalFieldName maps a configured field name onto the engine's
// spelling: case-insensitive, spaces and dashes as underscores.
func canonicalFieldName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

// CreateServiceConfig assembles the full service configuration: engine
// settings, the GL account map, issuer actions and the audit cap.
func CreateServiceConfig() (*reconciler.Config, error) {
	matching, err := CreateMatchingConfig()
	if err != nil {
		return nil, err
	}

	accounts, err := settlement.LoadAccounts(viper.GetString("gl_accounts"))
	if err != nil {
		return nil, err
	}

	issuerActions, err := settlement.LoadIssuerActions(viper.GetString("issuer_actions"))
	if err != nil {
		return nil, err
	}

	config := reconciler.DefaultConfig()
	config.Matching = matching
	config.Reports.AmountEpsilon = matching.AmountEpsilon
	config.Accounts = accounts
	config.IssuerActions = issuerActions
	config.TTUMTypes = ttumTypes()
	if viper.IsSet("max_audit_entries_per_file") {
		config.MaxAuditEntries = viper.GetInt("max_audit_entries_per_file")
	}

	return config, nil
}

// ttumTypes reads the ttum_types key. Validation happens in the service
// configuration, which knows the category set.
func ttumTypes() []settlement.Category {
	names := viper.GetStringSlice("ttum_types")
	if len(names) == 0 {
		return nil
	}
	categories := make([]settlement.Category, 0, len(names))
	for _, name := range names {
		categories = append(categories, settlement.Category(canonicalFieldName(name)))
	}
	return categories
}
