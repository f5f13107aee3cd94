package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// Уровни подписки плательщика для чаевых.
const (
	SubscriptionFree = "free"
	SubscriptionPlus = "plus"
	SubscriptionPro  = "pro"
)

var (
	minTipFeeRate = decimal.RequireFromString("0.05")
	maxTipFeeRate = decimal.RequireFromString("0.10")
)

// FeePolicy версионированные комиссии платформы.
// Комиссия за гиг и комиссия с чаевых считаются независимо.
type FeePolicy struct {
	Version     string
	GigFeeRate  decimal.Decimal
	TipFeeRates map[string]decimal.Decimal
}

type feePolicyFile struct {
	Version     string            `toml:"version"`
	GigFeeRate  string            `toml:"gig_fee_rate"`
	TipFeeRates map[string]string `toml:"tip_fee_rates"`
}

// DefaultFeePolicy возвращает политику, действующую без файла конфигурации.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		Version:    "default-v1",
		GigFeeRate: decimal.RequireFromString("0.12"),
		TipFeeRates: map[string]decimal.Decimal{
			SubscriptionFree: decimal.RequireFromString("0.10"),
			SubscriptionPlus: decimal.RequireFromString("0.07"),
			SubscriptionPro:  decimal.RequireFromString("0.05"),
		},
	}
}

// LoadFeePolicy читает TOML файл с комиссиями. Пустой путь означает дефолтную политику.
func LoadFeePolicy(path string) (FeePolicy, error) {
	if path == "" {
		return DefaultFeePolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FeePolicy{}, fmt.Errorf("config: не удалось прочитать политику комиссий %s: %w", path, err)
	}
	return ParseFeePolicy(data)
}

// ParseFeePolicy разбирает содержимое TOML файла политики комиссий.
func ParseFeePolicy(data []byte) (FeePolicy, error) {
	var raw feePolicyFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return FeePolicy{}, fmt.Errorf("config: некорректный TOML политики комиссий: %w", err)
	}

	if raw.Version == "" {
		return FeePolicy{}, fmt.Errorf("config: версия политики комиссий обязательна")
	}

	policy := DefaultFeePolicy()
	policy.Version = raw.Version

	if raw.GigFeeRate != "" {
		rate, err := decimal.NewFromString(raw.GigFeeRate)
		if err != nil {
			return FeePolicy{}, fmt.Errorf("config: gig_fee_rate %q: %w", raw.GigFeeRate, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return FeePolicy{}, fmt.Errorf("config: gig_fee_rate должен быть в диапазоне [0, 1)")
		}
		policy.GigFeeRate = rate
	}

	for level, value := range raw.TipFeeRates {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return FeePolicy{}, fmt.Errorf("config: tip_fee_rates.%s %q: %w", level, value, err)
		}
		if rate.LessThan(minTipFeeRate) || rate.GreaterThan(maxTipFeeRate) {
			return FeePolicy{}, fmt.Errorf("config: tip_fee_rates.%s должен быть от 5%% до 10%%", level)
		}
		policy.TipFeeRates[level] = rate
	}

	return policy, nil
}

// TipFeeRate возвращает комиссию с чаевых для уровня подписки плательщика.
// Неизвестный уровень считается бесплатным тарифом.
func (p FeePolicy) TipFeeRate(level string) decimal.Decimal {
	if rate, ok := p.TipFeeRates[level]; ok {
		return rate
	}
	return p.TipFeeRates[SubscriptionFree]
}
