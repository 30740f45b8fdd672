package trading

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules are the keyword sets driving KeywordClassifier. All matching is done
// on lower-cased text.
type Rules struct {
	// TradeKeywords mark a transaction as trading activity when found in its
	// type or serialized body.
	TradeKeywords []string `yaml:"trade_keywords"`
	// BuyTypeHints and SellTypeHints are matched against the type field first.
	BuyTypeHints  []string `yaml:"buy_type_hints"`
	SellTypeHints []string `yaml:"sell_type_hints"`
	// BuyInstructions and SellInstructions are instruction-name substrings
	// searched in the serialized body as a last resort.
	BuyInstructions  []string `yaml:"buy_instructions"`
	SellInstructions []string `yaml:"sell_instructions"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		TradeKeywords: []string{
			"swap", "trade", "exchange",
			"jupiter", "raydium", "orca", "whirlpool", "meteora", "openbook", "serum", "phoenix", "lifinity",
			"amm", "liquidity", "pool", "market",
		},
		BuyTypeHints:     []string{"buy", "swap_in"},
		SellTypeHints:    []string{"sell", "swap_out"},
		BuyInstructions:  []string{"instruction: buy", "buy_exact_in", "swapbasein"},
		SellInstructions: []string{"instruction: sell", "sell_exact_in", "swapbaseout"},
	}
}

// ParseRules decodes YAML rules. Sections missing from data keep their defaults.
func ParseRules(data []byte) (Rules, error) {
	var parsed Rules
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Rules{}, fmt.Errorf("failed to parse classifier rules: %w", err)
	}

	rules := DefaultRules()
	if parsed.TradeKeywords != nil {
		rules.TradeKeywords = parsed.TradeKeywords
	}
	if parsed.BuyTypeHints != nil {
		rules.BuyTypeHints = parsed.BuyTypeHints
	}
	if parsed.SellTypeHints != nil {
		rules.SellTypeHints = parsed.SellTypeHints
	}
	if parsed.BuyInstructions != nil {
		rules.BuyInstructions = parsed.BuyInstructions
	}
	if parsed.SellInstructions != nil {
		rules.SellInstructions = parsed.SellInstructions
	}
	return rules.normalized(), nil
}

// LoadRules reads YAML rules from path.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read classifier rules: %w", err)
	}
	return ParseRules(data)
}

// normalized lower-cases every keyword and drops blanks.
func (r Rules) normalized() Rules {
	return Rules{
		TradeKeywords:    lowerAll(r.TradeKeywords),
		BuyTypeHints:     lowerAll(r.BuyTypeHints),
		SellTypeHints:    lowerAll(r.SellTypeHints),
		BuyInstructions:  lowerAll(r.BuyInstructions),
		SellInstructions: lowerAll(r.SellInstructions),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
