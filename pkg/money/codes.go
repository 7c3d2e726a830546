package money

// Code represents a currency code (e.g., "USD", "EUR").
type Code string

// Common currency codes
const (
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	JPY Code = "JPY" // Japanese Yen
	KWD Code = "KWD" // Kuwaiti Dinar
	GBP Code = "GBP" // British Pound
	CAD Code = "CAD" // Canadian Dollar
	AUD Code = "AUD" // Australian Dollar
	CHF Code = "CHF" // Swiss Franc
	CNY Code = "CNY" // Chinese Yuan
	INR Code = "INR" // Indian Rupee
	EGP Code = "EGP" // Egyptian Pound
)

// DefaultDecimals is used for well-formed codes missing from the table below.
const DefaultDecimals = 2

var knownCurrencies = map[Code]Currency{
	USD: {Code: USD, Decimals: 2, Symbol: "$"},
	EUR: {Code: EUR, Decimals: 2, Symbol: "€"},
	GBP: {Code: GBP, Decimals: 2, Symbol: "£"},
	JPY: {Code: JPY, Decimals: 0, Symbol: "¥"},
	KWD: {Code: KWD, Decimals: 3, Symbol: "د.ك"},
	CAD: {Code: CAD, Decimals: 2, Symbol: "C$"},
	AUD: {Code: AUD, Decimals: 2, Symbol: "A$"},
	CHF: {Code: CHF, Decimals: 2, Symbol: "CHF"},
	CNY: {Code: CNY, Decimals: 2, Symbol: "¥"},
	INR: {Code: INR, Decimals: 2, Symbol: "₹"},
	EGP: {Code: EGP, Decimals: 2, Symbol: "E£"},
}

// IsValid checks if the currency code is a well-formed ISO 4217 code.
func (c Code) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	return c[0] >= 'A' && c[0] <= 'Z' &&
		c[1] >= 'A' && c[1] <= 'Z' &&
		c[2] >= 'A' && c[2] <= 'Z'
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}

// ToCurrency resolves the code to a Currency with its minor-unit precision.
func (c Code) ToCurrency() Currency {
	if cur, ok := knownCurrencies[c]; ok {
		return cur
	}
	return Currency{Code: c, Decimals: DefaultDecimals, Symbol: string(c)}
}

// Currency represents a monetary unit with its standard decimal places
type Currency struct {
	Code     Code   // 3-letter ISO 4217 code (e.g., "USD")
	Decimals int    // Number of decimal places (0-8)
	Symbol   string // Display symbol
}

// IsValid checks if the currency is valid.
func (c Currency) IsValid() bool {
	return c.Code.IsValid() && c.Decimals >= 0 && c.Decimals <= 8
}

// String returns the currency code as a string
func (c Currency) String() string { return string(c.Code) }
