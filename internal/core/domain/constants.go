package domain

const (
	// SegmentCount is the fixed number of verifiable-encryption segments a
	// deposit private key is released in. A session is consumed exactly when
	// this many counterparty proofs have been verified.
	SegmentCount = 32

	CurrencyBTC = "BTC"
	CurrencyETH = "ETH"
)

// CoinDerivationIndex maps a currency to the derivation index used to derive
// per-currency child key shares from a party's master share.
var CoinDerivationIndex = map[string]uint32{
	CurrencyBTC: 0,
	CurrencyETH: 1,
}

// IsSupportedCurrency returns whether the given currency is one of the two
// modeled chains.
func IsSupportedCurrency(currency string) bool {
	_, ok := CoinDerivationIndex[currency]
	return ok
}
