package model

// TokenMeta is the ERC-20 metadata of a staked or reward asset. Decimals
// scale report amounts.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
