package model

// SwapReceipt summarizes a committed swap for callers and logs.
type SwapReceipt struct {
	Caller    string `json:"caller"`
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	ReserveX  string `json:"reserve_x"`
	ReserveY  string `json:"reserve_y"`
	K         string `json:"k"`
}
