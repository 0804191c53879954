package engine

import "math/big"

// bpsDenominator is the basis-point scale: 10000 bps = 100%.
const bpsDenominator = 10_000

// SplitStakeAndFee divides a gross stake amount into the net stake credited
// to the chosen side and the protocol fee. The fee rounds down, so
// net + fee == amount exactly for every input. Create and join paths both go
// through here; payout math is defined purely in terms of net stakes.
func SplitStakeAndFee(amount *big.Int, rateBps uint32) (net, fee *big.Int) {
	fee = new(big.Int).Mul(amount, big.NewInt(int64(rateBps)))
	fee.Div(fee, big.NewInt(bpsDenominator))
	net = new(big.Int).Sub(amount, fee)
	return net, fee
}
