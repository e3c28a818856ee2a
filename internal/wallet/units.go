package wallet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"learnearn/internal/domain"
)

// One XP is worth 0.01 CELO; one CELO is 10^18 wei.
var (
	celoPerXP   = decimal.New(1, -2)
	weiDecimals = int32(18)
)

// XPToCELO converts points to the native token amount.
func XPToCELO(xp int64) decimal.Decimal {
	return decimal.NewFromInt(xp).Mul(celoPerXP)
}

// FormatCELO renders the CELO equivalent of xp with four decimals.
func FormatCELO(xp int64) string {
	return XPToCELO(xp).StringFixed(4)
}

// XPToWei converts points to wei.
func XPToWei(xp int64) *big.Int {
	return XPToCELO(xp).Shift(weiDecimals).BigInt()
}

// WeiToXP converts wei back to whole points, rounding to the nearest point.
func WeiToXP(wei *big.Int) int64 {
	if wei == nil {
		return 0
	}
	celo := decimal.NewFromBigInt(wei, -weiDecimals)
	return celo.Div(celoPerXP).Round(0).IntPart()
}

// EncodeWei renders a wei amount as a 0x-prefixed hex quantity.
func EncodeWei(wei *big.Int) string {
	return hexutil.EncodeBig(wei)
}

// NormalizeAddress validates a hex account address and returns its checksummed form.
func NormalizeAddress(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", domain.ErrInvalidAddress
	}
	return common.HexToAddress(raw).Hex(), nil
}

// CanonicalAddress returns the checksummed form of a hex address, or raw unchanged
// when it is not one. Players and ranking entries are keyed by this form.
func CanonicalAddress(raw string) string {
	if !common.IsHexAddress(raw) {
		return raw
	}
	return common.HexToAddress(raw).Hex()
}

// ShortAddress renders an address as 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
