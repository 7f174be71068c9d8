// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farms

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/silo-farm/silo/farm"
)

// Amounts travel as decimal strings: the reward asset is arbitrary
// precision and JSON numbers are not.

type GlobalState struct {
	CycleLength  uint64  `json:"cycleLength"`
	TotalWeight  string  `json:"totalWeight"`
	AccPerWeight string  `json:"accPerWeight"`
	LastSettled  uint64  `json:"lastSettled"`
	Tick         uint64  `json:"tick"`
	Pools        []*Pool `json:"pools"`
}

type Pool struct {
	ID          string `json:"id"`
	Weight      string `json:"weight"`
	TotalStaked string `json:"totalStaked"`
	AccPerShare string `json:"accPerShare"`
	LastSettled uint64 `json:"lastSettled"`
}

type Position struct {
	Pool       string `json:"pool"`
	Staker     string `json:"staker"`
	Amount     string `json:"amount"`
	RewardDebt string `json:"rewardDebt"`
}

type Epoch struct {
	Rate      string `json:"rate"`
	Start     uint64 `json:"start"`
	Allotment string `json:"allotment"`
}

type Rates struct {
	CycleLength uint64   `json:"cycleLength"`
	Epochs      []*Epoch `json:"epochs"`
}

type Pending struct {
	Pending string `json:"pending"`
	Tick    uint64 `json:"tick"`
}

type Vault struct {
	Balance   string `json:"balance"`
	TotalPaid string `json:"totalPaid"`
}

type FundRequest struct {
	Amount string `json:"amount"`
}

type WeightRequest struct {
	Weight string `json:"weight"`
}

type StakeRequest struct {
	Staker string `json:"staker"`
	Amount string `json:"amount"`
}

type ClaimRequest struct {
	Staker string `json:"staker"`
}

type BatchClaimRequest struct {
	Staker string   `json:"staker"`
	Pools  []string `json:"pools"`
}

type Receipt struct {
	Paid string `json:"paid"`
	Tick uint64 `json:"tick"`
}

type TickReceipt struct {
	Tick uint64 `json:"tick"`
}

func convertPool(p *farm.Pool) *Pool {
	return &Pool{
		ID:          string(p.ID),
		Weight:      p.Weight.String(),
		TotalStaked: p.TotalStaked.String(),
		AccPerShare: p.AccPerShare.String(),
		LastSettled: p.LastSettled,
	}
}

func convertPosition(pos *farm.Position) *Position {
	return &Position{
		Pool:       string(pos.Pool),
		Staker:     string(pos.Staker),
		Amount:     pos.Amount.String(),
		RewardDebt: pos.RewardDebt.String(),
	}
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("malformed amount %q", s)
	}
	return v, nil
}
