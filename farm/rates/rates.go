// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rates keeps the append-only history of reward emission rates and
// integrates emission over tick intervals.
//
// Every funding event appends one epoch at the current tick. An epoch emits
// at its rate from its start tick until it is superseded by the next epoch,
// or until one full cycle has elapsed, whichever comes first. Past the cycle
// end the rate drops to zero until the next funding event.
package rates

import (
	"math/big"

	"github.com/pkg/errors"
)

// Epoch is one entry of the emission history: Rate units of the reward asset
// per tick, effective from Start. Allotment is the full amount the epoch was
// opened with (funded amount plus carry); Rate is its truncated spread over
// one cycle. The part of the allotment the rate never emits stays claimable
// as carry by the next funding event, or is implicitly lost if none comes.
type Epoch struct {
	Rate      *big.Int
	Start     uint64
	Allotment *big.Int
}

// Ledger is the ordered emission history plus the cycle length.
type Ledger struct {
	cycle  uint64
	epochs []Epoch
}

// New creates an empty ledger. The cycle length must be positive.
func New(cycle uint64) (*Ledger, error) {
	if cycle == 0 {
		return nil, errors.New("rates: zero cycle length")
	}
	return &Ledger{cycle: cycle}, nil
}

// Restore rebuilds a ledger from a persisted epoch sequence.
func Restore(cycle uint64, epochs []Epoch) (*Ledger, error) {
	l, err := New(cycle)
	if err != nil {
		return nil, err
	}
	for _, ep := range epochs {
		if err := l.Append(ep.Rate, ep.Start, ep.Allotment); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Cycle returns the cycle length in ticks.
func (l *Ledger) Cycle() uint64 {
	return l.cycle
}

// Len returns the number of epochs.
func (l *Ledger) Len() int {
	return len(l.epochs)
}

// Epoch returns the i-th epoch.
func (l *Ledger) Epoch(i int) Epoch {
	return l.epochs[i]
}

// Epochs returns a copy of the whole epoch sequence.
func (l *Ledger) Epochs() []Epoch {
	return append([]Epoch(nil), l.epochs...)
}

// Append adds an epoch. Epochs must be appended in non-decreasing start
// order; rates and allotments must be non-negative.
func (l *Ledger) Append(rate *big.Int, start uint64, allotment *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return errors.New("rates: negative rate")
	}
	if allotment == nil || allotment.Sign() < 0 {
		return errors.New("rates: negative allotment")
	}
	if n := len(l.epochs); n > 0 && start < l.epochs[n-1].Start {
		return errors.Errorf("rates: epoch start %d before last %d", start, l.epochs[n-1].Start)
	}
	l.epochs = append(l.epochs, Epoch{new(big.Int).Set(rate), start, new(big.Int).Set(allotment)})
	return nil
}

// Carry returns the unused portion of the latest epoch's allotment as of
// now: the allotment it was opened with, minus rate-per-tick emission over
// the elapsed ticks, clipped to the cycle.
func (l *Ledger) Carry(now uint64) *big.Int {
	n := len(l.epochs)
	if n == 0 {
		return new(big.Int)
	}
	last := l.epochs[n-1]

	elapsed := uint64(0)
	if now > last.Start {
		elapsed = now - last.Start
	}
	if elapsed > l.cycle {
		elapsed = l.cycle
	}
	used := new(big.Int).Mul(last.Rate, new(big.Int).SetUint64(elapsed))
	carry := new(big.Int).Sub(last.Allotment, used)
	if carry.Sign() < 0 {
		carry.SetInt64(0)
	}
	return carry
}

// Fund books a funding event at the given tick: the unused allotment of the
// previous epoch is carried into a fresh epoch whose rate spreads the sum
// over one full cycle. Division truncates; the dust stays in the allotment
// and rides into the next carry. The appended rate is returned.
func (l *Ledger) Fund(amount *big.Int, now uint64) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("rates: non-positive funding amount")
	}
	if n := len(l.epochs); n > 0 && now < l.epochs[n-1].Start {
		return nil, errors.Errorf("rates: funding at tick %d before last epoch %d", now, l.epochs[n-1].Start)
	}

	allotment := new(big.Int).Add(amount, l.Carry(now))
	rate := new(big.Int).Div(allotment, new(big.Int).SetUint64(l.cycle))
	l.epochs = append(l.epochs, Epoch{rate, now, allotment})
	return new(big.Int).Set(rate), nil
}

// EmittedBetween integrates emission over the half-open tick interval
// (from, to], walking epochs starting at the given cursor. Each epoch
// contributes only within its own emission window. It returns the emitted
// amount and the index of the newest epoch starting at or before to, which
// callers store as the next cursor.
//
// The cursor must be at or before the epoch in effect at from; epochs ahead of
// it are never revisited, so a stale cursor cannot double count.
func (l *Ledger) EmittedBetween(from, to uint64, cursor int) (*big.Int, int) {
	total := new(big.Int)
	if cursor < 0 {
		cursor = 0
	}
	if len(l.epochs) == 0 {
		return total, cursor
	}
	if cursor >= len(l.epochs) {
		cursor = len(l.epochs) - 1
	}
	if to <= from {
		return total, cursor
	}

	i := cursor
	for ; i < len(l.epochs); i++ {
		ep := l.epochs[i]
		if ep.Start > to {
			break
		}

		end := ep.Start + l.cycle
		if i+1 < len(l.epochs) && l.epochs[i+1].Start < end {
			end = l.epochs[i+1].Start
		}

		lo, hi := ep.Start, end
		if from > lo {
			lo = from
		}
		if to < hi {
			hi = to
		}
		if hi > lo && ep.Rate.Sign() > 0 {
			span := new(big.Int).SetUint64(hi - lo)
			total.Add(total, span.Mul(span, ep.Rate))
		}
	}

	next := i - 1
	if next < cursor {
		next = cursor
	}
	return total, next
}
