// Package rollup turns a wallet's flat list of entries into a month-by-month
// report where each month starts from the previous month's ready-to-spend.
//
// The functions here are pure: they hold no state, never touch the input slice
// and may be called concurrently.
package rollup

import (
	"fmt"
	"sort"
	"time"

	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/ledger"
)

// Bucket is one calendar month of a wallet.
// ReadyToSpend is always Budget + InTotal - OutTotal.
type Bucket struct {
	Year         int
	Month        time.Month
	Budget       decimal.Decimal
	In           []ledger.Entry
	InTotal      decimal.Decimal
	Out          []ledger.Entry
	OutTotal     decimal.Decimal
	ReadyToSpend decimal.Decimal
}

// Report indexes buckets by year, then month. Only months with at least one
// entry are present.
type Report map[int]map[time.Month]Bucket

// Bucket returns the bucket for a given month, if any entry fell in it.
func (r Report) Bucket(year int, month time.Month) (Bucket, bool) {
	b, ok := r[year][month]
	return b, ok
}

// Buckets lists every bucket in ascending (year, month) order.
func (r Report) Buckets() []Bucket {
	out := make([]Bucket, 0, r.Len())
	for _, months := range r {
		for _, b := range months {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].Year, out[i].Month, out[j].Year, out[j].Month) })
	return out
}

// Len counts the months in the report.
func (r Report) Len() int {
	n := 0
	for _, months := range r {
		n += len(months)
	}
	return n
}

type period struct {
	year  int
	month time.Month
}

func before(y1 int, m1 time.Month, y2 int, m2 time.Month) bool {
	if y1 != y2 {
		return y1 < y2
	}
	return m1 < m2
}

// Aggregate groups entries by the year and month of their created_at wall clock,
// sums each flow exactly and carries ready-to-spend forward from one month to the
// next in ascending order. The first month starts from a zero budget.
//
// Months without entries are not synthesised, so the carry jumps straight over a
// gap. A created_at that cannot be parsed fails the whole call with
// errs.ErrMalformedTimestamp and no report. A total that would need more than
// 19 significant digits fails with errs.ErrAmountOverflow instead of rounding.
func Aggregate(entries []ledger.Entry) (Report, error) {
	groups := make(map[period]*Bucket)
	for _, e := range entries {
		ts, err := ledger.ParseTimestamp(e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		p := period{year: ts.Year(), month: ts.Month()}
		b, ok := groups[p]
		if !ok {
			b = &Bucket{Year: p.year, Month: p.month}
			groups[p] = b
		}
		switch e.Flow {
		case ledger.FlowIn:
			b.In = append(b.In, e)
			b.InTotal, err = addExact(b.InTotal, e.Issued)
		case ledger.FlowOut:
			b.Out = append(b.Out, e)
			b.OutTotal, err = addExact(b.OutTotal, e.Issued)
		default:
			err = fmt.Errorf("%w: flow %q", errs.ErrInvalid, e.Flow)
		}
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}

	keys := make([]period, 0, len(groups))
	for p := range groups {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return before(keys[i].year, keys[i].month, keys[j].year, keys[j].month) })

	report := make(Report)
	carry := decimal.Zero
	for _, p := range keys {
		b := groups[p]
		b.Budget = carry
		rts, err := addExact(carry, b.InTotal)
		if err == nil {
			rts, err = subExact(rts, b.OutTotal)
		}
		if err != nil {
			return nil, fmt.Errorf("%d-%02d: %w", p.year, p.month, err)
		}
		b.ReadyToSpend = rts
		carry = rts
		if report[p.year] == nil {
			report[p.year] = make(map[time.Month]Bucket)
		}
		report[p.year][p.month] = *b
	}
	return report, nil
}

// addExact keeps every decimal place of both operands or fails.
func addExact(a, b decimal.Decimal) (decimal.Decimal, error) {
	sum, err := a.AddExact(b, max(a.Scale(), b.Scale()))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s + %s", errs.ErrAmountOverflow, a, b)
	}
	return sum, nil
}

func subExact(a, b decimal.Decimal) (decimal.Decimal, error) {
	diff, err := a.SubExact(b, max(a.Scale(), b.Scale()))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s - %s", errs.ErrAmountOverflow, a, b)
	}
	return diff, nil
}

// LookupWallet resolves a requested wallet name against an account's wallets,
// ignoring case. It returns the normalised name and whether it exists.
func LookupWallet(wallets []string, name string) (string, bool) {
	want := ledger.NormalizeWallet(name)
	if want == "" {
		return "", false
	}
	for _, w := range wallets {
		if ledger.NormalizeWallet(w) == want {
			return want, true
		}
	}
	return "", false
}
