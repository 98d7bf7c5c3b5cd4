// Package yearclose records which fiscal years of a school are closed. A
// closed year makes every ledger mutation read-only.
package yearclose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/store"
)

const (
	// KeyClose holds the structured close record.
	KeyClose = "FINANCIAL_YEAR_CLOSE"
	// KeyClosedFlag is the older boolean flag, still honoured on read.
	KeyClosedFlag = "FINANCIAL_YEAR_CLOSED"
)

// ErrNotClosed is returned by Reopen when the year has no close record.
var ErrNotClosed = errors.New("financial year is not closed")

// Summary is the trial position captured at close time.
type Summary struct {
	TotalAssets      decimal.Decimal `json:"totalAssets"`
	TotalLiabilities decimal.Decimal `json:"totalLiabilities"`
	TotalEquity      decimal.Decimal `json:"totalEquity"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	NetIncome        decimal.Decimal `json:"netIncome"`
	EntryCount       int             `json:"entryCount"`
}

// Record is the document stored under KeyClose.
type Record struct {
	IsClosed  bool     `json:"isClosed"`
	CloseDate string   `json:"closeDate,omitempty"`
	ClosedBy  string   `json:"closedBy,omitempty"`
	Summary   *Summary `json:"summary,omitempty"`
}

// Gate answers and changes the closed state of fiscal years.
type Gate struct {
	store store.Store
	now   func() time.Time
}

// New creates a Gate over s.
func New(s store.Store) *Gate {
	return &Gate{store: s, now: time.Now}
}

func closeKey(schoolID, yearID string) string {
	return store.Key(KeyClose, schoolID, yearID)
}

func flagKey(schoolID, yearID string) string {
	return store.Key(KeyClosedFlag, schoolID, yearID)
}

// IsFinancialYearClosed reports whether yearID is closed for schoolID. The
// structured record wins when present; otherwise the legacy flag is read.
func (g *Gate) IsFinancialYearClosed(ctx context.Context, schoolID, yearID string) (bool, error) {
	rec, found, err := g.record(ctx, schoolID, yearID)
	if err != nil {
		return false, err
	}
	if found {
		return rec.IsClosed, nil
	}
	return g.legacyFlag(ctx, schoolID, yearID)
}

// Status returns the close record for the year. A year closed only through
// the legacy flag is reported with IsClosed set and no summary.
func (g *Gate) Status(ctx context.Context, schoolID, yearID string) (Record, error) {
	rec, found, err := g.record(ctx, schoolID, yearID)
	if err != nil || found {
		return rec, err
	}
	closed, err := g.legacyFlag(ctx, schoolID, yearID)
	return Record{IsClosed: closed}, err
}

// Close marks the year closed with the given summary. Closing an already
// closed year replaces its record.
func (g *Gate) Close(ctx context.Context, schoolID, yearID, closedBy string, summary Summary) (Record, error) {
	rec := Record{
		IsClosed:  true,
		CloseDate: g.now().UTC().Format(time.RFC3339),
		ClosedBy:  closedBy,
		Summary:   &summary,
	}
	if err := g.put(ctx, closeKey(schoolID, yearID), rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Reopen clears the closed state of the year, including any legacy flag.
func (g *Gate) Reopen(ctx context.Context, schoolID, yearID string) error {
	closed, err := g.IsFinancialYearClosed(ctx, schoolID, yearID)
	if err != nil {
		return err
	}
	if !closed {
		return ErrNotClosed
	}
	if err := g.put(ctx, closeKey(schoolID, yearID), Record{IsClosed: false}); err != nil {
		return err
	}
	if err := g.store.Delete(ctx, flagKey(schoolID, yearID)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clearing legacy close flag: %w", err)
	}
	return nil
}

func (g *Gate) record(ctx context.Context, schoolID, yearID string) (Record, bool, error) {
	doc, err := g.store.Get(ctx, closeKey(schoolID, yearID))
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading year close record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decoding year close record: %w", err)
	}
	return rec, true, nil
}

// legacyFlag accepts both a JSON boolean and the string "true".
func (g *Gate) legacyFlag(ctx context.Context, schoolID, yearID string) (bool, error) {
	doc, err := g.store.Get(ctx, flagKey(schoolID, yearID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading year close flag: %w", err)
	}
	var v any
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return false, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strings.EqualFold(strings.TrimSpace(x), "true"), nil
	}
	return false, nil
}

func (g *Gate) put(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding year close record: %w", err)
	}
	if _, err := g.store.Put(ctx, key, data, store.AnyVersion); err != nil {
		return fmt.Errorf("writing year close record: %w", err)
	}
	return nil
}
