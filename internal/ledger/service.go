// Package ledger is the single entry point for every change to a school's
// chart of accounts and journal. Each mutation passes the same guard: the
// fiscal year must be open, the structural checks of the account tree must
// hold, and the new state must persist before the call returns.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/auditlog"
	"github.com/schoolpaypro/ledger/internal/broadcast"
	"github.com/schoolpaypro/ledger/internal/journal"
	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/persist"
	"github.com/schoolpaypro/ledger/internal/report"
	"github.com/schoolpaypro/ledger/internal/store"
	"github.com/schoolpaypro/ledger/internal/yearclose"
)

// Auditor records committed mutations.
type Auditor interface {
	Record(action, details, accountID, entryID string) error
}

// Config wires a Service.
type Config struct {
	SchoolID   string
	FiscalYear string
	Bridge     *persist.Bridge
	Gate       *yearclose.Gate // nil: the year is never closed
	Audit      Auditor         // nil: nothing recorded
}

// Service owns the in-memory chart of accounts and journal of one school and
// one active fiscal year. It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	school  string
	year    string
	bridge  *persist.Bridge
	gate    *yearclose.Gate
	audit   Auditor
	tree    *accounts.Tree
	journal *journal.Log
}

type docSet int

const (
	docAccounts docSet = 1 << iota
	docJournal
)

type snapshot struct {
	accounts []model.Account
	entries  []model.JournalEntry
}

// Open loads the school's documents through cfg.Bridge. Missing documents
// yield an empty ledger; see Seed.
func Open(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.Bridge == nil {
		return nil, errors.New("ledger: bridge is required")
	}
	s := &Service{
		school: cfg.SchoolID,
		year:   cfg.FiscalYear,
		bridge: cfg.Bridge,
		gate:   cfg.Gate,
		audit:  cfg.Audit,
		tree:   accounts.NewTree(nil),
	}
	s.journal = journal.NewLog(nil, s.tree)
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SchoolID returns the school the ledger belongs to.
func (s *Service) SchoolID() string { return s.school }

// FiscalYear returns the active fiscal year.
func (s *Service) FiscalYear() string { return s.year }

// Origin identifies this ledger's writes in change events.
func (s *Service) Origin() string { return s.bridge.Origin() }

func (s *Service) accountsKey() string { return store.Key(persist.KeyAccounts, s.school) }
func (s *Service) journalKey() string  { return store.Key(persist.KeyJournal, s.school) }

func (s *Service) load(ctx context.Context) error {
	var (
		accts   []model.Account
		entries []model.JournalEntry
	)
	err := s.bridge.LoadAll(ctx,
		persist.Doc{Key: s.accountsKey(), Value: &accts},
		persist.Doc{Key: s.journalKey(), Value: &entries},
	)
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}
	s.tree.Replace(accts)
	s.journal.Replace(entries)
	return nil
}

func (s *Service) snapshot() snapshot {
	return snapshot{accounts: s.tree.Raw(), entries: s.journal.Entries()}
}

func (s *Service) restore(sn snapshot) {
	s.tree.Replace(sn.accounts)
	s.journal.Replace(sn.entries)
}

// commit persists the documents in docs as one batch, so balances and the
// journal are never stored half updated. When the save fails the in-memory
// state is re-read from the store, so that it matches what other writers
// see; if that fails too, the pre-mutation snapshot is restored.
func (s *Service) commit(ctx context.Context, before snapshot, docs docSet) error {
	var batch []persist.Doc
	if docs&docAccounts != 0 {
		batch = append(batch, persist.Doc{Key: s.accountsKey(), Value: nonNil(s.tree.Raw())})
	}
	if docs&docJournal != 0 {
		batch = append(batch, persist.Doc{Key: s.journalKey(), Value: nonNil(s.journal.Entries())})
	}
	err := s.bridge.SaveAll(ctx, batch...)
	if err == nil {
		return nil
	}
	if lerr := s.load(ctx); lerr != nil {
		slog.Error("re-reading ledger after failed save", "school", s.school, "error", lerr)
		s.restore(before)
	}
	return err
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func (s *Service) record(action, details, accountID, entryID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(action, details, accountID, entryID); err != nil {
		slog.Warn("writing audit log", "action", action, "error", err)
	}
}

// CheckOpen returns ErrYearClosed when the active fiscal year is closed.
func (s *Service) CheckOpen(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}
	closed, err := s.gate.IsFinancialYearClosed(ctx, s.school, s.year)
	if err != nil {
		return fmt.Errorf("checking year close: %w", err)
	}
	if closed {
		return fmt.Errorf("%w: %s", ErrYearClosed, s.year)
	}
	return nil
}

// Seed stores the initial chart of accounts of an empty ledger.
func (s *Service) Seed(ctx context.Context, chart []model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree.Len() > 0 {
		return ErrAlreadyInitialized
	}
	before := s.snapshot()
	for _, a := range chart {
		if _, err := s.tree.Add(a); err != nil {
			s.restore(before)
			return fmt.Errorf("seeding %s: %w", a.Code, err)
		}
	}
	if err := s.commit(ctx, before, docAccounts|docJournal); err != nil {
		return err
	}
	s.record(auditlog.ActionImport, fmt.Sprintf("seeded %d accounts", len(chart)), "", "")
	return nil
}

// Accounts returns all accounts ordered by code.
func (s *Service) Accounts() []model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.All()
}

// Account returns an account by ID.
func (s *Service) Account(accountID string) (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Get(accountID)
}

// AccountByCode returns the account holding code.
func (s *Service) AccountByCode(code string) (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.ByCode(code)
}

// Children returns the direct children of an account ordered by code.
func (s *Service) Children(accountID string) []model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Children(accountID)
}

// HasChildren reports whether any account is parented to accountID.
func (s *Service) HasChildren(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.HasChildren(accountID)
}

// NextCode returns the code the next child of parentID would get.
func (s *Service) NextCode(parentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.NextCode(parentID)
}

// AddAccount adds an account with a caller-chosen code.
func (s *Service) AddAccount(ctx context.Context, a model.Account) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return model.Account{}, err
	}
	before := s.snapshot()
	added, err := s.tree.Add(a)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.commit(ctx, before, docAccounts); err != nil {
		return model.Account{}, err
	}
	s.record(auditlog.ActionAccountAdd, fmt.Sprintf("%s %s", added.Code, added.Name), added.ID, "")
	return added, nil
}

// CreateChild adds a under parentID with the next generated code. An empty
// type is inherited from the parent and an unset level becomes leaf.
func (s *Service) CreateChild(ctx context.Context, parentID string, a model.Account) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return model.Account{}, err
	}
	code, err := s.tree.NextCode(parentID)
	if err != nil {
		return model.Account{}, err
	}
	parent, _ := s.tree.Get(parentID)
	a.Code = code
	a.ParentID = parentID
	if a.Type == "" {
		a.Type = parent.Type
	}
	if a.Level == 0 {
		a.Level = model.LevelLeaf
	}

	before := s.snapshot()
	added, err := s.tree.Add(a)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.commit(ctx, before, docAccounts); err != nil {
		return model.Account{}, err
	}
	s.record(auditlog.ActionAccountAdd, fmt.Sprintf("%s %s under %s", added.Code, added.Name, parent.Code), added.ID, "")
	return added, nil
}

// UpdateAccount merges p into an account.
func (s *Service) UpdateAccount(ctx context.Context, accountID string, p accounts.Patch) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return model.Account{}, err
	}
	before := s.snapshot()
	updated, err := s.tree.Update(accountID, p)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.commit(ctx, before, docAccounts); err != nil {
		return model.Account{}, err
	}
	s.record(auditlog.ActionAccountUpdate, fmt.Sprintf("%s %s", updated.Code, updated.Name), updated.ID, "")
	return updated, nil
}

// DeleteAccount removes an account. Checks run in order, the first failing
// one wins: year open, account exists, no children, not a system account,
// zero balance, no approved or posted journal lines.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return err
	}
	a, ok := s.tree.Get(accountID)
	if !ok {
		return fmt.Errorf("%w: %s", accounts.ErrAccountNotFound, accountID)
	}
	if s.tree.HasChildren(accountID) {
		return fmt.Errorf("%w: %s", accounts.ErrHasChildren, a.Code)
	}
	if accounts.IsSystem(a) {
		return fmt.Errorf("%w: %s", accounts.ErrSystemAccount, a.Code)
	}
	if !a.Balance.IsZero() {
		return fmt.Errorf("%w: %s holds %s", ErrBalanceNotZero, a.Code, a.Balance.StringFixed(2))
	}
	if s.journal.ReferencesAccount(accountID) {
		return fmt.Errorf("%w: %s", ErrHasPostings, a.Code)
	}

	before := s.snapshot()
	if err := s.tree.Delete(accountID); err != nil {
		return err
	}
	if err := s.commit(ctx, before, docAccounts); err != nil {
		return err
	}
	s.record(auditlog.ActionAccountDelete, fmt.Sprintf("%s %s", a.Code, a.Name), a.ID, "")
	return nil
}

// PostTransactions adds each posting's amount to its account balance. The
// batch is applied whole or not at all; it need not sum to zero.
func (s *Service) PostTransactions(ctx context.Context, postings []model.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return err
	}
	deltas := make(map[string]decimal.Decimal)
	for _, p := range postings {
		deltas[p.AccountID] = deltas[p.AccountID].Add(p.Amount)
	}
	if len(deltas) == 0 {
		return nil
	}

	before := s.snapshot()
	if err := s.tree.ApplyDeltas(deltas); err != nil {
		return err
	}
	if err := s.commit(ctx, before, docAccounts); err != nil {
		return err
	}
	for accountID, d := range deltas {
		s.record(auditlog.ActionPost, "delta "+d.StringFixed(2), accountID, "")
	}
	return nil
}

// Entries returns the journal in append order.
func (s *Service) Entries() []model.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Entries()
}

// Entry returns a journal entry by ID.
func (s *Service) Entry(entryID string) (model.JournalEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Get(entryID)
}

// RecordEntry appends a journal entry. Untagged entries are tagged with the
// active fiscal year. An entry recorded as approved or posted moves the
// balances of its accounts by debit minus credit in the same commit.
func (s *Service) RecordEntry(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return model.JournalEntry{}, err
	}
	if e.FiscalYear == "" {
		e.FiscalYear = s.year
	}

	before := s.snapshot()
	added, err := s.journal.Append(e)
	if err != nil {
		return model.JournalEntry{}, err
	}
	docs := docJournal
	if added.Status.Effective() {
		if err := s.tree.ApplyDeltas(entryDeltas(added, false)); err != nil {
			s.restore(before)
			return model.JournalEntry{}, err
		}
		docs |= docAccounts
	}
	if err := s.commit(ctx, before, docs); err != nil {
		return model.JournalEntry{}, err
	}
	s.record(auditlog.ActionJournalAdd, fmt.Sprintf("%s %s", added.Status, added.Description), "", added.ID)
	return added, nil
}

// SetEntryStatus moves an entry through its lifecycle. Becoming effective
// posts the entry's lines to the balances; a rejected approved entry
// reverses them.
func (s *Service) SetEntryStatus(ctx context.Context, entryID string, status model.EntryStatus) (model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return model.JournalEntry{}, err
	}
	snap := s.snapshot()
	before, after, err := s.journal.SetStatus(entryID, status)
	if err != nil {
		return model.JournalEntry{}, err
	}

	docs := docJournal
	if before.Status.Effective() != after.Status.Effective() {
		if err := s.tree.ApplyDeltas(entryDeltas(after, before.Status.Effective())); err != nil {
			s.restore(snap)
			return model.JournalEntry{}, err
		}
		docs |= docAccounts
	}
	if err := s.commit(ctx, snap, docs); err != nil {
		return model.JournalEntry{}, err
	}
	s.record(auditlog.ActionJournalStatus, fmt.Sprintf("%s -> %s", before.Status, after.Status), "", after.ID)
	return after, nil
}

func entryDeltas(e model.JournalEntry, reverse bool) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal)
	for _, l := range e.Lines {
		net := l.Net()
		if reverse {
			net = net.Neg()
		}
		deltas[l.AccountID] = deltas[l.AccountID].Add(net)
	}
	return deltas
}

// ImportAccounts adds accounts whose code is not yet in the chart. Parent
// references are resolved against the imported IDs first, so a parent that
// already existed under the same code is reused. The import is all or
// nothing.
func (s *Service) ImportAccounts(ctx context.Context, accts []model.Account) (added, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CheckOpen(ctx); err != nil {
		return 0, 0, err
	}
	rows := append([]model.Account(nil), accts...)
	accounts.SortByCode(rows)

	before := s.snapshot()
	ids := make(map[string]string, len(rows))
	for _, a := range rows {
		if existing, ok := s.tree.ByCode(a.Code); ok {
			ids[a.ID] = existing.ID
			skipped++
			continue
		}
		if mapped, ok := ids[a.ParentID]; ok {
			a.ParentID = mapped
		}
		importedID := a.ID
		if s.tree.Exists(a.ID) {
			a.ID = ""
		}
		got, err := s.tree.Add(a)
		if err != nil {
			s.restore(before)
			return 0, 0, fmt.Errorf("importing %s: %w", a.Code, err)
		}
		ids[importedID] = got.ID
		added++
	}
	if added == 0 {
		return 0, skipped, nil
	}
	if err := s.commit(ctx, before, docAccounts); err != nil {
		return 0, 0, err
	}
	s.record(auditlog.ActionImport, fmt.Sprintf("imported %d accounts, skipped %d", added, skipped), "", "")
	return added, skipped, nil
}

// Report aggregates the chart for the active fiscal year.
func (s *Service) Report() []report.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.Aggregate(s.tree.Raw(), s.journal.Entries(), report.Options{FiscalYear: s.year})
}

// YearStatus returns the close record of the active fiscal year.
func (s *Service) YearStatus(ctx context.Context) (yearclose.Record, error) {
	if s.gate == nil {
		return yearclose.Record{}, nil
	}
	return s.gate.Status(ctx, s.school, s.year)
}

// CloseYear closes the active fiscal year with a summary of the current
// report. Every later mutation fails with ErrYearClosed.
func (s *Service) CloseYear(ctx context.Context, closedBy string) (yearclose.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gate == nil {
		return yearclose.Record{}, errors.New("year close is not configured")
	}
	if err := s.CheckOpen(ctx); err != nil {
		return yearclose.Record{}, err
	}

	rows := report.Aggregate(s.tree.Raw(), s.journal.Entries(), report.Options{FiscalYear: s.year})
	nets := report.ByType(rows)
	sum := yearclose.Summary{
		TotalAssets:      nets[model.AccountTypeAsset],
		TotalLiabilities: nets[model.AccountTypeLiability].Neg(),
		TotalEquity:      nets[model.AccountTypeEquity].Neg(),
		TotalRevenue:     nets[model.AccountTypeRevenue].Neg(),
		TotalExpenses:    nets[model.AccountTypeExpense],
		EntryCount:       len(s.journal.Effective(s.year)),
	}
	sum.NetIncome = sum.TotalRevenue.Sub(sum.TotalExpenses)

	rec, err := s.gate.Close(ctx, s.school, s.year, closedBy, sum)
	if err != nil {
		return yearclose.Record{}, err
	}
	s.record(auditlog.ActionYearClose, "closed "+s.year, "", "")
	return rec, nil
}

// ReopenYear makes the active fiscal year writable again.
func (s *Service) ReopenYear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gate == nil {
		return errors.New("year close is not configured")
	}
	if err := s.gate.Reopen(ctx, s.school, s.year); err != nil {
		return err
	}
	s.record(auditlog.ActionYearReopen, "reopened "+s.year, "", "")
	return nil
}

// Reload re-reads the documents written by other processes. In-memory
// state is replaced only when the stored content differs from what this
// ledger last read or wrote.
func (s *Service) Reload(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		accts   []model.Account
		entries []model.JournalEntry
	)
	changed, err := s.bridge.RefreshAll(ctx,
		persist.Doc{Key: s.accountsKey(), Value: &accts},
		persist.Doc{Key: s.journalKey(), Value: &entries},
	)
	if err != nil {
		return false, fmt.Errorf("reloading ledger: %w", err)
	}
	if changed[0] {
		s.tree.Replace(accts)
	}
	if changed[1] {
		s.journal.Replace(entries)
	}
	return changed[0] || changed[1], nil
}

// Follow reloads the ledger whenever events announce a write by another
// origin to one of its documents. It returns when ctx is done or events is
// closed.
func (s *Service) Follow(ctx context.Context, events <-chan broadcast.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Origin == s.Origin() || (e.Key != s.accountsKey() && e.Key != s.journalKey()) {
				continue
			}
			changed, err := s.Reload(ctx)
			if err != nil {
				slog.Warn("reloading ledger", "key", e.Key, "error", err)
				continue
			}
			if changed {
				slog.Info("ledger reloaded", "key", e.Key, "version", e.Version)
			}
		}
	}
}
