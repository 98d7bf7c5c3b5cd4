// Package satellite keeps treasury accounts (banks, cash safes) and
// suppliers, each of which owns exactly one leaf account in the chart.
// Records and their accounts are created and deleted together.
package satellite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/auditlog"
	"github.com/schoolpaypro/ledger/internal/broadcast"
	"github.com/schoolpaypro/ledger/internal/id"
	"github.com/schoolpaypro/ledger/internal/ledger"
	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/persist"
	"github.com/schoolpaypro/ledger/internal/store"
)

var (
	// ErrNotFound is returned when a treasury or supplier ID does not resolve.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidKind is returned for an unknown treasury kind.
	ErrInvalidKind = errors.New("treasury kind must be bank or cash")

	// ErrNameRequired is returned when creating a record without a name.
	ErrNameRequired = errors.New("name is required")
)

// folder is one level of the account chain a record's leaf is filed under.
type folder struct {
	code  string
	name  string
	typ   model.AccountType
	level model.AccountLevel
}

var (
	assetsChain = []folder{
		{accounts.CodeAssets, "Assets", model.AccountTypeAsset, model.LevelRoot},
		{accounts.CodeCurrentAssets, "Current Assets", model.AccountTypeAsset, model.LevelBranch},
	}
	treasuryChains = map[model.TreasuryKind][]folder{
		model.TreasuryBank: append(slices.Clone(assetsChain),
			folder{accounts.CodeBanks, "Banks", model.AccountTypeAsset, model.LevelBranch}),
		model.TreasuryCash: append(slices.Clone(assetsChain),
			folder{accounts.CodeCashSafe, "Cash Safe", model.AccountTypeAsset, model.LevelBranch}),
	}
	supplierChain = []folder{
		{accounts.CodeLiabilities, "Liabilities", model.AccountTypeLiability, model.LevelRoot},
		{accounts.CodeCurrentLiabilities, "Current Liabilities", model.AccountTypeLiability, model.LevelBranch},
		{accounts.CodeSuppliers, "Suppliers", model.AccountTypeLiability, model.LevelBranch},
	}
)

// TreasuryInput describes a new treasury account.
type TreasuryInput struct {
	Kind          model.TreasuryKind `json:"kind"`
	Name          string             `json:"name"`
	BankName      string             `json:"bankName,omitempty"`
	AccountNumber string             `json:"accountNumber,omitempty"`
}

// SupplierInput describes a new supplier.
type SupplierInput struct {
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	TaxNumber string `json:"taxNumber,omitempty"`
}

// Service holds the treasury and supplier records of one school.
type Service struct {
	mu        sync.Mutex
	ledger    *ledger.Service
	bridge    *persist.Bridge
	audit     ledger.Auditor
	now       func() time.Time
	treasury  []model.TreasuryAccount
	suppliers []model.SupplierAccount
}

// Open loads the records of l's school. b should be the bridge l writes
// through. audit may be nil.
func Open(ctx context.Context, l *ledger.Service, b *persist.Bridge, audit ledger.Auditor) (*Service, error) {
	s := &Service{ledger: l, bridge: b, audit: audit, now: time.Now}
	err := b.LoadAll(ctx,
		persist.Doc{Key: s.treasuryKey(), Value: &s.treasury},
		persist.Doc{Key: s.suppliersKey(), Value: &s.suppliers},
	)
	if err != nil {
		return nil, fmt.Errorf("loading treasury and suppliers: %w", err)
	}
	return s, nil
}

func (s *Service) treasuryKey() string {
	return store.Key(persist.KeyTreasury, s.ledger.SchoolID())
}

func (s *Service) suppliersKey() string {
	return store.Key(persist.KeySuppliers, s.ledger.SchoolID())
}

func (s *Service) record(action, details, accountID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(action, details, accountID, ""); err != nil {
		slog.Warn("writing audit log", "action", action, "error", err)
	}
}

// ensureChain returns the last folder of chain, creating missing levels.
func (s *Service) ensureChain(ctx context.Context, chain []folder) (model.Account, error) {
	var parent model.Account
	for _, f := range chain {
		if a, ok := s.ledger.AccountByCode(f.code); ok {
			parent = a
			continue
		}
		a, err := s.ledger.AddAccount(ctx, model.Account{
			Code:     f.code,
			Name:     f.name,
			Type:     f.typ,
			Level:    f.level,
			ParentID: parent.ID,
			IsMain:   true,
		})
		if err != nil {
			return model.Account{}, fmt.Errorf("creating folder %s: %w", f.code, err)
		}
		parent = a
	}
	return parent, nil
}

// createLeaf files a new leaf account under chain.
func (s *Service) createLeaf(ctx context.Context, chain []folder, name, description string) (model.Account, error) {
	if err := s.ledger.CheckOpen(ctx); err != nil {
		return model.Account{}, err
	}
	parent, err := s.ensureChain(ctx, chain)
	if err != nil {
		return model.Account{}, err
	}
	return s.ledger.CreateChild(ctx, parent.ID, model.Account{
		Name:        name,
		Description: description,
		Level:       model.LevelLeaf,
	})
}

// dropLeaf deletes a record's account through the guarded path. An account
// that is already gone is not an error.
func (s *Service) dropLeaf(ctx context.Context, accountID string) error {
	err := s.ledger.DeleteAccount(ctx, accountID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil
	}
	return err
}

// dropRecord saves the shortened list next under key, then deletes the
// record's account. When the account may not go, prev is saved back so the
// record and its account stay together.
func (s *Service) dropRecord(ctx context.Context, key string, prev, next any, accountID string) error {
	if err := s.bridge.Save(ctx, key, next); err != nil {
		return err
	}
	if err := s.dropLeaf(ctx, accountID); err != nil {
		if rerr := s.bridge.Save(ctx, key, prev); rerr != nil {
			slog.Error("restoring record after failed account delete", "key", key, "account", accountID, "error", rerr)
		}
		return err
	}
	return nil
}

// undoLeaf removes a leaf whose record could not be saved.
func (s *Service) undoLeaf(ctx context.Context, accountID string) {
	if err := s.ledger.DeleteAccount(ctx, accountID); err != nil {
		slog.Error("removing account of unsaved record", "account", accountID, "error", err)
	}
}

// Treasury returns the treasury records in creation order.
func (s *Service) Treasury() []model.TreasuryAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.treasury)
}

// AddTreasury creates a treasury account and its leaf under Banks or Cash
// Safe, creating those folders when missing.
func (s *Service) AddTreasury(ctx context.Context, in TreasuryInput) (model.TreasuryAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := treasuryChains[in.Kind]
	if !ok {
		return model.TreasuryAccount{}, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.TreasuryAccount{}, ErrNameRequired
	}

	var description string
	if in.Kind == model.TreasuryBank {
		description = strings.TrimSpace(in.BankName + " " + in.AccountNumber)
	}
	leaf, err := s.createLeaf(ctx, chain, name, description)
	if err != nil {
		return model.TreasuryAccount{}, err
	}

	rec := model.TreasuryAccount{
		ID:            id.New("trs"),
		Kind:          in.Kind,
		Name:          name,
		AccountID:     leaf.ID,
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		CreatedAt:     s.now().UTC(),
	}
	next := append(slices.Clone(s.treasury), rec)
	if err := s.bridge.Save(ctx, s.treasuryKey(), next); err != nil {
		s.undoLeaf(ctx, leaf.ID)
		return model.TreasuryAccount{}, err
	}
	s.treasury = next
	s.record(auditlog.ActionTreasuryAdd, fmt.Sprintf("%s %s (%s)", leaf.Code, name, in.Kind), leaf.ID)
	return rec, nil
}

// DeleteTreasury deletes a treasury record and its account. It fails, and
// keeps both, when the account may not be deleted.
func (s *Service) DeleteTreasury(ctx context.Context, treasuryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.treasury, func(t model.TreasuryAccount) bool { return t.ID == treasuryID })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, treasuryID)
	}
	rec := s.treasury[i]
	next := slices.Delete(slices.Clone(s.treasury), i, i+1)
	if err := s.dropRecord(ctx, s.treasuryKey(), nonNil(s.treasury), nonNil(next), rec.AccountID); err != nil {
		return err
	}
	s.treasury = next
	s.record(auditlog.ActionTreasuryDelete, rec.Name, rec.AccountID)
	return nil
}

// Suppliers returns the supplier records in creation order.
func (s *Service) Suppliers() []model.SupplierAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.suppliers)
}

// AddSupplier creates a supplier and its leaf under Suppliers, creating the
// folder chain when missing.
func (s *Service) AddSupplier(ctx context.Context, in SupplierInput) (model.SupplierAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.SupplierAccount{}, ErrNameRequired
	}
	leaf, err := s.createLeaf(ctx, supplierChain, name, in.TaxNumber)
	if err != nil {
		return model.SupplierAccount{}, err
	}

	rec := model.SupplierAccount{
		ID:        id.New("sup"),
		Name:      name,
		AccountID: leaf.ID,
		Phone:     in.Phone,
		TaxNumber: in.TaxNumber,
		CreatedAt: s.now().UTC(),
	}
	next := append(slices.Clone(s.suppliers), rec)
	if err := s.bridge.Save(ctx, s.suppliersKey(), next); err != nil {
		s.undoLeaf(ctx, leaf.ID)
		return model.SupplierAccount{}, err
	}
	s.suppliers = next
	s.record(auditlog.ActionSupplierAdd, fmt.Sprintf("%s %s", leaf.Code, name), leaf.ID)
	return rec, nil
}

// DeleteSupplier deletes a supplier and its account.
func (s *Service) DeleteSupplier(ctx context.Context, supplierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.suppliers, func(sp model.SupplierAccount) bool { return sp.ID == supplierID })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, supplierID)
	}
	rec := s.suppliers[i]
	next := slices.Delete(slices.Clone(s.suppliers), i, i+1)
	if err := s.dropRecord(ctx, s.suppliersKey(), nonNil(s.suppliers), nonNil(next), rec.AccountID); err != nil {
		return err
	}
	s.suppliers = next
	s.record(auditlog.ActionSupplierDelete, rec.Name, rec.AccountID)
	return nil
}

// Reload re-reads both collections when another process changed them.
func (s *Service) Reload(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		treasury  []model.TreasuryAccount
		suppliers []model.SupplierAccount
	)
	changed, err := s.bridge.RefreshAll(ctx,
		persist.Doc{Key: s.treasuryKey(), Value: &treasury},
		persist.Doc{Key: s.suppliersKey(), Value: &suppliers},
	)
	if err != nil {
		return false, fmt.Errorf("reloading treasury and suppliers: %w", err)
	}
	if changed[0] {
		s.treasury = treasury
	}
	if changed[1] {
		s.suppliers = suppliers
	}
	return changed[0] || changed[1], nil
}

// Follow reloads on change events for the satellite documents until ctx is
// done or events is closed.
func (s *Service) Follow(ctx context.Context, events <-chan broadcast.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Origin == s.bridge.Origin() || (e.Key != s.treasuryKey() && e.Key != s.suppliersKey()) {
				continue
			}
			if _, err := s.Reload(ctx); err != nil {
				slog.Warn("reloading satellites", "key", e.Key, "error", err)
			}
		}
	}
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
