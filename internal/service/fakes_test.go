package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"memoriqr-service/internal/models"
	"memoriqr-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for *store.Store with the same conditional semantics
type memStore struct {
	mu          sync.Mutex
	codes       map[string]*models.ActivationCode
	batches     map[string]*models.Batch
	partners    map[string]*models.Partner
	commissions map[string]*models.Commission
	items       map[string]*models.InventoryItem
	movements   []models.Movement
	activity    []models.CodeActivity
	failWith    error
}

func newMemStore() *memStore {
	return &memStore{
		codes:       make(map[string]*models.ActivationCode),
		batches:     make(map[string]*models.Batch),
		partners:    make(map[string]*models.Partner),
		commissions: make(map[string]*models.Commission),
		items:       make(map[string]*models.InventoryItem),
	}
}

func (m *memStore) addPartner(name, email string, rate int64, active bool) *models.Partner {
	p := &models.Partner{
		ID:             uuid.New().String(),
		Name:           name,
		ContactEmail:   email,
		CommissionRate: decimal.NewFromInt(rate),
		IsActive:       active,
	}
	m.partners[p.ID] = p
	return p
}

func (m *memStore) addCode(code string, v models.Variant, partnerID *string, expiresAt *time.Time) *models.ActivationCode {
	c := &models.ActivationCode{
		Code:                 code,
		ProductType:          v.ProductType,
		HostingDurationYears: v.HostingDurationYears,
		PartnerID:            partnerID,
		ExpiresAt:            expiresAt,
	}
	m.codes[code] = c
	return c
}

func (m *memStore) CreateBatchWithCodes(_ context.Context, batch *models.Batch, codes []models.ActivationCode, regen func() (string, error), maxRounds int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}

	taken := make(map[string]bool)
	retried := 0
	for i := range codes {
		rounds := 0
		for m.codes[codes[i].Code] != nil || taken[codes[i].Code] {
			rounds++
			if rounds >= maxRounds {
				return retried, store.ErrCodeSpaceExhausted
			}
			code, err := regen()
			if err != nil {
				return retried, err
			}
			codes[i].Code = code
			retried++
		}
		taken[codes[i].Code] = true
	}

	b := *batch
	m.batches[batch.ID] = &b
	for i := range codes {
		c := codes[i]
		m.codes[c.Code] = &c
	}
	return retried, nil
}

func (m *memStore) summary(b *models.Batch) models.BatchSummary {
	s := models.BatchSummary{Batch: *b}
	for _, c := range m.codes {
		if c.BatchID == nil || *c.BatchID != b.ID {
			continue
		}
		if c.IsUsed {
			s.UsedCodes++
		} else {
			s.UnusedCodes++
		}
	}
	return s
}

func (m *memStore) ListBatchSummaries(_ context.Context, partnerID string) ([]models.BatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.BatchSummary{}
	for _, b := range m.batches {
		if partnerID != "" && (b.PartnerID == nil || *b.PartnerID != partnerID) {
			continue
		}
		out = append(out, m.summary(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetBatchSummary(_ context.Context, batchID string) (*models.BatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return nil, store.ErrNotFound
	}
	s := m.summary(b)
	return &s, nil
}

func (m *memStore) ListBatchCodes(_ context.Context, batchID string) ([]models.ActivationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ActivationCode{}
	for _, c := range m.codes {
		if c.BatchID != nil && *c.BatchID == batchID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) DeleteUnusedBatchCodes(_ context.Context, batchID string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[batchID]; !ok {
		return 0, 0, store.ErrNotFound
	}
	var deleted, preserved int64
	for code, c := range m.codes {
		if c.BatchID == nil || *c.BatchID != batchID {
			continue
		}
		if c.IsUsed {
			preserved++
			continue
		}
		delete(m.codes, code)
		deleted++
	}
	return deleted, preserved, nil
}

func (m *memStore) PurgeBatch(_ context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return store.ErrNotFound
	}
	if m.summary(b).UnusedCodes > 0 {
		return store.ErrBatchHasUnused
	}
	for _, c := range m.codes {
		if c.BatchID != nil && *c.BatchID == batchID {
			c.BatchID = nil
		}
	}
	delete(m.batches, batchID)
	return nil
}

func (m *memStore) GetCode(_ context.Context, code string) (*models.ActivationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	c, ok := m.codes[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) RedeemCode(_ context.Context, code, memorialID, notes string, usedAt time.Time, price store.CommissionFunc) (*models.ActivationCode, *models.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, nil, m.failWith
	}
	c, ok := m.codes[code]
	switch {
	case !ok:
		return nil, nil, store.ErrNotFound
	case c.IsUsed:
		return nil, nil, store.ErrCodeUsed
	case c.IsExpired(usedAt):
		return nil, nil, store.ErrCodeExpired
	}

	c.IsUsed = true
	c.UsedAt = &usedAt
	c.MemorialID = &memorialID

	var commission *models.Commission
	if c.PartnerID != nil {
		commission = price(c, m.partners[*c.PartnerID])
		m.commissions[commission.ID] = commission
	}
	var note *string
	if notes != "" {
		note = &notes
	}
	m.activity = append(m.activity, models.CodeActivity{
		Code: code, ActivityType: models.ActivityRedeemed, FromPartnerID: c.PartnerID, Notes: note, CreatedAt: usedAt,
	})
	cp := *c
	return &cp, commission, nil
}

func (m *memStore) GetPartner(_ context.Context, id string) (*models.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreatePartner(_ context.Context, p *models.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	cp := *p
	m.partners[p.ID] = &cp
	return nil
}

func (m *memStore) ListPartners(_ context.Context) ([]models.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Partner{}
	for _, p := range m.partners {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) AssignCodes(_ context.Context, codes []string, partnerID string, now time.Time) (*models.AssignResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &models.AssignResult{}
	for _, code := range codes {
		c, ok := m.codes[code]
		switch {
		case !ok:
			res.NotFound++
		case c.IsUsed:
			res.SkippedUsed++
		case c.PartnerID != nil:
			res.SkippedAlreadyAssigned++
		default:
			id := partnerID
			c.PartnerID = &id
			res.Assigned++
			m.activity = append(m.activity, models.CodeActivity{
				Code: code, ActivityType: models.ActivityAssigned, ToPartnerID: &id, PerformedByAdmin: true, CreatedAt: now,
			})
		}
	}
	return res, nil
}

func (m *memStore) UnassignCodes(_ context.Context, codes []string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, code := range codes {
		c, ok := m.codes[code]
		if !ok || c.IsUsed || c.PartnerID == nil {
			continue
		}
		prev := *c.PartnerID
		c.PartnerID = nil
		n++
		m.activity = append(m.activity, models.CodeActivity{
			Code: code, ActivityType: models.ActivityUnassigned, FromPartnerID: &prev, PerformedByAdmin: true, CreatedAt: now,
		})
	}
	return n, nil
}

func (m *memStore) TransferCodes(_ context.Context, from, to string, codes []string, notes string, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := []string{}
	for _, code := range codes {
		c, ok := m.codes[code]
		if !ok || c.IsUsed || c.PartnerID == nil || *c.PartnerID != from {
			continue
		}
		id := to
		c.PartnerID = &id
		moved = append(moved, code)
		m.activity = append(m.activity, models.CodeActivity{
			Code: code, ActivityType: models.ActivityTransferred, FromPartnerID: &from, ToPartnerID: &id, CreatedAt: now,
		})
	}
	return moved, nil
}

func (m *memStore) ListCodes(_ context.Context, f models.CodeFilter) ([]models.ActivationCode, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var all []models.ActivationCode
	for _, c := range m.codes {
		switch f.Status {
		case models.CodeStatusUsed:
			if !c.IsUsed {
				continue
			}
		case models.CodeStatusUnused:
			if c.IsUsed {
				continue
			}
		case models.CodeStatusUnassigned:
			if c.IsUsed || c.PartnerID != nil {
				continue
			}
		}
		if f.PartnerID != "" && (c.PartnerID == nil || *c.PartnerID != f.PartnerID) {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })

	total := len(all)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return all[start:end], total, nil
}

func (m *memStore) ListActivity(_ context.Context, code string) ([]models.CodeActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.CodeActivity{}
	for _, a := range m.activity {
		if a.Code == code {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) DeleteUnusedCodes(_ context.Context, codes []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := 0
	for _, code := range codes {
		if c, ok := m.codes[code]; ok && c.IsUsed {
			used++
		}
	}
	if used > 0 {
		return 0, fmt.Errorf("%w: %d of the selected codes", store.ErrCodeUsed, used)
	}
	var n int64
	for _, code := range codes {
		if _, ok := m.codes[code]; ok {
			delete(m.codes, code)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListCommissions(_ context.Context, f models.CommissionFilter) ([]models.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Commission{}
	for _, c := range m.commissions {
		if f.PartnerID != "" && c.PartnerID != f.PartnerID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) transition(ids []string, from, to models.CommissionStatus, apply func(*models.Commission)) []models.Commission {
	out := []models.Commission{}
	for _, id := range ids {
		c, ok := m.commissions[id]
		if !ok || c.Status != from {
			continue
		}
		c.Status = to
		apply(c)
		out = append(out, *c)
	}
	return out
}

func (m *memStore) ApproveCommissions(_ context.Context, ids []string, now time.Time) ([]models.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(ids, models.CommissionPending, models.CommissionApproved, func(c *models.Commission) {
		c.ApprovedAt = &now
	}), nil
}

func (m *memStore) MarkCommissionsPaid(_ context.Context, ids []string, reference string, now time.Time) ([]models.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(ids, models.CommissionApproved, models.CommissionPaid, func(c *models.Commission) {
		c.PaidAt = &now
		c.PayoutReference = &reference
	}), nil
}

func (m *memStore) CancelCommission(_ context.Context, id string) (*models.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.Status != models.CommissionPending && c.Status != models.CommissionApproved {
		return nil, fmt.Errorf("%w: commission %s", store.ErrInvalidState, id)
	}
	c.Status = models.CommissionCancelled
	cp := *c
	return &cp, nil
}

func (m *memStore) ReceiveStock(_ context.Context, tmpl *models.InventoryItem, qty int, reason string, now time.Time) (*models.InventoryItem, *models.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var item *models.InventoryItem
	for _, it := range m.items {
		if it.IsActive && it.ProductType == tmpl.ProductType && strPtrEq(it.Variant, tmpl.Variant) {
			item = it
		}
	}
	if item == nil {
		cp := *tmpl
		cp.ID = uuid.New().String()
		cp.IsActive = true
		cp.CreatedAt = now
		item = &cp
		m.items[cp.ID] = item
	}
	return m.applyLocked(item, models.MovementReceived, qty, reason, now)
}

func (m *memStore) ApplyMovement(_ context.Context, itemID string, mt models.MovementType, qty int, reason string, now time.Time) (*models.InventoryItem, *models.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok || !item.IsActive {
		return nil, nil, store.ErrNotFound
	}
	return m.applyLocked(item, mt, qty, reason, now)
}

func (m *memStore) applyLocked(item *models.InventoryItem, mt models.MovementType, qty int, reason string, now time.Time) (*models.InventoryItem, *models.Movement, error) {
	mv, err := models.ApplyMovement(item, mt, qty, reason, now)
	if err != nil {
		return nil, nil, err
	}
	mv.ID = uuid.New().String()
	mv.Seq = int64(len(m.movements) + 1)
	m.movements = append(m.movements, *mv)
	cp := *item
	return &cp, mv, nil
}

func (m *memStore) GetInventoryItem(_ context.Context, id string) (*models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) ListInventory(_ context.Context, f models.InventoryFilter) ([]models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.InventoryItem{}
	for _, it := range m.items {
		if !it.IsActive || (f.ProductType != "" && it.ProductType != f.ProductType) || (f.LowStockOnly && !it.IsLowStock()) {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductType < out[j].ProductType })
	return out, nil
}

func (m *memStore) ListMovements(_ context.Context, itemID string, limit int) ([]models.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Movement{}
	for i := len(m.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if m.movements[i].InventoryID == itemID {
			out = append(out, m.movements[i])
		}
	}
	return out, nil
}

func (m *memStore) DeactivateItem(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || !it.IsActive {
		return store.ErrNotFound
	}
	it.IsActive = false
	it.UpdatedAt = now
	return nil
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu          sync.Mutex
	generated   []*models.CodesGeneratedEvent
	redeemed    []*models.CodeRedeemedEvent
	transferred []*models.CodesTransferredEvent
	stockLow    []*models.StockLowEvent
	approved    []*models.CommissionApprovedEvent
	failWith    error
}

func (p *recordingPublisher) PublishCodesGenerated(_ context.Context, e *models.CodesGeneratedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generated = append(p.generated, e)
	return p.failWith
}

func (p *recordingPublisher) PublishCodeRedeemed(_ context.Context, e *models.CodeRedeemedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemed = append(p.redeemed, e)
	return p.failWith
}

func (p *recordingPublisher) PublishCodesTransferred(_ context.Context, e *models.CodesTransferredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transferred = append(p.transferred, e)
	return p.failWith
}

func (p *recordingPublisher) PublishStockLow(_ context.Context, e *models.StockLowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockLow = append(p.stockLow, e)
	return p.failWith
}

func (p *recordingPublisher) PublishCommissionApproved(_ context.Context, e *models.CommissionApprovedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approved = append(p.approved, e)
	return p.failWith
}

// memCache implements IdempotencyCache and AlertThrottle without expiry
type memCache struct {
	mu    sync.Mutex
	keys  map[string]string
	locks map[string]bool
}

func newMemCache() *memCache {
	return &memCache{keys: make(map[string]string), locks: make(map[string]bool)}
}

func (c *memCache) GetIdempotencyKey(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.keys[key]
	return v, ok, nil
}

func (c *memCache) SetIdempotencyKey(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = value
	return nil
}

func (c *memCache) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] {
		return false, nil
	}
	c.locks[key] = true
	return true, nil
}

func (c *memCache) ReleaseLock(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, key)
	return nil
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
