package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

const opStore = "criticality_store"

// ErrNotFound signals that no criticality exists for the failure mode.
var ErrNotFound = errors.New("criticality not found")

// CriticalityRepo persists at most one Criticality per failure mode.
type CriticalityRepo interface {
	Get(ctx context.Context, failureModeID string) (models.Criticality, error)
	// Create fails with an InvariantViolation when the failure mode already has a record.
	Create(ctx context.Context, c models.Criticality) (models.Criticality, error)
	// Update fails with ErrNotFound when the failure mode has no record.
	Update(ctx context.Context, c models.Criticality) (models.Criticality, error)
}

func duplicate(failureModeID string) error {
	return utils.InvariantViolation(opStore, "failureModeId", failureModeID,
		"failure mode already has a criticality record; update it instead")
}

func requireFailureMode(c models.Criticality) error {
	if c.FailureModeID == "" {
		return utils.Validation(opStore, "failureModeId", c.FailureModeID, "failure mode id is required")
	}
	return nil
}

// MemoryCriticalityRepo is an in-process CriticalityRepo.
type MemoryCriticalityRepo struct {
	mu      sync.RWMutex
	records map[string]models.Criticality
	now     func() time.Time
}

// NewMemoryCriticalityRepo returns an empty store.
func NewMemoryCriticalityRepo() *MemoryCriticalityRepo {
	return &MemoryCriticalityRepo{records: make(map[string]models.Criticality), now: time.Now}
}

// Get implements CriticalityRepo.
func (r *MemoryCriticalityRepo) Get(_ context.Context, failureModeID string) (models.Criticality, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.records[failureModeID]
	if !ok {
		return models.Criticality{}, ErrNotFound
	}
	return c, nil
}

// Create implements CriticalityRepo.
func (r *MemoryCriticalityRepo) Create(_ context.Context, c models.Criticality) (models.Criticality, error) {
	if err := requireFailureMode(c); err != nil {
		return models.Criticality{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[c.FailureModeID]; exists {
		return models.Criticality{}, duplicate(c.FailureModeID)
	}
	c.ID = uuid.NewString()
	c.UpdatedAt = r.now().UTC()
	r.records[c.FailureModeID] = c
	return c, nil
}

// Update implements CriticalityRepo.
func (r *MemoryCriticalityRepo) Update(_ context.Context, c models.Criticality) (models.Criticality, error) {
	if err := requireFailureMode(c); err != nil {
		return models.Criticality{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, exists := r.records[c.FailureModeID]
	if !exists {
		return models.Criticality{}, ErrNotFound
	}
	c.ID = prev.ID
	c.UpdatedAt = r.now().UTC()
	r.records[c.FailureModeID] = c
	return c, nil
}
