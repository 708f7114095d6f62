package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coffee-machine-backend/internal/brew"
	"coffee-machine-backend/internal/model"
	"coffee-machine-backend/internal/parse"
)

// Store defines the interface for all database operations.
type Store interface {
	ListMachines(ctx context.Context) ([]model.Machine, error)
	GetMachine(ctx context.Context, id int64) (*model.Machine, error)
	CreateMachine(ctx context.Context, m *model.Machine) error
	Refill(ctx context.Context, id int64, r RefillRequest) (*model.Machine, error)
	SetPower(ctx context.Context, id int64, on bool) (*model.Machine, error)
	Brew(ctx context.Context, id int64, req brew.Request) (BrewResult, error)
	RecentBrews(ctx context.Context, id int64, limit int) ([]model.BrewLog, error)
	SyncLevels(ctx context.Context, readings []Reading) (SyncResult, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) GetMachine(ctx context.Context, id int64) (*model.Machine, error) {
	return findMachine(s.db.WithContext(ctx), id)
}

func (s *gormStore) CreateMachine(ctx context.Context, m *model.Machine) error {
	if err := validateMachine(m); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create machine %q: %w", m.Name, err)
	}
	return nil
}

// Refill adds the requested servings to the machine's current levels.
func (s *gormStore) Refill(ctx context.Context, id int64, r RefillRequest) (*model.Machine, error) {
	if r.Water < 0 || r.Cups < 0 || r.Beans < 0 {
		return nil, ErrInvalidRefill
	}

	var machine *model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := findMachine(lockRow(tx), id)
		if err != nil {
			return err
		}
		m.Water += r.Water
		m.Cups += r.Cups
		m.Beans += r.Beans
		if err := saveLevels(tx, m); err != nil {
			return err
		}
		machine = m
		return nil
	})
	return machine, err
}

func (s *gormStore) SetPower(ctx context.Context, id int64, on bool) (*model.Machine, error) {
	var machine *model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := findMachine(lockRow(tx), id)
		if err != nil {
			return err
		}
		if err := tx.Model(m).Update("powered", on).Error; err != nil {
			return fmt.Errorf("failed to set power for machine %d: %w", id, err)
		}
		m.Powered = on
		machine = m
		return nil
	})
	return machine, err
}

// Brew runs req against the machine's stored levels. Units that brewed are
// persisted even when a later unit fails; the brew failure is returned
// alongside the result.
func (s *gormStore) Brew(ctx context.Context, id int64, req brew.Request) (BrewResult, error) {
	if req.Count < 0 {
		return BrewResult{}, brew.ErrInvalidCount
	}

	var result BrewResult
	var brewErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := findMachine(lockRow(tx), id)
		if err != nil {
			return err
		}

		ledger := m.Ledger()
		completed, err := brew.Brew(req, ledger)
		brewErr = err

		if completed > 0 {
			m.Apply(ledger)
			if err := saveLevels(tx, m); err != nil {
				return err
			}
		}

		entry := model.BrewLog{
			ID:        uuid.NewString(),
			MachineID: m.ID,
			Type:      string(req.Type),
			Requested: req.Count,
			Completed: completed,
			Outcome:   brew.Code(brewErr),
		}
		var unitErr *brew.UnitError
		if errors.As(brewErr, &unitErr) {
			entry.FailedUnit = unitErr.Unit
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record brew for machine %d: %w", id, err)
		}

		result = BrewResult{
			Machine:   *m,
			Completed: completed,
			Log:       entry,
			Depleted:  completed > 0 && ledger.Depleted(),
		}
		return nil
	})
	if err != nil {
		return BrewResult{}, err
	}
	return result, brewErr
}

func (s *gormStore) RecentBrews(ctx context.Context, id int64, limit int) ([]model.BrewLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var logs []model.BrewLog
	if err := s.db.WithContext(ctx).
		Where("machine_id = ?", id).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to load brews for machine %d: %w", id, err)
	}
	return logs, nil
}

// SyncLevels applies sensor readings. Each reading is written in its own
// savepoint so one bad reading is skipped without losing the rest of the
// batch. The result lists machines that went from brewable to needing
// attention during this sync.
func (s *gormStore) SyncLevels(ctx context.Context, readings []Reading) (SyncResult, error) {
	existing, err := s.fetchAllMachines(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to fetch machines: %w", err)
	}

	owners := make(map[string]int64, len(existing))
	for id, m := range existing {
		owners[m.Name] = id
	}

	var result SyncResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range readings {
			old, exists := existing[r.ID]
			updated, unknown := applyReading(old, r)
			if len(unknown) > 0 {
				result.UnknownTypes = append(result.UnknownTypes, UnknownTypes{MachineID: r.ID, Names: unknown})
			}

			if owner, taken := owners[updated.Name]; taken && owner != r.ID {
				result.Skipped = append(result.Skipped, SkippedReading{
					MachineID: r.ID,
					Err:       fmt.Errorf("%w: name %q belongs to machine %d", ErrInvalidMachine, updated.Name, owner),
				})
				continue
			}

			if err := tx.Transaction(func(tx *gorm.DB) error {
				return syncMachine(tx, exists, &updated)
			}); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				result.Skipped = append(result.Skipped, SkippedReading{MachineID: r.ID, Err: err})
				continue
			}

			if exists && old.Name != updated.Name {
				delete(owners, old.Name)
			}
			owners[updated.Name] = r.ID
			existing[r.ID] = updated

			if exists && !old.NeedsAttention() && updated.NeedsAttention() {
				result.NeedAttention = append(result.NeedAttention, r.ID)
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}

func syncMachine(tx *gorm.DB, exists bool, m *model.Machine) error {
	if !exists {
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("failed to create machine %d: %w", m.ID, err)
		}
		return nil
	}
	if err := tx.Model(m).
		Select("Name", "Location", "Water", "Cups", "Beans", "Powered", "SupportedTypes").
		Updates(m).Error; err != nil {
		return fmt.Errorf("failed to update machine %d: %w", m.ID, err)
	}
	return nil
}

// --- Helpers ---

// lockRow makes the next read take a row lock held until the transaction
// ends, so concurrent brews and refills on one machine are serialized.
func lockRow(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func findMachine(db *gorm.DB, id int64) (*model.Machine, error) {
	var m model.Machine
	if err := db.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMachineNotFound
		}
		return nil, fmt.Errorf("failed to load machine %d: %w", id, err)
	}
	return &m, nil
}

func saveLevels(tx *gorm.DB, m *model.Machine) error {
	if err := tx.Model(m).Updates(map[string]any{
		"water": m.Water,
		"cups":  m.Cups,
		"beans": m.Beans,
	}).Error; err != nil {
		return fmt.Errorf("failed to save levels for machine %d: %w", m.ID, err)
	}
	return nil
}

func (s *gormStore) fetchAllMachines(ctx context.Context) (map[int64]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Find(&machines).Error; err != nil {
		return nil, err
	}
	machineMap := make(map[int64]model.Machine, len(machines))
	for _, m := range machines {
		machineMap[m.ID] = m
	}
	return machineMap, nil
}

// applyReading overlays r on m. Empty name, location or type list in the
// reading keep the stored values. Type names are normalized; names that are
// not coffee types are dropped and returned.
func applyReading(m model.Machine, r Reading) (model.Machine, []string) {
	m.ID = r.ID
	if r.Name != "" {
		m.Name = r.Name
	}
	if m.Name == "" {
		m.Name = fmt.Sprintf("machine-%d", r.ID)
	}
	if r.Location != "" {
		m.Location = r.Location
	}
	var unknown []string
	if len(r.Types) > 0 {
		var types []string
		seen := make(map[brew.Type]bool, len(r.Types))
		for _, raw := range r.Types {
			t, err := parse.CoffeeType(raw)
			if err != nil {
				unknown = append(unknown, raw)
				continue
			}
			if !seen[t] {
				seen[t] = true
				types = append(types, string(t))
			}
		}
		m.SupportedTypes = types
	}
	m.Water = max(r.Water, 0)
	m.Cups = max(r.Cups, 0)
	m.Beans = max(r.Beans, 0)
	m.Powered = r.Powered
	return m, unknown
}

func validateMachine(m *model.Machine) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMachine)
	}
	if m.Water < 0 || m.Cups < 0 || m.Beans < 0 {
		return fmt.Errorf("%w: levels must not be negative", ErrInvalidMachine)
	}
	for _, t := range m.SupportedTypes {
		if !brew.Type(t).Valid() {
			return fmt.Errorf("%w: unknown coffee type %q", ErrInvalidMachine, t)
		}
	}
	return nil
}
