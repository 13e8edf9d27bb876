package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"thumbexpert/internal/model"
)

type account struct {
	user      model.User
	history   []model.HistoryItem
	favorites []string
	brandKit  *model.BrandKit
}

type MemoryOptions struct {
	MaxHistory int
}

// Memory keeps everything in process. It is used in tests and for local runs without a database.
type Memory struct {
	mu         sync.Mutex
	accounts   map[string]*account
	byEmail    map[string]string
	maxHistory int
}

var _ Store = (*Memory)(nil)

func NewMemory(opts MemoryOptions) *Memory {
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = model.MaxHistory
	}

	return &Memory{
		accounts:   make(map[string]*account),
		byEmail:    make(map[string]string),
		maxHistory: maxHistory,
	}
}

func (m *Memory) CreateUser(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := emailKey(u.Email)
	if _, ok := m.byEmail[key]; ok {
		return model.User{}, ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Plan == "" {
		u.Plan = model.PlanFree
	}

	m.accounts[u.ID] = &account{user: u}
	m.byEmail[key] = u.ID
	return u, nil
}

func (m *Memory) UserByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return acc.user, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[emailKey(email)]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return m.accounts[id].user, nil
}

func (m *Memory) UpdateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[u.ID]
	if !ok {
		return ErrNotFound
	}

	oldKey, newKey := emailKey(acc.user.Email), emailKey(u.Email)
	if oldKey != newKey {
		if _, taken := m.byEmail[newKey]; taken {
			return ErrEmailTaken
		}
		delete(m.byEmail, oldKey)
		m.byEmail[newKey] = u.ID
	}
	acc.user = u
	return nil
}

func (m *Memory) History(_ context.Context, userID string) ([]model.HistoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.accountLocked(userID)
	if err != nil {
		return nil, err
	}
	return model.CloneHistory(acc.history), nil
}

func (m *Memory) SaveHistory(_ context.Context, userID string, items []model.HistoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.accountLocked(userID)
	if err != nil {
		return err
	}
	acc.history = model.CapHistory(model.CloneHistory(items), m.maxHistory)
	return nil
}

func (m *Memory) Favorites(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.accountLocked(userID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(acc.favorites), nil
}

func (m *Memory) SaveFavorites(_ context.Context, userID string, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.accountLocked(userID)
	if err != nil {
		return err
	}
	acc.favorites = slices.Clone(urls)
	return nil
}

func (m *Memory) BrandKit(_ context.Context, userID string) (*model.BrandKit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.accountLocked(userID)
	if err != nil {
		return nil, err
	}
	if acc.brandKit == nil {
		return nil, nil
	}
	kit := *acc.brandKit
	return &kit, nil
}

func (m *Memory) SaveBrandKit(_ context.Context, userID string, kit model.BrandKit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.accountLocked(userID)
	if err != nil {
		return err
	}
	acc.brandKit = &kit
	return nil
}

func (m *Memory) accountLocked(userID string) (*account, error) {
	acc, ok := m.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return acc, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
