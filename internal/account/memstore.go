package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memTeacher struct {
	Teacher
	cred Credentials
}

type memToken struct {
	teacherID string
	expiresAt time.Time
	revoked   bool
}

// MemoryStore keeps profiles in process memory for STORE_BACKEND=memory and tests.
type MemoryStore struct {
	mu       sync.Mutex
	teachers map[string]memTeacher
	tokens   map[string]memToken
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		teachers: make(map[string]memTeacher),
		tokens:   make(map[string]memToken),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateTeacher(_ context.Context, t Teacher, cred Credentials) (Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.teachers {
		if existing.Email == t.Email || (cred.GoogleSub != "" && existing.cred.GoogleSub == cred.GoogleSub) {
			return Teacher{}, ErrEmailInUse
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, taken := m.teachers[t.ID]; taken {
		return Teacher{}, ErrEmailInUse
	}
	t.CreatedAt = m.now().UTC()
	m.teachers[t.ID] = memTeacher{Teacher: t, cred: cred}
	return t, nil
}

func (m *MemoryStore) GetTeacher(_ context.Context, id string) (Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teachers[id]
	if !ok {
		return Teacher{}, ErrNotFound
	}
	return t.Teacher, nil
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (Teacher, Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teachers {
		if t.Email == email {
			return t.Teacher, t.cred, nil
		}
	}
	return Teacher{}, Credentials{}, ErrNotFound
}

func (m *MemoryStore) FindByGoogleSub(_ context.Context, sub string) (Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teachers {
		if t.cred.GoogleSub == sub {
			return t.Teacher, nil
		}
	}
	return Teacher{}, ErrNotFound
}

func (m *MemoryStore) LinkGoogle(_ context.Context, id, sub string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teachers[id]
	if !ok {
		return ErrNotFound
	}
	t.cred.GoogleSub = sub
	m.teachers[id] = t
	return nil
}

func (m *MemoryStore) UpdateTeacher(_ context.Context, t Teacher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.teachers[t.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range m.teachers {
		if id != t.ID && other.Email == t.Email {
			return ErrEmailInUse
		}
	}
	cur.Name, cur.Email, cur.PhotoURL = t.Name, t.Email, t.PhotoURL
	m.teachers[t.ID] = cur
	return nil
}

func (m *MemoryStore) SaveRefreshToken(_ context.Context, teacherID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = memToken{teacherID: teacherID, expiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) ConsumeRefreshToken(_ context.Context, token string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[token]
	if !ok || tok.revoked || !tok.expiresAt.After(now) {
		return "", ErrSessionExpired
	}
	tok.revoked = true
	m.tokens[token] = tok
	return tok.teacherID, nil
}

func (m *MemoryStore) RevokeRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.tokens[token]; ok {
		tok.revoked = true
		m.tokens[token] = tok
	}
	return nil
}
