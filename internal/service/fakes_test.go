package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	mailer "lms_backend/pkg/mail"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// fakeUserStore 内存版 UserStore
type fakeUserStore struct {
	mu        sync.Mutex
	nextID    uint
	users     map[uint]*model.User
	passwords []model.UserPassword
	roles     map[model.RoleName]model.Role
}

func newFakeUserStore() *fakeUserStore {
	s := &fakeUserStore{
		users: map[uint]*model.User{},
		roles: map[model.RoleName]model.Role{},
	}
	for i, name := range model.AllRoles {
		s.roles[name] = model.Role{ID: uint(i + 1), Name: name}
	}
	return s
}

func (s *fakeUserStore) addUser(name, email, password string, active bool, roles ...model.RoleName) *model.User {
	u := &model.User{Name: name, Email: email, IsActive: active}
	for _, r := range roles {
		u.Roles = append(u.Roles, s.roles[r])
	}
	hash, err := hashPassword(password)
	if err != nil {
		panic(err)
	}
	if err := s.CreateWithPassword(u, hash); err != nil {
		panic(err)
	}
	return u
}

func (s *fakeUserStore) CreateWithPassword(user *model.User, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextID++
	user.ID = s.nextID
	cp := *user
	s.users[user.ID] = &cp
	s.passwords = append(s.passwords, model.UserPassword{
		ID:        uint(len(s.passwords) + 1),
		UserID:    user.ID,
		Hash:      hash,
		IsCurrent: model.CurrentFlag(),
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *fakeUserStore) FindByID(id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) FindByEmail(email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeUserStore) EmailExists(email string) (bool, error) {
	_, err := s.FindByEmail(email)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *fakeUserStore) List(page, size int, filter repository.UserFilter) ([]model.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, *u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, int64(len(list)), nil
}

func (s *fakeUserStore) Update(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *fakeUserStore) ReplaceRoles(user *model.User, roles []model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID].Roles = roles
	return nil
}

func (s *fakeUserStore) Delete(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) SetActive(id uint, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.IsActive = active
	return nil
}

func (s *fakeUserStore) UpdateLastLogin(id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (s *fakeUserStore) FindRoles(names []model.RoleName) ([]model.Role, error) {
	var roles []model.Role
	for _, n := range names {
		if r, ok := s.roles[n]; ok {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (s *fakeUserStore) CurrentPassword(userID uint) (*model.UserPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.passwords) - 1; i >= 0; i-- {
		p := s.passwords[i]
		if p.UserID == userID && p.IsCurrent != nil {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeUserStore) RecentPasswords(userID uint, n int) ([]model.UserPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.UserPassword
	for i := len(s.passwords) - 1; i >= 0 && len(out) < n; i-- {
		if s.passwords[i].UserID == userID {
			out = append(out, s.passwords[i])
		}
	}
	return out, nil
}

func (s *fakeUserStore) SetPassword(userID uint, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.passwords {
		if s.passwords[i].UserID == userID {
			s.passwords[i].IsCurrent = nil
		}
	}
	s.passwords = append(s.passwords, model.UserPassword{
		ID:        uint(len(s.passwords) + 1),
		UserID:    userID,
		Hash:      hash,
		IsCurrent: model.CurrentFlag(),
		CreatedAt: time.Now(),
	})
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Send(msg mailer.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
}
