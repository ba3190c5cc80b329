// Package memstore is an in-memory store.Store used by tests and the memory driver.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"tasktrail/internal/domain"
	"tasktrail/internal/store"
)

// Store keeps every collection in maps guarded by a single lock.
type Store struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
	tasks    map[string]domain.Task
	users    map[string]domain.User
	activity []domain.ActivityLogEntry

	// FailActivity, when set, is returned by AppendActivity.
	FailActivity error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		projects: make(map[string]domain.Project),
		tasks:    make(map[string]domain.Task),
		users:    make(map[string]domain.User),
	}
}

func (m *Store) Close() error { return nil }

func (m *Store) InsertProject(ctx context.Context, p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return store.ErrConflict
	}
	m.projects[p.ID] = p.Clone()
	return nil
}

func (m *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Store) ListProjects(ctx context.Context, f domain.ProjectFilter) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := m.matchProjects(f)
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *Store) matchProjects(f domain.ProjectFilter) []domain.Project {
	var res []domain.Project
	for _, p := range m.projects {
		if f.Member != "" && !lo.Contains(p.AssignedUsers, f.Member) {
			continue
		}
		res = append(res, p.Clone())
	}
	return res
}

func (m *Store) UpdateProject(ctx context.Context, p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return store.ErrNotFound
	}
	m.projects[p.ID] = p.Clone()
	return nil
}

func (m *Store) DeleteProject(ctx context.Context, id string) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, store.ErrNotFound
	}
	delete(m.projects, id)
	return p, nil
}

func (m *Store) AddProjectMembers(ctx context.Context, id string, userIDs []string, at time.Time) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, store.ErrNotFound
	}
	p = p.Clone()
	p.AssignedUsers = lo.Uniq(append(p.AssignedUsers, userIDs...))
	p.UpdatedAt = domain.Later(p.UpdatedAt, at)
	m.projects[id] = p
	return p.Clone(), nil
}

func (m *Store) CountProjectsByStatus(ctx context.Context, f domain.ProjectFilter) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int{}
	for _, p := range m.matchProjects(f) {
		counts[string(p.Status)]++
	}
	return counts, nil
}

func (m *Store) InsertTask(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; ok {
		return store.ErrConflict
	}
	m.tasks[t.ID] = t.Clone()
	return nil
}

func (m *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (m *Store) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := m.matchTasks(f)
	SortTasks(res, f.Sort)
	return res, nil
}

func (m *Store) matchTasks(f domain.TaskFilter) []domain.Task {
	var res []domain.Task
	for _, t := range m.tasks {
		if MatchTask(t, f) {
			res = append(res, t.Clone())
		}
	}
	return res
}

// MatchTask reports whether t satisfies every constraint in f.
func MatchTask(t domain.Task, f domain.TaskFilter) bool {
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.DueBefore != nil && (t.DueDate == nil || t.DueDate.After(*f.DueBefore)) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) && !strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// SortTasks orders tasks by s, breaking ties by id in the same direction.
func SortTasks(tasks []domain.Task, s domain.Sort) {
	sort.SliceStable(tasks, func(i, j int) bool {
		c := compareTaskField(tasks[i], tasks[j], s.Field)
		if c == 0 {
			c = strings.Compare(tasks[i].ID, tasks[j].ID)
		}
		if s.Order == domain.Descending {
			return c > 0
		}
		return c < 0
	})
}

func compareTaskField(a, b domain.Task, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "priority":
		return strings.Compare(string(a.Priority), string(b.Priority))
	case "dueDate":
		return compareTimePtr(a.DueDate, b.DueDate)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// compareTimePtr orders missing values first, as document stores do.
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (m *Store) UpdateTask(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return store.ErrNotFound
	}
	m.tasks[t.ID] = t.Clone()
	return nil
}

func (m *Store) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, store.ErrNotFound
	}
	delete(m.tasks, id)
	return t, nil
}

func (m *Store) SetTaskAssignee(ctx context.Context, id, userID string, at time.Time) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, store.ErrNotFound
	}
	t = t.Clone()
	t.AssignedTo = userID
	t.UpdatedAt = domain.Later(t.UpdatedAt, at)
	m.tasks[id] = t
	return t.Clone(), nil
}

func (m *Store) CountTasksBy(ctx context.Context, f domain.TaskFilter, field string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int{}
	for _, t := range m.matchTasks(f) {
		switch field {
		case "priority":
			counts[string(t.Priority)]++
		default:
			counts[string(t.Status)]++
		}
	}
	return counts, nil
}

func (m *Store) AppendActivity(ctx context.Context, e domain.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailActivity != nil {
		return m.FailActivity
	}
	m.activity = append(m.activity, e.Clone())
	return nil
}

func (m *Store) ListActivity(ctx context.Context, f domain.ActivityFilter) ([]domain.ActivityLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.ActivityLogEntry
	for i := len(m.activity) - 1; i >= 0; i-- {
		e := m.activity[i]
		if f.User != "" && e.User != f.User {
			continue
		}
		res = append(res, e.Clone())
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (m *Store) InsertUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := domain.NormalizeEmail(u.Email)
	for _, existing := range m.users {
		if domain.NormalizeEmail(existing.Email) == email {
			return store.ErrConflict
		}
	}
	if _, ok := m.users[u.ID]; ok {
		return store.ErrConflict
	}
	u.Email = email
	m.users[u.ID] = u
	return nil
}

func (m *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = domain.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (m *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := lo.Values(m.users)
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *Store) GetUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.User
	for _, id := range lo.Uniq(ids) {
		if u, ok := m.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}
