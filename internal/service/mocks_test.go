package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/repository"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

var (
	asAdmin        = models.Identity{ID: 1, Username: "admin", Role: models.RoleAdmin}
	asTeacher      = models.Identity{ID: 2, Username: "teacher1", Role: models.RoleTeacher}
	asOtherTeacher = models.Identity{ID: 5, Username: "teacher2", Role: models.RoleTeacher}
	asStudent      = models.Identity{ID: 3, Username: "s1", Role: models.RoleStudent}
)

type mockUserRepo struct {
	users     map[int64]*models.User
	nextID    int64
	createErr error
	updateErr error
	deleteErr error
	deleted   []int64
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[int64]*models.User), nextID: 100}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var users []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Search != "" && !strings.Contains(u.Username, filter.Search) {
			continue
		}
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	user.ID = m.nextID
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockGroupRepo struct {
	groups  map[int64]*models.Group
	members map[[2]int64]bool
	deleted []int64
}

func newMockGroupRepo(groups ...models.Group) *mockGroupRepo {
	m := &mockGroupRepo{groups: make(map[int64]*models.Group), members: make(map[[2]int64]bool)}
	for i := range groups {
		g := groups[i]
		m.groups[g.ID] = &g
	}
	return m
}

func (m *mockGroupRepo) Create(ctx context.Context, group *models.Group) error {
	for _, g := range m.groups {
		if g.Name == group.Name {
			return repository.ErrDuplicate
		}
	}
	group.ID = int64(len(m.groups) + 1)
	copy := *group
	m.groups[group.ID] = &copy
	return nil
}

func (m *mockGroupRepo) FindByID(ctx context.Context, id int64) (*models.Group, error) {
	if g, ok := m.groups[id]; ok {
		copy := *g
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGroupRepo) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	for _, g := range m.groups {
		groups = append(groups, *g)
	}
	return groups, nil
}

func (m *mockGroupRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.groups[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.groups, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockGroupRepo) AddMember(ctx context.Context, membership *models.Membership) error {
	key := [2]int64{membership.UserID, membership.GroupID}
	if m.members[key] {
		return repository.ErrDuplicate
	}
	m.members[key] = true
	return nil
}

func (m *mockGroupRepo) RemoveMember(ctx context.Context, userID, groupID int64) error {
	key := [2]int64{userID, groupID}
	if !m.members[key] {
		return sql.ErrNoRows
	}
	delete(m.members, key)
	return nil
}

func (m *mockGroupRepo) ListMembers(ctx context.Context, groupID int64) ([]models.MembershipView, error) {
	var views []models.MembershipView
	for key := range m.members {
		if groupID == 0 || key[1] == groupID {
			views = append(views, models.MembershipView{UserID: key[0], GroupID: key[1]})
		}
	}
	return views, nil
}

type mockSessionRepo struct {
	sessions  map[int64]*models.Session
	views     []models.SessionView
	createErr error
	lastScope models.SessionFilter
	lastOrder models.SortOrder
	deleted   []int64
}

func newMockSessionRepo(sessions ...models.Session) *mockSessionRepo {
	m := &mockSessionRepo{sessions: make(map[int64]*models.Session)}
	for i := range sessions {
		s := sessions[i]
		m.sessions[s.ID] = &s
	}
	return m
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.createErr != nil {
		return m.createErr
	}
	session.ID = int64(len(m.sessions) + 1)
	copy := *session
	m.sessions[session.ID] = &copy
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id int64) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sessions, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSessionRepo) ListSessions(ctx context.Context, filter models.SessionFilter, order models.SortOrder) ([]models.SessionView, error) {
	m.lastScope = filter
	m.lastOrder = order
	return m.views, nil
}

// mockAttendanceRepo emulates the transactional upsert including the session check.
type mockAttendanceRepo struct {
	sessions *mockSessionRepo
	members  map[[2]int64]bool
	records  map[[2]int64]models.AttendanceRecord
	failFor  map[int64]error
}

func newMockAttendanceRepo(sessions *mockSessionRepo, members ...[2]int64) *mockAttendanceRepo {
	m := &mockAttendanceRepo{
		sessions: sessions,
		members:  make(map[[2]int64]bool),
		records:  make(map[[2]int64]models.AttendanceRecord),
		failFor:  make(map[int64]error),
	}
	for _, pair := range members {
		m.members[pair] = true
	}
	return m
}

func (m *mockAttendanceRepo) Mark(ctx context.Context, scheduleID, studentID int64, status models.AttendanceStatus, check repository.SessionCheck) (*models.AttendanceRecord, error) {
	session, err := m.sessions.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(session); err != nil {
			return nil, err
		}
	}
	if err := m.failFor[studentID]; err != nil {
		return nil, err
	}
	if !m.members[[2]int64{studentID, session.GroupID}] {
		return nil, repository.ErrNotMember
	}
	key := [2]int64{scheduleID, studentID}
	record, ok := m.records[key]
	if !ok {
		record = models.AttendanceRecord{ID: int64(len(m.records) + 1), ScheduleID: scheduleID, StudentID: studentID}
	}
	now := time.Now().UTC()
	record.Status = status
	record.MarkedAt = &now
	m.records[key] = record
	return &record, nil
}

func (m *mockAttendanceRepo) Roster(ctx context.Context, session *models.Session) ([]models.RosterEntry, error) {
	var entries []models.RosterEntry
	for pair := range m.members {
		if pair[1] != session.GroupID {
			continue
		}
		status := models.AttendanceStatusUnmarked
		if record, ok := m.records[[2]int64{session.ID, pair[0]}]; ok {
			status = record.Status
		}
		entries = append(entries, models.RosterEntry{StudentID: pair[0], Status: status})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StudentID < entries[j].StudentID })
	return entries, nil
}

type mockReportRepo struct {
	rows        []models.ReportRow
	history     []models.HistoryRow
	summaries   []models.AttendanceSummary
	reportCalls int
	lastFilter  models.ReportFilter
	lastOrder   models.SortOrder
	historyFor  int64
}

func (m *mockReportRepo) Report(ctx context.Context, filter models.ReportFilter, order models.SortOrder) ([]models.ReportRow, error) {
	m.reportCalls++
	m.lastFilter = filter
	m.lastOrder = order
	return m.rows, nil
}

func (m *mockReportRepo) History(ctx context.Context, studentID int64, order models.SortOrder) ([]models.HistoryRow, error) {
	m.historyFor = studentID
	m.lastOrder = order
	return m.history, nil
}

func (m *mockReportRepo) Summary(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceSummary, error) {
	m.lastFilter = filter
	out := make([]models.AttendanceSummary, len(m.summaries))
	copy(out, m.summaries)
	return out, nil
}

// memoryCache stores JSON payloads like the redis-backed repository does.
type memoryCache struct {
	items       map[string][]byte
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	m.invalidated++
	removed := 0
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
			removed++
		}
	}
	return removed, nil
}

type memoryStorage struct {
	files map[string][]byte
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = data
	return "out/" + filename, nil
}
