package mocks

import (
	"context"
	"sync"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of ports.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockTaskRepository is a mock implementation of ports.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{}
}

func (m *MockTaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, *domain.Task) *domain.Task); ok {
		return fn(ctx, task), args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) ListByTeam(ctx context.Context, teamID string) ([]*domain.Task, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, *domain.Task) *domain.Task); ok {
		return fn(ctx, task), args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockEpicRepository is a mock implementation of ports.EpicRepository
type MockEpicRepository struct {
	mock.Mock
}

func NewMockEpicRepository() *MockEpicRepository {
	return &MockEpicRepository{}
}

func (m *MockEpicRepository) GetByID(ctx context.Context, id string) (*domain.Epic, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Epic), args.Error(1)
}

func (m *MockEpicRepository) Update(ctx context.Context, epic *domain.Epic) (*domain.Epic, error) {
	args := m.Called(ctx, epic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, *domain.Epic) *domain.Epic); ok {
		return fn(ctx, epic), args.Error(1)
	}
	return args.Get(0).(*domain.Epic), args.Error(1)
}

// MockMembershipRepository is a mock implementation of ports.MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

func NewMockMembershipRepository() *MockMembershipRepository {
	return &MockMembershipRepository{}
}

func (m *MockMembershipRepository) IsTeamMember(ctx context.Context, userID, teamID string) (bool, error) {
	args := m.Called(ctx, userID, teamID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) IsOrganizationMember(ctx context.Context, userID, orgID string) (bool, error) {
	args := m.Called(ctx, userID, orgID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) GetTeamOrganization(ctx context.Context, teamID string) (string, error) {
	args := m.Called(ctx, teamID)
	return args.String(0), args.Error(1)
}

// MockMembershipService is a mock implementation of ports.MembershipService
type MockMembershipService struct {
	mock.Mock
}

func NewMockMembershipService() *MockMembershipService {
	return &MockMembershipService{}
}

func (m *MockMembershipService) CanAccessTeam(ctx context.Context, userID, teamID string) (bool, error) {
	args := m.Called(ctx, userID, teamID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipService) CanAccessOrganization(ctx context.Context, userID, orgID string) (bool, error) {
	args := m.Called(ctx, userID, orgID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipService) TeamOrganization(ctx context.Context, teamID string) (string, error) {
	args := m.Called(ctx, teamID)
	return args.String(0), args.Error(1)
}

func (m *MockMembershipService) CanJoinRoom(ctx context.Context, userID, room string) (bool, error) {
	args := m.Called(ctx, userID, room)
	return args.Bool(0), args.Error(1)
}

// MockAuthService is a mock implementation of ports.AuthService
type MockAuthService struct {
	mock.Mock
}

func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockTaskService is a mock implementation of ports.TaskService
type MockTaskService struct {
	mock.Mock
}

func NewMockTaskService() *MockTaskService {
	return &MockTaskService{}
}

func (m *MockTaskService) CreateTask(ctx context.Context, params ports.CreateTaskParams) (*domain.Task, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskService) GetTask(ctx context.Context, taskID, viewerID string) (*domain.Task, error) {
	args := m.Called(ctx, taskID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskService) ListTeamTasks(ctx context.Context, teamID, viewerID string) ([]*domain.Task, error) {
	args := m.Called(ctx, teamID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Task), args.Error(1)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, params ports.UpdateTaskParams) (*domain.Task, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, taskID, actorID string) error {
	args := m.Called(ctx, taskID, actorID)
	return args.Error(0)
}

// MockEpicService is a mock implementation of ports.EpicService
type MockEpicService struct {
	mock.Mock
}

func NewMockEpicService() *MockEpicService {
	return &MockEpicService{}
}

func (m *MockEpicService) GetEpic(ctx context.Context, epicID, viewerID string) (*domain.Epic, error) {
	args := m.Called(ctx, epicID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Epic), args.Error(1)
}

func (m *MockEpicService) UpdateEpic(ctx context.Context, params ports.UpdateEpicParams) (*domain.Epic, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Epic), args.Error(1)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) TaskUpdated(ctx context.Context, teamID, orgID string, payload domain.TaskUpdatedPayload) {
	m.Called(ctx, teamID, orgID, payload)
}

func (m *MockEventPublisher) TaskCreated(ctx context.Context, teamID, orgID string, payload domain.TaskCreatedPayload) {
	m.Called(ctx, teamID, orgID, payload)
}

func (m *MockEventPublisher) TaskDeleted(ctx context.Context, teamID, orgID string, payload domain.TaskDeletedPayload) {
	m.Called(ctx, teamID, orgID, payload)
}

func (m *MockEventPublisher) EpicUpdated(ctx context.Context, orgID string, payload domain.EpicUpdatedPayload) {
	m.Called(ctx, orgID, payload)
}

// RecordingBus is an in-memory ports.EventBus that keeps every published envelope.
type RecordingBus struct {
	mu          sync.Mutex
	Envelopes   []domain.Envelope
	Err         error
	subscribers []func(domain.Envelope)
}

func NewRecordingBus() *RecordingBus {
	return &RecordingBus{}
}

func (b *RecordingBus) Publish(_ context.Context, env domain.Envelope) error {
	b.mu.Lock()
	b.Envelopes = append(b.Envelopes, env)
	err := b.Err
	subs := append([]func(domain.Envelope){}, b.subscribers...)
	b.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range subs {
		fn(env)
	}
	return nil
}

func (b *RecordingBus) Subscribe(fn func(domain.Envelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Published returns a copy of the envelopes seen so far.
func (b *RecordingBus) Published() []domain.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Envelope(nil), b.Envelopes...)
}

var (
	_ ports.UserRepository       = (*MockUserRepository)(nil)
	_ ports.TaskRepository       = (*MockTaskRepository)(nil)
	_ ports.EpicRepository       = (*MockEpicRepository)(nil)
	_ ports.MembershipRepository = (*MockMembershipRepository)(nil)
	_ ports.MembershipService    = (*MockMembershipService)(nil)
	_ ports.AuthService          = (*MockAuthService)(nil)
	_ ports.TaskService          = (*MockTaskService)(nil)
	_ ports.EpicService          = (*MockEpicService)(nil)
	_ ports.EventPublisher       = (*MockEventPublisher)(nil)
	_ ports.EventBus             = (*RecordingBus)(nil)
)
