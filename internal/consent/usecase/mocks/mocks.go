// Package mocks provides testify mocks for the registry and consent interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
)

// TestingT is the subset of testing.T the mock constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t TestingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockApplicationRepository is a mock of usecase.ApplicationRepository.
type MockApplicationRepository struct {
	mock.Mock
}

// NewMockApplicationRepository creates a mock that asserts its expectations on cleanup.
func NewMockApplicationRepository(t TestingT) *MockApplicationRepository {
	m := &MockApplicationRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockApplicationRepository) Create(ctx context.Context, app *consentDomain.Application) error {
	return m.Called(ctx, app).Error(0)
}

func (m *MockApplicationRepository) Get(ctx context.Context, id int64) (*consentDomain.Application, error) {
	args := m.Called(ctx, id)
	app, _ := args.Get(0).(*consentDomain.Application)
	return app, args.Error(1)
}

func (m *MockApplicationRepository) GetByName(ctx context.Context, name string) (*consentDomain.Application, error) {
	args := m.Called(ctx, name)
	app, _ := args.Get(0).(*consentDomain.Application)
	return app, args.Error(1)
}

func (m *MockApplicationRepository) List(ctx context.Context) ([]*consentDomain.Application, error) {
	args := m.Called(ctx)
	apps, _ := args.Get(0).([]*consentDomain.Application)
	return apps, args.Error(1)
}

func (m *MockApplicationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockCapabilityRepository is a mock of usecase.CapabilityRepository.
type MockCapabilityRepository struct {
	mock.Mock
}

// NewMockCapabilityRepository creates a mock that asserts its expectations on cleanup.
func NewMockCapabilityRepository(t TestingT) *MockCapabilityRepository {
	m := &MockCapabilityRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockCapabilityRepository) Add(ctx context.Context, applicationID int64, name string) (bool, error) {
	args := m.Called(ctx, applicationID, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockCapabilityRepository) Remove(ctx context.Context, applicationID int64, name string) (bool, error) {
	args := m.Called(ctx, applicationID, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockCapabilityRepository) List(ctx context.Context, applicationID int64) ([]string, error) {
	args := m.Called(ctx, applicationID)
	capabilities, _ := args.Get(0).([]string)
	return capabilities, args.Error(1)
}

func (m *MockCapabilityRepository) ListForShare(ctx context.Context, applicationID int64) ([]string, error) {
	args := m.Called(ctx, applicationID)
	capabilities, _ := args.Get(0).([]string)
	return capabilities, args.Error(1)
}

// MockConsentRepository is a mock of usecase.ConsentRepository.
type MockConsentRepository struct {
	mock.Mock
}

// NewMockConsentRepository creates a mock that asserts its expectations on cleanup.
func NewMockConsentRepository(t TestingT) *MockConsentRepository {
	m := &MockConsentRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockConsentRepository) Grant(
	ctx context.Context,
	userID string,
	requestingAppID, destinationAppID int64,
	capability string,
) (bool, error) {
	args := m.Called(ctx, userID, requestingAppID, destinationAppID, capability)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsentRepository) Check(
	ctx context.Context,
	userID string,
	requestingAppID, destinationAppID int64,
	capabilities []string,
) (map[string]bool, error) {
	args := m.Called(ctx, userID, requestingAppID, destinationAppID, capabilities)
	granted, _ := args.Get(0).(map[string]bool)
	return granted, args.Error(1)
}

func (m *MockConsentRepository) Revoke(
	ctx context.Context,
	userID string,
	requestingAppID, destinationAppID int64,
	capability string,
) (bool, error) {
	args := m.Called(ctx, userID, requestingAppID, destinationAppID, capability)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsentRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConsentRepository) RevokeAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConsentRepository) ListForUser(ctx context.Context, userID string) ([]*consentDomain.Consent, error) {
	args := m.Called(ctx, userID)
	consents, _ := args.Get(0).([]*consentDomain.Consent)
	return consents, args.Error(1)
}

// MockApplicationUseCase is a mock of usecase.ApplicationUseCase.
type MockApplicationUseCase struct {
	mock.Mock
}

// NewMockApplicationUseCase creates a mock that asserts its expectations on cleanup.
func NewMockApplicationUseCase(t TestingT) *MockApplicationUseCase {
	m := &MockApplicationUseCase{}
	register(&m.Mock, t)
	return m
}

func (m *MockApplicationUseCase) Create(ctx context.Context, name string) (*consentDomain.Application, error) {
	args := m.Called(ctx, name)
	app, _ := args.Get(0).(*consentDomain.Application)
	return app, args.Error(1)
}

func (m *MockApplicationUseCase) Get(ctx context.Context, id int64) (*consentDomain.ApplicationDetail, error) {
	args := m.Called(ctx, id)
	detail, _ := args.Get(0).(*consentDomain.ApplicationDetail)
	return detail, args.Error(1)
}

func (m *MockApplicationUseCase) GetByName(
	ctx context.Context,
	name string,
) (*consentDomain.ApplicationDetail, error) {
	args := m.Called(ctx, name)
	detail, _ := args.Get(0).(*consentDomain.ApplicationDetail)
	return detail, args.Error(1)
}

func (m *MockApplicationUseCase) List(ctx context.Context) ([]*consentDomain.Application, error) {
	args := m.Called(ctx)
	apps, _ := args.Get(0).([]*consentDomain.Application)
	return apps, args.Error(1)
}

func (m *MockApplicationUseCase) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockApplicationUseCase) AddCapability(ctx context.Context, applicationID int64, name string) (bool, error) {
	args := m.Called(ctx, applicationID, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockApplicationUseCase) RemoveCapability(ctx context.Context, applicationID int64, name string) error {
	return m.Called(ctx, applicationID, name).Error(0)
}

func (m *MockApplicationUseCase) ListCapabilities(ctx context.Context, applicationID int64) ([]string, error) {
	args := m.Called(ctx, applicationID)
	capabilities, _ := args.Get(0).([]string)
	return capabilities, args.Error(1)
}

func (m *MockApplicationUseCase) Sync(
	ctx context.Context,
	name string,
	capabilities []string,
) (*consentDomain.SyncResult, error) {
	args := m.Called(ctx, name, capabilities)
	result, _ := args.Get(0).(*consentDomain.SyncResult)
	return result, args.Error(1)
}

// MockConsentUseCase is a mock of usecase.ConsentUseCase.
type MockConsentUseCase struct {
	mock.Mock
}

// NewMockConsentUseCase creates a mock that asserts its expectations on cleanup.
func NewMockConsentUseCase(t TestingT) *MockConsentUseCase {
	m := &MockConsentUseCase{}
	register(&m.Mock, t)
	return m
}

func (m *MockConsentUseCase) Grant(ctx context.Context, input consentDomain.GrantConsentInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockConsentUseCase) Check(
	ctx context.Context,
	input consentDomain.CheckConsentInput,
) (*consentDomain.ConsentCheck, error) {
	args := m.Called(ctx, input)
	check, _ := args.Get(0).(*consentDomain.ConsentCheck)
	return check, args.Error(1)
}

func (m *MockConsentUseCase) Revoke(ctx context.Context, input consentDomain.RevokeConsentInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockConsentUseCase) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConsentUseCase) RevokeAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConsentUseCase) ListForUser(ctx context.Context, userID string) ([]*consentDomain.Consent, error) {
	args := m.Called(ctx, userID)
	consents, _ := args.Get(0).([]*consentDomain.Consent)
	return consents, args.Error(1)
}
