// Package mocks provides testify mocks for the delegation collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
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

// MockConsentClient is a mock of usecase.ConsentClient.
type MockConsentClient struct {
	mock.Mock
}

// NewMockConsentClient creates a mock that asserts its expectations on cleanup.
func NewMockConsentClient(t TestingT) *MockConsentClient {
	m := &MockConsentClient{}
	register(&m.Mock, t)
	return m
}

func (m *MockConsentClient) Check(
	ctx context.Context,
	input consentDomain.CheckConsentInput,
) (*consentDomain.ConsentCheck, error) {
	args := m.Called(ctx, input)
	check, _ := args.Get(0).(*consentDomain.ConsentCheck)
	return check, args.Error(1)
}

func (m *MockConsentClient) Grant(ctx context.Context, input consentDomain.GrantConsentInput) error {
	return m.Called(ctx, input).Error(0)
}

// MockManifestSource is a mock of usecase.ManifestSource.
type MockManifestSource struct {
	mock.Mock
}

// NewMockManifestSource creates a mock that asserts its expectations on cleanup.
func NewMockManifestSource(t TestingT) *MockManifestSource {
	m := &MockManifestSource{}
	register(&m.Mock, t)
	return m
}

func (m *MockManifestSource) Fetch(ctx context.Context, url string) (*manifestDomain.Manifest, error) {
	args := m.Called(ctx, url)
	manifest, _ := args.Get(0).(*manifestDomain.Manifest)
	return manifest, args.Error(1)
}

// MockTokenExchanger is a mock of usecase.TokenExchanger.
type MockTokenExchanger struct {
	mock.Mock
}

// NewMockTokenExchanger creates a mock that asserts its expectations on cleanup.
func NewMockTokenExchanger(t TestingT) *MockTokenExchanger {
	m := &MockTokenExchanger{}
	register(&m.Mock, t)
	return m
}

func (m *MockTokenExchanger) Exchange(ctx context.Context, subjectToken, audience string) (string, error) {
	args := m.Called(ctx, subjectToken, audience)
	return args.String(0), args.Error(1)
}

// MockForwarder is a mock of usecase.Forwarder.
type MockForwarder struct {
	mock.Mock
}

// NewMockForwarder creates a mock that asserts its expectations on cleanup.
func NewMockForwarder(t TestingT) *MockForwarder {
	m := &MockForwarder{}
	register(&m.Mock, t)
	return m
}

func (m *MockForwarder) Forward(
	ctx context.Context,
	req *delegationDomain.ForwardRequest,
) (*delegationDomain.ForwardResponse, error) {
	args := m.Called(ctx, req)
	response, _ := args.Get(0).(*delegationDomain.ForwardResponse)
	return response, args.Error(1)
}

// MockStateStore is a mock of usecase.StateStore.
type MockStateStore struct {
	mock.Mock
}

// NewMockStateStore creates a mock that asserts its expectations on cleanup.
func NewMockStateStore(t TestingT) *MockStateStore {
	m := &MockStateStore{}
	register(&m.Mock, t)
	return m
}

func (m *MockStateStore) Save(ctx context.Context, pending *delegationDomain.PendingConsent) error {
	return m.Called(ctx, pending).Error(0)
}

func (m *MockStateStore) Peek(ctx context.Context, state string) (*delegationDomain.PendingConsent, error) {
	args := m.Called(ctx, state)
	pending, _ := args.Get(0).(*delegationDomain.PendingConsent)
	return pending, args.Error(1)
}

func (m *MockStateStore) Consume(ctx context.Context, state string) (*delegationDomain.PendingConsent, error) {
	args := m.Called(ctx, state)
	pending, _ := args.Get(0).(*delegationDomain.PendingConsent)
	return pending, args.Error(1)
}

// MockDelegationUseCase is a mock of usecase.DelegationUseCase.
type MockDelegationUseCase struct {
	mock.Mock
}

// NewMockDelegationUseCase creates a mock that asserts its expectations on cleanup.
func NewMockDelegationUseCase(t TestingT) *MockDelegationUseCase {
	m := &MockDelegationUseCase{}
	register(&m.Mock, t)
	return m
}

func (m *MockDelegationUseCase) Delegate(
	ctx context.Context,
	input *delegationDomain.DelegateInput,
) (*delegationDomain.Result, error) {
	args := m.Called(ctx, input)
	result, _ := args.Get(0).(*delegationDomain.Result)
	return result, args.Error(1)
}

func (m *MockDelegationUseCase) RecordDecision(
	ctx context.Context,
	input delegationDomain.DecisionInput,
) (*delegationDomain.DecisionOutcome, error) {
	args := m.Called(ctx, input)
	outcome, _ := args.Get(0).(*delegationDomain.DecisionOutcome)
	return outcome, args.Error(1)
}
