package auth_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auth "github.com/goliatone/go-auth-service"
)

// MockUserStore mocks the narrow user surface the state machine consumes.
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) MarkEmailVerified(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMailer records delivered codes instead of talking SMTP.
type MockMailer struct {
	mock.Mock
	SentCodes []string
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, user *auth.User, code string) error {
	args := m.Called(ctx, user, code)
	if args.Error(0) == nil {
		m.SentCodes = append(m.SentCodes, code)
	}
	return args.Error(0)
}

// MockAuthAPI mocks the account operations behind the HTTP controller.
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Register(ctx context.Context, msg auth.RegisterUserMessage) (*auth.User, error) {
	args := m.Called(ctx, msg)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) VerifyEmail(ctx context.Context, msg auth.VerifyEmailMessage) (*auth.VerifyResult, error) {
	args := m.Called(ctx, msg)
	if r := args.Get(0); r != nil {
		return r.(*auth.VerifyResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) Login(ctx context.Context, msg auth.LoginMessage) (*auth.LoginResult, error) {
	args := m.Called(ctx, msg)
	if r := args.Get(0); r != nil {
		return r.(*auth.LoginResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) Profile(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) VerificationStatus(ctx context.Context, email string) (*auth.VerificationStatus, error) {
	args := m.Called(ctx, email)
	if s := args.Get(0); s != nil {
		return s.(*auth.VerificationStatus), args.Error(1)
	}
	return nil, args.Error(1)
}
