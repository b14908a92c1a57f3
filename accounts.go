package auth

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// operationTimeout bounds every state machine operation, including its
// storage and mail calls.
const operationTimeout = time.Second * 10

// RegisterUserMessage carries a registration request.
type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UseHashid bool   `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// VerifyEmailMessage carries a verification attempt. Identifier is the user
// id when it parses as a uuid, an email otherwise.
type VerifyEmailMessage struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

// LoginMessage carries a login attempt.
type LoginMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e LoginMessage) Type() string { return "user.login" }

// VerifyResult is the success value of an email verification.
type VerifyResult struct {
	User     *User  `json:"user"`
	Redirect string `json:"redirect"`
}

// LoginResult is the success value of a login: a signed session token plus
// a redirect hint for the boundary.
type LoginResult struct {
	User     *User  `json:"user"`
	Token    string `json:"token"`
	Redirect string `json:"redirect"`
}

// VerificationStatus reports on the pending challenge for an unverified
// account, used by the verification page endpoint.
type VerificationStatus struct {
	Email            string `json:"email"`
	ChallengePending bool   `json:"challenge_pending"`
}

// Accounts is the account state machine. Accounts move from unregistered
// through pending verification to verified; verified is terminal. Every
// operation returns a typed result or a typed error for the boundary layer
// to translate; outcome logging is the boundary's job.
type Accounts struct {
	store  UserStore
	otp    *OTPIssuer
	tokens TokenService
	mailer Mailer
	logger Logger
}

type AccountsOption func(*Accounts)

func NewAccounts(store UserStore, otp *OTPIssuer, tokens TokenService, mailer Mailer, opts ...AccountsOption) *Accounts {
	accounts := &Accounts{
		store:  store,
		otp:    otp,
		tokens: tokens,
		mailer: mailer,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(accounts)
		}
	}

	return accounts
}

func WithAccountsLogger(logger Logger) AccountsOption {
	return func(a *Accounts) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Register creates an unverified account, seeds its OTP challenge, and mails
// the code. A mail failure fails the call while the account and challenge
// remain persisted; there is no compensating rollback.
func (a *Accounts) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during user registration")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	hash, err := HashPassword(msg.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	user := &User{
		FirstName:    msg.FirstName,
		LastName:     msg.LastName,
		Email:        NormalizeEmail(msg.Email),
		PasswordHash: hash,
	}

	if msg.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	created, err := a.store.Register(ctx, user)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	code, err := a.otp.Issue(ctx, created.ID.String())
	if err != nil {
		return nil, err
	}

	if err := a.mailer.SendVerificationEmail(ctx, created, code); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send verification email").
			WithTextCode(TextCodeMailDelivery)
	}

	a.logger.Debug("registered user", "user_id", created.ID.String())

	return created, nil
}

// VerifyEmail validates the submitted code and flips the account to
// verified, consuming the challenge. The flip happens at most once.
func (a *Accounts) VerifyEmail(ctx context.Context, msg VerifyEmailMessage) (*VerifyResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	user, err := a.store.GetByIdentifier(ctx, msg.Identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for verification")
	}

	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	if err := a.otp.Validate(ctx, user.ID.String(), msg.OTP); err != nil {
		return nil, err
	}

	verified, err := a.store.MarkEmailVerified(ctx, user.ID)
	if err != nil {
		// zero rows means another verify won the race; the flip is one-way
		if goerrors.IsNotFound(err) {
			return nil, ErrAlreadyVerified
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
	}

	if err := a.otp.Consume(ctx, user.ID.String()); err != nil {
		return nil, err
	}

	return &VerifyResult{
		User:     verified,
		Redirect: "/",
	}, nil
}

// Login checks credentials and branches on verification state. An
// unverified account never yields a session token: a live challenge blocks
// with ErrVerificationPending, a lapsed one triggers a reissue plus
// ErrVerificationResent. Either way exactly one live challenge remains.
func (a *Accounts) Login(ctx context.Context, msg LoginMessage) (*LoginResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	user, err := a.store.GetByEmail(ctx, NormalizeEmail(msg.Email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for login")
	}

	if err := ComparePasswordAndHash(msg.Password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "password comparison failed")
	}

	if !user.EmailVerified {
		return nil, a.challengeUnverifiedLogin(ctx, user)
	}

	token, err := a.tokens.Generate(user.ID.String())
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:     user,
		Token:    token,
		Redirect: "/",
	}, nil
}

// challengeUnverifiedLogin enforces the invariant that an unverified login
// attempt always leaves exactly one live challenge behind.
func (a *Accounts) challengeUnverifiedLogin(ctx context.Context, user *User) error {
	active, err := a.otp.Active(ctx, user.ID.String())
	if err != nil {
		return err
	}

	if active {
		return ErrVerificationPending
	}

	code, err := a.otp.Issue(ctx, user.ID.String())
	if err != nil {
		return err
	}

	if err := a.mailer.SendVerificationEmail(ctx, user, code); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send verification email").
			WithTextCode(TextCodeMailDelivery)
	}

	return ErrVerificationResent
}

// Profile loads an account by id or email.
func (a *Accounts) Profile(ctx context.Context, identifier string) (*User, error) {
	user, err := a.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user profile")
	}

	return user, nil
}

// VerificationStatus reports whether a pending challenge exists for an
// unverified account, so the verification page can decide what to show.
func (a *Accounts) VerificationStatus(ctx context.Context, email string) (*VerificationStatus, error) {
	user, err := a.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for verification status")
	}

	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	active, err := a.otp.Active(ctx, user.ID.String())
	if err != nil {
		return nil, err
	}

	if !active {
		return nil, ErrChallengeNotFound
	}

	return &VerificationStatus{
		Email:            user.Email,
		ChallengePending: true,
	}, nil
}
