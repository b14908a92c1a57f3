package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	otpMin = 1000
	otpMax = 9999
)

// DefaultChallengeTTL matches the storage TTL of the verification record.
const DefaultChallengeTTL = 3600 * time.Second

// GenerateOneTimePassword returns a 4 digit code in [1000, 9999].
func GenerateOneTimePassword() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate one time password")
	}

	return strconv.FormatInt(otpMin+n.Int64(), 10), nil
}

// OTPIssuer mints, validates, and consumes one time passwords. Only the
// bcrypt digest is persisted; the plaintext exists solely as the transient
// return value of Issue, for delivery.
type OTPIssuer struct {
	store  ChallengeStore
	ttl    time.Duration
	logger Logger
}

type OTPIssuerOption func(*OTPIssuer)

func NewOTPIssuer(store ChallengeStore, opts ...OTPIssuerOption) *OTPIssuer {
	issuer := &OTPIssuer{
		store:  store,
		ttl:    DefaultChallengeTTL,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}

	return issuer
}

func WithChallengeTTL(ttl time.Duration) OTPIssuerOption {
	return func(o *OTPIssuer) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

func WithIssuerLogger(logger Logger) OTPIssuerOption {
	return func(o *OTPIssuer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Issue replaces any live challenge for the account with a fresh one and
// returns the plaintext code for delivery.
func (o *OTPIssuer) Issue(ctx context.Context, userID string) (string, error) {
	code, err := GenerateOneTimePassword()
	if err != nil {
		return "", err
	}

	digest, err := HashPassword(code)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash one time password")
	}

	if err := o.store.Save(ctx, userID, digest, o.ttl); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryExternal, "failed to persist verification challenge")
	}

	o.logger.Debug("issued verification challenge", "user_id", userID, "ttl", o.ttl.String())

	return code, nil
}

// Validate compares the submitted code against the stored digest.
// ErrChallengeNotFound means no live challenge (expired or consumed);
// ErrInvalidOTP is a mismatch. Hasher failures are internal errors, never a
// mismatch.
func (o *OTPIssuer) Validate(ctx context.Context, userID, submitted string) error {
	digest, err := o.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, errChallengeRecordNotFound) {
			return ErrChallengeNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to load verification challenge")
	}

	if err := ComparePasswordAndHash(submitted, digest); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return ErrInvalidOTP
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare one time password")
	}

	return nil
}

// Consume removes the challenge after a successful validation. A missing
// record is not an error here; the TTL may have beaten us to it.
func (o *OTPIssuer) Consume(ctx context.Context, userID string) error {
	if err := o.store.Delete(ctx, userID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to consume verification challenge")
	}
	return nil
}

// Active reports whether a live challenge exists for the account.
func (o *OTPIssuer) Active(ctx context.Context, userID string) (bool, error) {
	active, err := o.store.Exists(ctx, userID)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to check verification challenge")
	}
	return active, nil
}
