package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNoEmptyString is returned when a hasher is given an empty input
var ErrNoEmptyString = errors.New("string can't be empty")

// ErrMismatchedHashAndPassword is the mismatch result of a hash comparison.
// Any other error coming out of the hasher is a hasher failure, not a mismatch.
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// Text codes give boundary layers a stable key for each failure mode so they
// can branch without string matching the message.
const (
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeAlreadyVerified     = "ALREADY_VERIFIED"
	TextCodeChallengeNotFound   = "CHALLENGE_NOT_FOUND"
	TextCodeInvalidOTP          = "INVALID_OTP"
	TextCodeVerificationPending = "VERIFICATION_PENDING"
	TextCodeVerificationResent  = "VERIFICATION_RESENT"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeMailDelivery        = "MAIL_DELIVERY"
)

// ErrDuplicateEmail is returned by Register when the email is already taken,
// whatever the verification state of the existing account.
var ErrDuplicateEmail = goerrors.New(
	"A user with that email address already exists. Please try again with a different email address or log in to your existing account.",
	goerrors.CategoryConflict,
).WithTextCode(TextCodeDuplicateEmail)

// ErrAccountNotFound is the login-side miss: the email matches no account.
var ErrAccountNotFound = goerrors.New(
	"The email address provided does not match any existing accounts. Please double-check the email address or create a new account.",
	goerrors.CategoryNotFound,
).WithTextCode(TextCodeAccountNotFound)

// ErrUserNotFound is the lookup miss used by verification and profile reads.
var ErrUserNotFound = goerrors.New(
	"User not found.",
	goerrors.CategoryNotFound,
).WithTextCode(TextCodeUserNotFound)

// ErrInvalidCredentials is a password mismatch for a known account.
var ErrInvalidCredentials = goerrors.New(
	"Incorrect email or password. Please make sure you have entered the correct email and password combination.",
	goerrors.CategoryAuth,
).WithTextCode(TextCodeInvalidCredentials)

// ErrAlreadyVerified guards the one-way verification flip.
var ErrAlreadyVerified = goerrors.New(
	"Email has already been verified.",
	goerrors.CategoryConflict,
).WithTextCode(TextCodeAlreadyVerified)

// ErrChallengeNotFound means no live OTP exists for the account, either
// because it expired or because it was already consumed.
var ErrChallengeNotFound = goerrors.New(
	"Verification code not found or has expired.",
	goerrors.CategoryNotFound,
).WithTextCode(TextCodeChallengeNotFound)

// ErrInvalidOTP is a submitted code that does not match the stored digest.
var ErrInvalidOTP = goerrors.New(
	"Invalid OTP.",
	goerrors.CategoryAuth,
).WithTextCode(TextCodeInvalidOTP)

// ErrVerificationPending blocks login while a live OTP is waiting in the
// user's inbox. We deliberately do not resend in this case.
var ErrVerificationPending = goerrors.New(
	"Your account has not been fully verified yet. Please check your email for a verification code and enter it below to complete the verification process and access your account.",
	goerrors.CategoryAuth,
).WithTextCode(TextCodeVerificationPending)

// ErrVerificationResent blocks login after the previous OTP lapsed; a fresh
// code has already been issued and mailed by the time this error is returned.
var ErrVerificationResent = goerrors.New(
	"Your verification code has expired. A new verification code has been sent to your email.",
	goerrors.CategoryAuth,
).WithTextCode(TextCodeVerificationResent)

// ErrTokenExpired is an expired session token; callers should clear the
// stored credential and prompt for a fresh login.
var ErrTokenExpired = goerrors.New(
	"Session has expired. Please log in again.",
	goerrors.CategoryAuth,
).WithTextCode(TextCodeTokenExpired).WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is a tampered or undecodable session token, a hard
// authentication failure distinct from expiry.
var ErrTokenMalformed = goerrors.New(
	"Invalid authentication token.",
	goerrors.CategoryAuth,
).WithTextCode(TextCodeTokenMalformed).WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
