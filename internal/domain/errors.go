package domain

import "errors"

var (
	// ErrUnknownInstrument is returned when an instrument id is not in the catalog.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrInvalidAnswer indicates an answer sequence that cannot be scored (wrong length, unset or unknown values).
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrNotNormalizable is returned when a 0-100 normalization is requested for an instrument without a uniform 1-5 scale.
	ErrNotNormalizable = errors.New("instrument has no uniform 1-5 scale")
	// ErrRespondentNotFound is returned when no record exists for a respondent id.
	ErrRespondentNotFound = errors.New("respondent not found")
	// ErrSessionNotFound is returned when an assessment session has not been started or already ended.
	ErrSessionNotFound = errors.New("assessment session not found")
	// ErrSessionFinished indicates every selected instrument of the session has been completed.
	ErrSessionFinished = errors.New("assessment session already finished")
	// ErrQuestionOutOfRange indicates an answer for a question index the instrument does not have.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrInvalidConsent is returned when required consent fields are missing or malformed.
	ErrInvalidConsent = errors.New("invalid consent")
	// ErrNoInstruments is returned when a session is started without any instrument.
	ErrNoInstruments = errors.New("no instruments selected")
	// ErrUnauthorized is returned when the admin password does not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAdminNotConfigured is returned when no admin password has been configured.
	ErrAdminNotConfigured = errors.New("admin password not configured")
)
