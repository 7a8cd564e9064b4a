package util

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidRole        = errors.New("invalid role")
	ErrPasswordReused     = errors.New("password was used recently")
	ErrWrongPassword      = errors.New("current password is incorrect")

	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidDateRange  = errors.New("end date must not be before start date")
	ErrQuarterLimit      = errors.New("a curriculum has at most 4 quarters")
	ErrInvalidQuarter    = errors.New("invalid quarter")
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrInvalidCSV        = errors.New("invalid csv file")
	ErrInvalidQuestion   = errors.New("invalid question")
	ErrNotInstructor     = errors.New("not an instructor of this course")
	ErrAssessmentClosed  = errors.New("assessment is not published")
	ErrAttemptsExhausted = errors.New("no attempts remaining")
	ErrSessionNotFound   = errors.New("proctor session not found")
	ErrSessionClosed     = errors.New("proctor session is closed")
	ErrAlreadySubmitted  = errors.New("quiz already submitted")
	ErrRecordingExists   = errors.New("recording already uploaded")
	ErrInvalidTransition = errors.New("invalid session state transition")

	ErrAINotConfigured = errors.New("ai provider is not configured")
	ErrAIResponse      = errors.New("ai reply did not contain a quiz")
	ErrEmptyPDF        = errors.New("no text could be extracted from the pdf")
)
