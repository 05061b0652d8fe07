package api

import (
	"time"

	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/scripting"
)

// EngineError is the JSON body of every error response.
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

func (e EngineError) Error() string {
	return e.Message
}

const (
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"

	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeConflict        = "state_conflict"
	ErrTypeHintRejected    = "hint_rejected"
	ErrTypeGone            = "session_closed"
	ErrTypeDataset         = "dataset_error"
	ErrTypeUnauthorized    = "unauthorized"

	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeRateLimit          = "rate_limit_exceeded"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory groups error types for logging.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeValidation, ErrTypeUnauthorized:
		return CategoryValidation
	case ErrTypeSessionNotFound, ErrTypeConflict, ErrTypeHintRejected, ErrTypeGone:
		return CategoryGame
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains build version information.
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
	GoVersion     string `json:"go_version"`
}

// ClickRequest is a click on one image. X and Y are relative to the
// displayed box of BoxWidth x BoxHeight.
type ClickRequest struct {
	Image     string  `json:"image"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	BoxWidth  float64 `json:"boxWidth"`
	BoxHeight float64 `json:"boxHeight"`
}

type ClickResponse struct {
	game.ClickResult
	Snapshot game.Snapshot `json:"snapshot"`
}

type HintResponse struct {
	Index    int           `json:"index"`
	Snapshot game.Snapshot `json:"snapshot"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type NameResponse struct {
	Rank int    `json:"rank"`
	Name string `json:"name"`
}

type SessionsResponse struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
}

type AutoplayRequest struct {
	Script     string `json:"script"`
	IntervalMs int    `json:"intervalMs,omitempty"`
}

type AutoplayResponse struct {
	scripting.Snapshot
	Logs []scripting.LogEntry `json:"logs,omitempty"`
}

// HighScoreRow is one ranked entry with display strings.
type HighScoreRow struct {
	Rank      int       `json:"rank"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Display   string    `json:"display"`
	Timestamp time.Time `json:"timestamp"`
	Ago       string    `json:"ago"`
}

type HighScoresResponse struct {
	GameID     string         `json:"gameId"`
	Capacity   int            `json:"capacity"`
	Persistent bool           `json:"persistent"`
	Entries    []HighScoreRow `json:"entries"`
}

// ResultRow is a finished game from the history.
type ResultRow struct {
	ID            string    `json:"id"`
	Score         int       `json:"score"`
	RoundsCleared int       `json:"roundsCleared"`
	Outcome       string    `json:"outcome"`
	FinishedAt    time.Time `json:"finishedAt"`
	Ago           string    `json:"ago"`
}

type ResultsResponse struct {
	GameID  string      `json:"gameId"`
	Results []ResultRow `json:"results"`
}

// StreamMessage is the first frame sent on a signal stream.
type StreamMessage struct {
	Type     string        `json:"type"`
	Snapshot game.Snapshot `json:"snapshot"`
}
