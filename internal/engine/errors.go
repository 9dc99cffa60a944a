package engine

import "fmt"

// Rejection codes surfaced to the caller. Every game-rule failure maps to one
// of these; infrastructure failures stay ordinary errors.
const (
	// Validation.
	CodeBadName      = "E_BAD_NAME"
	CodeBadDirection = "E_BAD_DIRECTION"
	CodeBadSkill     = "E_BAD_SKILL"
	CodeBadMessage   = "E_BAD_MESSAGE"

	// Authorization.
	CodeNameInUse    = "E_NAME_IN_USE"
	CodeBadSecret    = "E_BAD_SECRET"
	CodeSessionBound = "E_SESSION_BOUND"

	// State.
	CodeNotFound    = "E_NOT_FOUND"
	CodeDead        = "E_DEAD"
	CodeCooldown    = "E_COOLDOWN"
	CodeSkillLocked = "E_SKILL_LOCKED"
	CodeNoPoints    = "E_NO_SKILL_POINTS"

	// Capacity / world.
	CodeCapacity   = "E_CAPACITY"
	CodeNoTarget   = "E_NO_TARGET"
	CodeNoResource = "E_NO_RESOURCE"
	CodeBlocked    = "E_BLOCKED"
	CodeOccupied   = "E_OCCUPIED"
	CodeSafeHaven  = "E_SAFE_HAVEN"
)

// GameError is a structured rejection: the action was understood and refused
// by the rules. It never indicates an infrastructure failure.
type GameError struct {
	Code    string
	Message string
}

func (e *GameError) Error() string {
	return e.Code + ": " + e.Message
}

func reject(code, format string, args ...any) *GameError {
	return &GameError{Code: code, Message: fmt.Sprintf(format, args...)}
}
