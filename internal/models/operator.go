package models

import (
	"time"

	"github.com/google/uuid"
)

// OperatorRole represents a control-surface account role.
type OperatorRole string

const (
	OperatorRoleAdmin    OperatorRole = "admin"
	OperatorRoleOperator OperatorRole = "operator"
)

// Operator is a control-surface account (dashboard / bot command frontend).
type Operator struct {
	ID           uuid.UUID    `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         OperatorRole `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
}
