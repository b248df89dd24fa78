package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

var (
	ErrMissingUser   = errors.New("token has no user id")
	ErrUnknownRole   = errors.New("token carries an unknown role")
	ErrStoreScope    = errors.New("operator token must name a store")
	ErrCustomerStore = errors.New("customer token must not name a store")
)

// AccessTokenPayload is what the identity service puts in a token.
type AccessTokenPayload struct {
	UserID  uuid.UUID
	Role    enums.UserRole
	StoreID *uuid.UUID
	JTI     string
}

// AccessTokenClaims is the verified token. StoreID scopes an operator to the
// rental store they work at; admins may carry one, customers never do.
type AccessTokenClaims struct {
	UserID  uuid.UUID      `json:"user_id"`
	Role    enums.UserRole `json:"role"`
	StoreID *uuid.UUID     `json:"store_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) validate() error {
	if c.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, c.Role)
	}
	hasStore := c.StoreID != nil && *c.StoreID != uuid.Nil
	switch c.Role {
	case enums.UserRoleOperator:
		if !hasStore {
			return ErrStoreScope
		}
	case enums.UserRoleCustomer:
		if c.StoreID != nil {
			return ErrCustomerStore
		}
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return errors.New("token subject does not match user id")
	}
	return nil
}
