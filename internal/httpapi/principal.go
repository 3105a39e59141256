package httpapi

import (
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
)

var (
	errMissingClaims  = errors.New("missing session")
	errNoKnownRole    = fmt.Errorf("%w: no recognised role", parking.ErrForbidden)
	errActionDenied   = fmt.Errorf("%w: role may not perform action", parking.ErrForbidden)
	errNotYourSession = fmt.Errorf("%w: session belongs to another account", parking.ErrForbidden)
	errNotYourLot     = fmt.Errorf("%w: lot is neither owned nor patrolled by caller", parking.ErrForbidden)
)

// action names a guarded API capability.
type action int

const (
	actionOpenAccount action = iota
	actionViewAccount
	actionTopUp
	actionRegisterVehicle
	actionPublishLot
	actionViewLot
	actionCreateSession
	actionReviseSession
	actionCloseSession
	actionViewSession
	actionViewLotSessions
	actionManageWardens
)

// roleAllows is the complete role policy. Unknown roles allow nothing.
func roleAllows(role parking.Role, requested action) bool {
	switch role {
	case parking.RoleCustomer:
		switch requested {
		case actionOpenAccount, actionViewAccount, actionTopUp, actionRegisterVehicle, actionViewLot,
			actionCreateSession, actionReviseSession, actionCloseSession, actionViewSession:
			return true
		}
	case parking.RoleWarden:
		switch requested {
		case actionOpenAccount, actionViewAccount, actionViewLot, actionCloseSession, actionViewSession,
			actionViewLotSessions:
			return true
		}
	case parking.RoleOwner:
		switch requested {
		case actionOpenAccount, actionViewAccount, actionPublishLot, actionViewLot, actionCloseSession, actionViewSession,
			actionViewLotSessions, actionManageWardens:
			return true
		}
	}
	return false
}

// principal is the authenticated caller as the parking core sees it.
type principal struct {
	accountID parking.AccountID
	email     string
	roles     []parking.Role
}

func principalFromClaims(claims *sessionvalidator.Claims) (principal, error) {
	if claims == nil {
		return principal{}, errMissingClaims
	}
	accountID, err := parking.NewAccountID(claims.GetUserID())
	if err != nil {
		return principal{}, err
	}
	roles := make([]parking.Role, 0, len(claims.GetUserRoles()))
	for _, raw := range claims.GetUserRoles() {
		role, parseErr := parking.ParseRole(raw)
		if parseErr != nil {
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return principal{}, errNoKnownRole
	}
	return principal{accountID: accountID, email: claims.GetUserEmail(), roles: roles}, nil
}

func (caller principal) has(role parking.Role) bool {
	for _, held := range caller.roles {
		if held == role {
			return true
		}
	}
	return false
}

func (caller principal) authorize(requested action) error {
	for _, role := range caller.roles {
		if roleAllows(role, requested) {
			return nil
		}
	}
	return errActionDenied
}

// authorizeSession applies the per-session rules on top of the role policy:
// customers touch only their own sessions, owners only sessions in their lots,
// wardens only sessions in lots they patrol.
func (caller principal) authorizeSession(requested action, session parking.Session, lot parking.Lot, patrols bool) error {
	if err := caller.authorize(requested); err != nil {
		return err
	}
	for _, role := range caller.roles {
		if !roleAllows(role, requested) {
			continue
		}
		switch role {
		case parking.RoleWarden:
			if patrols {
				return nil
			}
		case parking.RoleOwner:
			if lot.OwnerAccountID == caller.accountID {
				return nil
			}
		case parking.RoleCustomer:
			if session.AccountID == caller.accountID {
				return nil
			}
		}
	}
	return errNotYourSession
}

// authorizeLot limits lot-wide reads to the lot's owner and its wardens.
func (caller principal) authorizeLot(requested action, lot parking.Lot, patrols bool) error {
	if err := caller.authorize(requested); err != nil {
		return err
	}
	for _, role := range caller.roles {
		if !roleAllows(role, requested) {
			continue
		}
		switch role {
		case parking.RoleWarden:
			if patrols {
				return nil
			}
		case parking.RoleOwner:
			if lot.OwnerAccountID == caller.accountID {
				return nil
			}
		}
	}
	return errNotYourLot
}
