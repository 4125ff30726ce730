package actor

import (
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
)

// Number identifies a market actor. It is either a 13 digit GLN or a 16 character EIC.
type Number string

// Scheme returns the coding scheme of the number as used in CIM documents.
func (n Number) Scheme() string {
	if len(n) == 16 {
		return SchemeEIC
	}
	return SchemeGLN
}

func (n Number) Validate() error {
	switch len(n) {
	case 13:
		for _, c := range n {
			if c < '0' || c > '9' {
				return errors.NewValidationError("actor_number", "GLN must contain digits only")
			}
		}
		return nil
	case 16:
		for _, c := range n {
			if !isEICChar(c) {
				return errors.NewValidationError("actor_number", "EIC contains invalid characters")
			}
		}
		return nil
	default:
		return errors.NewValidationError("actor_number", "must be a 13 digit GLN or 16 character EIC")
	}
}

func isEICChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || c == '-'
}

const (
	SchemeGLN = "A10"
	SchemeEIC = "A01"
)

// Role is the market role an actor plays when receiving documents.
type Role string

const (
	RoleEnergySupplier          Role = "EnergySupplier"
	RoleGridAccessProvider      Role = "GridAccessProvider"
	RoleBalanceResponsibleParty Role = "BalanceResponsibleParty"
	RoleMeteredDataResponsible  Role = "MeteredDataResponsible"
	RoleSystemOperator          Role = "SystemOperator"
	RoleDataHubAdministrator    Role = "DataHubAdministrator"
	RoleDelegated               Role = "Delegated"
)

var roleCodes = map[Role]string{
	RoleEnergySupplier:          "DDQ",
	RoleGridAccessProvider:      "DDM",
	RoleBalanceResponsibleParty: "DDK",
	RoleMeteredDataResponsible:  "MDR",
	RoleSystemOperator:          "EZ",
	RoleDataHubAdministrator:    "DGL",
	RoleDelegated:               "DEL",
}

// Code returns the market code of the role (e.g. DDQ).
func (r Role) Code() string {
	return roleCodes[r]
}

func (r Role) Validate() error {
	if _, ok := roleCodes[r]; !ok {
		return errors.NewValidationError("actor_role", "unknown role "+string(r))
	}
	return nil
}

// RoleFromCode resolves a market role code, or a role name, to a Role.
func RoleFromCode(code string) (Role, error) {
	for r, c := range roleCodes {
		if c == code || string(r) == code {
			return r, nil
		}
	}
	return "", errors.NewValidationError("actor_role", "unknown role code "+code)
}

// Actor is a (number, role) pair. Each pair owns exactly one message queue.
type Actor struct {
	Number Number
	Role   Role
}

func New(number Number, role Role) (Actor, error) {
	a := Actor{Number: number, Role: role}
	if err := a.Validate(); err != nil {
		return Actor{}, err
	}
	return a, nil
}

func (a Actor) Validate() error {
	if err := a.Number.Validate(); err != nil {
		return err
	}
	return a.Role.Validate()
}

func (a Actor) String() string {
	return string(a.Number) + "/" + a.Role.Code()
}
