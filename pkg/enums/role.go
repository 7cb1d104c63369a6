package enums

// Role is the account-level capability assigned to every user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
	RoleStaff    Role = "staff"
)

var roles = []Role{RoleCustomer, RoleShop, RoleStaff}

// roleAliases maps labels older clients still send.
var roleAliases = map[string]Role{"buyer": RoleCustomer}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return member(r, roles) }

func ParseRole(value string) (Role, error) {
	if role, ok := roleAliases[value]; ok {
		return role, nil
	}
	return parse("role", value, roles)
}
