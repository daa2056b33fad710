package enums

// ActorRole is the role carried by an identity token.
type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleAdmin    ActorRole = "admin"
	// ActorRoleSystem marks work done by the platform itself: gateway
	// callbacks and the sweeper.
	ActorRoleSystem ActorRole = "system"
)

var actorRoles = set[ActorRole]{ActorRoleCustomer, ActorRoleAdmin, ActorRoleSystem}

func (r ActorRole) String() string { return string(r) }
func (r ActorRole) IsValid() bool  { return actorRoles.has(r) }

// OwnerKind says which identity class owns a cart or order.
type OwnerKind string

const (
	OwnerKindUser    OwnerKind = "user"
	OwnerKindSession OwnerKind = "session"
	OwnerKindGuest   OwnerKind = "guest"
)

var ownerKinds = set[OwnerKind]{OwnerKindUser, OwnerKindSession, OwnerKindGuest}

func (k OwnerKind) String() string { return string(k) }
func (k OwnerKind) IsValid() bool  { return ownerKinds.has(k) }
