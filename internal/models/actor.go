package models

type ActorKind int

const (
	ActorUnauthenticated ActorKind = iota
	ActorContractor
	ActorAdmin
	ActorSystem
)

func (k ActorKind) String() string {
	switch k {
	case ActorContractor:
		return "contractor"
	case ActorAdmin:
		return "admin"
	case ActorSystem:
		return "system"
	default:
		return "unauthenticated"
	}
}

// Actor is the already-resolved caller identity passed into every service
// operation. ID holds the contractor id, the admin subject or the system
// collaborator name depending on Kind.
type Actor struct {
	Kind ActorKind
	ID   string
}

func Unauthenticated() Actor           { return Actor{Kind: ActorUnauthenticated} }
func Contractor(id string) Actor       { return Actor{Kind: ActorContractor, ID: id} }
func Admin(subject string) Actor       { return Actor{Kind: ActorAdmin, ID: subject} }
func System(collaborator string) Actor { return Actor{Kind: ActorSystem, ID: collaborator} }

func (a Actor) Authenticated() bool { return a.Kind != ActorUnauthenticated }

func (a Actor) IsAdmin() bool { return a.Kind == ActorAdmin }

// Privileged covers admins and trusted collaborators.
func (a Actor) Privileged() bool { return a.Kind == ActorAdmin || a.Kind == ActorSystem }

// ActsFor reports whether the actor may operate on the given contractor's
// account: the contractor itself or a privileged caller.
func (a Actor) ActsFor(contractorID string) bool {
	if a.Privileged() {
		return true
	}
	return a.Kind == ActorContractor && a.ID != "" && a.ID == contractorID
}

// AuditName is the value written to audit_logs.actor.
func (a Actor) AuditName() string {
	if a.ID == "" {
		return a.Kind.String()
	}
	return a.Kind.String() + ":" + a.ID
}
