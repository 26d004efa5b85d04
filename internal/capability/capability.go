// Package capability describes the optional feature modules of the auth
// engine and decides which of them are enabled for this process.
package capability

// Kind names a capability module.
type Kind string

const (
	KindAnonymous      Kind = "anonymous"
	KindHaveIBeenPwned Kind = "have-i-been-pwned"
	KindAdmin          Kind = "admin"
	KindOpenAPI        Kind = "open-api"
	KindJWT            Kind = "jwt"
	KindBearer         Kind = "bearer"
	KindOrganization   Kind = "organization"
)

// PwnedPasswordMessage is shown to users whose password appears in a breach corpus.
const PwnedPasswordMessage = "Password has been found in an online data breach. For account safety, please use a different password."

// Capability is one enabled feature module with its options. The set of
// implementations is closed to this package.
type Capability interface {
	Kind() Kind
	capability()
}

// Anonymous allows guest sessions without credentials.
type Anonymous struct{}

// HaveIBeenPwned rejects passwords found in known breaches.
type HaveIBeenPwned struct {
	CompromisedMessage string
}

// Admin exposes user management routes to users with the admin role.
type Admin struct{}

// OpenAPI serves a machine readable description of the auth routes.
type OpenAPI struct{}

// JWT issues short-lived signed tokens for the current session.
type JWT struct{}

// Bearer accepts session tokens from the Authorization header.
type Bearer struct {
	RequireSignature bool
}

// Organization enables multi-tenant organizations.
type Organization struct {
	OrganizationLimit int
	MembershipLimit   int
	InvitationLimit   int
}

func (Anonymous) Kind() Kind      { return KindAnonymous }
func (HaveIBeenPwned) Kind() Kind { return KindHaveIBeenPwned }
func (Admin) Kind() Kind          { return KindAdmin }
func (OpenAPI) Kind() Kind        { return KindOpenAPI }
func (JWT) Kind() Kind            { return KindJWT }
func (Bearer) Kind() Kind         { return KindBearer }
func (Organization) Kind() Kind   { return KindOrganization }

func (Anonymous) capability()      {}
func (HaveIBeenPwned) capability() {}
func (Admin) capability()          {}
func (OpenAPI) capability()        {}
func (JWT) capability()            {}
func (Bearer) capability()         {}
func (Organization) capability()   {}

// Set is an ordered, immutable list of capabilities.
type Set struct {
	items []Capability
}

// Compose returns the capabilities for this process. The base modules come
// first in a fixed order; organization support is appended only when a
// valid license is present.
func Compose(licensed bool) Set {
	items := []Capability{
		Anonymous{},
		HaveIBeenPwned{CompromisedMessage: PwnedPasswordMessage},
		Admin{},
		OpenAPI{},
		JWT{},
		Bearer{RequireSignature: true},
	}
	if licensed {
		items = append(items, Organization{
			OrganizationLimit: 1,
			MembershipLimit:   1,
			InvitationLimit:   10000,
		})
	}
	return Set{items: items}
}

// NewSet returns a set holding items in the given order.
func NewSet(items ...Capability) Set {
	return Set{items: append([]Capability(nil), items...)}
}

// All returns a copy of the capabilities in order.
func (s Set) All() []Capability {
	out := make([]Capability, len(s.items))
	copy(out, s.items)
	return out
}

func (s Set) Kinds() []Kind {
	out := make([]Kind, len(s.items))
	for i, c := range s.items {
		out[i] = c.Kind()
	}
	return out
}

func (s Set) Has(kind Kind) bool {
	for _, c := range s.items {
		if c.Kind() == kind {
			return true
		}
	}
	return false
}

func (s Set) Len() int {
	return len(s.items)
}

// Find returns the first capability of type T in s.
func Find[T Capability](s Set) (T, bool) {
	for _, c := range s.items {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
