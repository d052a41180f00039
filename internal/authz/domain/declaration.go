package domain

// Declarations is the full declarative seed consumed by the reconciler. It
// describes the baseline permissions, roles, collections, and rules an
// application expects; on each run the engine converges persisted static
// state to match it without disturbing dynamic entries.
type Declarations struct {
	Permissions []PermissionDecl `yaml:"permissions"`
	Roles       []RoleDecl       `yaml:"roles"`
	Collections []CollectionDecl `yaml:"collections"`
	Rules       []RuleDecl       `yaml:"rules"`
}

// PermissionDecl declares a permission. Implies lists weaker permissions this
// one subsumes: an edge runs from the declared permission to each implied one,
// so a grant of the declared permission also grants what it implies.
type PermissionDecl struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Implies     []string `yaml:"implies"`
}

// RoleDecl declares a role, which registers as both a subject and an object
// with the same external id. Implies lists broader roles: "admin implies
// users" makes admin a descendant of users, so rules on users reach admin.
type RoleDecl struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Implies     []string `yaml:"implies"`
}

// CollectionDecl declares an object collection. In lists parent collections;
// an edge runs from each parent to the declared collection.
type CollectionDecl struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	In          []string `yaml:"in"`
}

// Rule declaration actions.
const (
	ActionGrant = "grant"
	ActionDeny  = "deny"
)

// RuleDecl declares a static access rule.
type RuleDecl struct {
	// Action is "grant" or "deny".
	Action string `yaml:"action"`
	// Permission is the external id of the permission granted or denied.
	Permission string `yaml:"permission"`
	// On is the external id of the object the rule applies to.
	On string `yaml:"on"`
	// To is the external id of the subject the rule applies to.
	To string `yaml:"to"`
}

// Sign maps the declaration action to a rule sign.
func (r RuleDecl) Sign() Sign {
	if r.Action == ActionDeny {
		return SignNegative
	}
	return SignPositive
}
