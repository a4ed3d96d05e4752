// Package authz decides whether a subject may perform an action on a resource.
// Decisions come from a casbin enforcer fed with a YAML role policy.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/casbin/casbin/v2"
	cmodel "github.com/casbin/casbin/v2/model"
	"gopkg.in/yaml.v3"

	"github.com/and161185/cybergames/internal/model"
)

// Objects guarded by the policy.
const (
	ObjGame      = "game"
	ObjChange    = "game_change"
	ObjPromotion = "promotion"
	ObjSave      = "save"
	ObjUser      = "user"
)

// Actions guarded by the policy.
const (
	ActCreate = "create"
	ActRead   = "read"
	ActUpdate = "update"
	ActDelete = "delete"
	ActList   = "list"
	ActReview = "review"
	ActManage = "manage"
)

const (
	scopeAny = "any"
	scopeOwn = "own"
)

const casbinModel = `
[request_definition]
r = sub, obj, act, uid, owner

[policy_definition]
p = sub, obj, act, scope

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act && (p.scope == "any" || r.uid == r.owner)
`

//go:embed policy.yaml
var defaultPolicy []byte

// Resource is the target of an action. OwnerID is 0 for unowned resources.
type Resource struct {
	Object  string
	OwnerID int64
}

// Policy is the role authorization predicate consumed by mutating operations.
type Policy interface {
	// CanAct reports whether subject may perform action on res, honoring ownership.
	CanAct(subject model.Subject, res Resource, action string) bool
	// Permits reports whether role may perform action on object for at least its own resources.
	Permits(role model.Role, object, action string) bool
}

// Document is the YAML form of the role policy.
type Document struct {
	Inherits map[string][]string `yaml:"inherits"`
	Rules    []Rule              `yaml:"rules"`
}

// Rule grants role the action on object within scope ("any" or "own").
type Rule struct {
	Role   string `yaml:"role"`
	Object string `yaml:"object"`
	Action string `yaml:"action"`
	Scope  string `yaml:"scope"`
}

// Enforcer implements Policy on casbin.
type Enforcer struct {
	e *casbin.SyncedEnforcer
}

// Load builds the policy from the YAML file at path, or the embedded default when path is empty.
func Load(path string) (*Enforcer, error) {
	raw := defaultPolicy
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		raw = b
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return New(doc)
}

// New builds an enforcer from a parsed document.
func New(doc Document) (*Enforcer, error) {
	m, err := cmodel.NewModelFromString(casbinModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}

	for name, parents := range doc.Inherits {
		role, ok := model.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("policy: unknown role %q", name)
		}
		for _, pname := range parents {
			parent, ok := model.ParseRole(pname)
			if !ok {
				return nil, fmt.Errorf("policy: unknown role %q", pname)
			}
			if _, err := e.AddGroupingPolicy(string(role), string(parent)); err != nil {
				return nil, err
			}
		}
	}
	for i, r := range doc.Rules {
		role, ok := model.ParseRole(r.Role)
		if !ok {
			return nil, fmt.Errorf("policy rule %d: unknown role %q", i, r.Role)
		}
		if r.Object == "" || r.Action == "" {
			return nil, fmt.Errorf("policy rule %d: object and action are required", i)
		}
		if r.Scope != scopeAny && r.Scope != scopeOwn {
			return nil, fmt.Errorf("policy rule %d: scope must be %q or %q", i, scopeAny, scopeOwn)
		}
		if _, err := e.AddPolicy(string(role), r.Object, r.Action, r.Scope); err != nil {
			return nil, err
		}
	}
	return &Enforcer{e: e}, nil
}

// CanAct reports whether subject may perform action on res.
func (p *Enforcer) CanAct(subject model.Subject, res Resource, action string) bool {
	ok, err := p.e.Enforce(string(subject.Role), res.Object, action,
		strconv.FormatInt(subject.UserID, 10), strconv.FormatInt(res.OwnerID, 10))
	return err == nil && ok
}

// Permits reports whether role holds action on object in any scope.
func (p *Enforcer) Permits(role model.Role, object, action string) bool {
	ok, err := p.e.Enforce(string(role), object, action, "", "")
	return err == nil && ok
}
