package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/domain"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

// Rule grants access to requests matching Method and Pattern.
//
// Pattern segments starting with ':' match any single path segment and a
// trailing "*" matches the remainder of the path. Literal segments ignore
// case. An empty Method matches
// every method. Public rules admit anonymous callers; otherwise the caller
// must be authenticated and, when Roles is non-empty, hold one of them.
type Rule struct {
	Method  string
	Pattern string
	Public  bool
	Roles   []domain.Role
}

type compiledRule struct {
	Rule
	segments []string
}

// Policy is an ordered rule table. The first matching rule wins; requests
// matching no rule require an authenticated caller.
type Policy struct {
	rules []compiledRule
}

// NewPolicy validates and compiles rules.
func NewPolicy(rules ...Rule) (*Policy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if !strings.HasPrefix(rule.Pattern, "/") {
			return nil, fmt.Errorf("policy pattern %q must start with /", rule.Pattern)
		}
		if rule.Public && len(rule.Roles) > 0 {
			return nil, fmt.Errorf("policy rule %s %s is public and role restricted", rule.Method, rule.Pattern)
		}
		for _, role := range rule.Roles {
			if !role.Valid() {
				return nil, fmt.Errorf("policy rule %s %s: unknown role %q", rule.Method, rule.Pattern, role)
			}
		}
		rule.Method = strings.ToUpper(rule.Method)
		compiled = append(compiled, compiledRule{Rule: rule, segments: splitPath(rule.Pattern)})
	}
	return &Policy{rules: compiled}, nil
}

// Match returns the first rule matching the request. Paths compare case
// insensitively, as the router resolves them, and HEAD is checked as GET.
func (p *Policy) Match(method, path string) (Rule, bool) {
	method = strings.ToUpper(method)
	if method == fiber.MethodHead {
		method = fiber.MethodGet
	}
	segments := splitPath(path)
	for _, rule := range p.rules {
		if rule.Method != "" && rule.Method != method {
			continue
		}
		if matchSegments(rule.segments, segments) {
			return rule.Rule, true
		}
	}
	return Rule{}, false
}

// Authorize decides whether identity may call method on path. A nil
// identity is anonymous.
func (p *Policy) Authorize(identity *domain.Identity, method, path string) error {
	rule, ok := p.Match(method, path)
	if ok && rule.Public {
		return nil
	}
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if ok && len(rule.Roles) > 0 && !identity.HasRole(rule.Roles...) {
		return apperrors.NewForbidden("insufficient role")
	}
	return nil
}

// Enforce evaluates the policy once per request, after the auth gate.
func (p *Policy) Enforce() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		identity, _ := IdentityFromCtx(c)
		if err := p.Authorize(identity, c.Method(), c.Path()); err != nil {
			return err
		}
		return c.Next()
	}
}

func splitPath(path string) []string {
	path = strings.ToLower(strings.Trim(path, "/"))
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchSegments(pattern, path []string) bool {
	for i, segment := range pattern {
		if segment == "*" && i == len(pattern)-1 {
			return true
		}
		if i >= len(path) {
			return false
		}
		if strings.HasPrefix(segment, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if segment != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}
