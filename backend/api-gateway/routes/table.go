package routes

import (
	"fmt"
	"net/url"
	"strings"
)

type RewriteKind int

const (
	// RewriteStrip forwards only what follows the prefix.
	RewriteStrip RewriteKind = iota
	// RewritePrepend replaces the prefix with a fixed one.
	RewritePrepend
	// RewritePassthrough forwards the path unchanged.
	RewritePassthrough
	// RewriteCustom hands the whole path to a function.
	RewriteCustom
)

func (k RewriteKind) String() string {
	switch k {
	case RewriteStrip:
		return "strip"
	case RewritePrepend:
		return "prepend"
	case RewritePassthrough:
		return "passthrough"
	case RewriteCustom:
		return "custom"
	default:
		return fmt.Sprintf("RewriteKind(%d)", int(k))
	}
}

type Rewrite struct {
	Kind   RewriteKind
	Prefix string
	Fn     func(path string) string
}

func Strip() Rewrite                             { return Rewrite{Kind: RewriteStrip} }
func Prepend(prefix string) Rewrite              { return Rewrite{Kind: RewritePrepend, Prefix: prefix} }
func Passthrough() Rewrite                       { return Rewrite{Kind: RewritePassthrough} }
func Custom(fn func(path string) string) Rewrite { return Rewrite{Kind: RewriteCustom, Fn: fn} }

// ParseRewrite reads a rewrite style from configuration. prefix is only used
// by "prepend".
func ParseRewrite(style, prefix string) (Rewrite, error) {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "strip":
		return Strip(), nil
	case "prepend":
		return Prepend(prefix), nil
	case "passthrough":
		return Passthrough(), nil
	default:
		return Rewrite{}, fmt.Errorf("unknown rewrite style %q (want strip, prepend or passthrough)", style)
	}
}

// RouteRule sends every path under Prefix to Target. Upgrade marks rules
// whose WebSocket handshakes are tunnelled instead of answered.
type RouteRule struct {
	Prefix  string
	Target  string
	Rewrite Rewrite
	Upgrade bool
}

// Matches reports whether path falls under the rule's prefix on a segment
// boundary: /users matches /users and /users/9 but not /usersx.
func (r RouteRule) Matches(path string) bool {
	if r.Prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/")
}

// Apply returns the path forwarded for path. It only depends on its input.
func (r RouteRule) Apply(path string) string {
	rest := strings.TrimPrefix(path, strings.TrimSuffix(r.Prefix, "/"))

	switch r.Rewrite.Kind {
	case RewriteStrip:
		if rest == "" {
			return "/"
		}
		return rest
	case RewritePrepend:
		joined := strings.TrimSuffix(r.Rewrite.Prefix, "/") + rest
		if joined == "" {
			return "/"
		}
		return joined
	case RewriteCustom:
		return r.Rewrite.Fn(path)
	default:
		return path
	}
}

// TargetURL joins the rule's target with an already rewritten, escaped path
// and the raw query.
func (r RouteRule) TargetURL(escapedPath, rawQuery string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSuffix(r.Target, "/") + escapedPath)
	if err != nil {
		return nil, err
	}
	u.RawQuery = rawQuery
	return u, nil
}

// Table is evaluated in order; the first matching rule wins.
type Table []RouteRule

func (t Table) Match(path string) (RouteRule, bool) {
	for _, rule := range t {
		if rule.Matches(path) {
			return rule, true
		}
	}
	return RouteRule{}, false
}

// Validate rejects tables in which a rule could never be reached or would
// give one resource two forwarded paths: duplicate prefixes and prefixes
// already covered by an earlier rule.
func (t Table) Validate() error {
	for i, rule := range t {
		if !strings.HasPrefix(rule.Prefix, "/") {
			return fmt.Errorf("rule %d: prefix %q must start with /", i, rule.Prefix)
		}
		if len(rule.Prefix) > 1 && strings.HasSuffix(rule.Prefix, "/") {
			return fmt.Errorf("rule %d: prefix %q must not end with /", i, rule.Prefix)
		}
		u, err := url.Parse(rule.Target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("rule %s: invalid target %q", rule.Prefix, rule.Target)
		}
		switch rule.Rewrite.Kind {
		case RewritePrepend:
			if !strings.HasPrefix(rule.Rewrite.Prefix, "/") {
				return fmt.Errorf("rule %s: prepend prefix %q must start with /", rule.Prefix, rule.Rewrite.Prefix)
			}
		case RewriteCustom:
			if rule.Rewrite.Fn == nil {
				return fmt.Errorf("rule %s: custom rewrite without a function", rule.Prefix)
			}
		case RewriteStrip, RewritePassthrough:
		default:
			return fmt.Errorf("rule %s: unknown rewrite %s", rule.Prefix, rule.Rewrite.Kind)
		}

		for _, earlier := range t[:i] {
			if earlier.Prefix == rule.Prefix {
				return fmt.Errorf("duplicate prefix %s", rule.Prefix)
			}
			if earlier.Matches(rule.Prefix) {
				return fmt.Errorf("rule %s is shadowed by earlier rule %s", rule.Prefix, earlier.Prefix)
			}
		}
	}
	return nil
}

type Upstreams struct {
	Auth  string
	Users string
	Shops string
	Order string

	// CategoriesRewrite decides how /categories reaches the shop service.
	CategoriesRewrite Rewrite
}

// DefaultTable is the platform's route table.
func DefaultTable(u Upstreams) (Table, error) {
	t := Table{
		{Prefix: "/auth", Target: u.Auth, Rewrite: Strip()},
		{Prefix: "/users", Target: u.Users, Rewrite: Strip()},
		{Prefix: "/shops", Target: u.Shops, Rewrite: Passthrough()},
		{Prefix: "/products", Target: u.Shops, Rewrite: Passthrough()},
		{Prefix: "/categories", Target: u.Shops, Rewrite: u.CategoriesRewrite},
		{Prefix: "/orders", Target: u.Order, Rewrite: Strip(), Upgrade: true},
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
