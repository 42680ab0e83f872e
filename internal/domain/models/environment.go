// Package models defines the domain models for the pushgate dispatch engine.
package models

// Environment selects one of the two delivery targets. Each environment has its
// own gateway host and its own registry namespaces.
// Environment 选择两个投递目标之一，每个环境拥有独立的网关主机和注册表命名空间。
type Environment string

const (
	// EnvironmentSandbox is the development gateway and the default target.
	EnvironmentSandbox Environment = "sandbox"

	// EnvironmentProduction is the production gateway.
	EnvironmentProduction Environment = "production"
)

// Environments lists every environment in a stable order.
var Environments = []Environment{EnvironmentSandbox, EnvironmentProduction}

// ParseEnvironment maps a caller-supplied selector to an Environment. Only the
// exact string "production" selects production; anything else, including an
// empty selector, selects the sandbox.
func ParseEnvironment(s string) Environment {
	if s == string(EnvironmentProduction) {
		return EnvironmentProduction
	}
	return EnvironmentSandbox
}

// String implements fmt.Stringer.
func (e Environment) String() string { return string(e) }

// ListKind names one of the two registry lists.
// ListKind 表示注册表中的两个列表之一（允许 / 拒绝）。
type ListKind string

const (
	// ListAllow holds recipients that take part in broadcast delivery.
	ListAllow ListKind = "allow"

	// ListDeny holds recipients whose registrations are ignored.
	ListDeny ListKind = "deny"
)

// Valid reports whether l is one of the two known lists.
func (l ListKind) Valid() bool {
	return l == ListAllow || l == ListDeny
}

// Other returns the opposite list.
func (l ListKind) Other() ListKind {
	if l == ListAllow {
		return ListDeny
	}
	return ListAllow
}

// Namespace returns the storage namespace for a (list, environment) pair.
func Namespace(list ListKind, env Environment) string {
	return "tok_" + string(list) + "_" + string(env)
}
