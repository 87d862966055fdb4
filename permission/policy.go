// Package permission implements the Permission Engine: resolving whether
// a command identifier and its arguments are permitted under the active
// policy. Pure lookup and path containment, immutable after construction
// (spec §4.2).
package permission

import (
	"path/filepath"
	"strings"
)

// PathKind distinguishes read vs. write root checks.
type PathKind int

const (
	Read PathKind = iota
	Write
)

// NamespaceGrant restricts a namespace grant (e.g. "fs") to a subset of
// sub-commands. A nil/empty SubCommands means the whole namespace is
// granted.
type NamespaceGrant struct {
	SubCommands []string
}

// Policy is an immutable permission policy, built once at startup via
// New and never mutated afterward — the same "safe for concurrent use
// after configuration" discipline router.Router documents for its own
// registration phase.
type Policy struct {
	allow   map[string]struct{}
	deny    map[string]struct{}
	nsGrant map[string]NamespaceGrant

	fsReadRoots   []string
	fsWriteRoots  []string
	allowPrograms map[string]struct{}
}

// Config is the plain-data form of a Policy, as loaded from
// configuration (spec §6).
type Config struct {
	AllowCommands       []string
	DenyCommands        []string
	NamespaceGrants     map[string][]string // namespace -> allowed sub-commands (empty slice = whole namespace)
	FSReadRoots         []string
	FSWriteRoots        []string
	ShellAllowPrograms  []string
}

// Default is the baseline allow list seeded when no configuration
// overrides it (spec §6): the built-in `silk:*` namespace.
func Default() *Policy {
	return New(Config{
		AllowCommands:   []string{"silk:ping", "silk:appInfo"},
		NamespaceGrants: map[string][]string{"silk": nil},
	})
}

// New builds an immutable Policy from Config.
func New(cfg Config) *Policy {
	p := &Policy{
		allow:         toSet(cfg.AllowCommands),
		deny:          toSet(cfg.DenyCommands),
		nsGrant:       make(map[string]NamespaceGrant, len(cfg.NamespaceGrants)),
		fsReadRoots:   normalizeRoots(cfg.FSReadRoots),
		fsWriteRoots:  normalizeRoots(cfg.FSWriteRoots),
		allowPrograms: toSet(cfg.ShellAllowPrograms),
	}
	for ns, subs := range cfg.NamespaceGrants {
		p.nsGrant[ns] = NamespaceGrant{SubCommands: subs}
	}
	return p
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		trimmed := strings.TrimRight(r, string(filepath.Separator))
		if trimmed == "" {
			// "/" (or a string of separators) trims to empty; keep it as
			// the root separator rather than losing it to filepath.Abs("")
			// resolving to the working directory instead of "/".
			trimmed = string(filepath.Separator)
		}
		out = append(out, trimmed)
	}
	return out
}

// Allows resolves whether cmd is permitted, per spec §4.2's check order:
// (1) exact match, (2) namespace-prefix match, (3) deny.
func (p *Policy) Allows(cmd string) bool {
	if _, denied := p.deny[cmd]; denied {
		return false
	}
	if _, ok := p.allow[cmd]; ok {
		return true
	}
	ns, sub, hasNS := splitNamespace(cmd)
	if !hasNS {
		return false
	}
	grant, ok := p.nsGrant[ns]
	if !ok {
		return false
	}
	if len(grant.SubCommands) == 0 {
		return true
	}
	for _, s := range grant.SubCommands {
		if s == sub {
			return true
		}
	}
	return false
}

// splitNamespace splits "fs:readText" into ("fs", "readText", true).
// Commands without a ':' separator have no namespace.
func splitNamespace(cmd string) (ns, sub string, ok bool) {
	i := strings.IndexByte(cmd, ':')
	if i < 0 {
		return "", "", false
	}
	return cmd[:i], cmd[i+1:], true
}

// AllowsPath resolves whether path is within one of the configured roots
// for kind. An empty roots list permits everything (spec §4.2).
func (p *Policy) AllowsPath(path string, kind PathKind) bool {
	roots := p.fsReadRoots
	if kind == Write {
		roots = p.fsWriteRoots
	}
	if len(roots) == 0 {
		return true
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		absRoot = filepath.Clean(absRoot)
		if isAncestorOrEqual(absRoot, absPath) {
			return true
		}
	}
	return false
}

// isAncestorOrEqual reports whether root equals path, or is a proper
// ancestor of path with a separator boundary (so "/foo" does not match
// "/foobar" but does match "/foo" and "/foo/bar").
func isAncestorOrEqual(root, path string) bool {
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return true
	}
	prefix := root + string(filepath.Separator)
	return strings.HasPrefix(path, prefix)
}

// AllowsProgram resolves whether name is in the shell-allow-programs set.
// An empty set permits any program (spec §4.2).
func (p *Policy) AllowsProgram(name string) bool {
	if len(p.allowPrograms) == 0 {
		return true
	}
	_, ok := p.allowPrograms[name]
	return ok
}
