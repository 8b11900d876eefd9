// Package tools implements the built-in tool catalog (C12): file, shell,
// search, git, plan, skill, sub-agent, and web tools registered into the
// Tool Registry.
package tools

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// forbiddenRoots lists directories that write/edit tools may never touch,
// even if the path is otherwise relative to the working directory.
var forbiddenRoots = []string{
	"/etc", "/usr", "/bin", "/sbin", "/sys", "/proc", "/dev", "/root",
}

// homeForbiddenSuffixes are joined with $HOME to complete the forbidden-root
// list; they are resolved lazily since HOME isn't known at init time.
var homeForbiddenSuffixes = []string{".ssh", ".aws", ".gnupg", ".pki"}

// sensitiveFilePatterns match paths write/edit tools must refuse regardless
// of root, per the specification's Sensitive-File pattern list.
var sensitiveFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.env$`),
	envVariantPattern,
	regexp.MustCompile(`\.aws/credentials$`),
	regexp.MustCompile(`\.aws/config$`),
	regexp.MustCompile(`\.ssh/`),
	regexp.MustCompile(`\.npmrc$`),
	regexp.MustCompile(`\.git-credentials$`),
	regexp.MustCompile(`/etc/(passwd|shadow)$`),
	regexp.MustCompile(`\.pki/`),
	regexp.MustCompile(`\.gnupg/`),
}

// envVariantPattern matches .env.<suffix> files; matchesSensitivePattern
// lets through the ones envTemplatePattern matches (example, sample,
// template, default). Go's regexp has no lookahead, so the exemption is a
// second match rather than part of one pattern.
var (
	envVariantPattern  = regexp.MustCompile(`\.env\.\w+$`)
	envTemplatePattern = regexp.MustCompile(`\.env\.(example|sample|template|default)$`)
)

// destructiveCommandPatterns match bash invocations that require
// confirmation before running.
var destructiveCommandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s`),
	regexp.MustCompile(`\bmv\s`),
	regexp.MustCompile(`\brmdir\b`),
	regexp.MustCompile(`\bgit\s+(commit|push|force-delete|branch\s+-D|reset\s+--hard|clean\s+-fdx?|rebase)\b`),
	// Redirection into a non-device path: the target either does not start
	// with "/" or starts with "/" but not "/dev/".
	regexp.MustCompile(`>{1,2}\s*(?:[^\s/]|/(?:[^d]|d[^e]|de[^v]|dev[^/]))`),
	regexp.MustCompile(`<\s*(?:[^\s/]|/(?:[^d]|d[^e]|de[^v]|dev[^/]))`),
}

// readOnlyCommandPrefixes is the exact Read-Only-Command set: a bash call
// whose command line starts with one of these needs no confirmation unless
// it also matches a Destructive-Command pattern.
var readOnlyCommandPrefixes = []string{
	"git status", "git log", "git show", "git diff", "git config", "git branch",
	"git remote", "git tag", "git stash", "git reflog", "git describe",
	"ls", "dir", "cat", "head", "tail", "grep", "find", "echo", "pwd", "which",
	"type", "file", "stat", "npm test", "npm run test", "bun test", "pytest",
}

// PathSecurityError reports a rejected path per the specification's
// PathSecurityViolation error kind. It is never recovered locally.
type PathSecurityError struct {
	Path   string
	Reason string
}

func (e *PathSecurityError) Error() string {
	return "path security violation: " + e.Path + " (" + e.Reason + ")"
}

// ValidateWritePath resolves path against root and rejects it if it escapes
// root, traverses into a forbidden system directory, or matches a
// Sensitive-File pattern. The returned path is absolute.
func ValidateWritePath(root, path string) (string, error) {
	abs, err := resolveUnderRoot(root, path)
	if err != nil {
		return "", err
	}
	if hit := matchesForbiddenRoot(abs); hit != "" {
		return "", &PathSecurityError{Path: path, Reason: "under forbidden root " + hit}
	}
	if p := matchesSensitivePattern(abs); p != "" {
		return "", &PathSecurityError{Path: path, Reason: "matches sensitive-file pattern " + p}
	}
	return abs, nil
}

// ValidateReadPath resolves path against root, rejecting escapes but not
// the forbidden-root/sensitive-file checks — reads of system files outside
// the project are merely confined to the working directory, not blocked
// outright, since read_file has no destructive potential.
func ValidateReadPath(root, path string) (string, error) {
	return resolveUnderRoot(root, path)
}

func resolveUnderRoot(root, path string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	var abs string
	if filepath.IsAbs(path) {
		abs = path
	} else {
		abs = filepath.Join(rootAbs, path)
	}
	abs, err = filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", &PathSecurityError{Path: path, Reason: "escapes working directory"}
	}
	return abs, nil
}

func matchesForbiddenRoot(abs string) string {
	for _, root := range forbiddenRoots {
		if isUnder(abs, root) {
			return root
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, suffix := range homeForbiddenSuffixes {
			root := filepath.Join(home, suffix)
			if isUnder(abs, root) {
				return root
			}
		}
	}
	return ""
}

func isUnder(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

func matchesSensitivePattern(abs string) string {
	slashed := filepath.ToSlash(abs)
	for _, re := range sensitiveFilePatterns {
		if re.MatchString(slashed) {
			if re == envVariantPattern && envTemplatePattern.MatchString(slashed) {
				continue
			}
			return re.String()
		}
	}
	return ""
}

// IsDestructiveCommand reports whether a bash command line matches the
// Destructive-Command pattern list.
func IsDestructiveCommand(cmd string) bool {
	for _, re := range destructiveCommandPatterns {
		if re.MatchString(cmd) {
			return true
		}
	}
	return false
}

// IsReadOnlyCommand reports whether cmd's leading tokens are an exact match
// for an entry in the Read-Only-Command set.
func IsReadOnlyCommand(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)
	for _, prefix := range readOnlyCommandPrefixes {
		if trimmed == prefix || strings.HasPrefix(trimmed, prefix+" ") {
			return true
		}
	}
	return false
}

// BashDanger is the registry.DangerFunc for the bash tool: destructive-
// pattern matches always require confirmation, even when the command starts
// with a read-only prefix (e.g. "echo hi > out.txt"); read-only commands and
// everything else run unconfirmed.
func BashDanger(command string) (bool, string) {
	if IsDestructiveCommand(command) {
		return true, "Run shell command: " + command
	}
	if IsReadOnlyCommand(command) {
		return false, ""
	}
	return false, ""
}
