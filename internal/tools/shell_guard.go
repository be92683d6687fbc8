package tools

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// guardRule rejects commands the operator could not reasonably mean to approve.
type guardRule struct {
	reason string
	match  func(raw, lower string) bool
}

func containsAny(patterns ...string) func(raw, lower string) bool {
	return func(_, lower string) bool {
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}

func matchesAny(res ...*regexp.Regexp) func(raw, lower string) bool {
	return func(raw, _ string) bool {
		for _, re := range res {
			if re.MatchString(raw) {
				return true
			}
		}
		return false
	}
}

var guardRules = []guardRule{
	{
		reason: "destructive system command",
		match: containsAny(
			"rm -rf /", "rm -rf /*", "rm -rf ~",
			"mkfs.", "dd if=/dev/", "> /dev/sd",
			":(){:|:&};:", "chmod -r 777 /",
			"find / -delete", "find / -exec rm",
		),
	},
	{
		reason: "host power control",
		match: matchesAny(
			regexp.MustCompile(`(^|[;&|]\s*)(sudo\s+)?(shutdown|reboot|halt|poweroff)\b`),
			regexp.MustCompile(`(^|[;&|]\s*)(sudo\s+)?init\s+[06]\b`),
		),
	},
	{
		reason: "raw network socket redirection",
		match: func(raw, _ string) bool {
			return strings.Contains(raw, "/dev/tcp/") || strings.Contains(raw, "/dev/udp/")
		},
	},
	{
		reason: "encoded or downloaded script piped to a shell",
		match: matchesAny(
			regexp.MustCompile(`base64\s+(-d|--decode)\s*\|\s*(bash|sh|zsh|exec)`),
			regexp.MustCompile(`xxd\s+-r.*\|\s*(bash|sh|zsh|exec)`),
			regexp.MustCompile(`printf\s+.*\\x[0-9a-fA-F].*\|\s*(bash|sh|zsh|exec)`),
			regexp.MustCompile(`(curl|wget)\s+.*\|\s*(sudo\s+)?(bash|sh|zsh|exec)`),
		),
	},
	{
		reason: "obfuscated command",
		match: matchesAny(
			regexp.MustCompile(`r\\m\s`),
			regexp.MustCompile(`s\\hutdown`),
			regexp.MustCompile(`re\\boot`),
			regexp.MustCompile(`mk\\fs`),
			regexp.MustCompile(`\$'\\x[0-9a-fA-F]{2}`),
			regexp.MustCompile(`\$\(.*\brm\b.*-rf\s+/`),
		),
	},
}

// CheckCommandSafety returns an error when command matches a guard rule.
// Approval still applies to every command that passes.
func CheckCommandSafety(command string) error {
	raw := strings.TrimSpace(command)
	lower := strings.ToLower(raw)
	for _, rule := range guardRules {
		if rule.match(raw, lower) {
			return fmt.Errorf("command execution cancelled: %s detected", rule.reason)
		}
	}
	return nil
}

// shellEnvAllowlist lists the variables forwarded to shell commands.
var shellEnvAllowlist = []string{
	"PATH",
	"HOME",
	"USER",
	"SHELL",
	"TERM",
	"LANG",
	"TMPDIR",
	"GOPATH",
	"GOROOT",
	"GOCACHE",
	"GOMODCACHE",
}

// shellEnv returns the allowlisted environment plus BERKELIUM_CLI=1 so
// scripts can detect they run under the assistant.
func shellEnv() []string {
	env := make([]string, 0, len(shellEnvAllowlist)+1)
	for _, key := range shellEnvAllowlist {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return append(env, "BERKELIUM_CLI=1")
}
