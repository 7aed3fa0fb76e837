package scope

import (
	"net"
	"regexp"
	"strings"
)

var (
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?:/\d{1,2})?\b`)
	hostPattern = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}\b`)
)

// ExtractTargets returns the IPv4 addresses and CIDR ranges named in command,
// followed by its hostnames. Results are lower-cased and de-duplicated.
func ExtractTargets(command string) []string {
	seen := make(map[string]struct{})
	targets := []string{}
	add := func(t string) {
		t = strings.ToLower(t)
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}

	masked := command
	for _, m := range ipv4Pattern.FindAllString(command, -1) {
		if !validIPv4(m) {
			continue
		}
		add(m)
		masked = strings.Replace(masked, m, " ", 1)
	}
	for _, m := range hostPattern.FindAllString(masked, -1) {
		add(m)
	}
	return targets
}

func validIPv4(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
