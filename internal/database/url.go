package database

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const poolerHostSuffix = ".pooler.supabase.com"

var (
	urlUserinfoRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.\-]*://[^:/@]*):(.*)@([^@]*)$`)
	dsnPasswordRe = regexp.MustCompile(`(?i)(password=)('[^']*'|\S+)`)
)

// IsServerURL reports whether raw points at a Postgres server, including
// driver-qualified schemes such as postgresql+psycopg2://.
func IsServerURL(raw string) bool {
	scheme, _, ok := strings.Cut(strings.TrimSpace(raw), "://")
	if !ok {
		return false
	}
	scheme, _, _ = strings.Cut(strings.ToLower(scheme), "+")
	return scheme == "postgres" || scheme == "postgresql"
}

// sqlitePathFromURL accepts sqlite:///relative.db and sqlite:////abs.db.
func sqlitePathFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(raw), "sqlite://") {
		return "", false
	}
	return strings.TrimPrefix(raw[len("sqlite://"):], "/"), true
}

// NormalizeURL rewrites a server URL into the form the driver gets: driver
// suffix dropped from the scheme, sslmode=require and connect_timeout=10
// added when absent. Pooler hosts must carry a role.project user.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		if base, _, hasDriver := strings.Cut(scheme, "+"); hasDriver {
			raw = base + "://" + rest
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		// url errors echo the input, which holds the password.
		return nil, &ConfigError{Msg: "connection string is not a valid URL"}
	}
	if u.Hostname() == "" {
		return nil, &ConfigError{Msg: "connection string has no host"}
	}

	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "require")
	}
	if q.Get("connect_timeout") == "" {
		q.Set("connect_timeout", "10")
	}
	u.RawQuery = q.Encode()

	if err := checkPoolerUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

func checkPoolerUser(u *url.URL) error {
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, poolerHostSuffix) {
		return nil
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	role, project, ok := strings.Cut(user, ".")
	if !ok || role == "" || project == "" {
		return &ConfigError{Msg: fmt.Sprintf("pooler host %s requires a user of the form role.project-ref, got %q", host, user)}
	}
	return nil
}

// MaskURL hides the password of a URL or key=value connection string.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}

	password := ""
	masked := raw
	if m := urlUserinfoRe.FindStringSubmatch(raw); m != nil {
		password = m[2]
		masked = m[1] + ":***@" + m[3]
	} else if m := dsnPasswordRe.FindStringSubmatch(raw); m != nil {
		password = strings.Trim(m[2], "'")
		masked = dsnPasswordRe.ReplaceAllString(raw, "${1}***")
	}

	return scrubSecret(masked, password)
}

// scrubSecret removes every remaining occurrence of secret (raw and
// percent-decoded) from s.
func scrubSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	s = strings.ReplaceAll(s, secret, "***")
	if decoded, err := url.PathUnescape(secret); err == nil && decoded != "" && decoded != secret {
		s = strings.ReplaceAll(s, decoded, "***")
	}
	return s
}

func passwordOf(raw string) string {
	if m := urlUserinfoRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		return m[2]
	}
	if m := dsnPasswordRe.FindStringSubmatch(raw); m != nil {
		return strings.Trim(m[2], "'")
	}
	return ""
}
