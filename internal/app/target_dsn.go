package app

import (
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// resolveTargetForRun returns a copy of base whose DSN names the effective
// database. SQL Server profiles without a DSN get one assembled from options.
func resolveTargetForRun(base *domain.TargetConfig, dbOverride string) *domain.TargetConfig {
	if base == nil {
		return nil
	}
	t := *base
	if dbOverride != "" {
		t.Database = dbOverride
	}
	switch t.Kind {
	case domain.TargetKindPostgres:
		if t.Database != "" {
			t.DSN = withPostgresDatabase(t.DSN, t.Database)
		}
	case domain.TargetKindMySQL:
		if t.Database != "" {
			t.DSN = withMySQLDatabase(t.DSN, t.Database)
		}
	case domain.TargetKindSQLServer:
		if strings.TrimSpace(t.DSN) == "" {
			t.DSN = sqlServerDSN(t.Options)
		}
		if t.Database != "" {
			t.DSN = withSQLServerDatabase(t.DSN, t.Database)
		}
	}
	return &t
}

func withPostgresDatabase(dsn, database string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		u.Path = "/" + database
		return u.String()
	}
	parts := strings.Fields(dsn)
	found := false
	for i := range parts {
		if strings.HasPrefix(strings.ToLower(parts[i]), "dbname=") {
			parts[i] = "dbname=" + database
			found = true
			break
		}
	}
	if !found {
		parts = append(parts, "dbname="+database)
	}
	return strings.Join(parts, " ")
}

func withMySQLDatabase(dsn, database string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	cfg.DBName = database
	return cfg.FormatDSN()
}

func withSQLServerDatabase(dsn, database string) string {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil || u.Scheme == "" {
		return dsn
	}
	q := u.Query()
	q.Set("database", database)
	u.RawQuery = q.Encode()
	return u.String()
}

// sqlServerDSN builds a sqlserver:// URL from profile options: server, port,
// instance, database, username, password, encrypt, trust_server_certificate
// and connection_timeout.
func sqlServerDSN(opts map[string]string) string {
	get := func(key string) string {
		for k, v := range opts {
			if strings.EqualFold(k, key) {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	host := get("server")
	if host == "" {
		return ""
	}
	if port := get("port"); port != "" {
		host = net.JoinHostPort(host, port)
	}

	u := &url.URL{Scheme: "sqlserver", Host: host}
	if user := get("username"); user != "" {
		if pw := get("password"); pw != "" {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	if inst := get("instance"); inst != "" {
		u.Path = "/" + inst
	}

	q := url.Values{}
	if db := get("database"); db != "" {
		q.Set("database", db)
	}
	if enc := get("encrypt"); enc != "" {
		q.Set("encrypt", enc)
	}
	if trust := get("trust_server_certificate"); trust != "" {
		q.Set("TrustServerCertificate", trust)
	}
	if timeout := get("connection_timeout"); timeout != "" {
		q.Set("connection timeout", timeout)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
