/*
Package secrets resolves ${secret:name} references in configuration values.

Credentials such as a git access token or a PostgreSQL password do not
belong in a configuration file. Instead the file names the secret:

	rules:
	  git:
	    auth:
	      type: token
	      token: ${secret:rules-git-token}
	history:
	  driver: postgres
	  dsn: postgres://verdict:${secret:history-db-password}@db/verdict

and the value is looked up when the configuration is loaded.

# Providers

Two providers are available and are tried in order:

  - EnvProvider reads VERDICT_SECRET_<NAME>, with the name upper-cased and
    hyphens turned into underscores ("rules-git-token" becomes
    VERDICT_SECRET_RULES_GIT_TOKEN).
  - FileProvider reads <dir>/<name>, Kubernetes-style, and refuses files
    readable by group or others.

# Usage

	resolver := secrets.NewResolver(logger,
		secrets.NewEnvProvider(secrets.DefaultEnvPrefix),
		fileProvider,
	)
	dsn, err := resolver.Expand(ctx, cfg.History.DSN)

Expand fails if any reference cannot be resolved. Resolved values are
never logged; log lines carry a redacted form of the secret name.
*/
package secrets
