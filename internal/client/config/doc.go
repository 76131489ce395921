// Package config loads runtime configuration for the fieldsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file (JSON, or YAML when the name ends in .yaml/.yml).
//  3. Environment: FIELDSYNC_* variables, optionally seeded from a .env file.
//  4. Command-line flags bound with BindFlags, which override earlier values.
//
// # File schema
//
// Durations can be strings like "30s" or integer nanoseconds:
//
//	{
//	  "database_path": "fieldsync.db",
//	  "default_tenant": "main",
//	  "request_timeout": "30s",
//	  "tenants": [
//	    {"id": "main", "format": "http", "base_url": "https://srv/api",
//	     "user_id": "agent-7", "username": "agent", "password": "secret"}
//	  ]
//	}
//
// Tenants are the configured server accounts ("connections"). Every row in the
// local store is scoped to exactly one of them.
package config
