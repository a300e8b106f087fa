// Package config loads the storefront admin service configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file named by STOREFRONT_CONFIG_FILE, and STOREFRONT_*
// environment variables. Unknown keys in the file are rejected.
//
// # Environment
//
// Server:
//
//	STOREFRONT_HOST="0.0.0.0"
//	STOREFRONT_PORT="8080"
//	STOREFRONT_HEALTH_PORT="9090"
//	STOREFRONT_CORS_ORIGINS="https://admin.example.com"
//	STOREFRONT_TRUST_PROXY="false"
//
// Auth:
//
//	STOREFRONT_JWT_SECRET="..."   # required, at least 32 bytes
//	STOREFRONT_TOKEN_TTL="168h"
//	STOREFRONT_BCRYPT_COST="10"
//
// Storage:
//
//	STOREFRONT_STORAGE_TYPE="postgres"  # postgres, memory
//	STOREFRONT_POSTGRES_URL="postgres://localhost/storefront"
//	STOREFRONT_POSTGRES_REPLICA_URLS="postgres://replica1/storefront"
//	STOREFRONT_REDIS_URL="redis://localhost:6379"
//
// Login throttling:
//
//	STOREFRONT_LOGIN_ATTEMPTS="10"
//	STOREFRONT_LOGIN_WINDOW="15m"
//
// Observability:
//
//	STOREFRONT_LOG_LEVEL="info"  # debug, info, warn, error
//	STOREFRONT_METRICS_ENABLED="true"
//	STOREFRONT_OTEL_ENABLED="false"
//	STOREFRONT_OTEL_ENDPOINT="otel-collector:4317"
//
// # File
//
// The YAML file uses the same sections in snake_case:
//
//	server:
//	  port: "8080"
//	auth:
//	  token_ttl: 168h
//	storage:
//	  type: postgres
//	  postgres_url: postgres://localhost/storefront
//	rate_limit:
//	  login_attempts: 10
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
