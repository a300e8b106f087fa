// Package storage holds the persistence settings shared by the admin
// directory backends.
//
// Two backends exist. "postgres" keeps accounts in the admin_users table
// through directory.PostgresStore, using a primary connection for writes and
// authentication lookups and optional read replicas for listings. "memory"
// keeps accounts in process and is meant for tests and local development.
//
// Redis is optional. When RedisURL is set the login limiter is shared
// between instances; otherwise each instance throttles on its own.
//
// The postgres subpackage opens the connections:
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfigFrom(cfg), logger)
//	if err != nil {
//		return err
//	}
//	defer cm.Close()
//
//	store := directory.NewPostgresStore(cm.Primary()).WithReplicas(cm)
//
//	rdb, err := postgres.NewRedisClient(cfg)
package storage
