// Package audit records the admin audit trail: logins, token rejections,
// role and permission changes, account creation and activation changes.
//
// # Sinks
//
// Logger implementations are usually combined. Database writes go through
// an AsyncLogger so a slow insert does not hold up the request:
//
//	pool := async.NewPool("audit-db", 2, 1024, 5*time.Second, logger)
//	queued, _ := audit.NewAsyncLogger(dbSink, pool, 30*time.Second)
//	sink := audit.NewMultiLogger(
//		logrusSink, // audit.NewLogrusLogger(entry)
//		queued,     // dbSink is audit.NewDBLogger(db), writes admin_audit_events
//	)
//
// # Recording events
//
// Callers build events from the request context so the request ID and
// client address are filled in, then attach actor, target and outcome:
//
//	event := audit.NewEvent(ctx, audit.EventTypeAuthzRoleChange, audit.EventStatusSuccess).
//		WithActor(actor).
//		WithTarget(target.ID)
//	event.Changes = audit.NewChange("role", before, after)
//	_ = sink.Log(ctx, event)
//
// Failed or denied actions keep only the error kind:
//
//	event.WithError(err) // error_kind=self_action_forbidden, status=denied
//
// Events never contain passwords, password digests or bearer tokens.
//
// # HTTP Middleware
//
// Middleware stores the logger and client address in the request context and
// writes an http.request event for every mutation, every 4xx/5xx response and
// every read under /auth/ or /admin/.
package audit
