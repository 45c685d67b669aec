// Package httpapi exposes the job service over REST.
//
// Routes:
//
//	POST /api/jobs          submit {demo_id, parameters}, 202 with the pending job
//	GET  /api/jobs/{id}     job status
//	GET  /api/demos         catalog listing
//	GET  /api/demos/{id}    one demo with its parameter JSON Schema
//	GET  /api/health        liveness
//	GET  /metrics           Prometheus metrics
//
// Errors are returned as {"error": "..."}.
//
// Usage:
//
//	srv := httpapi.NewServer(httpapi.Options{Addr: ":8000", Version: version}, svc, logger)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(ctx)
package httpapi
