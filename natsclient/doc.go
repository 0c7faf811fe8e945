// Package natsclient manages NATS connections for the datalogger pipeline.
//
// Client wraps a nats.Conn with a circuit breaker: after repeated connection
// failures the circuit opens and operations fail fast with ErrCircuitOpen
// until a backoff window passes. Successful operations reset the circuit.
// The JetStream bucket operations (KV and object store) go through the
// same breaker so a broker outage surfaces uniformly.
//
//	client, err := natsclient.NewClient(cfg.NATSUrl,
//	    natsclient.WithName("dataloggerd"),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
// KVStore layers compare-and-swap semantics over a JetStream KV bucket.
// UpdateWithRetry reads the current revision, applies a caller-supplied
// transform, and writes back with the revision attached; on a revision
// conflict it retries with exponential backoff and jitter. The device
// registry and account store use this for lost-update-free upserts.
//
// TestClient spins up a real NATS server in a container (testcontainers)
// for integration tests; see NewTestClient and the With* test options.
package natsclient
