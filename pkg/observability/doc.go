/*
Package observability turns Manager lifecycle hooks into Prometheus metrics
and structured log lines.

Metrics.Hooks and LogHooks each return a domain.LifecycleHooks; Chain combines
them so a Manager can be given a single set:

	reg := prometheus.NewRegistry()
	hooks := observability.Chain(
		observability.NewMetrics(reg).Hooks(),
		observability.LogHooks(logger),
	)
	mgr := foreman.New(svc, transport, foreman.WithLifecycleHooks(hooks))

Hooks run on the Manager's event loop and must not block.
*/
package observability
