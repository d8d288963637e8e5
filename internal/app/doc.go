// Package app wires the contact cleaner web service together and manages its
// lifecycle.
//
// New builds every component from a loaded config.Config: the Prometheus
// registry and OpenTelemetry providers, the websocket log hub, the contact
// and health services, the middleware chain and the chi router. Run starts
// the HTTP server, the hub and the result store cleanup loop in one errgroup
// and shuts them all down when its context is cancelled:
//
//	application, err := app.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	return application.Run(ctx)
//
// New never starts goroutines and Run never calls os.Exit, so the main
// function controls the exit code.
package app
