// Package app wires the attendance dashboard together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, YAML file, ROLLBOOK_* environment)
//	2. Resolve and create the data, uploads, reports and logs directories
//	3. Initialize logging and OpenTelemetry
//	4. Open the sqlite leave database
//	5. Start the WebSocket hub and build the services
//	6. Build the chi router and the HTTP server
//
// Start loads the stored roster before serving so a restart keeps the last
// accepted upload.
//
// # Usage
//
//	application, err := app.NewApplication(frontendFS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run waits for SIGINT or SIGTERM, then drains the HTTP server, closes the
// WebSocket clients and the database, and flushes telemetry. Initialization
// errors are returned to the caller; the package never calls os.Exit.
package app
