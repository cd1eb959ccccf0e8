package ports

// Runner is a long-running surface of the daemon: the HTTP API, the SMTP
// intake and the refresh scheduler
type Runner interface {
	// Start begins serving in the background
	Start() error

	// Stop shuts the runner down and waits for in-flight work
	Stop() error
}
