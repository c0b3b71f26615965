package proxy

import (
	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/profile"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
)

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string
}

// Dependencies are the collaborators of a relay. They are built once at
// startup and only read afterwards.
type Dependencies struct {
	// Validator resolves bearer credentials. Required.
	Validator auth.Validator

	// Provider opens upstream completion streams. Required.
	Provider upstream.Provider

	// Profiles backs the /profile endpoint. Optional; nil disables the route.
	Profiles profile.Store

	// Metrics records outcomes. Optional; nil gets a private recorder.
	Metrics *metrics.Recorder
}
