package common

// Version identifies this build in telemetry resource attributes.
// Overridden at build time via
// -ldflags "-X github.com/relayforge/gateway/common.Version=...".
var Version = "dev"
