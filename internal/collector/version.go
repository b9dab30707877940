package collector

// Version is the collector build version, reported on the WebSocket
// handshake. Overridden at build time via -ldflags.
var Version = "1.0.0-dev"
