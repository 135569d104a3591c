package debitor

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/pichlex/debitor.Version=...".
var Version = "0.1.0-dev"
