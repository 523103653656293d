package main

// Version is the current gateway version. Set at build time via -ldflags.
var Version = "0.1.0-dev"
