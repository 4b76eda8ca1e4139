package version

// Version is overridden at build time with -ldflags "-X walkypainty/internal/version.Version=..."
var Version = "dev"
