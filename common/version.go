package common

// PackageName is used to tag metrics and logs emitted by this service.
const PackageName = "embertalk-keyserver"

// Version is set at build time via -ldflags.
var Version = "dev"
