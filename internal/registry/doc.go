// Package registry provides the central "glue" for the module system.
//
// The Registry maps the names used on the command line and in configuration
// (model names such as "tree", discretizer names such as "bin3u") to the Go
// factories that build them. A Registry is an explicit value created by the
// application and passed to the engine; there is no package-level instance,
// so tests can register fakes into a fresh one.
//
// Modules contribute their factories through the Module interface during
// application startup.
package registry
