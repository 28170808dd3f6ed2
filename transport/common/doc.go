// Package common provides configuration and logging shared by all transport
// implementations: the channel configuration struct (local identity plus
// socket tuning), and the logger factory wiring the custom log format into
// the named-logger registry used across the codebase.
package common
