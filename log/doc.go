// Package log provides the logging interface shared by the router, classifier
// and agent packages, with a standard-library implementation and a
// kataras/golog backed implementation.
package log
