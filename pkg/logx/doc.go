// Package logx wraps zerolog behind a small structured-logging facade.
//
// Components hold a Logger value; the Service owns the sinks (console,
// optional file) and can re-apply configuration at runtime without the
// components noticing.
package logx
