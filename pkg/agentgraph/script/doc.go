// Package script implements the restricted transform language used by
// processor nodes.
//
// A script is a sequence of steps, one per line (or separated by "|").
// Each step is an operation name, optionally followed by colon-separated
// arguments, applied to the text flowing through the node:
//
//	trim
//	upper
//	replace:FOO:BAR
//	template:result: ${input}
//	assert:length > 0
//
// Scripts are compiled ahead of execution so malformed programs are caught
// when a framework is saved. Execution cannot reach the filesystem, the
// network, or arbitrary code: the language is the sandbox.
package script
