// Package tooling composes and runs external tool invocations.
//
// A Runtime binds a local tool name and its preset arguments into a Tool.
// Calling the Tool builds fresh Options, lets callers customize them and
// hands them to an Invoker, which runs the process and applies the exit
// policy. RunUntil watches a process's output for a ready line instead of
// waiting for it to exit.
package tooling
