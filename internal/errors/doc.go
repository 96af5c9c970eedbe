// Package errors provides structured, actionable error values for routecore.
//
// Errors carry a stable code from a registry, a category, a short message,
// an optional longer detail and a suggestion on how to fix the problem.
//
// # Error Categories
//
//   - runtime: router lifecycle misuse (navigating a disposed router, ...)
//   - config: configuration file and environment problems
//   - tree: route tree construction problems (duplicate ids, missing root)
//   - manifest: route manifest parsing problems
//   - cli: command line usage problems
//
// # Usage
//
//	err := errors.New("R201").
//	    WithDetail(`route id "/posts" is declared twice`).
//	    WithSuggestion("Give pathless layout routes distinct ids")
//
//	if re, ok := errors.As(err); ok {
//	    fmt.Println(re.Format())
//	}
package errors
