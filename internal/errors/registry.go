package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (R001-R099)
	// ============================================

	"R001": {
		Category: CategoryRuntime,
		Message:  "Router disposed",
		Detail:   "The router has been disposed and no longer accepts navigations.",
	},
	"R002": {
		Category: CategoryRuntime,
		Message:  "Navigation blocked",
		Detail:   "A navigation blocker rejected the transition.",
	},
	"R003": {
		Category: CategoryRuntime,
		Message:  "Redirect loop",
		Detail:   "Too many consecutive redirects were followed during one navigation.",
	},
	"R004": {
		Category: CategoryRuntime,
		Message:  "Invalid navigation target",
		Detail:   "The navigation target could not be resolved to a location.",
	},
	"R005": {
		Category: CategoryRuntime,
		Message:  "Missing not-found boundary",
		Detail:   "A not-found error was raised but no route in the chain can render it.",
	},

	// ============================================
	// Config Errors (R100-R199)
	// ============================================

	"R100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
	},
	"R101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
	},
	"R102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
	},
	"R103": {
		Category: CategoryConfig,
		Message:  "Environment override failed",
	},

	// ============================================
	// Route Tree Errors (R200-R299)
	// ============================================

	"R200": {
		Category: CategoryTree,
		Message:  "Missing root route",
		Detail:   "A route tree needs exactly one root route created with NewRootRoute.",
	},
	"R201": {
		Category: CategoryTree,
		Message:  "Duplicate route id",
	},
	"R202": {
		Category: CategoryTree,
		Message:  "Duplicate route path",
	},
	"R203": {
		Category: CategoryTree,
		Message:  "Route has multiple parents",
	},
	"R204": {
		Category: CategoryTree,
		Message:  "Invalid route path",
	},

	// ============================================
	// Manifest Errors (R300-R399)
	// ============================================

	"R300": {
		Category: CategoryManifest,
		Message:  "Manifest file not found",
	},
	"R301": {
		Category: CategoryManifest,
		Message:  "Invalid manifest",
	},
	"R302": {
		Category: CategoryManifest,
		Message:  "Manifest could not be fetched",
	},

	// ============================================
	// CLI Errors (R400-R499)
	// ============================================

	"R400": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
