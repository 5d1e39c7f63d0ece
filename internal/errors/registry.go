package errors

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Configuration (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "livesync looks for livesync.json in the working directory unless --config is given.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "livesync.json could not be read or is not valid JSON.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations are written as Go duration strings such as \"500ms\", \"1s\" or \"30s\".",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
	},

	// ============================================
	// Construction arguments (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryValidation,
		Message:  "Missing dialer",
		Detail:   "A transport dialer is required to open connections.",
	},
	"E201": {
		Category: CategoryValidation,
		Message:  "Invalid endpoint",
	},
	"E202": {
		Category: CategoryValidation,
		Message:  "Missing merge function",
		Detail:   "The feed client needs a merge function to deliver status deltas to.",
	},
	"E203": {
		Category: CategoryValidation,
		Message:  "Invalid backoff policy",
		Detail:   "The initial delay must be positive and not larger than the maximum delay.",
	},
	"E204": {
		Category: CategoryValidation,
		Message:  "Invalid console target",
		Detail:   "Console sessions target a server by its positive numeric id.",
	},
	"E205": {
		Category: CategoryValidation,
		Message:  "Credential unavailable",
		Detail:   "The credential provider did not return a credential for the console.",
	},

	// ============================================
	// Transport and protocol (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryProtocol,
		Message:  "WebSocket connection failed",
	},
	"E301": {
		Category: CategoryProtocol,
		Message:  "Malformed message",
	},

	// ============================================
	// REST API (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryAPI,
		Message:  "API request failed",
	},
	"E401": {
		Category: CategoryAPI,
		Message:  "Unexpected API response",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
