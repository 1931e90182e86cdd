package errors

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
	// Configuration File Errors (E120-E141)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "routewrap.json or routewrap.yaml could not be read or parsed.",
		DocURL:   "https://routewrap.dev/docs/errors/E120",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Not a routewrap project",
		Detail:   "The current directory is not a routewrap project.",
		DocURL:   "https://routewrap.dev/docs/errors/E141",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Build failed",
		Detail:   "Writing build output failed.",
		DocURL:   "https://routewrap.dev/docs/errors/E142",
	},

	// ============================================
	// Classification Errors (E200-E209)
	// ============================================

	"E201": {
		Category: CategoryClassify,
		Message:  "File outside routes directory",
		Detail:   "The file is neither inside the routes directory nor a middleware file next to it.",
		DocURL:   "https://routewrap.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryClassify,
		Message:  "Unsupported route file extension",
		Detail:   "The file extension does not match the configured page extensions.",
		DocURL:   "https://routewrap.dev/docs/errors/E202",
	},

	// ============================================
	// Transform Errors (E210-E229)
	// ============================================

	"E210": {
		Category: CategoryTransform,
		Message:  "Link failed",
		Detail:   "The wrapper and the route module could not be linked.",
		DocURL:   "https://routewrap.dev/docs/errors/E210",
	},
	"E211": {
		Category: CategoryTransform,
		Message:  "Link produced no output",
		Detail:   "The link pass finished without emitting a module.",
		DocURL:   "https://routewrap.dev/docs/errors/E211",
	},
	"E212": {
		Category: CategoryTransform,
		Message:  "Template unavailable",
		Detail:   "No wrapper template is registered for the route role.",
		DocURL:   "https://routewrap.dev/docs/errors/E212",
	},
	"E213": {
		Category: CategoryTransform,
		Message:  "Invalid input source map",
		Detail:   "The source map supplied with the route file is not a usable version 3 map.",
		DocURL:   "https://routewrap.dev/docs/errors/E213",
	},

	// ============================================
	// Setup Errors (E230-E239)
	// ============================================

	"E230": {
		Category: CategoryConfig,
		Message:  "Invalid transformer setup",
		Detail:   "The transformer is missing a required option.",
		DocURL:   "https://routewrap.dev/docs/errors/E230",
	},
	"E231": {
		Category: CategoryConfig,
		Message:  "Invalid exclusion rule",
		Detail:   "An exclusion rule is empty or is not a valid pattern.",
		DocURL:   "https://routewrap.dev/docs/errors/E231",
	},
	"E232": {
		Category: CategoryConfig,
		Message:  "Invalid extension pattern",
		Detail:   "The page extension pattern is not a valid regular expression.",
		DocURL:   "https://routewrap.dev/docs/errors/E232",
	},

	// ============================================
	// Artifact Errors (E240-E249)
	// ============================================

	"E240": {
		Category: CategoryArtifact,
		Message:  "Artifact upload failed",
		Detail:   "A source map could not be uploaded to the artifact store.",
		DocURL:   "https://routewrap.dev/docs/errors/E240",
	},

	// ============================================
	// Protocol Errors (E250-E259)
	// ============================================

	"E250": {
		Category: CategoryProtocol,
		Message:  "Invalid transform request",
		Detail:   "The request body is not a valid transform request.",
		DocURL:   "https://routewrap.dev/docs/errors/E250",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
