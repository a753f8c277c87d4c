package piston

import "strings"

var extLanguages = map[string]string{
	"py":    "python",
	"js":    "javascript",
	"ts":    "typescript",
	"java":  "java",
	"c":     "c",
	"cpp":   "cpp",
	"go":    "go",
	"rb":    "ruby",
	"php":   "php",
	"cs":    "csharp",
	"rs":    "rust",
	"kt":    "kotlin",
	"swift": "swift",
	"sh":    "bash",
	"r":     "r",
	"lua":   "lua",
	"hs":    "haskell",
	"scala": "scala",
	"pl":    "perl",
	"dart":  "dart",
	"m":     "objective-c",
	"html":  "html",
	"css":   "css",
	"jsx":   "jsx",
	"tsx":   "tsx",
	"txt":   "text",
	"md":    "text",
	"json":  "json",
	"yml":   "yaml",
	"yaml":  "yaml",
}

// DetectLanguage maps a filename extension to a Piston language identifier.
// Returns "" when the extension is unknown or the name has none.
func DetectLanguage(filename string) string {
	name := strings.ToLower(filename)
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return extLanguages[name[idx+1:]]
}
