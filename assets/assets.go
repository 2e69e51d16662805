// Package assets embeds the static files shipped with the binaries.
package assets

import "embed"

// FS holds the email templates and the common-passwords list.
//
//go:embed templates/email/* common-passwords.txt.gz
var FS embed.FS

const (
	EmailTemplatesDir   = "templates/email"
	CommonPasswordsFile = "common-passwords.txt.gz"
)
