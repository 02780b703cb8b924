package envutil

import (
	"os"
	"strings"
)

// IsDev checks if we're running in development mode, where the auth cookie
// may be issued without the Secure attribute over plain http
func IsDev() bool {
	env := strings.ToLower(os.Getenv("CMS_FRONT_ENV"))
	return env == "development" || env == "dev"
}
