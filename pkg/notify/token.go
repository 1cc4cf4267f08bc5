package notify

import "os"

func lookupToken(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
