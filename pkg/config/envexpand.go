package config

import "os"

// expandEnv resolves ${VAR} and $VAR references inside raw YAML bytes before
// parsing, so secrets such as LLM_CREDENTIAL never need to be committed to
// the config file itself. Unset variables expand to the empty string;
// downstream validation is responsible for catching required fields left
// blank by a missing variable.
func expandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), os.Getenv))
}
