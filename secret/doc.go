// Package secret provides strict environment expansion for configured
// secrets. OAuth2 client secrets and backend API keys are configured as
// ${VAR} references and expanded at load time, with a hard error when a
// referenced variable is missing (see ExpandEnvStrict).
package secret
