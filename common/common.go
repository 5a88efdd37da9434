package common

// Credentials holds the authentication material a command manager needs to
// reach a host and to elevate privileges on it. Secrets are only ever read
// from interactive prompts, never from flags or config files.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
	SudoPassword  string
}
