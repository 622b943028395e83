// Package file loads the TOML application configuration. Credentials are
// referenced as ${VAR} and expanded from the environment, with a .env
// file next to the config loaded first; the daemon watches the file and
// applies changes without a restart.
package file
