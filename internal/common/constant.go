package common

// Credential limits shared by signup, login and save path checks.
const (
	MaxUsernameLength = 20
	MaxPasswordLength = 20
)

// AutosavePrefix marks the single autosave file in a user's save directory.
const AutosavePrefix = "Autosave-"
