package config

// ErrMissingCredential indicates a collaborator service has no API key.
type ErrMissingCredential struct {
	Name string
}

func (e ErrMissingCredential) Error() string {
	return e.Name + " is not set"
}
