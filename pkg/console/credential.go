package console

import (
	"context"
	"fmt"
	"os"
)

// CredentialProvider supplies the opaque credential for a console
// connection.
type CredentialProvider interface {
	Credential(ctx context.Context) (string, error)
}

// StaticCredential is a fixed credential.
type StaticCredential string

// Credential returns the credential, or an error if it is empty.
func (c StaticCredential) Credential(context.Context) (string, error) {
	if c == "" {
		return "", fmt.Errorf("console: empty credential")
	}
	return string(c), nil
}

// EnvCredential reads the credential from the named environment variable.
type EnvCredential string

// Credential returns the variable's value, or an error if it is unset or
// empty.
func (e EnvCredential) Credential(context.Context) (string, error) {
	v, ok := os.LookupEnv(string(e))
	if !ok || v == "" {
		return "", fmt.Errorf("console: environment variable %s is not set", string(e))
	}
	return v, nil
}

// CredentialFunc adapts a function to CredentialProvider.
type CredentialFunc func(ctx context.Context) (string, error)

// Credential calls f.
func (f CredentialFunc) Credential(ctx context.Context) (string, error) {
	return f(ctx)
}
