package console

import (
	"context"
	"errors"
	"testing"
)

func TestStaticCredential(t *testing.T) {
	got, err := StaticCredential("key").Credential(context.Background())
	if err != nil || got != "key" {
		t.Fatalf("Credential() = %q, %v", got, err)
	}
	if _, err := StaticCredential("").Credential(context.Background()); err == nil {
		t.Fatal("empty StaticCredential should fail")
	}
}

func TestEnvCredential(t *testing.T) {
	t.Setenv("LIVESYNC_TEST_KEY", "from-env")
	got, err := EnvCredential("LIVESYNC_TEST_KEY").Credential(context.Background())
	if err != nil || got != "from-env" {
		t.Fatalf("Credential() = %q, %v", got, err)
	}

	t.Setenv("LIVESYNC_TEST_EMPTY", "")
	if _, err := EnvCredential("LIVESYNC_TEST_EMPTY").Credential(context.Background()); err == nil {
		t.Fatal("empty variable should fail")
	}
	if _, err := EnvCredential("LIVESYNC_TEST_UNSET_VARIABLE").Credential(context.Background()); err == nil {
		t.Fatal("unset variable should fail")
	}
}

func TestCredentialFunc(t *testing.T) {
	boom := errors.New("vault sealed")
	p := CredentialFunc(func(ctx context.Context) (string, error) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", boom
	})
	if _, err := p.Credential(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Credential(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
