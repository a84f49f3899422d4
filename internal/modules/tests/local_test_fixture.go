package tests

import (
	"context"
	"fmt"
	"os"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresPort  = nat.Port("5432/tcp")
	postgresUser  = "ledger"
	postgresPass  = "ledger"
	postgresDB    = "ledger"
)

// SkipInfrastructure reports whether tests needing docker should be skipped.
func SkipInfrastructure() bool {
	return os.Getenv("SKIP_INFRASTRUCTURE") == "true"
}

// LocalTestFixture runs a throwaway postgres container.
type LocalTestFixture struct {
	container testcontainers.Container
	url       string
}

func NewLocalTestFixture() *LocalTestFixture {
	return &LocalTestFixture{}
}

func (f *LocalTestFixture) Start(ctx context.Context) error {
	if SkipInfrastructure() {
		return nil
	}

	dsn := func(host string, port nat.Port) string {
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser, postgresPass, host, port.Port(), postgresDB,
		)
	}

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPass,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForSQL(postgresPort, "postgres", dsn),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return err
	}
	f.container = container

	host, err := container.Host(ctx)
	if err != nil {
		return err
	}

	port, err := container.MappedPort(ctx, postgresPort)
	if err != nil {
		return err
	}

	f.url = dsn(host, port)
	return nil
}

// DatabaseURL is empty until Start succeeds.
func (f *LocalTestFixture) DatabaseURL() string {
	return f.url
}

func (f *LocalTestFixture) Stop(ctx context.Context) error {
	if f.container == nil {
		return nil
	}

	return f.container.Terminate(ctx)
}
