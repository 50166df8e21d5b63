package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskBoard/internal/repository"
	"taskBoard/internal/repository/repotest"
	"taskBoard/internal/repository/task/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite для интеграционных тестов с PostgreSQL
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	connString string
	ctx        context.Context
}

// SetupSuite запускается один раз перед всеми тестами
func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	require.NoError(s.T(), postgres.Migrate(s.connString))

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.Options{MaxConns: 4})
	require.NoError(s.T(), err)
}

// TearDownSuite очищает после всех тестов
func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

// cleanupDatabase очищает таблицу tasks
func (s *PostgresTestSuite) cleanupDatabase(t *testing.T) {
	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(t, err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, "TRUNCATE tasks")
	require.NoError(t, err)
}

// TestPostgresTestSuite запускает suite
func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционные тесты в коротком режиме")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func (s *PostgresTestSuite) TestStorage_Contract() {
	repotest.Run(s.T(), func(t *testing.T) repotest.Repository {
		s.cleanupDatabase(t)
		return s.storage
	})
}

// TestStorage_CreateDuplicate тестирует вставку с существующим id
func (s *PostgresTestSuite) TestStorage_CreateDuplicate() {
	s.cleanupDatabase(s.T())

	created := repotest.NewTask("Дубликат")
	require.NoError(s.T(), s.storage.Create(s.ctx, created))

	err := s.storage.Create(s.ctx, created)
	assert.ErrorIs(s.T(), err, repository.ErrVersionConflict)
}

// TestStorage_MigrateIdempotent тестирует повторное применение миграций
func (s *PostgresTestSuite) TestStorage_MigrateIdempotent() {
	require.NoError(s.T(), postgres.Migrate(s.connString))

	s.cleanupDatabase(s.T())
	tasks, err := s.storage.List(s.ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), tasks)
}
