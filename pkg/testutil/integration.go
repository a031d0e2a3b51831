package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/exoseq/pkg/exodus"
)

// IntegrationTestSuite provides base functionality for tests that convert
// real Exodus files on disk.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "exoseq-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir

	s.T().Logf("Integration test suite started in %s", s.tempDir)
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()

	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}

	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the test context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// Dir creates and returns a subdirectory of the suite's temporary directory.
func (s *IntegrationTestSuite) Dir(name string) string {
	dir := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.MkdirAll(dir, 0o755))
	return dir
}

// WriteExodus writes a synthetic database into the suite's temporary
// directory and returns its path.
func (s *IntegrationTestSuite) WriteExodus(name string, db exodus.Synthetic) string {
	return WriteExodus(s.T(), s.tempDir, name, db)
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// WriteExodus writes a synthetic database to dir/name and returns its path.
func WriteExodus(t testing.TB, dir, name string, db exodus.Synthetic) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, db.WriteFile(path))
	return path
}

// Cube returns a 3x3x3 synthetic mesh with the given steps and variables.
func Cube(steps int, variables ...string) exodus.Synthetic {
	return exodus.Synthetic{
		Title:     "cube",
		NX:        3,
		NY:        3,
		NZ:        3,
		Steps:     steps,
		Variables: variables,
	}
}
