package rowstore_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/dir01/rowstore"
)

// Person is the record type most tests work with.
type Person struct {
	ID       uuid.UUID `rowstore:"id,pk"`
	First    string    `rowstore:"first"`
	Last     string    `rowstore:"last"`
	Age      int       `rowstore:"age"`
	Nickname *string   `rowstore:"nickname"`
}

func (Person) TableName() string { return "person" }

var (
	PersonID       = rowstore.NewField[Person, uuid.UUID]("id")
	PersonFirst    = rowstore.NewField[Person, string]("first")
	PersonLast     = rowstore.NewField[Person, string]("last")
	PersonAge      = rowstore.NewField[Person, int]("age")
	PersonNickname = rowstore.NewField[Person, *string]("nickname")
)

var _ rowstore.Sortable[Person] = PersonAge

// PersonWithEmail is a later version of Person stored in the same table.
type PersonWithEmail struct {
	ID       uuid.UUID `rowstore:"id,pk"`
	First    string    `rowstore:"first"`
	Last     string    `rowstore:"last"`
	Age      int       `rowstore:"age"`
	Nickname *string   `rowstore:"nickname"`
	Email    string    `rowstore:"email"`
}

func (PersonWithEmail) TableName() string { return "person" }

// PersonOptionalAge reads the person table with an optional age.
type PersonOptionalAge struct {
	ID  uuid.UUID `rowstore:"id,pk"`
	Age *int      `rowstore:"age"`
}

func (PersonOptionalAge) TableName() string { return "person" }

func newPerson(first, last string, age int) Person {
	return Person{ID: uuid.New(), First: first, Last: last, Age: age}
}

// setupTestDB opens a database in a temporary directory, closed when the
// test ends.
func setupTestDB(t *testing.T, opts ...rowstore.Option) *rowstore.DB {
	t.Helper()
	return setupTestDBWithDriver(t, rowstore.DriverCGO, opts...)
}

func setupTestDBWithDriver(t *testing.T, driver string, opts ...rowstore.Option) *rowstore.DB {
	t.Helper()

	cfg := rowstore.DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	cfg.Driver = driver
	db, err := rowstore.Open(t.Context(), cfg, opts...)
	require.NoError(t, err, "failed to open test database")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close db: %v", err)
		}
	})
	return db
}

// testLogger captures log entries for assertions.
func testLogger() (rowstore.Option, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return rowstore.WithLogger(logrus.NewEntry(logger)), hook
}

func countEntries(hook *test.Hook, msg string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			n++
		}
	}
	return n
}

func mustStore[T rowstore.Model](t *testing.T, db *rowstore.DB) *rowstore.Store[T] {
	t.Helper()
	s, err := rowstore.NewStore[T](db)
	require.NoError(t, err)
	return s
}
