package db

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/require"
)

func TestMigrationsRootedForSourceDriver(t *testing.T) {
	src, err := Migrations()
	require.NoError(t, err)

	driver, err := iofs.New(src, ".")
	require.NoError(t, err)
	defer driver.Close()

	first, err := driver.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)
}
