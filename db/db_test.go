package db

import (
	"testing"

	"food-ordering/config"

	"github.com/stretchr/testify/assert"
)

func TestConnString(t *testing.T) {
	got := ConnString(config.DBConfig{Host: "db", Port: 5433, User: "app", Password: "pw", Database: "food"})
	assert.Equal(t, "postgres://app:pw@db:5433/food", got)
}

func TestCloseWithoutPool(t *testing.T) {
	Pool = nil
	assert.NotPanics(t, Close)
}
