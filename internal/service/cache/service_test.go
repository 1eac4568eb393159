package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoverKey(t *testing.T) {
	assert.Equal(t, "shortlist:cover:book:l etranger", CoverKey("book", "l etranger"))
}
