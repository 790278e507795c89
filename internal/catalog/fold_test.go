package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tuanvumaihuynh/inventory-count/internal/catalog"
)

func TestFoldName(t *testing.T) {
	assert.Equal(t, "ışık", catalog.FoldName("IŞIK"))
	assert.Equal(t, "istanbul", catalog.FoldName("  İSTANBUL "))
	assert.Equal(t, "milk 1l", catalog.FoldName("Milk 1L"))
}
