package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortURL_ShortLink(t *testing.T) {
	u := ShortURL{Code: "promo"}

	assert.Equal(t, "sho.rt/promo", u.ShortLink("sho.rt"))
}
