package search

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eringen/wanderbites/content"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name                                string
		text, region, rating, tag, category string
		want                                FilterSet
	}{
		{name: "blank text", text: "  ", want: FilterSet{}},
		{name: "all empty", want: FilterSet{}},
		{name: "text and region", text: "ramen", region: "asia", want: FilterSet{Text: "ramen", Region: "asia"}},
		{name: "trims every field", text: " pho ", region: " europe ", rating: " 4 ", tag: " Street Food ", category: " street-eats ",
			want: FilterSet{Text: "pho", Region: "europe", Rating: "4", Tag: "Street Food", Category: "street-eats"}},
		{name: "region case folded", region: "ASIA", want: FilterSet{Region: "asia"}},
		{name: "unknown region dropped", text: "tacos", region: "atlantis", want: FilterSet{Text: "tacos"}},
		{name: "rating out of range dropped", rating: "6", want: FilterSet{}},
		{name: "rating zero dropped", rating: "0", want: FilterSet{}},
		{name: "inner spaces kept", text: "night  market", want: FilterSet{Text: "night  market"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.text, tt.region, tt.rating, tt.tag, tt.category)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeBlankIsEmpty(t *testing.T) {
	assert.True(t, Normalize("  ", "", "", "", "").IsEmpty())
	assert.False(t, Normalize("", "", "3", "", "").IsEmpty())
}

func TestFilterSetValues(t *testing.T) {
	f := FilterSet{Text: "ramen", Region: "asia"}
	v := f.Values()

	assert.Equal(t, "ramen", v.Get("q"))
	assert.Equal(t, "asia", v.Get("region"))
	_, hasRating := v["rating"]
	assert.False(t, hasRating, "absent fields are not encoded")
	assert.Equal(t, f, FromValues(v))
}

func TestFromValues(t *testing.T) {
	v := url.Values{"q": {"  bao "}, "rating": {"5"}, "tag": {""}, "category": {"street-eats"}}
	assert.Equal(t, FilterSet{Text: "bao", Rating: "5", Category: "street-eats"}, FromValues(v))
}

func TestFilterSetQuery(t *testing.T) {
	f := FilterSet{Text: "ramen", Region: "asia", Rating: "5", Tag: "Night Market", Category: "street-eats"}
	assert.Equal(t, content.Query{Text: "ramen", Region: "asia", Rating: "5", Tag: "Night Market", Category: "street-eats"}, f.Query())
	assert.True(t, FilterSet{}.Query().IsEmpty())
}
