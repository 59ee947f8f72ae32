package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearch(t *testing.T) *Service {
	t.Helper()
	svc, _ := newService(t)
	ctx := context.Background()

	seed := []struct {
		title    string
		category string
		location string
		days     int
		price    int64
	}{
		{"Temazcal de luna llena", "TEMAZCAL", "Amatlán", 5, 90000},
		{"Cacao ceremony", "CEREMONY", "Tepoztlán", 12, 60000},
		{"Bird watching walk", "NATURE", "El Tepozteco", 2, 0},
		{"Weekend retreat", "RETREAT", "Amatlán", 30, 450000},
	}
	for _, s := range seed {
		in := validInput(s.title, now.AddDate(0, 0, s.days))
		in.Category = s.category
		in.Location = s.location
		in.Price = s.price
		_, err := svc.Create(ctx, admin, in)
		require.NoError(t, err)
	}
	return svc
}

func titles(t *testing.T, svc *Service, f Filter) []string {
	t.Helper()
	events, err := svc.List(context.Background(), f)
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}

func TestList_DefaultSortsByDate(t *testing.T) {
	svc := seedSearch(t)

	assert.Equal(t, []string{
		"Bird watching walk", "Temazcal de luna llena", "Cacao ceremony", "Weekend retreat",
	}, titles(t, svc, Filter{}))
}

func TestList_Filters(t *testing.T) {
	svc := seedSearch(t)
	from := now.AddDate(0, 0, 4)
	to := now.AddDate(0, 0, 13)

	assert.Equal(t, []string{"Temazcal de luna llena", "Weekend retreat"}, titles(t, svc, Filter{Query: "AMATLÁN"}))
	assert.Equal(t, []string{"Cacao ceremony"}, titles(t, svc, Filter{Category: "ceremony"}))
	assert.Equal(t, []string{"Temazcal de luna llena", "Cacao ceremony"}, titles(t, svc, Filter{From: &from, To: &to}))

	minPrice, maxPrice := int64(50000), int64(100000)
	assert.Equal(t, []string{"Temazcal de luna llena", "Cacao ceremony"},
		titles(t, svc, Filter{MinPrice: &minPrice, MaxPrice: &maxPrice}))
	assert.Empty(t, titles(t, svc, Filter{Query: "volcano"}))
}

func TestList_Sorting(t *testing.T) {
	svc := seedSearch(t)

	assert.Equal(t, []string{
		"Weekend retreat", "Temazcal de luna llena", "Cacao ceremony", "Bird watching walk",
	}, titles(t, svc, Filter{Sort: "price", Desc: true}))

	assert.Equal(t, []string{
		"Bird watching walk", "Cacao ceremony", "Temazcal de luna llena", "Weekend retreat",
	}, titles(t, svc, Filter{Sort: "title"}))
}

func TestList_InvalidFilter(t *testing.T) {
	svc := seedSearch(t)
	from := now
	to := now.Add(-time.Hour)
	lo, hi := int64(10), int64(5)

	for _, f := range []Filter{
		{Category: "PARTY"},
		{Sort: "popularity"},
		{From: &from, To: &to},
		{MinPrice: &lo, MaxPrice: &hi},
	} {
		_, err := svc.List(context.Background(), f)
		assert.ErrorIs(t, err, ErrValidation)
	}
}
